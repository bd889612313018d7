package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"zkaccount-backend/internal/clients"
	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/db"
	"zkaccount-backend/internal/handlers"
	"zkaccount-backend/internal/repository"
	"zkaccount-backend/internal/router"
	"zkaccount-backend/internal/services"
)

// ServiceContainer owns every long-lived component of the process
type ServiceContainer struct {
	Config *config.Config
	Logger *logrus.Logger

	// Database (nil when the journal is disabled)
	DB              *gorm.DB
	TransactionRepo repository.TransactionRepository

	// Clients
	ChainClients *clients.ChainClients
	GasPrice     *clients.GasPriceClient
	ProofClient  *clients.ProofClient
	NATSClient   *clients.NATSClient // nil when no NATS URL is configured

	// Core Services
	Resolver     *services.ChainEndpointResolver
	Sender       *services.TransactionSender
	Balances     *services.BalanceReader
	Recipients   *services.RecipientResolver
	Proofs       *services.ProofProvider
	Tracker      *services.ConfirmationTracker
	Factory      *services.AccountFactoryClient
	Orchestrator *services.TransferOrchestrator

	// Push Service
	PushService *services.SettlementPushService
}

// InitializeContainer builds the container from configuration.
// Database and NATS are optional; a configured one that cannot be reached is an error.
func InitializeContainer(cfg *config.Config, logger *logrus.Logger) (*ServiceContainer, error) {
	logger.Info("🚀 Initializing Service Container...")
	c := &ServiceContainer{Config: cfg, Logger: logger}

	if err := c.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := c.initClients(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	if err := c.initCoreServices(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize core services: %w", err)
	}

	logger.Info("✅ Service Container initialized successfully")
	return c, nil
}

func (c *ServiceContainer) initDatabase() error {
	gdb, err := db.Open(c.Config.Database, c.Logger)
	if errors.Is(err, db.ErrDisabled) {
		c.Logger.Info("ℹ️ No database DSN configured, transaction journal disabled")
		return nil
	}
	if err != nil {
		return err
	}
	c.DB = gdb
	c.TransactionRepo = repository.NewTransactionRepository(gdb)
	return nil
}

func (c *ServiceContainer) initClients() error {
	c.Logger.Info("🔧 Initializing Clients...")

	c.ChainClients = clients.NewChainClients(c.Logger)
	c.GasPrice = clients.NewGasPriceClient(c.Config.Transfer.GasPriceBumpPercent, c.Logger)
	c.ProofClient = clients.NewProofClient(c.Config.Proof, c.Logger)

	if c.Config.NATS.URL != "" {
		nc, err := clients.NewNATSClient(c.Config.NATS, c.Logger)
		if err != nil {
			return err
		}
		c.NATSClient = nc
	} else {
		c.Logger.Info("ℹ️ No NATS URL configured, settlement publishing disabled")
	}
	return nil
}

func (c *ServiceContainer) initCoreServices() error {
	c.Logger.Info("🔧 Initializing Core Services...")

	static, err := c.Config.StaticChains()
	if err != nil {
		return err
	}
	sources := []services.ChainSource{services.StaticChainSource(static)}
	if c.Config.ConfigService.BaseURL != "" {
		sources = append(sources, clients.NewConfigClient(c.Config.ConfigService, c.Logger))
	}
	c.Resolver = services.NewChainEndpointResolver(c.Logger, sources...)

	c.PushService = services.NewSettlementPushService(c.Logger)
	c.Tracker = services.NewConfirmationTracker(c.ChainClients, c.Config.Confirmation, c.Logger, c.PushService)
	if c.NATSClient != nil {
		c.Tracker.AddNotifier(c.NATSClient)
	}

	var journal services.TransactionJournal
	if c.TransactionRepo != nil {
		journal = c.TransactionRepo
		c.Tracker.AddNotifier(repository.NewSettlementJournal(c.TransactionRepo))
	}

	tc := c.Config.Transfer
	c.Sender = services.NewTransactionSender(c.GasPrice, c.Logger)
	c.Balances = services.NewBalanceReader(c.ChainClients, tc, c.Logger)
	c.Recipients = services.NewRecipientResolver(c.ChainClients, c.Logger)
	c.Proofs = services.NewProofProvider(c.ProofClient, c.Logger)
	c.Factory = services.NewAccountFactoryClient(c.ChainClients, c.Sender, c.Tracker, journal, tc, c.Logger)
	c.Orchestrator = services.NewTransferOrchestrator(
		c.ChainClients, c.Recipients, c.Balances, c.Factory, c.Proofs,
		c.Sender, c.Tracker, journal, tc, c.Logger,
	)

	c.Logger.WithFields(logrus.Fields{
		"static_chains":  len(static),
		"config_service": c.Config.ConfigService.BaseURL != "",
		"journal":        journal != nil,
		"nats":           c.NATSClient != nil,
	}).Info("✅ Core services initialized")
	return nil
}

// HealthChecks probes of the optional dependencies that are enabled
func (c *ServiceContainer) HealthChecks() []handlers.HealthCheck {
	var checks []handlers.HealthCheck
	if c.DB != nil {
		checks = append(checks, handlers.HealthCheck{Name: "database", Check: func(ctx context.Context) error {
			sqlDB, err := c.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}})
	}
	if c.NATSClient != nil {
		checks = append(checks, handlers.HealthCheck{Name: "nats", Check: c.NATSClient.Healthy})
	}
	return checks
}

// Router builds the HTTP engine over the container's services
func (c *ServiceContainer) Router() *gin.Engine {
	return router.SetupRouter(c.Config, router.Handlers{
		Health:    handlers.NewHealthHandler(c.HealthChecks()...),
		Accounts:  handlers.NewAccountHandler(c.Resolver, c.Factory, c.Logger),
		Transfers: handlers.NewTransferHandler(c.Resolver, c.Orchestrator, c.Logger),
		Queries:   handlers.NewQueryHandler(c.Resolver, c.Recipients, c.Balances, c.TransactionRepo, c.Logger),
		WebSocket: handlers.NewWebSocketHandler(c.PushService, c.Logger),
	}, c.Logger)
}

// Close stops tracking, then releases connections
func (c *ServiceContainer) Close() {
	c.Logger.Info("🛑 Shutting down services...")
	if c.Tracker != nil {
		c.Tracker.Close()
	}
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
	if c.ChainClients != nil {
		c.ChainClients.Close()
	}
	if c.DB != nil {
		if err := db.Close(c.DB); err != nil {
			c.Logger.WithError(err).Warn("⚠️ Failed to close database")
		}
	}
	c.Logger.Info("✅ Services stopped")
}
