package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefix of every environment override, e.g. ZKACCOUNT_SERVER_PORT
const EnvPrefix = "ZKACCOUNT"

// Config application configuration structure
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	CORS          CORSConfig          `yaml:"cors"`
	Logging       LoggingConfig       `yaml:"logging"`
	Database      DatabaseConfig      `yaml:"database"`
	NATS          NATSConfig          `yaml:"nats"`
	Auth          AuthConfig          `yaml:"auth"`
	Proof         ProofConfig         `yaml:"proof"`
	ConfigService ConfigServiceConfig `yaml:"configService" split_words:"true"`
	Transfer      TransferConfig      `yaml:"transfer"`
	Confirmation  ConfirmationConfig  `yaml:"confirmation"`
	Chains        []ChainConfig       `yaml:"chains" ignored:"true"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // gin mode: debug, release, test
	// MetricsAllowedIPs IPs or CIDRs besides loopback allowed to scrape /metrics
	MetricsAllowedIPs []string `yaml:"metricsAllowedIPs" split_words:"true"`
}

// Addr listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CORSConfig browser origin policy. No origins means allow all.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins" split_words:"true"`
	AllowCredentials bool     `yaml:"allowCredentials" split_words:"true"`
	MaxAge           int      `yaml:"maxAge" split_words:"true"` // seconds
}

// LoggingConfig logger level and format
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DatabaseConfig transaction journal database. Empty DSN disables the journal.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig settlement publisher
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`        // seconds
	ReconnectWait int    `yaml:"reconnect_wait"` // seconds
	MaxReconnects int    `yaml:"max_reconnects" split_words:"true"`
	SubjectPrefix string `yaml:"subject_prefix" split_words:"true"`
}

// AuthConfig session JWT validation and optional TOTP step-up for spends
type AuthConfig struct {
	JWTSecret  string `yaml:"jwtSecret" envconfig:"JWT_SECRET"`
	Issuer     string `yaml:"issuer"`
	TOTPSecret string `yaml:"totpSecret" envconfig:"TOTP_SECRET"`
}

// ProofConfig proof issuing service
type ProofConfig struct {
	BaseURL string        `yaml:"baseUrl" split_words:"true"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// ConfigServiceConfig external chain configuration endpoint. Empty BaseURL uses static chains only.
type ConfigServiceConfig struct {
	BaseURL string        `yaml:"baseUrl" split_words:"true"`
	Timeout time.Duration `yaml:"timeout"`
}

// TransferConfig orchestration tunables
type TransferConfig struct {
	BalanceTimeout      time.Duration `yaml:"balanceTimeout" split_words:"true"`
	BalanceAttempts     int           `yaml:"balanceAttempts" split_words:"true"`
	BalanceRetryDelay   time.Duration `yaml:"balanceRetryDelay" split_words:"true"`
	GasMultiplier       uint64        `yaml:"gasMultiplier" split_words:"true"`
	FallbackGasLimit    uint64        `yaml:"fallbackGasLimit" split_words:"true"`
	EstimateAttempts    int           `yaml:"estimateAttempts" split_words:"true"`
	GasPriceBumpPercent int64         `yaml:"gasPriceBumpPercent" split_words:"true"`
}

// ConfirmationConfig receipt polling
type ConfirmationConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"pollInterval" split_words:"true"`
}

// LoadConfig Load configuration file, then apply ZKACCOUNT_* environment overrides and defaults
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"path":   configPath,
		"chains": len(cfg.Chains),
	}).Info("✅ Configuration loaded")
	return cfg, nil
}

// Parse decodes YAML and applies environment overrides and defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.CORS.MaxAge == 0 {
		c.CORS.MaxAge = 3600
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.NATS.Timeout == 0 {
		c.NATS.Timeout = 5
	}
	if c.NATS.ReconnectWait == 0 {
		c.NATS.ReconnectWait = 2
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "zkaccount"
	}
	if c.Proof.Path == "" {
		c.Proof.Path = "/api/proof/generate"
	}
	if c.Proof.Timeout == 0 {
		c.Proof.Timeout = 60 * time.Second
	}
	if c.ConfigService.Timeout == 0 {
		c.ConfigService.Timeout = 10 * time.Second
	}

	t := &c.Transfer
	if t.BalanceTimeout == 0 {
		t.BalanceTimeout = 10 * time.Second
	}
	if t.BalanceAttempts == 0 {
		t.BalanceAttempts = 3
	}
	if t.BalanceRetryDelay == 0 {
		t.BalanceRetryDelay = 500 * time.Millisecond
	}
	if t.GasMultiplier == 0 {
		t.GasMultiplier = 2
	}
	if t.FallbackGasLimit == 0 {
		t.FallbackGasLimit = 300000
	}
	if t.EstimateAttempts == 0 {
		t.EstimateAttempts = 2
	}
	if t.GasPriceBumpPercent == 0 {
		t.GasPriceBumpPercent = 20
	}

	if c.Confirmation.Timeout == 0 {
		c.Confirmation.Timeout = 30 * time.Second
	}
	if c.Confirmation.PollInterval == 0 {
		c.Confirmation.PollInterval = 2 * time.Second
	}
}

// Validate rejects configurations the services cannot run with
func (c *Config) Validate() error {
	if c.Transfer.BalanceAttempts < 1 || c.Transfer.EstimateAttempts < 1 {
		return fmt.Errorf("transfer attempts must be at least 1")
	}
	if c.Confirmation.PollInterval <= 0 || c.Confirmation.Timeout <= 0 {
		return fmt.Errorf("confirmation poll interval %v and timeout %v must be positive", c.Confirmation.PollInterval, c.Confirmation.Timeout)
	}
	if c.Confirmation.PollInterval > c.Confirmation.Timeout {
		return fmt.Errorf("confirmation poll interval %v exceeds timeout %v", c.Confirmation.PollInterval, c.Confirmation.Timeout)
	}
	seen := make(map[int64]bool, len(c.Chains))
	for _, chain := range c.Chains {
		if seen[chain.ChainID] {
			return fmt.Errorf("chain %d configured twice", chain.ChainID)
		}
		seen[chain.ChainID] = true
	}
	return nil
}

// NewLogger builds the process logger from the logging section
func (l LoggingConfig) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(strings.ToLower(l.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if l.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
