package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/metrics"
	"zkaccount-backend/internal/models"
)

// NATSClient publishes settlement notifications
type NATSClient struct {
	conn   *nats.Conn
	prefix string
	logger *logrus.Logger
}

// NewNATSClient connects to the NATS server and keeps reconnecting forever
func NewNATSClient(cfg config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	connectTimeout := time.Duration(cfg.Timeout) * time.Second
	reconnectWait := time.Duration(cfg.ReconnectWait) * time.Second
	maxReconnects := cfg.MaxReconnects
	if maxReconnects == 0 {
		maxReconnects = -1
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("zkaccount-backend"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("⚠️ [NATS] Disconnected")
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("🔌 [NATS] Reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)
	logger.WithField("url", cfg.URL).Info("✅ [NATS] Connected")

	return &NATSClient{conn: conn, prefix: cfg.SubjectPrefix, logger: logger}, nil
}

// Subject settlement subject of a chain: <prefix>.<chainId>.tx.settled
func (c *NATSClient) Subject(chainID int64) string {
	return SettlementSubject(c.prefix, chainID)
}

// SettlementSubject builds the settlement subject for prefix and chain
func SettlementSubject(prefix string, chainID int64) string {
	return fmt.Sprintf("%s.%d.tx.settled", prefix, chainID)
}

// Name identifies the notifier in logs and metrics
func (c *NATSClient) Name() string {
	return "nats"
}

// NotifySettlement publishes the settlement as JSON
func (c *NATSClient) NotifySettlement(ctx context.Context, s models.Settlement) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settlement: %w", err)
	}
	if err := c.conn.Publish(c.Subject(s.ChainID), data); err != nil {
		return fmt.Errorf("failed to publish settlement %s: %w", s.TxHash, err)
	}
	return nil
}

// Healthy reports the connection state
func (c *NATSClient) Healthy(ctx context.Context) error {
	if !c.conn.IsConnected() {
		return fmt.Errorf("nats status %s", c.conn.Status())
	}
	return nil
}

// Close drains pending publishes and closes the connection
func (c *NATSClient) Close() {
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
	metrics.NATSConnectionStatus.Set(0)
}
