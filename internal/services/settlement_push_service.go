package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/metrics"
	"zkaccount-backend/internal/models"
)

// Connection one websocket subscriber. The owning handler drains Send.
type Connection struct {
	ID      string
	Subject string
	Send    chan []byte

	mu     sync.Mutex
	chains map[int64]bool
	txs    map[string]bool
}

// PushMessage base structure of every pushed frame
type PushMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id"`
	Data      interface{} `json:"data"`
}

// Subscribe adds a chain-wide or single transaction subscription; chainID 0 and empty txHash are ignored
func (c *Connection) Subscribe(chainID int64, txHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if chainID != 0 {
		c.chains[chainID] = true
	}
	if txHash != "" {
		c.txs[strings.ToLower(txHash)] = true
	}
}

// Unsubscribe removes what Subscribe added
func (c *Connection) Unsubscribe(chainID int64, txHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.chains, chainID)
	delete(c.txs, strings.ToLower(txHash))
}

func (c *Connection) wants(s models.Settlement) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chains[s.ChainID] || c.txs[strings.ToLower(s.TxHash)]
}

// SettlementPushService fans settlements out to websocket subscribers
type SettlementPushService struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	logger      *logrus.Logger
}

// NewSettlementPushService creates the hub
func NewSettlementPushService(logger *logrus.Logger) *SettlementPushService {
	return &SettlementPushService{
		connections: make(map[string]*Connection),
		logger:      logger,
	}
}

// Register creates a connection for subject with a buffered Send channel
func (s *SettlementPushService) Register(subject string) *Connection {
	conn := &Connection{
		ID:      uuid.New().String(),
		Subject: subject,
		Send:    make(chan []byte, 64),
		chains:  make(map[int64]bool),
		txs:     make(map[string]bool),
	}
	s.mu.Lock()
	s.connections[conn.ID] = conn
	s.mu.Unlock()
	metrics.WebSocketClients.Inc()

	s.logger.WithFields(logrus.Fields{"conn_id": conn.ID, "subject": subject}).Info("📱 [Push] WebSocket connection registered")
	return conn
}

// Unregister removes the connection. Send is left open for the handler to abandon.
func (s *SettlementPushService) Unregister(conn *Connection) {
	s.mu.Lock()
	_, ok := s.connections[conn.ID]
	delete(s.connections, conn.ID)
	s.mu.Unlock()
	if ok {
		metrics.WebSocketClients.Dec()
		s.logger.WithField("conn_id", conn.ID).Info("📱 [Push] WebSocket connection unregistered")
	}
}

// ActiveConnections number of registered connections
func (s *SettlementPushService) ActiveConnections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// Name notifier name
func (s *SettlementPushService) Name() string { return "websocket" }

// NotifySettlement pushes s to every subscribed connection. Slow consumers lose the frame.
func (s *SettlementPushService) NotifySettlement(ctx context.Context, settlement models.Settlement) error {
	payload, err := json.Marshal(PushMessage{
		Type:      "settlement",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		MessageID: uuid.New().String(),
		Data:      settlement,
	})
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	delivered := 0
	for _, conn := range s.connections {
		if !conn.wants(settlement) {
			continue
		}
		select {
		case conn.Send <- payload:
			delivered++
		default:
			s.logger.WithFields(logrus.Fields{"conn_id": conn.ID, "tx_hash": settlement.TxHash}).Warn("⚠️ [Push] Send buffer full, dropping settlement")
		}
	}
	s.logger.WithFields(logrus.Fields{"tx_hash": settlement.TxHash, "delivered": delivered}).Debug("📨 [Push] Settlement pushed")
	return nil
}
