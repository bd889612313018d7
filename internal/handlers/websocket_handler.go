package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"zkaccount-backend/internal/middleware"
	"zkaccount-backend/internal/services"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 54 * time.Second
)

// WebSocketHandler streams settlements to subscribed clients
type WebSocketHandler struct {
	push     *services.SettlementPushService
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// NewWebSocketHandler creates the handler
func NewWebSocketHandler(push *services.SettlementPushService, logger *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		push: push,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// SubscriptionMessage client frame: {"action":"subscribe","chain_id":56} or {"action":"subscribe","tx_hash":"0x.."}
type SubscriptionMessage struct {
	Action  string `json:"action"` // subscribe, unsubscribe, ping
	ChainID int64  `json:"chain_id,omitempty"`
	TxHash  string `json:"tx_hash,omitempty"`
}

// HandleWebSocket GET /api/v1/ws/settlements
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	subject := ""
	if claims := middleware.Claims(c); claims != nil {
		subject = claims.Subject
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("❌ [WebSocket] Upgrade failed")
		return
	}
	defer conn.Close()

	client := h.push.Register(subject)
	defer h.push.Unregister(client)
	log := h.logger.WithField("conn_id", client.ID)

	replies := make(chan interface{}, 8)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		})
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.WithError(err).Debug("🔌 [WebSocket] Read loop ended")
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

			var msg SubscriptionMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.WithError(err).Debug("⚠️ [WebSocket] Ignoring malformed frame")
				continue
			}
			var reply interface{}
			switch msg.Action {
			case "subscribe":
				client.Subscribe(msg.ChainID, msg.TxHash)
				reply = gin.H{"type": "subscribed", "chain_id": msg.ChainID, "tx_hash": msg.TxHash}
			case "unsubscribe":
				client.Unsubscribe(msg.ChainID, msg.TxHash)
				reply = gin.H{"type": "unsubscribed", "chain_id": msg.ChainID, "tx_hash": msg.TxHash}
			case "ping":
				reply = gin.H{"type": "pong", "timestamp": time.Now().UTC()}
			default:
				reply = gin.H{"type": "error", "message": "unknown action " + msg.Action}
			}
			select {
			case replies <- reply:
			default:
				log.Warn("⚠️ [WebSocket] Reply queue full, dropping reply")
			}
		}
	}()

	// all writes happen on this goroutine
	if err := h.write(conn, func() error {
		return conn.WriteJSON(gin.H{"type": "connected", "client_id": client.ID})
	}); err != nil {
		return
	}
	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()
	for {
		select {
		case <-readDone:
			return
		case payload := <-client.Send:
			if err := h.write(conn, func() error { return conn.WriteMessage(websocket.TextMessage, payload) }); err != nil {
				log.WithError(err).Debug("❌ [WebSocket] Write failed")
				return
			}
		case reply := <-replies:
			if err := h.write(conn, func() error { return conn.WriteJSON(reply) }); err != nil {
				return
			}
		case <-pingTicker.C:
			if err := h.write(conn, func() error { return conn.WriteMessage(websocket.PingMessage, nil) }); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, fn func() error) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return fn()
}
