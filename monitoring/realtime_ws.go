// Package monitoring pushes pipeline events to dashboard clients and
// collects service metrics.
package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"skycast/pipeline"
	"skycast/weather"
)

type MessageType string

const (
	ObservationEvent  MessageType = "observation"
	PredictionEvent   MessageType = "prediction"
	QualityAlertEvent MessageType = "quality_alert"
	SystemStatusEvent MessageType = "system_status"
	HeartbeatEvent    MessageType = "heartbeat"
)

// Message is the envelope pushed to dashboard clients.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	ID        string          `json:"id"`
}

// ClientMessage is what dashboard clients send back.
type ClientMessage struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

type Client struct {
	conn          *websocket.Conn
	send          chan []byte
	clientID      string
	subMu         sync.RWMutex
	subscriptions map[string]bool
}

// wants reports whether the client should receive an event. Clients with no
// subscriptions receive everything; untyped messages go to everyone.
func (c *Client) wants(eventType MessageType) bool {
	if eventType == "" {
		return true
	}
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if len(c.subscriptions) == 0 {
		return true
	}
	return c.subscriptions[string(eventType)]
}

type outbound struct {
	eventType MessageType
	payload   []byte
}

// WebSocketHub fans pipeline events out to connected dashboard clients.
type WebSocketHub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewWebSocketHub() *WebSocketHub {
	ctx, cancel := context.WithCancel(context.Background())

	return &WebSocketHub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start runs the hub loop. Call in a goroutine.
func (h *WebSocketHub) Start() {
	defer zap.L().Info("websocket hub stopped")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			zap.L().Info("dashboard client connected",
				zap.String("client_id", client.clientID), zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			zap.L().Info("dashboard client disconnected",
				zap.String("client_id", client.clientID), zap.Int("total", total))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(message.eventType) {
					continue
				}
				select {
				case client.send <- message.payload:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *WebSocketHub) Stop() {
	h.cancel()
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the connection and starts the client pumps.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:          conn,
		send:          make(chan []byte, 256),
		clientID:      uuid.NewString(),
		subscriptions: make(map[string]bool),
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

// Broadcast queues an untyped raw message; drops it when the queue is full.
func (h *WebSocketHub) Broadcast(message []byte) {
	h.broadcastTyped("", message)
}

func (h *WebSocketHub) broadcastTyped(eventType MessageType, message []byte) {
	select {
	case h.broadcast <- outbound{eventType: eventType, payload: message}:
	default:
		zap.L().Warn("websocket broadcast queue full, dropping message")
	}
}

func (h *WebSocketHub) broadcastEvent(eventType MessageType, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		zap.L().Warn("failed to marshal event", zap.String("type", string(eventType)), zap.Error(err))
		return
	}
	message, err := json.Marshal(Message{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      payload,
		ID:        uuid.NewString(),
	})
	if err != nil {
		return
	}
	h.broadcastTyped(eventType, message)
}

// BroadcastObservation pushes a freshly ingested observation.
func (h *WebSocketHub) BroadcastObservation(obs *weather.Observation) {
	h.broadcastEvent(ObservationEvent, obs)
}

// BroadcastPrediction pushes a served forecast.
func (h *WebSocketHub) BroadcastPrediction(city string, point weather.ForecastPoint) {
	h.broadcastEvent(PredictionEvent, map[string]interface{}{
		"city":     city,
		"forecast": point,
	})
}

// BroadcastQualityAlert pushes a cleaning finding.
func (h *WebSocketHub) BroadcastQualityAlert(issue pipeline.QualityIssue) {
	h.broadcastEvent(QualityAlertEvent, issue)
}

// BroadcastSystemStatus pushes service level status.
func (h *WebSocketHub) BroadcastSystemStatus(status interface{}) {
	h.broadcastEvent(SystemStatusEvent, status)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump(h *WebSocketHub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		_, messageData, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.L().Debug("websocket read error", zap.Error(err))
			}
			break
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(messageData, &clientMsg); err != nil {
			continue
		}

		c.handleClientMessage(clientMsg)
	}
}

func (c *Client) handleClientMessage(msg ClientMessage) {
	switch msg.Type {
	case "subscribe":
		c.subMu.Lock()
		c.subscriptions[msg.Topic] = true
		c.subMu.Unlock()
	case "unsubscribe":
		c.subMu.Lock()
		delete(c.subscriptions, msg.Topic)
		c.subMu.Unlock()
	case "ping":
		// Transport level pings are handled by writePump.
	}
}
