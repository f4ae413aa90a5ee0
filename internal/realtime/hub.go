// Package realtime streams verification decisions over WebSocket.
//
// Partner dashboards subscribe to the feed instead of polling the history
// endpoint. Clients can narrow the stream to specific decisions, risk
// levels, or a minimum combined score.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verdict-labs/verdict/internal/metrics"
	"github.com/verdict-labs/verdict/internal/risk"
)

// normalCloseCodes are WebSocket close codes that indicate an expected disconnect.
var normalCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Allow non-browser clients
		}
		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// DecisionEvent is one verification decision pushed to the feed.
type DecisionEvent struct {
	RequestID     string    `json:"requestId"`
	PartnerID     string    `json:"partnerId"`
	TransactionID string    `json:"transactionId"`
	Decision      string    `json:"decision"`
	RiskLevel     string    `json:"riskLevel"`
	Score         float64   `json:"score"`
	Probability   float64   `json:"probability"`
	ModelVersion  int64     `json:"modelVersion"`
	Timestamp     time.Time `json:"timestamp"`
}

// Subscription filters the feed for one client.
type Subscription struct {
	All       bool     `json:"all"`
	Decisions []string `json:"decisions"`
	Levels    []string `json:"riskLevels"`
	MinScore  float64  `json:"minScore"`
}

// Client represents a WebSocket connection.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	partnerID string
	mu        sync.RWMutex
	sub       Subscription
}

// MaxClients is the maximum number of concurrent feed connections.
const MaxClients = 10000

// Hub fans decision events out to connected clients.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *DecisionEvent
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *slog.Logger
	done       chan struct{} // closed when Run exits; prevents upgrade race
	maxClients int

	totalEvents  atomic.Int64
	totalClients atomic.Int64
	peakClients  atomic.Int64
}

// NewHub creates a decision feed hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *DecisionEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		done:       make(chan struct{}),
		maxClients: MaxClients,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("decision feed started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("decision feed shutting down, closing client connections")
			h.mu.Lock()
			for client := range h.clients {
				close(client.send) // writePump sends CloseMessage on closed channel
				delete(h.clients, client)
			}
			h.mu.Unlock()
			metrics.ActiveFeedClients.Set(0)
			h.logger.Info("decision feed stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.totalClients.Add(1)
			if current := int64(len(h.clients)); current > h.peakClients.Load() {
				h.peakClients.Store(current)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.ActiveFeedClients.Set(float64(n))
			h.logger.Info("feed client connected", "partner_id", client.partnerID, "total", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.ActiveFeedClients.Set(float64(n))
			h.logger.Info("feed client disconnected", "total", n)

		case event := <-h.broadcast:
			h.totalEvents.Add(1)
			h.mu.RLock()
			var slow []*Client
			for client := range h.clients {
				if h.shouldSend(client, event) {
					select {
					case client.send <- h.serialize(event):
					default:
						slow = append(slow, client)
					}
				}
			}
			h.mu.RUnlock()
			// Remove slow clients under write lock
			if len(slow) > 0 {
				h.mu.Lock()
				for _, client := range slow {
					if _, ok := h.clients[client]; ok {
						close(client.send)
						delete(h.clients, client)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// shouldSend checks if an event matches the client's partner and subscription.
func (h *Hub) shouldSend(client *Client, event *DecisionEvent) bool {
	// Clients only ever see their own partner's decisions.
	if client.partnerID != "" && client.partnerID != event.PartnerID {
		return false
	}

	client.mu.RLock()
	sub := client.sub
	client.mu.RUnlock()

	if sub.All {
		return true
	}

	if len(sub.Decisions) > 0 && !contains(sub.Decisions, event.Decision) {
		return false
	}
	if len(sub.Levels) > 0 && !contains(sub.Levels, event.RiskLevel) {
		return false
	}
	if sub.MinScore > 0 && event.Score < sub.MinScore {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (h *Hub) serialize(event *DecisionEvent) []byte {
	data, _ := json.Marshal(event)
	return data
}

// Publish queues a decision for delivery, dropping it if the feed is saturated.
func (h *Hub) Publish(event *DecisionEvent) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("feed channel full, dropping event")
	}
}

// PublishScore converts a risk score into a feed event and queues it.
func (h *Hub) PublishScore(score *risk.Score) {
	if h == nil || score == nil {
		return
	}
	h.Publish(&DecisionEvent{
		RequestID:     score.ID,
		PartnerID:     score.PartnerID,
		TransactionID: score.TransactionID,
		Decision:      string(score.Decision),
		RiskLevel:     string(score.Level),
		Score:         score.Combined,
		Probability:   score.Probability,
		ModelVersion:  score.ModelVersion,
		Timestamp:     score.CreatedAt,
	})
}

// Stats returns hub statistics.
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"connectedClients": len(h.clients),
		"totalEvents":      h.totalEvents.Load(),
		"totalClients":     h.totalClients.Load(),
		"peakClients":      h.peakClients.Load(),
	}
}

// HandleWebSocket upgrades HTTP to WebSocket for the given partner.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request, partnerID string) {
	// Reject upgrades after the hub has stopped to prevent orphaned connections.
	select {
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n >= h.maxClients {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		partnerID: partnerID,
		sub:       Subscription{All: true},
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump reads messages from the WebSocket (subscription updates, pings).
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, normalCloseCodes...) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		var sub Subscription
		if err := json.Unmarshal(message, &sub); err == nil {
			c.mu.Lock()
			c.sub = sub
			c.mu.Unlock()
		}
	}
}

// writePump writes messages to the WebSocket.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Warn("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.logger.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}
