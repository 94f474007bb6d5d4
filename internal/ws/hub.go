// Package ws streams post and contact events to browsers over WebSocket
// and server-sent events.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/trossachsgroup/site-backend/internal/metrics"
	"github.com/trossachsgroup/site-backend/internal/store"
	"go.uber.org/zap"
)

// Topics clients can subscribe to, and the pubsub channel behind each
const (
	TopicPosts   = "posts"
	TopicContact = "contact"
)

var topicChannels = map[string]string{
	TopicPosts:   store.ChannelPostEvents,
	TopicContact: store.ChannelContactEvents,
}

func channelTopic(channel string) string {
	for topic, ch := range topicChannels {
		if ch == channel {
			return topic
		}
	}
	return channel
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	idleTimeout    = 2 * pongWait
)

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	cache      *store.Cache
	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
	upgrader   websocket.Upgrader
	done       chan struct{} // closed when the hub stops
	mu         sync.RWMutex
}

type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	lastActive atomic.Int64 // unix nanos

	mu     sync.RWMutex
	topics map[string]bool
}

// Message is the frame sent to WebSocket clients
type Message struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// SubscriptionRequest is what clients send to change their topics
type SubscriptionRequest struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

// NewHub builds a hub accepting upgrades from allowedOrigins. Requests without
// an Origin header are same-origin and always accepted; "*" accepts any.
func NewHub(cache *store.Cache, logger *zap.SugaredLogger, metrics *metrics.Metrics, allowedOrigins []string) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		cache:      cache,
		logger:     logger,
		metrics:    metrics,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}
	return h
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// Start subscribes to the event channels and runs the hub until ctx is done.
// The subscription is in place when Start returns.
func (h *Hub) Start(ctx context.Context) error {
	channels := make([]string, 0, len(topicChannels))
	for _, ch := range topicChannels {
		channels = append(channels, ch)
	}

	sub, err := h.cache.Subscribe(ctx, channels...)
	if err != nil {
		return fmt.Errorf("websocket hub subscribe: %w", err)
	}

	go h.forward(ctx, sub)
	go h.startClientCleanup(ctx)
	go h.run(ctx)
	return nil
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.logger.Infow("WebSocket hub shutting down")
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.IncrementConnections(ctx, "ws")
			h.logger.Debugw("Client registered", "remote", client.conn.RemoteAddr().String())

		case client := <-h.unregister:
			h.remove(ctx, client)
		}
	}
}

// remove drops a client once; later calls are no-ops
func (h *Hub) remove(ctx context.Context, client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()

	if ok {
		h.metrics.DecrementConnections(ctx, "ws")
		h.logger.Debugw("Client unregistered", "remote", client.conn.RemoteAddr().String())
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) forward(ctx context.Context, sub store.Subscription) {
	defer sub.Close()

	ch := sub.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				h.logger.Warnw("Event subscription closed; WebSocket updates stopped")
				return
			}
			h.handleMessage(ctx, msg)
		}
	}
}

func (h *Hub) handleMessage(ctx context.Context, msg *store.Message) {
	topic := channelTopic(msg.Channel)
	frame, err := json.Marshal(Message{
		Type:      "update",
		Topic:     topic,
		Data:      json.RawMessage(msg.Payload),
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		h.logger.Errorw("Failed to marshal WebSocket message", "error", err)
		return
	}
	h.broadcast(ctx, frame, topic)
}

func (h *Hub) broadcast(ctx context.Context, frame []byte, topic string) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.clients {
		if !client.isSubscribed(topic) {
			continue
		}
		select {
		case client.send <- frame:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Debugw("Dropping slow client", "remote", client.conn.RemoteAddr().String())
		h.remove(ctx, client)
	}
}

func (h *Hub) startClientCleanup(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.cleanupInactiveClients(ctx, time.Now().Add(-idleTimeout))
		}
	}
}

func (h *Hub) cleanupInactiveClients(ctx context.Context, cutoff time.Time) {
	var stale []*Client

	h.mu.RLock()
	for client := range h.clients {
		if time.Unix(0, client.lastActive.Load()).Before(cutoff) {
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		h.logger.Debugw("Cleaned up inactive client", "remote", client.conn.RemoteAddr().String())
		h.remove(ctx, client)
	}
}

// HandleWebSocket upgrades the request and registers the client on the
// posts topic.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		topics: map[string]bool{TopicPosts: true},
	}
	client.touch()

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warnw("WebSocket error", "error", err)
			}
			return
		}

		c.touch()
		c.handleRequest(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleRequest(message []byte) {
	var req SubscriptionRequest
	if err := json.Unmarshal(message, &req); err != nil {
		c.hub.logger.Warnw("Invalid subscription message", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch req.Type {
	case "subscribe":
		for _, topic := range req.Topics {
			if _, known := topicChannels[topic]; known {
				c.topics[topic] = true
			}
		}
	case "unsubscribe":
		for _, topic := range req.Topics {
			delete(c.topics, topic)
		}
	default:
		c.hub.logger.Debugw("Unknown client message", "type", req.Type)
		return
	}
	c.hub.logger.Debugw("Client topics changed", "type", req.Type, "topics", req.Topics)
}

func (c *Client) isSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics[topic]
}
