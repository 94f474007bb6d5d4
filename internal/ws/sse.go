package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/trossachsgroup/site-backend/internal/metrics"
	"github.com/trossachsgroup/site-backend/internal/store"
	"go.uber.org/zap"
)

type SSEHandler struct {
	cache     *store.Cache
	logger    *zap.SugaredLogger
	metrics   *metrics.Metrics
	heartbeat time.Duration
}

func NewSSEHandler(cache *store.Cache, logger *zap.SugaredLogger, metrics *metrics.Metrics) *SSEHandler {
	return &SSEHandler{
		cache:     cache,
		logger:    logger,
		metrics:   metrics,
		heartbeat: 30 * time.Second,
	}
}

// HandleSSE streams events until the client goes away. ?topics=posts,contact
// picks the feeds; posts is the default.
func (h *SSEHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	channels := topicsToChannels(parseTopics(r))
	if len(channels) == 0 {
		channels = []string{store.ChannelPostEvents}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := h.cache.Subscribe(ctx, channels...)
	if err != nil {
		h.logger.Errorw("SSE subscribe failed", "error", err)
		http.Error(w, "event feed unavailable", http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	h.metrics.IncrementConnections(ctx, "sse")
	defer h.metrics.DecrementConnections(context.WithoutCancel(ctx), "sse")

	h.logger.Debugw("SSE connection established", "channels", channels)
	h.stream(ctx, w, flusher, sub)
}

func (h *SSEHandler) stream(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sub store.Subscription) {
	h.sendEvent(w, flusher, "connected", "0", nil)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ch := sub.Messages()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debugw("SSE client disconnected")
			return

		case <-heartbeat.C:
			h.sendEvent(w, flusher, "heartbeat", "ping", map[string]any{
				"timestamp": time.Now().Unix(),
			})

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var data map[string]any
			if err := json.Unmarshal([]byte(msg.Payload), &data); err != nil {
				h.logger.Warnw("Failed to parse message payload", "channel", msg.Channel, "error", err)
				continue
			}
			h.sendEvent(w, flusher, eventName(msg.Channel, data), eventID(data), data)
		}
	}
}

func parseTopics(r *http.Request) []string {
	param := r.URL.Query().Get("topics")
	if param == "" {
		return nil
	}
	var topics []string
	for _, t := range strings.Split(param, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

func topicsToChannels(topics []string) []string {
	seen := make(map[string]bool)
	var channels []string
	for _, topic := range topics {
		ch, ok := topicChannels[topic]
		if !ok || seen[ch] {
			continue
		}
		seen[ch] = true
		channels = append(channels, ch)
	}
	return channels
}

// eventName prefers the payload's own type, e.g. post.created
func eventName(channel string, data map[string]any) string {
	if t, ok := data["type"].(string); ok && t != "" {
		return t
	}
	return channelTopic(channel) + "_update"
}

func eventID(data map[string]any) string {
	switch id := data["id"].(type) {
	case float64:
		return fmt.Sprintf("%.0f", id)
	case string:
		return id
	default:
		return ""
	}
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event, id string, data any) {
	payload := []byte("{}")
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			h.logger.Errorw("Failed to marshal SSE data", "error", err)
			return
		}
		payload = b
	}

	fmt.Fprintf(w, "event: %s\n", event)
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}
