package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/trossachsgroup/site-backend/internal/posts"
	"github.com/trossachsgroup/site-backend/internal/site"
	"github.com/trossachsgroup/site-backend/internal/ws"
	"go.uber.org/zap"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// Pinger is a dependency checked by /readyz
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	posts      posts.Repository
	catalog    site.Catalog
	inbox      *site.Inbox
	wsHub      *ws.Hub
	sseHandler *ws.SSEHandler
	readiness  map[string]Pinger
	logger     *zap.SugaredLogger
}

func NewHandler(
	postRepo posts.Repository,
	catalog site.Catalog,
	inbox *site.Inbox,
	wsHub *ws.Hub,
	sseHandler *ws.SSEHandler,
	readiness map[string]Pinger,
	logger *zap.SugaredLogger,
) *Handler {
	return &Handler{
		posts:      postRepo,
		catalog:    catalog,
		inbox:      inbox,
		wsHub:      wsHub,
		sseHandler: sseHandler,
		readiness:  readiness,
		logger:     logger,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Readyz pings every registered dependency
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.readiness))
	for name := range h.readiness {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := h.readiness[name].Ping(ctx); err != nil {
			h.logger.Warnw("Readiness check failed", "check", name, "error", err)
			resp.Checks[name] = err.Error()
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	h.writeJSON(w, status, resp)
}

// WebSocket endpoint
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsHub.HandleWebSocket(w, r)
}

// SSE endpoint
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.sseHandler.HandleSSE(w, r)
}

// Utility methods
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warnw("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("API error", "code", code, "message", message, "status", status)
	} else {
		h.logger.Debugw("API error", "code", code, "message", message, "status", status)
	}
	writeErrorResponse(w, status, code, message)
}

// internalError logs the cause and hides it from the client
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Errorw("Request failed", "op", op, "path", r.URL.Path, "error", err)
	writeErrorResponse(w, http.StatusInternalServerError, CodeInternal, "internal server error")
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Code: code, Message: message})
}

// decodeJSON reads a single JSON object from the body
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
