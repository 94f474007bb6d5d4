package site

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/trossachsgroup/site-backend/internal/store"
	"go.uber.org/zap"
)

// ErrInvalidContact wraps every validation failure of a contact submission
var ErrInvalidContact = errors.New("invalid contact message")

const (
	maxNameLen    = 200
	maxEmailLen   = 254
	maxMessageLen = 5000

	EventContactReceived = "contact.received"
)

type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type ContactMessage struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// ContactEvent is published on store.ChannelContactEvents. It carries no
// personal data.
type ContactEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	At   int64  `json:"at"`
}

type MetricsRecorder interface {
	RecordContactMessage(ctx context.Context)
}

// Inbox keeps the latest contact submissions in a capped cache list. The
// list expires retention after the last submission.
type Inbox struct {
	cache     *store.Cache
	logger    *zap.SugaredLogger
	metrics   MetricsRecorder
	limit     int64
	retention time.Duration
	now       func() time.Time
}

// NewInbox builds an inbox holding at most limit messages. A zero retention
// keeps messages until they are pushed out by newer ones.
func NewInbox(cache *store.Cache, logger *zap.SugaredLogger, metrics MetricsRecorder, limit int, retention time.Duration) *Inbox {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Inbox{
		cache:     cache,
		logger:    logger,
		metrics:   metrics,
		limit:     int64(limit),
		retention: retention,
		now:       time.Now,
	}
}

// Validate trims the request and checks it
func (r *ContactRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Message = strings.TrimSpace(r.Message)

	switch {
	case r.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidContact)
	case r.Email == "":
		return fmt.Errorf("%w: email is required", ErrInvalidContact)
	case r.Message == "":
		return fmt.Errorf("%w: message is required", ErrInvalidContact)
	case len(r.Name) > maxNameLen:
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidContact, maxNameLen)
	case len(r.Email) > maxEmailLen:
		return fmt.Errorf("%w: email exceeds %d characters", ErrInvalidContact, maxEmailLen)
	case len(r.Message) > maxMessageLen:
		return fmt.Errorf("%w: message exceeds %d characters", ErrInvalidContact, maxMessageLen)
	}

	addr, err := mail.ParseAddress(r.Email)
	if err != nil || addr.Address != r.Email {
		return fmt.Errorf("%w: email is not a valid address", ErrInvalidContact)
	}
	return nil
}

// Submit validates and stores a message, then announces it.
func (i *Inbox) Submit(ctx context.Context, req ContactRequest) (ContactMessage, error) {
	if err := req.Validate(); err != nil {
		return ContactMessage{}, err
	}

	msg := ContactMessage{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Email:      req.Email,
		Message:    req.Message,
		ReceivedAt: i.now().UTC(),
	}

	if err := i.cache.PushCapped(ctx, store.KeyContactInbox, msg, i.limit, i.retention); err != nil {
		return ContactMessage{}, fmt.Errorf("store contact message: %w", err)
	}

	if i.metrics != nil {
		i.metrics.RecordContactMessage(ctx)
	}
	i.logger.Infow("Contact message received", "id", msg.ID, "email", msg.Email)

	ev := ContactEvent{Type: EventContactReceived, ID: msg.ID, At: msg.ReceivedAt.Unix()}
	if err := i.cache.Publish(ctx, store.ChannelContactEvents, ev); err != nil {
		i.logger.Warnw("Contact event publish failed", "id", msg.ID, "error", err)
	}
	return msg, nil
}

// Messages returns stored messages, newest first.
func (i *Inbox) Messages(ctx context.Context) ([]ContactMessage, error) {
	items, err := i.cache.Range(ctx, store.KeyContactInbox)
	if err != nil {
		return nil, fmt.Errorf("read contact inbox: %w", err)
	}

	out := make([]ContactMessage, 0, len(items))
	for j := len(items) - 1; j >= 0; j-- {
		var msg ContactMessage
		if err := json.Unmarshal(items[j], &msg); err != nil {
			i.logger.Warnw("Skipping unreadable contact message", "error", err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}
