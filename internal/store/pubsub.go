package store

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Message is one pubsub delivery
type Message struct {
	Channel string
	Payload string
}

// Subscription delivers messages until closed. The channel is closed once
// the subscription ends.
type Subscription interface {
	Messages() <-chan *Message
	Close() error
}

const subscriptionBuffer = 100

type redisSubscription struct {
	ps  *redis.PubSub
	out chan *Message
}

func newRedisSubscription(ctx context.Context, ps *redis.PubSub) *redisSubscription {
	s := &redisSubscription{ps: ps, out: make(chan *Message, subscriptionBuffer)}
	go func() {
		defer close(s.out)
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = ps.Close()
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case s.out <- &Message{Channel: msg.Channel, Payload: msg.Payload}:
				default:
					// Slow reader, drop
				}
			}
		}
	}()
	return s
}

func (s *redisSubscription) Messages() <-chan *Message {
	return s.out
}

func (s *redisSubscription) Close() error {
	return s.ps.Close()
}

// memorySubscription is a subscriber of the in-process hub
type memorySubscription struct {
	channels map[string]bool
	msgChan  chan *Message
	closeCh  chan struct{}
	closed   bool
	mu       sync.RWMutex
}

func newMemorySubscription(channels []string) *memorySubscription {
	set := make(map[string]bool, len(channels))
	for _, ch := range channels {
		set[ch] = true
	}
	return &memorySubscription{
		channels: set,
		msgChan:  make(chan *Message, subscriptionBuffer),
		closeCh:  make(chan struct{}),
	}
}

func (m *memorySubscription) Messages() <-chan *Message {
	return m.msgChan
}

func (m *memorySubscription) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.closeCh)
		close(m.msgChan)
	}
	return nil
}

// send delivers without blocking; a full buffer drops the message
func (m *memorySubscription) send(msg *Message) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed || !m.channels[msg.Channel] {
		return
	}
	select {
	case m.msgChan <- msg:
	default:
	}
}

// PubSubHub fans messages out to in-process subscribers
type PubSubHub struct {
	subscribers map[string][]*memorySubscription
	mu          sync.RWMutex
}

func NewPubSubHub() *PubSubHub {
	return &PubSubHub{
		subscribers: make(map[string][]*memorySubscription),
	}
}

func (h *PubSubHub) Subscribe(ctx context.Context, channels ...string) Subscription {
	sub := newMemorySubscription(channels)

	h.mu.Lock()
	for _, channel := range channels {
		h.subscribers[channel] = append(h.subscribers[channel], sub)
	}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.closeCh:
		}
		h.remove(sub, channels)
	}()

	return sub
}

func (h *PubSubHub) remove(sub *memorySubscription, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, channel := range channels {
		subs := h.subscribers[channel]
		for i, s := range subs {
			if s == sub {
				h.subscribers[channel] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(h.subscribers[channel]) == 0 {
			delete(h.subscribers, channel)
		}
	}
}

// Subscribers reports how many subscriptions listen on channel
func (h *PubSubHub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[channel])
}

func (h *PubSubHub) Publish(channel, payload string) {
	h.mu.RLock()
	subs := make([]*memorySubscription, len(h.subscribers[channel]))
	copy(subs, h.subscribers[channel])
	h.mu.RUnlock()

	msg := &Message{Channel: channel, Payload: payload}
	for _, sub := range subs {
		sub.send(msg)
	}
}
