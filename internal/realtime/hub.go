package realtime

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event is one row change on orders, order_items or transactions.
type Event struct {
	Table   string     `json:"table"`
	Op      string     `json:"op"`
	OrderID uuid.UUID  `json:"order_id"`
	UserID  *uuid.UUID `json:"user_id"`
}

// DecodeEvent parses a notification payload written by the change trigger.
func DecodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("decode change event: %w", err)
	}
	if ev.OrderID == uuid.Nil {
		return Event{}, fmt.Errorf("decode change event: missing order_id")
	}
	return ev, nil
}

// Hub fans change events out to named subscriptions. A name has at most one
// live subscription.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]*Subscription)}
}

type Subscription struct {
	name   string
	hub    *Hub
	ch     chan Event
	closed bool
}

// Subscribe registers a subscription under name, closing any previous one
// with the same name.
func (h *Hub) Subscribe(name string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscription{name: name, hub: h, ch: make(chan Event, buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.subs[name]; ok {
		old.closeLocked()
		log.Debug().Str("channel", name).Msg("replaced existing subscription")
	}
	h.subs[name] = sub
	return sub
}

// Publish delivers ev to every subscription without blocking. Subscribers
// that fall behind lose events.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for name, sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			log.Warn().Str("channel", name).Str("order_id", ev.OrderID.String()).Msg("subscriber lagging, event dropped")
		}
	}
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (s *Subscription) Name() string {
	return s.name
}

// Events is closed when the subscription is closed or replaced.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
	if cur, ok := s.hub.subs[s.name]; ok && cur == s {
		delete(s.hub.subs, s.name)
	}
}
