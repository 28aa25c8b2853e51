package fanout

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"beacon/internal/logging"
)

// GroupCoordinators is the global group every coordinator session joins.
const GroupCoordinators = "coordinators"

// subscriberBuffer is how many events a slow consumer may lag before drops.
const subscriberBuffer = 32

// CountryGroup names the per-country group for a two-letter code.
func CountryGroup(code string) string {
	return "country:" + strings.ToUpper(strings.TrimSpace(code))
}

// Event is one fan-out message, already serialized for the wire.
type Event struct {
	Name string
	Data json.RawMessage
}

// Subscriber receives events for the groups it joined. Events arrive on a
// buffered channel; when the buffer is full the hub drops instead of
// blocking.
type Subscriber struct {
	id     uint64
	groups map[string]struct{}
	ch     chan Event
}

// Events exposes the subscriber's delivery channel. It closes on
// Unsubscribe.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Hub routes events to group subscribers, fire and forget.
type Hub struct {
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[uint64]*Subscriber
	nextID      uint64
}

// NewHub builds an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:      logging.NewComponentLogger(logger, "fanout"),
		subscribers: make(map[uint64]*Subscriber),
	}
}

// Subscribe registers a consumer for the given groups.
func (h *Hub) Subscribe(groups ...string) *Subscriber {
	sub := &Subscriber{
		groups: make(map[string]struct{}, len(groups)),
		ch:     make(chan Event, subscriberBuffer),
	}
	for _, group := range groups {
		group = strings.TrimSpace(group)
		if group != "" {
			sub.groups[group] = struct{}{}
		}
	}

	h.mu.Lock()
	h.nextID++
	sub.id = h.nextID
	h.subscribers[sub.id] = sub
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes the consumer and closes its channel. Safe to call
// twice.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	_, present := h.subscribers[sub.id]
	delete(h.subscribers, sub.id)
	h.mu.Unlock()
	if present {
		close(sub.ch)
	}
}

// SubscriberCount reports how many consumers are attached.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Broadcast serializes the payload once and delivers it to every subscriber
// of any target group. Full buffers drop the event for that subscriber only.
func (h *Hub) Broadcast(event string, payload any, groups ...string) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("broadcast payload not serializable",
			logging.String(logging.FieldEventType, event),
			logging.Error(err))
		return
	}
	h.BroadcastRaw(event, data, groups...)
}

// BroadcastRaw delivers pre-serialized data, used for verbatim relays.
func (h *Hub) BroadcastRaw(event string, data json.RawMessage, groups ...string) {
	msg := Event{Name: event, Data: data}

	h.mu.Lock()
	targets := make([]*Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		if sub.memberOfAny(groups) {
			targets = append(targets, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- msg:
		default:
			h.logger.Warn("subscriber buffer full, event dropped",
				logging.String(logging.FieldEventType, event),
				logging.Int64("subscriber", int64(sub.id)))
		}
	}
}

func (s *Subscriber) memberOfAny(groups []string) bool {
	for _, group := range groups {
		if _, ok := s.groups[group]; ok {
			return true
		}
	}
	return false
}
