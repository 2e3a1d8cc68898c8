// Package websocket fans domain change events out to connected family
// devices so dashboards stay current without polling.
package websocket

import (
	"log/slog"
	"sync"
)

// Hub delivers broadcast events to subscriber channels. Subscribers that
// fall behind lose events rather than blocking the sender; clients treat a
// reconnect as a full refresh anyway.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[chan Event]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new event channel. The caller must Unsubscribe it
// when done; the hub closes the channel at that point.
func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, eventBufferSize)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it. Safe to call twice.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Broadcast delivers the event to every subscriber without blocking. A full
// subscriber buffer drops the event for that subscriber only.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Debug("subscriber behind, event dropped", slog.String("type", ev.Type))
		}
	}
}

// ClientCount returns the number of active subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
