package local

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memohai/chatbridge/internal/channel"
)

// EventKind distinguishes replies from typing indicators on a local stream.
type EventKind string

const (
	EventMessage EventKind = "message"
	EventTyping  EventKind = "typing"
)

// RouteHubEvent is one outbound event routed to local subscribers of a chat.
type RouteHubEvent struct {
	Kind    EventKind               `json:"kind"`
	ChatID  string                  `json:"chat_id"`
	Message channel.OutboundMessage `json:"message"`
	At      time.Time               `json:"at"`
}

// RouteHub is a pub/sub hub that routes outbound events to local subscribers by chat ID.
type RouteHub struct {
	mu      sync.RWMutex
	streams map[string]map[string]chan RouteHubEvent
}

// NewRouteHub creates an empty RouteHub.
func NewRouteHub() *RouteHub {
	return &RouteHub{
		streams: map[string]map[string]chan RouteHubEvent{},
	}
}

// Subscribe registers a new stream for the given chat and returns a stream ID,
// a read-only channel of events, and a cancel function to unsubscribe.
func (h *RouteHub) Subscribe(chatID string) (string, <-chan RouteHubEvent, func()) {
	streamID := uuid.NewString()
	ch := make(chan RouteHubEvent, 32)

	h.mu.Lock()
	streams, ok := h.streams[chatID]
	if !ok {
		streams = map[string]chan RouteHubEvent{}
		h.streams[chatID] = streams
	}
	streams[streamID] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			streams := h.streams[chatID]
			if streams == nil {
				return
			}
			if current, ok := streams[streamID]; ok {
				delete(streams, streamID)
				close(current)
			}
			if len(streams) == 0 {
				delete(h.streams, chatID)
			}
		})
	}
	return streamID, ch, cancel
}

// Publish delivers an event to every subscriber of its chat and returns how
// many received it. Slow receivers are skipped.
func (h *RouteHub) Publish(event RouteHubEvent) int {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, ch := range h.streams[event.ChatID] {
		select {
		case ch <- event:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the number of open streams for a chat.
func (h *RouteHub) Subscribers(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[chatID])
}
