// Package realtime fans out newly published package versions to live feed
// listeners (WebSocket sessions). Delivery is best effort: a slow listener
// drops events rather than backpressuring the poller, and the stream is
// ephemeral with no replay semantics.
package realtime

import (
	"sync"
	"time"
)

// VersionEvent announces one newly published package version.
type VersionEvent struct {
	Package   string    `json:"package"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// Hub is an in-memory fan-out dispatcher. Each registered listener receives
// events on its own buffered channel; a full buffer drops the event for that
// listener only. The hub is concurrency-safe.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan VersionEvent
	nextID    uint64
	bufSize   int
}

// NewHub constructs a hub with the given per-listener buffer size.
// If bufSize <= 0, a default of 32 is used.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{
		listeners: make(map[uint64]chan VersionEvent),
		bufSize:   bufSize,
	}
}

// Register adds a listener and returns its id plus receive channel. Callers
// must Unregister(id) to release resources.
func (h *Hub) Register() (uint64, <-chan VersionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan VersionEvent, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes a listener and closes its channel. Safe to call
// multiple times; unknown ids are ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Broadcast delivers an event to all listeners, dropping it for any whose
// buffer is full.
func (h *Hub) Broadcast(event VersionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- event:
		default:
			// Drop for slow listener.
		}
	}
}

// Size returns the current number of active listeners.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
