package server

import (
	"context"
	"log"
	"sync"

	"github.com/coolbeans/labtrail/pkg/watch"
)

const subscriberBuffer = 256

// Hub fans ingest events out to websocket subscribers. A subscriber that
// stops draining its channel loses events rather than blocking the rest.
type Hub struct {
	input       <-chan watch.Event
	mu          sync.Mutex
	subscribers []chan watch.Event
	dropped     int64
}

// NewHub creates a Hub reading from the given event channel. A nil input
// is allowed; the hub then only serves (empty) subscriptions.
func NewHub(input <-chan watch.Event) *Hub {
	return &Hub{input: input}
}

// Subscribe returns a buffered channel that receives every event from now
// on. The channel is closed when the hub stops or on Unsubscribe.
func (h *Hub) Subscribe() <-chan watch.Event {
	ch := make(chan watch.Event, subscriberBuffer)
	h.mu.Lock()
	h.subscribers = append(h.subscribers, ch)
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call
// with a channel that was already removed.
func (h *Hub) Unsubscribe(ch <-chan watch.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, sub := range h.subscribers {
		if (<-chan watch.Event)(sub) == ch {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Dropped returns how many events were discarded for slow subscribers.
func (h *Hub) Dropped() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Start broadcasts input events until the context is cancelled or the
// input channel closes, then closes all subscriber channels.
func (h *Hub) Start(ctx context.Context) {
	defer h.closeAll()

	if h.input == nil {
		<-ctx.Done()
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-h.input:
			if !ok {
				return
			}
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev watch.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			h.dropped++
			log.Printf("hub: dropped event for slow subscriber (total dropped: %d)", h.dropped)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil
}
