package fastview

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Logf is the package diagnostic logger. Tests may replace it to capture or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// DefaultBuffer is the number of frames a subscriber may fall behind before it is dropped.
const DefaultBuffer = 256

// Hub fans frames out to browser subscribers. Frames are differential, so they are never
// dropped for a subscriber that stays: a subscriber whose buffer fills is disconnected instead
// and must rejoin to get a fresh full frame.
//
// A hub has a single publisher, which also performs subscriptions, so that a subscriber's
// initial full frame and the frames after it are ordered.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]chan Frame
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   map[uuid.UUID]chan Frame{},
		buffer: buffer,
	}
}

// Subscribe registers a subscriber whose channel starts with initial.
func (h *Hub) Subscribe(initial Frame) (uuid.UUID, <-chan Frame) {
	id := uuid.New()
	frames := make(chan Frame, h.buffer)
	if !initial.Empty() {
		frames <- initial
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[id] = frames
	return id, frames
}

// Unsubscribe removes and closes a subscriber. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if frames, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(frames)
	}
}

// Publish sends frame to every subscriber without blocking and returns how many subscribers
// were dropped for being full.
func (h *Hub) Publish(frame Frame) (dropped int) {
	if frame.Empty() {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, frames := range h.subs {
		select {
		case frames <- frame:
		default:
			Logf("view %s: too slow, dropping subscriber", id)
			delete(h.subs, id)
			close(frames)
			dropped++
		}
	}
	return
}

// Count is the number of subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, frames := range h.subs {
		delete(h.subs, id)
		close(frames)
	}
}
