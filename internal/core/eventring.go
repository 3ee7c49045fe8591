package core

import "sync"

// EventRing is a fixed-size ring buffer of the most recent security events,
// served by the stats API.
type EventRing struct {
	mu      sync.RWMutex
	entries []*SecurityEvent
	maxSize int
	pos     int
	full    bool
}

// NewEventRing creates a ring that holds up to maxSize events.
func NewEventRing(maxSize int) *EventRing {
	if maxSize <= 0 {
		maxSize = 500
	}
	return &EventRing{
		entries: make([]*SecurityEvent, maxSize),
		maxSize: maxSize,
	}
}

// Add stores an event, overwriting the oldest once the ring is full.
func (r *EventRing) Add(event *SecurityEvent) {
	r.mu.Lock()
	r.entries[r.pos] = event
	r.pos = (r.pos + 1) % r.maxSize
	if r.pos == 0 {
		r.full = true
	}
	r.mu.Unlock()
}

// Recent returns the most recent n events in chronological order.
func (r *EventRing) Recent(n int) []*SecurityEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := r.pos
	if r.full {
		total = r.maxSize
	}
	if n > total {
		n = total
	}
	if n <= 0 {
		return []*SecurityEvent{}
	}

	result := make([]*SecurityEvent, n)
	start := r.pos - n
	if start < 0 {
		start += r.maxSize
	}
	for i := 0; i < n; i++ {
		result[i] = r.entries[(start+i)%r.maxSize]
	}
	return result
}

// Len returns the number of events held.
func (r *EventRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return r.maxSize
	}
	return r.pos
}
