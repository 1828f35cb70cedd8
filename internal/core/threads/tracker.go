package threads

import "sync"

// Tracker remembers which messages have been rendered so a refresh can
// append only the new ones.
type Tracker struct {
	known map[int64]bool
	mu    sync.Mutex
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{known: make(map[int64]bool)}
}

// Seed marks msgs as known.
func (t *Tracker) Seed(msgs []Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range msgs {
		t.known[m.ID] = true
	}
}

// NewMessages returns the messages of msgs not seen before, in order, and
// marks them known.
func (t *Tracker) NewMessages(msgs []Message) []Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	var fresh []Message
	for _, m := range msgs {
		if t.known[m.ID] {
			continue
		}
		t.known[m.ID] = true
		fresh = append(fresh, m)
	}
	return fresh
}

// Known reports whether id has been rendered.
func (t *Tracker) Known(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.known[id]
}

// Len returns the number of known messages.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.known)
}

// Reset forgets every message.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.known = make(map[int64]bool)
}
