package threads

import (
	"bytes"
	"encoding/json"
	"sort"

	"Threadview/internal/core/resolver"
)

// Producer slot keys.
const (
	SlotActiveThreads   = "otkActiveThreads"
	SlotMessages        = "otkMessagesByThreadId"
	SlotThreadColors    = "otkThreadColors"
	SlotSelectedMessage = "otkSelectedMessageId"
	SlotViewerVisible   = "otkViewerVisible"
)

// DefaultThreadColor is used for threads without an assigned color.
const DefaultThreadColor = "#888"

// ThreadID identifies a thread. The producer writes ids as JSON numbers
// in some slots and as object keys (strings) in others.
type ThreadID string

func (t *ThreadID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = ThreadID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = ThreadID(n.String())
	return nil
}

// Message is one archived post.
type Message struct {
	Attachment *resolver.Attachment `json:"attachment,omitempty"`
	Text       string               `json:"text"`
	ThreadID   ThreadID             `json:"-"`
	ID         int64                `json:"id"`
	Time       int64                `json:"time"`
}

// Snapshot is one consistent read of the producer slots.
type Snapshot struct {
	Messages      map[ThreadID][]Message
	Colors        map[ThreadID]string
	SelectedID    string
	ActiveThreads []ThreadID
	Visible       bool
}

// Ordered returns every message of the active threads sorted by time, then
// id.
func (s *Snapshot) Ordered() []Message {
	var all []Message
	for _, tid := range s.ActiveThreads {
		all = append(all, s.Messages[tid]...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Time != all[j].Time {
			return all[i].Time < all[j].Time
		}
		return all[i].ID < all[j].ID
	})
	return all
}

// Find looks a message up across the active threads.
func (s *Snapshot) Find(id int64) (Message, bool) {
	for _, tid := range s.ActiveThreads {
		for _, m := range s.Messages[tid] {
			if m.ID == id {
				return m, true
			}
		}
	}
	return Message{}, false
}

// Color returns the thread's display color.
func (s *Snapshot) Color(tid ThreadID) string {
	if c, ok := s.Colors[tid]; ok && c != "" {
		return c
	}
	return DefaultThreadColor
}
