package threads

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Reader decodes the producer slots into snapshots.
type Reader struct {
	store SlotStore
}

// NewReader creates a reader over store.
func NewReader(store SlotStore) (*Reader, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: slot store", ErrNilDependency)
	}
	return &Reader{store: store}, nil
}

// Load reads every slot. Missing or malformed slots read as empty; only a
// store failure is returned.
func (r *Reader) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Messages: make(map[ThreadID][]Message),
		Colors:   make(map[ThreadID]string),
	}

	if err := r.decode(ctx, SlotActiveThreads, &snap.ActiveThreads); err != nil {
		return nil, err
	}
	if err := r.decode(ctx, SlotMessages, &snap.Messages); err != nil {
		return nil, err
	}
	if err := r.decode(ctx, SlotThreadColors, &snap.Colors); err != nil {
		return nil, err
	}

	for tid, msgs := range snap.Messages {
		for i := range msgs {
			msgs[i].ThreadID = tid
		}
	}

	selected, _, err := r.store.GetSlot(ctx, SlotSelectedMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", SlotSelectedMessage, err)
	}
	snap.SelectedID = selected

	visible, _, err := r.store.GetSlot(ctx, SlotViewerVisible)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", SlotViewerVisible, err)
	}
	snap.Visible = visible == "true"

	return snap, nil
}

// decode unmarshals a JSON slot into dst. A missing slot leaves dst alone;
// a malformed one is logged and reset to its zero value.
func (r *Reader) decode(ctx context.Context, key string, dst any) error {
	raw, ok, err := r.store.GetSlot(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok || raw == "" || raw == "null" {
		return nil
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		slog.Warn("[THREADS] malformed slot, treating as empty",
			"slot", key,
			"error", err,
		)
		resetSlot(dst)
	}
	return nil
}

func resetSlot(dst any) {
	switch v := dst.(type) {
	case *[]ThreadID:
		*v = nil
	case *map[ThreadID][]Message:
		*v = make(map[ThreadID][]Message)
	case *map[ThreadID]string:
		*v = make(map[ThreadID]string)
	}
}
