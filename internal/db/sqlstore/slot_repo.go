package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"Threadview/internal/core/threads"
	"Threadview/internal/db"
)

type sqlSlotRepo struct {
	store *db.Store
	now   func() time.Time
}

// NewSlotRepository creates the producer slot store backed by store.
func NewSlotRepository(store *db.Store) threads.SlotStore {
	return &sqlSlotRepo{store: store, now: time.Now}
}

// GetSlot returns the raw value for key and whether it exists.
func (r *sqlSlotRepo) GetSlot(ctx context.Context, key string) (string, bool, error) {
	conn, err := r.store.Open(ctx)
	if err != nil {
		return "", false, err
	}

	var value string
	err = conn.QueryRowContext(ctx, r.store.Rebind(`SELECT value FROM producer_slots WHERE key = ?`), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read slot %s: %w", key, err)
	}
	return value, true, nil
}

// SetSlot writes value under key, replacing any previous value.
func (r *sqlSlotRepo) SetSlot(ctx context.Context, key, value string) error {
	conn, err := r.store.Open(ctx)
	if err != nil {
		return err
	}

	query := r.store.Rebind(`
		INSERT INTO producer_slots (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`)

	if _, err := conn.ExecContext(ctx, query, key, value, r.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	return nil
}

// DeleteSlot removes key. Missing keys are not an error.
func (r *sqlSlotRepo) DeleteSlot(ctx context.Context, key string) error {
	conn, err := r.store.Open(ctx)
	if err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, r.store.Rebind(`DELETE FROM producer_slots WHERE key = ?`), key); err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}
