// Package sqlstore implements the core repositories on top of db.Store.
// Queries are written with '?' placeholders and rebound per dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"Threadview/internal/core/mediacache"
	"Threadview/internal/db"
)

type sqlMediaRepo struct {
	store *db.Store
}

// NewMediaRepository creates a media cache repository backed by store.
func NewMediaRepository(store *db.Store) mediacache.Repository {
	return &sqlMediaRepo{store: store}
}

// translate maps driver and store failures onto the cache taxonomy.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if db.IsQuotaExceeded(err) {
		return fmt.Errorf("%w: %s: %v", mediacache.ErrQuotaExceeded, op, err)
	}
	return fmt.Errorf("%w: %s: %v", mediacache.ErrStoreUnavailable, op, err)
}

func (r *sqlMediaRepo) conn(ctx context.Context) (*sql.DB, error) {
	conn, err := r.store.Open(ctx)
	if err != nil {
		return nil, translate("open", err)
	}
	return conn, nil
}

// Get returns the record for url, or nil, nil when absent.
func (r *sqlMediaRepo) Get(ctx context.Context, url string) (*mediacache.Record, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := r.store.Rebind(`
		SELECT url, blob, timestamp, filename, original_ext, media_type, content_type, size
		FROM media_cache
		WHERE url = ?`)

	var rec mediacache.Record
	var ts int64
	var mediaType string
	err = conn.QueryRowContext(ctx, query, url).Scan(
		&rec.URL, &rec.Blob, &ts, &rec.Filename, &rec.OriginalExt, &mediaType, &rec.ContentType, &rec.Size,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate("get", err)
	}

	rec.Timestamp = time.UnixMilli(ts)
	rec.MediaType = mediacache.MediaType(mediaType)
	return &rec, nil
}

// Upsert inserts rec or replaces the existing record with the same URL.
func (r *sqlMediaRepo) Upsert(ctx context.Context, rec *mediacache.Record) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}

	query := r.store.Rebind(`
		INSERT INTO media_cache (url, blob, timestamp, filename, original_ext, media_type, content_type, size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET
			blob = excluded.blob,
			timestamp = excluded.timestamp,
			filename = excluded.filename,
			original_ext = excluded.original_ext,
			media_type = excluded.media_type,
			content_type = excluded.content_type,
			size = excluded.size`)

	_, err = conn.ExecContext(ctx, query,
		rec.URL,
		rec.Blob,
		rec.Timestamp.UnixMilli(),
		rec.Filename,
		rec.OriginalExt,
		string(rec.MediaType),
		rec.ContentType,
		rec.Size,
	)
	return translate("upsert", err)
}

// Touch sets the access timestamp of url. The timestamp never moves backwards.
func (r *sqlMediaRepo) Touch(ctx context.Context, url string, at time.Time) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}

	query := r.store.Rebind(`UPDATE media_cache SET timestamp = ? WHERE url = ? AND timestamp < ?`)
	ms := at.UnixMilli()
	_, err = conn.ExecContext(ctx, query, ms, url, ms)
	return translate("touch", err)
}

// Usage returns the record count and total payload bytes.
func (r *sqlMediaRepo) Usage(ctx context.Context) (mediacache.Usage, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return mediacache.Usage{}, err
	}

	var usage mediacache.Usage
	err = conn.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size), 0) FROM media_cache`).
		Scan(&usage.Records, &usage.Bytes)
	if err != nil {
		return mediacache.Usage{}, translate("usage", err)
	}
	return usage, nil
}

// Oldest returns up to limit entries ordered by timestamp ascending.
func (r *sqlMediaRepo) Oldest(ctx context.Context, limit int) ([]mediacache.Entry, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := r.store.Rebind(`
		SELECT url, size, timestamp
		FROM media_cache
		ORDER BY timestamp ASC, url ASC
		LIMIT ?`)

	rows, err := conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, translate("oldest", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []mediacache.Entry
	for rows.Next() {
		var e mediacache.Entry
		var ts int64
		if err := rows.Scan(&e.URL, &e.Size, &ts); err != nil {
			return nil, translate("oldest scan", err)
		}
		e.Timestamp = time.UnixMilli(ts)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("oldest rows", err)
	}
	return entries, nil
}

// Delete removes the given URLs and returns how many existed.
func (r *sqlMediaRepo) Delete(ctx context.Context, urls ...string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	conn, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(urls)), ",")
	query := r.store.Rebind(`DELETE FROM media_cache WHERE url IN (` + placeholders + `)`)

	args := make([]any, len(urls))
	for i, u := range urls {
		args[i] = u
	}

	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, translate("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, translate("delete rows affected", err)
	}
	return int(n), nil
}

// DeleteOlderThan removes records last accessed before cutoff.
func (r *sqlMediaRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}

	query := r.store.Rebind(`DELETE FROM media_cache WHERE timestamp < ?`)
	res, err := conn.ExecContext(ctx, query, cutoff.UnixMilli())
	if err != nil {
		return 0, translate("delete expired", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, translate("delete expired rows affected", err)
	}
	return int(n), nil
}
