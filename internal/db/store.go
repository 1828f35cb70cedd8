// Package db owns the durable object store: a lazily opened, versioned SQL
// database holding the media cache and the producer slots.
//
// Open is memoized. Concurrent callers share one in-flight connection
// attempt; a failed attempt is forgotten so the next caller retries.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// goose keeps its dialect and filesystem in package globals.
var gooseMu sync.Mutex

// Dialect identifies the SQL flavour behind the store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// openAttempt is a single pending connection shared by every caller that
// arrives while it is running.
type openAttempt struct {
	done  chan struct{}
	db    *sql.DB
	err   error
	epoch uint64
}

// Store is the durable object store handle. The zero value is not usable;
// construct with NewStore.
type Store struct {
	db      *sql.DB
	pending *openAttempt
	dial    func(ctx context.Context) (*sql.DB, error)
	cfg     Config
	epoch   uint64 // bumped by Close
	mu      sync.Mutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// withDialer replaces the connection step. Tests use it to simulate
// unavailable stores.
func withDialer(dial func(ctx context.Context) (*sql.DB, error)) StoreOption {
	return func(s *Store) {
		s.dial = dial
	}
}

// NewStore validates cfg and returns an unopened store.
func NewStore(cfg Config, opts ...StoreOption) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{cfg: cfg}
	s.dial = s.connect

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Dialect returns the configured SQL dialect.
func (s *Store) Dialect() Dialect {
	return s.cfg.Dialect()
}

// Open returns the shared database handle, connecting and migrating on
// first use. Failures are wrapped in ErrStoreUnavailable.
func (s *Store) Open(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	if s.db != nil {
		db := s.db
		s.mu.Unlock()
		return db, nil
	}

	attempt := s.pending
	if attempt == nil {
		attempt = &openAttempt{done: make(chan struct{}), epoch: s.epoch}
		s.pending = attempt
		go s.runOpen(attempt)
	}
	s.mu.Unlock()

	select {
	case <-attempt.done:
		return attempt.db, attempt.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
	}
}

func (s *Store) runOpen(attempt *openAttempt) {
	defer close(attempt.done)

	// Detached from any caller: one caller giving up must not fail the others.
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OpenTimeout)
	defer cancel()

	db, err := s.dial(ctx)

	s.mu.Lock()
	if s.pending == attempt {
		s.pending = nil
	}
	closed := s.epoch != attempt.epoch
	if err == nil && !closed {
		s.db = db
	}
	s.mu.Unlock()

	if err == nil && closed {
		_ = db.Close()
		slog.Info("[STORE] closed during open, discarding connection", "driver", s.cfg.Driver)
		attempt.err = fmt.Errorf("%w: store closed while opening", ErrStoreUnavailable)
		return
	}

	if err != nil {
		slog.Warn("[STORE] open failed, next caller will retry",
			"driver", s.cfg.Driver,
			"error", err,
		)
		attempt.err = fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		return
	}

	slog.Info("[STORE] opened", "driver", s.cfg.Driver)
	attempt.db = db
}

// connect opens the driver, applies connection pragmas and runs migrations.
func (s *Store) connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(s.cfg.Driver, s.cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if s.Dialect() == DialectSQLite {
		// One connection serializes transactions and keeps :memory: databases
		// alive for the lifetime of the handle.
		db.SetMaxOpenConns(1)
	} else if s.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if s.Dialect() == DialectSQLite {
		if err := applySQLitePragmas(ctx, db, s.cfg); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	if err := migrate(ctx, db, s.Dialect()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func applySQLitePragmas(ctx context.Context, db *sql.DB, cfg Config) error {
	pragmas := []string{
		"PRAGMA busy_timeout = " + strconv.Itoa(int(cfg.BusyTimeout/time.Millisecond)),
	}
	if !cfg.inMemory() {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}

func migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	gooseDialect := "sqlite3"
	dir := "migrations/sqlite"
	if dialect == DialectPostgres {
		gooseDialect = "postgres"
		dir = "migrations/postgres"
	}

	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close releases the handle. An open still in flight is abandoned and its
// connection closed when it lands. A later Open reconnects.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.pending = nil
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Rebind converts '?' placeholders to the store's dialect.
func (s *Store) Rebind(query string) string {
	if s.Dialect() != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
