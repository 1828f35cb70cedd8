// Package mediacache is the access layer over the durable media store.
//
// Reads never fail: a store error is reported to the caller as a miss, and
// recency tracking happens in the background. Writes are typed so callers
// can tell a full store from a transient failure; a full store triggers
// LRU eviction by access timestamp and one retry.
package mediacache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// touchErrors counts failed background recency updates.
var touchErrors atomic.Int64

// TouchErrorCount returns the number of failed background recency updates.
func TouchErrorCount() int64 {
	return touchErrors.Load()
}

// Service implements Cache on top of a Repository.
type Service struct {
	repo    Repository
	now     func() time.Time
	lookups metric.Int64Counter
	cfg     Config
	bg      sync.WaitGroup
	evictMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a cache service over repo.
func NewService(repo Repository, cfg Config, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("%w: repo", ErrNilDependency)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	lookups, err := otel.Meter("threadview/mediacache").Int64Counter(
		"mediacache.lookups",
		metric.WithDescription("Cache lookups by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup counter: %w", err)
	}
	s.lookups = lookups

	return s, nil
}

// Get returns the record for url. On a hit the access timestamp is bumped
// in the background; a failed bump is logged and does not affect the result.
// Misses and store failures both return false.
func (s *Service) Get(ctx context.Context, url string) (*Record, bool) {
	if url == "" {
		return nil, false
	}

	rec, err := s.repo.Get(ctx, url)
	if err != nil {
		slog.Warn("[MEDIA-CACHE] read failed, treating as miss",
			"url", url,
			"error", err,
		)
		s.countLookup(ctx, "error")
		return nil, false
	}
	if rec == nil {
		s.countLookup(ctx, "miss")
		return nil, false
	}

	s.countLookup(ctx, "hit")

	at := s.now()
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		// Background context: the read's context may already be done.
		touchCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.repo.Touch(touchCtx, url, at); err != nil {
			touchErrors.Add(1)
			slog.Warn("[MEDIA-CACHE] failed to update recency",
				"url", url,
				"error", err,
				"total_touch_errors", touchErrors.Load(),
			)
		}
	}()

	return rec, true
}

// Put stores blob under url with a fresh timestamp. Empty blobs are
// rejected before the store is touched. When the write does not fit, the
// oldest records are evicted and the write is retried once.
func (s *Service) Put(ctx context.Context, url string, blob Blob, filename, ext string) error {
	if url == "" {
		return ErrEmptyURL
	}
	if len(blob.Data) == 0 {
		return ErrEmptyPayload
	}
	if blob.Size() > s.cfg.MaxBytes {
		return fmt.Errorf("%w: payload of %d bytes exceeds budget of %d", ErrQuotaExceeded, blob.Size(), s.cfg.MaxBytes)
	}

	err := s.putOnce(ctx, url, blob, filename, ext)
	if !errors.Is(err, ErrQuotaExceeded) {
		return err
	}

	slog.Warn("[MEDIA-CACHE] quota exceeded, evicting least recently used records",
		"url", url,
		"size_bytes", blob.Size(),
		"error", err,
	)

	if _, evictErr := s.evict(ctx, blob.Size()); evictErr != nil {
		return fmt.Errorf("%w: eviction failed: %v", ErrQuotaExceeded, evictErr)
	}

	return s.putOnce(ctx, url, blob, filename, ext)
}

func (s *Service) putOnce(ctx context.Context, url string, blob Blob, filename, ext string) error {
	usage, err := s.repo.Usage(ctx)
	if err != nil {
		return err
	}
	// A re-put replaces the existing record, so its bytes are freed.
	var replaced int64
	if prev, err := s.repo.Get(ctx, url); err == nil && prev != nil {
		replaced = prev.Size
	}
	if usage.Bytes-replaced+blob.Size() > s.cfg.MaxBytes {
		return fmt.Errorf("%w: %d of %d bytes used", ErrQuotaExceeded, usage.Bytes, s.cfg.MaxBytes)
	}

	rec := &Record{
		URL:         url,
		Blob:        blob.Data,
		Timestamp:   s.now(),
		Filename:    filename,
		OriginalExt: ext,
		MediaType:   ClassifyMediaType(blob.Type),
		ContentType: blob.Type,
		Size:        blob.Size(),
	}

	if err := s.repo.Upsert(ctx, rec); err != nil {
		return err
	}

	slog.Debug("[MEDIA-CACHE] stored",
		"url", url,
		"media_type", rec.MediaType,
		"size_bytes", rec.Size,
	)
	return nil
}

// Stats returns the current record count and total bytes.
func (s *Service) Stats(ctx context.Context) (Usage, error) {
	return s.repo.Usage(ctx)
}

// EvictLRU shrinks the cache to the eviction target if it is over budget.
// Returns the number of records removed.
func (s *Service) EvictLRU(ctx context.Context) (int, error) {
	usage, err := s.repo.Usage(ctx)
	if err != nil {
		return 0, err
	}
	if usage.Bytes <= s.cfg.MaxBytes {
		return 0, nil
	}
	return s.evict(ctx, 0)
}

// evict removes the oldest records until usage plus headroom fits under
// MaxBytes * EvictTargetRatio, or nothing is left to remove.
func (s *Service) evict(ctx context.Context, headroom int64) (int, error) {
	s.evictMu.Lock()
	defer s.evictMu.Unlock()

	target := int64(float64(s.cfg.MaxBytes)*s.cfg.EvictTargetRatio) - headroom
	if target < 0 {
		target = 0
	}

	usage, err := s.repo.Usage(ctx)
	if err != nil {
		return 0, err
	}

	total := usage.Bytes
	removed := 0
	for total > target {
		entries, err := s.repo.Oldest(ctx, s.cfg.batchSize())
		if err != nil {
			return removed, err
		}
		if len(entries) == 0 {
			break
		}

		before := removed
		for _, e := range entries {
			if total <= target {
				break
			}
			n, err := s.repo.Delete(ctx, e.URL)
			if err != nil {
				slog.Warn("[MEDIA-CACHE] failed to remove record during LRU eviction",
					"url", e.URL,
					"error", err,
				)
				continue
			}
			if n == 0 {
				continue
			}
			total -= e.Size
			removed++

			slog.Debug("[MEDIA-CACHE] evicted record (LRU)",
				"url", e.URL,
				"size_bytes", e.Size,
				"last_access", e.Timestamp,
			)
		}
		if removed == before {
			break
		}
	}

	if removed > 0 {
		slog.Info("[MEDIA-CACHE] LRU eviction completed",
			"records_removed", removed,
			"new_size_bytes", total,
			"target_bytes", target,
		)
	}

	return removed, nil
}

// CleanExpired removes records not accessed within the configured TTL.
func (s *Service) CleanExpired(ctx context.Context) (int, error) {
	if s.cfg.TTL <= 0 {
		return 0, nil
	}

	removed, err := s.repo.DeleteOlderThan(ctx, s.now().Add(-s.cfg.TTL))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		slog.Info("[MEDIA-CACHE] TTL cleanup completed",
			"records_removed", removed,
			"ttl", s.cfg.TTL,
		)
	}
	return removed, nil
}

// Cleanup runs TTL cleanup and then LRU eviction.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	ttlRemoved, err := s.CleanExpired(ctx)
	if err != nil {
		return 0, err
	}

	lruRemoved, err := s.EvictLRU(ctx)
	if err != nil {
		return ttlRemoved, err
	}

	return ttlRemoved + lruRemoved, nil
}

// Close waits for background recency updates to finish.
func (s *Service) Close() {
	s.bg.Wait()
}

func (s *Service) countLookup(ctx context.Context, result string) {
	s.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
