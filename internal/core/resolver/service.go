// Package resolver turns embed placeholders and thread attachments into
// displayable elements.
//
// Direct videos go through the media cache; players are plain iframes;
// previews are fetched from an unfurl API. Every failure degrades to a
// fallback element, so Resolve never returns an error.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"Threadview/internal/core/embeds"
	"Threadview/internal/core/mediacache"
	"Threadview/internal/core/objecturl"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("threadview/resolver")

// cacheWriteErrors counts failed fire-and-forget cache writes.
var cacheWriteErrors atomic.Int64

// CacheWriteErrorCount returns the number of failed background cache writes.
func CacheWriteErrorCount() int64 {
	return cacheWriteErrors.Load()
}

// Provider names used for circuit breaking.
const (
	providerStreamable  = "streamable"
	providerTweets      = "vxtwitter"
	providerAttachments = "attachments"
)

// Service resolves placeholders into elements.
type Service struct {
	cache   mediacache.Cache
	objects *objecturl.Registry
	fetcher Fetcher
	breaker *circuitBreaker
	tweets  *cache.Cache
	missing *cache.Cache
	fetches singleflight.Group
	cfg     Config
	writes  sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(s *Service) {
		s.fetcher = f
	}
}

// NewService creates a resolver over the media cache and object URL registry.
func NewService(mc mediacache.Cache, objects *objecturl.Registry, cfg Config, opts ...Option) (*Service, error) {
	if mc == nil {
		return nil, fmt.Errorf("%w: media cache", ErrNilDependency)
	}
	if objects == nil {
		return nil, fmt.Errorf("%w: object URL registry", ErrNilDependency)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ttl := cfg.TweetCacheTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}

	s := &Service{
		cache:   mc,
		objects: objects,
		cfg:     cfg,
		breaker: newCircuitBreaker(),
		tweets:  cache.New(ttl, 10*time.Minute),
		missing: cache.New(missingTTL, missingTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = NewHTTPFetcher(NewHTTPClient(cfg.FetchTimeout, cfg.AllowPrivateHosts), cfg.MaxFetchBytes)
	}

	return s, nil
}

// Resolve materializes the element for p. Unknown families resolve to an
// error element.
func (s *Service) Resolve(ctx context.Context, p embeds.Placeholder) Element {
	ctx, span := tracer.Start(ctx, "Resolve", trace.WithAttributes(
		attribute.String("embed.family", string(p.Family)),
		attribute.String("embed.resource_id", p.ResourceID),
	))
	defer span.End()

	var el Element
	switch p.Family {
	case embeds.FamilyStreamable:
		el = s.resolveStreamable(ctx, p.ResourceID)
	case embeds.FamilyYouTube:
		el = YouTubeElement(p.ResourceID, p.StartTime)
	case embeds.FamilyTwitchClip:
		el = TwitchClipElement(p.ResourceID, s.cfg.TwitchParent)
	case embeds.FamilyTwitchVOD:
		el = TwitchVODElement(p.ResourceID, s.cfg.TwitchParent, p.StartTime)
	case embeds.FamilyTweet:
		el = s.resolveTweet(ctx, p.OriginalURL)
	default:
		el = errorElement(fmt.Sprintf("Unsupported embed type: %s", p.Family))
	}

	span.SetAttributes(
		attribute.String("element.kind", string(el.Kind)),
		attribute.Bool("element.cached", el.Cached),
	)
	if el.Kind == KindError {
		span.SetStatus(codes.Error, "resolution failed")
	}
	return el
}

// guarded runs fn under the provider's circuit breaker and records its
// outcome. Errors that are not the provider's fault (a 404 for a deleted
// file) count as answers and keep the circuit closed.
func (s *Service) guarded(provider string, fn func() error) error {
	if err := s.breaker.canAttempt(provider); err != nil {
		return err
	}
	err := fn()
	if err != nil && providerFault(err) {
		s.breaker.recordFailure(provider, err)
		return err
	}
	s.breaker.recordSuccess(provider)
	return err
}

// storeAsync writes to the cache without blocking display. Failures are
// logged and counted.
func (s *Service) storeAsync(url string, blob mediacache.Blob, filename, ext string) {
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FetchTimeout)
		defer cancel()
		s.put(ctx, url, blob, filename, ext)
	}()
}

func (s *Service) put(ctx context.Context, url string, blob mediacache.Blob, filename, ext string) {
	if err := s.cache.Put(ctx, url, blob, filename, ext); err != nil {
		cacheWriteErrors.Add(1)
		slog.Warn("[RESOLVER] background cache write failed",
			"url", url,
			"size_bytes", blob.Size(),
			"error", err,
			"total_write_errors", cacheWriteErrors.Load(),
		)
	}
}

// BreakerStats returns the circuit breaker state per provider.
func (s *Service) BreakerStats() map[string]ProviderStats {
	return s.breaker.getStats()
}

// Close waits for background cache writes to finish.
func (s *Service) Close() {
	s.writes.Wait()
}
