// Package cache reports media cache and resolver health.
package cache

import (
	"context"
	"log/slog"
	"net/http"

	"Threadview/internal/api/handlers"
	"Threadview/internal/core/mediacache"
	"Threadview/internal/core/resolver"
)

// StatsSource provides media cache usage.
type StatsSource interface {
	Stats(ctx context.Context) (mediacache.Usage, error)
}

// BreakerSource provides circuit breaker state per provider.
type BreakerSource interface {
	BreakerStats() map[string]resolver.ProviderStats
}

// HandleCounter provides object URL handle counts.
type HandleCounter interface {
	Live() int64
	Released() int64
}

// StatsResponse is the body of GET /api/cache/stats.
type StatsResponse struct {
	Breakers         map[string]resolver.ProviderStats `json:"breakers"`
	Records          int64                             `json:"records"`
	Bytes            int64                             `json:"bytes"`
	CacheWriteErrors int64                             `json:"cache_write_errors"`
	TouchErrors      int64                             `json:"touch_errors"`
	LiveHandles      int64                             `json:"live_handles"`
	ReleasedHandles  int64                             `json:"released_handles"`
}

// Handler serves cache statistics.
type Handler struct {
	cache    StatsSource
	breakers BreakerSource
	handles  HandleCounter
}

// NewHandler creates a stats handler.
func NewHandler(cache StatsSource, breakers BreakerSource, handles HandleCounter) *Handler {
	return &Handler{cache: cache, breakers: breakers, handles: handles}
}

// HandleStats handles GET /api/cache/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	usage, err := h.cache.Stats(r.Context())
	if err != nil {
		slog.Error("[API] failed to read cache usage", "error", err)
		handlers.WriteError(w, http.StatusServiceUnavailable, "StoreUnavailable", "Media store is unavailable")
		return
	}

	resp := StatsResponse{
		Records:          usage.Records,
		Bytes:            usage.Bytes,
		Breakers:         h.breakers.BreakerStats(),
		CacheWriteErrors: resolver.CacheWriteErrorCount(),
		TouchErrors:      mediacache.TouchErrorCount(),
		LiveHandles:      h.handles.Live(),
		ReleasedHandles:  h.handles.Released(),
	}
	if resp.Breakers == nil {
		resp.Breakers = map[string]resolver.ProviderStats{}
	}
	handlers.WriteJSON(w, resp)
}
