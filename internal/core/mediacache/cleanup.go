package mediacache

import (
	"context"
	"log/slog"
	"time"
)

// StartCleanupJob starts a background goroutine that periodically runs
// Cleanup. Returns a cancel function to call during shutdown. If interval is
// 0 or negative no job is started and the cancel function is a no-op.
func (s *Service) StartCleanupJob(interval time.Duration) context.CancelFunc {
	if interval <= 0 {
		slog.Info("[MEDIA-CACHE] cleanup job disabled (interval=0)")
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("[MEDIA-CACHE] CRITICAL: cleanup job panicked",
					"panic", r,
				)
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		slog.Info("[MEDIA-CACHE] cleanup job started",
			"interval", interval,
			"ttl", s.cfg.TTL,
			"max_bytes", s.cfg.MaxBytes,
		)

		cycle := 0
		for {
			select {
			case <-ctx.Done():
				slog.Info("[MEDIA-CACHE] cleanup job stopped")
				return
			case <-ticker.C:
				cycle++

				removed, err := s.Cleanup(ctx)
				if err != nil {
					slog.Error("[MEDIA-CACHE] cleanup error",
						"error", err,
						"cycle", cycle,
					)
					continue
				}

				if removed > 0 {
					slog.Info("[MEDIA-CACHE] cleanup completed",
						"records_removed", removed,
						"cycle", cycle,
					)
				} else if cycle%6 == 0 {
					usage, _ := s.Stats(ctx)
					slog.Debug("[MEDIA-CACHE] cleanup heartbeat",
						"cycle", cycle,
						"records", usage.Records,
						"bytes", usage.Bytes,
					)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
