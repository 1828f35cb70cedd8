package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	blobhandlers "Threadview/internal/api/handlers/blob"
	cachehandlers "Threadview/internal/api/handlers/cache"
	viewerhandlers "Threadview/internal/api/handlers/viewer"
	"Threadview/internal/api/middleware"
	"Threadview/internal/api/routes"
	"Threadview/internal/config"
	"Threadview/internal/core/mediacache"
	"Threadview/internal/core/objecturl"
	"Threadview/internal/core/resolver"
	"Threadview/internal/core/viewer"
	"Threadview/internal/db"
	"Threadview/internal/db/sqlstore"
	"Threadview/internal/logging"
	"Threadview/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("[SERVER] fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	flags := config.SetupFlags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}
	configPath, _ := flags.GetString("config")

	cfg, err := config.Load(configPath, flags)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The store opens lazily; the first cache or slot access connects and
	// runs migrations.
	store, err := db.NewStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("[SERVER] failed to close store", "error", err)
		}
	}()

	cache, err := mediacache.NewService(sqlstore.NewMediaRepository(store), cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to create media cache: %w", err)
	}
	stopCleanup := cache.StartCleanupJob(cfg.Cache.CleanupInterval)
	defer cache.Close()
	defer stopCleanup()

	objects := objecturl.NewRegistry(cfg.ObjectURLs.Prefix, cfg.ObjectURLs.TTL)
	defer objects.Clear()

	res, err := resolver.NewService(cache, objects, cfg.Resolver)
	if err != nil {
		return fmt.Errorf("failed to create resolver: %w", err)
	}
	defer res.Close()

	session, err := viewer.NewSession(sqlstore.NewSlotRepository(store), res, objects, cfg.Viewer)
	if err != nil {
		return fmt.Errorf("failed to create viewer session: %w", err)
	}
	defer session.Close()

	if v, err := session.Restore(ctx); err != nil {
		slog.Warn("[SERVER] failed to restore viewer", "error", err)
	} else {
		slog.Info("[SERVER] viewer restored",
			"visible", v.Visible,
			"messages", v.Messages,
		)
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	if cfg.Server.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Rate, cfg.Server.RateLimit.Burst, 0)
		r.Use(rateLimiter.Middleware)
	}

	templates, err := web.NewTemplates()
	if err != nil {
		return fmt.Errorf("failed to load web templates: %w", err)
	}
	routes.RegisterWebRoutes(r, web.NewHandlers(templates, session, cfg.ObjectURLs.Prefix))
	routes.RegisterViewerRoutes(r, viewerhandlers.NewHandler(session))
	routes.RegisterBlobRoutes(r, strings.TrimSuffix(cfg.ObjectURLs.Prefix, "/"), blobhandlers.NewHandler(objects))
	routes.RegisterCacheRoutes(r, cachehandlers.NewHandler(cache, res, objects))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("[SERVER] listening",
			"addr", srv.Addr,
			"database", cfg.Database.Driver,
			"board", cfg.Resolver.Board,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("[SERVER] shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
