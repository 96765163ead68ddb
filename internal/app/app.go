package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alex-user-go/fares/internal/config"
	"github.com/alex-user-go/fares/internal/extract"
	"github.com/alex-user-go/fares/internal/geo"
	"github.com/alex-user-go/fares/internal/handler"
	"github.com/alex-user-go/fares/internal/middleware"
	"github.com/alex-user-go/fares/internal/obs"
	"github.com/alex-user-go/fares/internal/render"
	"github.com/alex-user-go/fares/internal/search"
	"github.com/alex-user-go/fares/internal/search/cache"
	"github.com/alex-user-go/fares/internal/search/ratelimit"
)

// ServiceName is reported by the health endpoints.
const ServiceName = "fares"

// NewLogger builds the JSON logger used by the service.
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Service holds the wired search components.
type Service struct {
	Engine  *search.Engine
	Cache   *cache.Cache
	Limiter *ratelimit.Limiter
	Metrics *obs.Metrics

	cfg     *config.Config
	version string
	logger  *slog.Logger
}

// New wires every component described by cfg.
func New(cfg *config.Config, version string, logger *slog.Logger) (*Service, error) {
	metrics := obs.NewMetrics(logger)

	renderer, err := newRenderer(cfg, logger)
	if err != nil {
		return nil, err
	}

	dispatcher := geo.NewDispatcher(cfg.Countries, cfg.ProxyCredentials())
	for _, code := range cfg.Search.Countries {
		if !dispatcher.Known(code) {
			logger.Warn("unknown source country, using fallback params", "source", code)
		}
	}

	pipeline := extract.New(extract.Config{
		ReadyTimeout: cfg.Search.ReadyTimeout.Std(),
	}, metrics, logger)

	orchestrator := search.NewOrchestrator(dispatcher, renderer, pipeline, search.Options{
		Sources:       cfg.Search.Countries,
		Baseline:      cfg.Search.Baseline,
		MaxResults:    cfg.Search.MaxResults,
		SourceTimeout: cfg.Search.SourceTimeout.Std(),
	}, metrics, logger)

	store, err := newStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Service{
		Engine:  search.NewEngine(orchestrator, metrics, logger),
		Cache:   cache.NewCache(store, cfg.Cache.TTL.Std(), logger),
		Limiter: ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window.Std()),
		Metrics: metrics,
		cfg:     cfg,
		version: version,
		logger:  logger,
	}, nil
}

func newRenderer(cfg *config.Config, logger *slog.Logger) (render.Renderer, error) {
	switch cfg.Renderer.Kind {
	case config.RendererHTTP:
		logger.Info("using render service", "url", cfg.Renderer.URL)
		return render.NewHTTPRenderer(cfg.Renderer.URL, cfg.Renderer.NavigationTimeout.Std()), nil
	case config.RendererChrome:
		logger.Info("using local chrome", "headless", cfg.Renderer.Headless)
		return render.NewChromeRenderer(cfg.Renderer.Headless, cfg.Renderer.NavigationTimeout.Std(), logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown renderer kind %q", config.ErrInvalid, cfg.Renderer.Kind)
	}
}

func newStore(cfg *config.Config, logger *slog.Logger) (cache.Store, error) {
	if cfg.Cache.RedisURL == "" {
		return cache.NewMemoryStore(time.Minute), nil
	}

	store, err := cache.NewRedisStore(cfg.Cache.RedisURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		// Keep the store; reads and writes degrade to misses until Redis is back.
		logger.Warn("redis unreachable, caching degraded", "error", err)
	} else {
		logger.Info("result cache backed by redis")
	}
	return store, nil
}

// Routes returns the HTTP handler serving the API.
func (s *Service) Routes() http.Handler {
	h := handler.New(s.Engine, s.Cache, s.Limiter, s.cfg.Search.RequestTimeout.Std(), s.Metrics, s.logger)
	health := obs.HealthHandler(ServiceName, s.version, s.logger)

	mux := http.NewServeMux()
	mux.Handle("POST /api/search", middleware.Auth(s.cfg.Server.APIKey)(http.HandlerFunc(h.SearchHandler)))
	mux.HandleFunc("GET /{$}", health)
	mux.HandleFunc("GET /health", health)
	mux.Handle("GET /metrics", s.Metrics.MetricsHandler())

	return middleware.Logging(s.logger)(mux)
}

// Close releases the cache and limiter.
func (s *Service) Close() error {
	s.Limiter.Close()
	return s.Cache.Close()
}

// Run serves the API until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) error {
	if cfg.Server.APIKey == "" {
		logger.Warn("no API key configured, every search request will be rejected")
	}

	svc, err := New(cfg, version, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      svc.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", srv.Addr,
			"sources", cfg.Search.Countries,
			"baseline", cfg.Search.Baseline,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	// Graceful shutdown
	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}
