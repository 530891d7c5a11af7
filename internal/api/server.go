// Package api serves the dashboard view-model to the browser dashboard over
// HTTP. Every request computes a fresh view-model from the current snapshot
// in the store; the server holds no computed state.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/vanderheijden86/pulseboard/internal/datasource"
	"github.com/vanderheijden86/pulseboard/pkg/config"
	"github.com/vanderheijden86/pulseboard/pkg/dashboard"
	"github.com/vanderheijden86/pulseboard/pkg/debug"
	"github.com/vanderheijden86/pulseboard/pkg/metrics"
	"github.com/vanderheijden86/pulseboard/pkg/model"
)

const shutdownTimeout = 5 * time.Second

// Loader reads a fresh snapshot for POST /api/reload and the watcher.
type Loader func(ctx context.Context) (model.Snapshot, datasource.DataSource, error)

// Option configures a Server.
type Option func(*Server)

// WithLoader sets the snapshot loader used by Reload.
func WithLoader(l Loader) Option {
	return func(s *Server) { s.load = l }
}

// WithLogger sets the request and lifecycle logger.
func WithLogger(l *debug.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the evaluation time source.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSource records the source the initial snapshot came from.
func WithSource(src datasource.DataSource) Option {
	return func(s *Server) { s.source = src }
}

// Server is the HTTP API.
type Server struct {
	cfg   config.Config
	store *dashboard.Store
	load  Loader
	log   *debug.Logger
	now   func() time.Time

	reloadMu sync.Mutex
	mu       sync.RWMutex
	source   datasource.DataSource
	loadedAt time.Time

	engine *gin.Engine
}

// New builds a Server around store.
func New(cfg config.Config, store *dashboard.Store, opts ...Option) *Server {
	s := &Server{
		cfg:   cfg,
		store: store,
		log:   debug.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loadedAt = s.now()
	s.engine = s.newRouter()
	return s
}

func (s *Server) newRouter() *gin.Engine {
	if mode := s.cfg.Server.GinMode; mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if s.cfg.Trace.Enabled {
		r.Use(otelgin.Middleware(s.cfg.Trace.ServiceName))
	}
	r.Use(RequestID())
	r.Use(RequestLogger(s.log))
	r.Use(cors.New(corsConfig(s.cfg.Server.CORSOrigins)))

	r.GET("/", s.handleRoot)
	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	{
		api.GET("/dashboard", s.handleDashboard)
		api.GET("/summary", s.handleSummary)
		api.GET("/dora", s.handleDORA)
		api.GET("/burndown", s.handleBurndown)
		api.GET("/risks", s.handleRisks)
		api.GET("/trend", s.handleTrend)
		api.POST("/insights", s.handleInsights)
		api.POST("/llm/query", s.handleInsights)
		api.GET("/models/available", s.handleModels)
		api.POST("/reload", s.handleReload)
		api.GET("/metrics", s.handleMetrics)
	}
	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "not_found", fmt.Errorf("no route for %s %s", c.Request.Method, c.Request.URL.Path))
	})
	return r
}

// corsConfig allows every origin when none are configured. Entries without
// an http(s) scheme are dropped since cors.New rejects them.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "X-Requested-With", headerRequestID},
		ExposeHeaders: []string{headerRequestID},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch {
		case o == "*":
			cfg.AllowOrigins = nil
			cfg.AllowAllOrigins = true
			return cfg
		case strings.HasPrefix(o, "http://"), strings.HasPrefix(o, "https://"):
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowCredentials = true
	return cfg
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve listens on the configured address until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("api stopped")
	return nil
}

// ReloadResult describes one snapshot refresh.
type ReloadResult struct {
	Source   datasource.DataSource `json:"source"`
	Version  uint64                `json:"version"`
	LoadedAt time.Time             `json:"loaded_at"`
	Changes  datasource.SourceDiff `json:"changes"`
}

// ErrNoLoader is returned by Reload when the server was built without one.
var ErrNoLoader = errors.New("reload is not configured")

// Reload reads a fresh snapshot and replaces the store contents. Concurrent
// reloads are serialized; readers keep seeing the previous snapshot until
// the swap.
func (s *Server) Reload(ctx context.Context) (ReloadResult, error) {
	if s.load == nil {
		return ReloadResult{}, ErrNoLoader
	}
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	snap, src, err := s.load(ctx)
	if err != nil {
		metrics.ReloadErrors.Inc()
		return ReloadResult{}, fmt.Errorf("reload snapshot: %w", err)
	}

	prev := s.store.Snapshot()
	s.mu.RLock()
	prevName := s.source.Path
	s.mu.RUnlock()
	if prevName == "" {
		prevName = "previous"
	}
	diff := datasource.DetectInconsistencies(prev, snap, prevName, src.Path, datasource.DefaultDiffOptions())

	s.store.Replace(snap)
	metrics.Reloads.Inc()

	now := s.now()
	s.mu.Lock()
	s.source = src
	s.loadedAt = now
	s.mu.Unlock()

	if diff.HasInconsistencies() {
		s.log.Info("snapshot changed", "source", src.Path,
			"added", len(diff.MissingInA), "removed", len(diff.MissingInB), "status_changes", len(diff.StatusMismatch))
	}
	return ReloadResult{Source: src, Version: s.store.Version(), LoadedAt: now, Changes: diff}, nil
}
