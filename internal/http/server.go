// Package http serves the read-only query API over the current snapshot.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"aadhaar/internal/cache"
	"aadhaar/internal/core"
	"aadhaar/internal/log"
	"aadhaar/internal/metrics"
	"aadhaar/internal/middleware/ratelimit"
	"aadhaar/internal/middleware/security"
	"aadhaar/internal/middleware/trace"
	"aadhaar/internal/pipeline"
	"aadhaar/internal/storage"
)

// Pipeline is the query surface of the reload pipeline.
type Pipeline interface {
	Current() *pipeline.Snapshot
	Ready() bool
	Reload(ctx context.Context, trigger string) pipeline.Report
	StateSummary() []core.StateSummaryRow
	State(name string) (core.StateSummaryRow, bool)
	TopStates(metric core.Metric, n int) ([]core.RankedState, error)
	AnomalyPoints() []core.AnomalyPoint
	MonthlySeries() []core.MonthlyPoint
	Forecast() []core.ForecastPoint
	UnmappedLabels() []core.UnmappedLabel
	Stats() core.Stats
}

// RunLister reads the reload history.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]storage.Run, error)
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the server. Ledger, Metrics and Caches are
// optional.
type Deps struct {
	Pipeline Pipeline
	Ledger   RunLister
	Metrics  *metrics.Metrics
	Caches   *cache.Manager
	Logger   *log.Logger
}

// Options tune the HTTP surface.
type Options struct {
	CORSOrigins   []string
	ReloadLimit   ratelimit.Config
	CacheSize     int
	CacheTTL      time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	ReloadTimeout time.Duration
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		CORSOrigins:   []string{"*"},
		ReloadLimit:   ratelimit.DefaultConfig(),
		CacheSize:     128,
		CacheTTL:      10 * time.Minute,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  2 * time.Minute,
		ReloadTimeout: 5 * time.Minute,
	}
}

type Server struct {
	http.Server
	pipeline Pipeline
	ledger   RunLister
	metrics  *metrics.Metrics
	logger   *log.Logger
	opts     Options

	topStates       *cache.LRUCache[[]core.RankedState]
	rateLimiter     *ratelimit.Limiter
	detector        *security.Detector
	traceMiddleware *trace.Middleware
	started         time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	def := DefaultOptions()
	if opts.CacheSize <= 0 {
		opts.CacheSize = def.CacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = def.ReloadTimeout
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = def.CORSOrigins
	}

	s := &Server{
		pipeline:    deps.Pipeline,
		ledger:      deps.Ledger,
		metrics:     deps.Metrics,
		logger:      logger.WithComponent(log.ComponentHTTP),
		opts:        opts,
		topStates:   cache.NewLRUCache[[]core.RankedState](opts.CacheSize, opts.CacheTTL),
		rateLimiter: ratelimit.NewLimiter(opts.ReloadLimit),
		detector:    security.NewDetector(logger),
		started:     time.Now(),
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.detector.ExtractClientIP)
	if deps.Caches != nil {
		deps.Caches.Register(s.topStates)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	cors := security.DefaultCORSConfig()
	cors.AllowedOrigins = s.opts.CORSOrigins

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.traceMiddleware.Middleware)
	r.Use(s.metrics.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(security.NewCORS(cors).Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such endpoint").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed").Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleRoot)
		r.Get("/state-summary", s.handleStateSummary)
		r.Get("/state-summary/{state}", s.handleState)
		r.Get("/top-states", s.handleTopStates)
		r.Get("/anomaly-points", s.handleAnomalyPoints)
		r.Get("/monthly-enrolment", s.handleMonthlyEnrolment)
		r.Get("/enrolment-forecast", s.handleForecast)
		r.Get("/unmapped-states", s.handleUnmapped)
		r.Get("/stats", s.handleStats)
		r.Get("/reloads", s.handleReloads)
		r.With(s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)).
			Post("/reload", s.handleReload)
	})
	return r
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate_limited", "too many reload requests, retry later").Write(w)
}

// Shutdown stops background goroutines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
