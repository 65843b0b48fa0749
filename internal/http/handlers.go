package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"aadhaar/internal/core"
	"aadhaar/internal/log"
	"aadhaar/internal/pipeline"
	"aadhaar/internal/storage"
)

const apiMessage = "Aadhaar Intelligence Console API"

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready once the first reload has completed
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	info := s.pipeline.Current().Info()
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.pipeline.Ready() {
		checks["snapshot"] = "ok"
	} else {
		checks["snapshot"] = "no reload completed yet"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.ledger == nil {
		checks["ledger"] = "not_configured"
	} else if err := s.ledger.Ping(ctx); err != nil {
		checks["ledger"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["ledger"] = "ok"
	}

	stats := s.topStates.Stats()
	checks["cache"] = map[string]any{
		"entries": stats.Size,
		"hits":    stats.Hits,
		"misses":  stats.Misses,
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"version":   info.Version,
		"degraded":  info.Degraded,
		"loaded_at": info.LoadedAt,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	JSON(w, map[string]string{"message": apiMessage})
}

func (s *Server) handleStateSummary(w http.ResponseWriter, r *http.Request) {
	JSON(w, s.pipeline.StateSummary())
}

// handleState looks up one state; the label is normalized like input data.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "state")
	// chi matches on RawPath when the client escaped more than needed, and
	// then hands back the escaped segment.
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	row, ok := s.pipeline.State(name)
	if !ok {
		NotFoundError("unknown state " + strconv.Quote(name)).Write(w)
		return
	}
	JSON(w, row)
}

func (s *Server) handleTopStates(w http.ResponseWriter, r *http.Request) {
	params, err := ParseTopStatesParams(r.URL.Query())
	if err != nil {
		InvalidParameterError(err.Error()).Write(w)
		return
	}

	rows, err := s.topStatesFor(r.Context(), params)
	if err != nil {
		// Parameters are validated above, so this is a programming error.
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Top states query failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeUnexpected)
		InternalServerError("query failed").Write(w)
		return
	}
	JSON(w, rows)
}

// topStatesFor serves rankings from the cache. Keys embed the snapshot
// version, so a reload makes earlier entries unreachable.
func (s *Server) topStatesFor(ctx context.Context, params TopStatesParams) ([]core.RankedState, error) {
	version := s.pipeline.Current().Version
	key := strconv.FormatUint(version, 10) + "|" + string(params.Metric) + "|" + strconv.Itoa(params.N)

	if rows, ok := s.topStates.Get(key); ok {
		log.FromContext(ctx).DebugContext(ctx, "Top states cache hit", "key", key)
		return rows, nil
	}

	rows, err := s.pipeline.TopStates(params.Metric, params.N)
	if err != nil {
		return nil, err
	}
	// A reload may have landed between reading the version and querying.
	if s.pipeline.Current().Version == version {
		s.topStates.Set(key, rows)
	}
	return rows, nil
}

func (s *Server) handleAnomalyPoints(w http.ResponseWriter, r *http.Request) {
	JSON(w, s.pipeline.AnomalyPoints())
}

func (s *Server) handleMonthlyEnrolment(w http.ResponseWriter, r *http.Request) {
	JSON(w, s.pipeline.MonthlySeries())
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	JSON(w, s.pipeline.Forecast())
}

func (s *Server) handleUnmapped(w http.ResponseWriter, r *http.Request) {
	JSON(w, s.pipeline.UnmappedLabels())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	JSON(w, s.pipeline.Stats())
}

// handleReload runs a reload and returns its report. The reload is detached
// from the request so a client disconnect cannot degrade the snapshot.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.opts.ReloadTimeout)
	defer cancel()

	report := s.pipeline.Reload(ctx, pipeline.TriggerHTTP)
	JSON(w, report)
}

func (s *Server) handleReloads(w http.ResponseWriter, r *http.Request) {
	limit, err := ParseLimitParam(r.URL.Query())
	if err != nil {
		InvalidParameterError(err.Error()).Write(w)
		return
	}
	if s.ledger == nil {
		ServiceUnavailableError("reload ledger not configured").Write(w)
		return
	}

	runs, err := s.ledger.RecentRuns(r.Context(), limit)
	if err != nil {
		errType := log.ErrorTypeDatabase
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			errType = log.ErrorTypeTimeout
		}
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Listing reload runs failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, errType)
		InternalServerError("could not read reload history").Write(w)
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	JSON(w, runs)
}
