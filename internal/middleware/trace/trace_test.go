package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	slogger "aadhaar/internal/log"
)

func newLogger(buf *bytes.Buffer) *slogger.Logger {
	cfg := slogger.DefaultConfig()
	cfg.Output = buf
	cfg.Format = "json"
	return slogger.New(cfg)
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(newLogger(&buf), func(*http.Request) string { return "203.0.113.7" })

	var seenID string
	var seenLogger *slogger.Logger
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		seenLogger = slogger.FromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.True(t, strings.HasPrefix(seenID, "req_"))
	assert.Equal(t, seenID, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, slogger.ComponentHTTP, seenLogger.Component())

	out := buf.String()
	assert.Contains(t, out, "HTTP request started")
	assert.Contains(t, out, "HTTP request completed")
	assert.Contains(t, out, `"status_code":404`)
	assert.Contains(t, out, `"client_ip":"203.0.113.7"`)
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, seenID)
}

func TestMiddlewareHonorsIncomingRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "bad id with spaces")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "bad id with spaces", rec.Header().Get(HeaderRequestID))
}

func TestMetricsAverage(t *testing.T) {
	m := NewMiddleware(nil, nil)
	h := m.Middleware(http.NotFoundHandler())
	for i := 0; i < 3; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	metrics := m.GetMetrics()
	assert.Equal(t, int64(3), metrics.TotalRequests)
	assert.GreaterOrEqual(t, metrics.AverageResponseTime, int64(0))
}

func TestGetRequestIDMissing(t *testing.T) {
	assert.Empty(t, GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
