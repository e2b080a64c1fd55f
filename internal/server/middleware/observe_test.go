package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie-auth/backend/internal/metrics"
	"movie-auth/backend/internal/security"
	"movie-auth/backend/internal/telemetry/domain"
)

type captureEmitter struct {
	mu     sync.Mutex
	events []*domain.Event
	done   chan struct{}
}

func newCaptureEmitter() *captureEmitter {
	return &captureEmitter{done: make(chan struct{}, 16)}
}

func (c *captureEmitter) Emit(_ context.Context, e *domain.Event) error {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
	c.done <- struct{}{}
	return nil
}

func (c *captureEmitter) next(t *testing.T) *domain.Event {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for telemetry event")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

type auditEntry struct {
	email, action, resource, metadata, ip string
}

type recordingAudit struct {
	entries []auditEntry
}

func (r *recordingAudit) LogEvent(ctx context.Context, email, action, resource, metadata string) {
	r.entries = append(r.entries, auditEntry{email, action, resource, metadata, ClientIPFromContext(ctx)})
}

// newObservedRouter mirrors the server's middleware order around one protected and one public route.
func newObservedRouter(t *testing.T, logBuf *bytes.Buffer, em *captureEmitter, al *recordingAudit) (*chi.Mux, *security.TokenProvider) {
	t.Helper()
	p := security.NewTestTokenProvider()
	auth := NewAuthenticator(p)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(ClientIP)
	r.Use(RequestLogger(slog.New(slog.NewJSONHandler(logBuf, nil))))
	r.Use(Metrics)
	r.Use(Telemetry(em, "/healthz"))
	r.Use(Audit(al))
	r.With(auth.RequireBearer).Get("/user/{email}/profile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {})
	r.Post("/user/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	return r, p
}

func TestObservedRouter_AuthenticatedRequest(t *testing.T) {
	var logBuf bytes.Buffer
	em := newCaptureEmitter()
	al := &recordingAudit{}
	r, p := newObservedRouter(t, &logBuf, em, al)

	route := "/user/{email}/profile"
	before := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues(http.MethodGet, route, "200"))

	req := httptest.NewRequest(http.MethodGet, "/user/a@x.com/profile", nil)
	req.RemoteAddr = "192.0.2.1:4000"
	req.Header.Set("Authorization", "Bearer "+issue(t, p, security.TokenClassAccess, time.Minute))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Metrics are labelled by pattern, not by the raw path.
	after := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues(http.MethodGet, route, "200"))
	assert.Equal(t, before+1, after)

	var line map[string]any
	require.NoError(t, json.Unmarshal(logBuf.Bytes(), &line))
	assert.Equal(t, "http request", line["msg"])
	assert.Equal(t, route, line["route"])
	assert.EqualValues(t, 200, line["status"])
	assert.Equal(t, "192.0.2.1", line["remote"])
	assert.NotEmpty(t, line["request_id"])

	event := em.next(t)
	assert.Equal(t, "a@x.com", event.UserEmail)
	assert.Equal(t, domain.EventTypeHTTPRequest, event.EventType)
	var meta httpRequestMetadata
	require.NoError(t, json.Unmarshal(event.Metadata, &meta))
	assert.Equal(t, route, meta.Route)
	assert.Equal(t, http.StatusOK, meta.Status)
	assert.Equal(t, "192.0.2.1", meta.ClientIP)

	require.Len(t, al.entries, 1)
	assert.Equal(t, auditEntry{"a@x.com", "get", "profile", "status=200", "192.0.2.1"}, al.entries[0])
}

func TestObservedRouter_AnonymousRequestIsNotAudited(t *testing.T) {
	var logBuf bytes.Buffer
	em := newCaptureEmitter()
	al := &recordingAudit{}
	r, _ := newObservedRouter(t, &logBuf, em, al)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/user/login", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	event := em.next(t)
	assert.Empty(t, event.UserEmail)
	assert.Empty(t, al.entries)
}

func TestObservedRouter_RejectedRequestIsNotAudited(t *testing.T) {
	var logBuf bytes.Buffer
	al := &recordingAudit{}
	r, _ := newObservedRouter(t, &logBuf, newCaptureEmitter(), al)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user/a@x.com/profile", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, al.entries)
}

func TestTelemetry_SkipPaths(t *testing.T) {
	var logBuf bytes.Buffer
	em := newCaptureEmitter()
	r, _ := newObservedRouter(t, &logBuf, em, &recordingAudit{})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	select {
	case <-em.done:
		t.Fatal("skipped path should not emit")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNilCollaboratorsPassThrough(t *testing.T) {
	called := false
	h := Audit(nil)(Telemetry(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestRequestLogger_ServerErrorIsWarn(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogger(slog.New(slog.NewJSONHandler(&buf, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.EqualValues(t, 500, line["status"])
}
