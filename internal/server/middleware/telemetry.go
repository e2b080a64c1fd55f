package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"movie-auth/backend/internal/telemetry"
	"movie-auth/backend/internal/telemetry/domain"
)

const telemetrySource = "http_middleware"

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http_request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Route      string `json:"route"`
	Status     int    `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
	RequestID  string `json:"request_id,omitempty"`
}

// Telemetry emits one http_request event per request without blocking the response.
// A nil emitter disables it. skipPaths are raw URL paths (e.g. /healthz) that are not emitted.
func Telemetry(emitter telemetry.EventEmitter, skipPaths ...string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return func(next http.Handler) http.Handler {
		if emitter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ctx, st := withRequestState(r.Context())
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			meta, _ := json.Marshal(httpRequestMetadata{
				Method:     r.Method,
				Route:      routePattern(r),
				Status:     responseStatus(ww),
				DurationMs: time.Since(start).Milliseconds(),
				ClientIP:   RequestIP(r),
				RequestID:  chimw.GetReqID(ctx),
			})
			telemetry.EmitAsync(emitter, &domain.Event{
				UserEmail: st.subject,
				EventType: domain.EventTypeHTTPRequest,
				Source:    telemetrySource,
				Metadata:  meta,
				CreatedAt: start.UTC(),
			})
		})
	}
}
