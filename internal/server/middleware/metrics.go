package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"movie-auth/backend/internal/metrics"
)

// Metrics records request count and latency labelled by route pattern, not raw path.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		metrics.ObserveHTTPRequest(r.Method, routePattern(r), responseStatus(ww), time.Since(start))
	})
}
