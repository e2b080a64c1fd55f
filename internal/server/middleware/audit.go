package middleware

import (
	"net/http"
	"strconv"

	chimw "github.com/go-chi/chi/v5/middleware"

	"movie-auth/backend/internal/audit"
)

// Audit records an audit entry after each authenticated request, with action and resource
// taken from the method and matched route. Anonymous requests are not audited.
// Session endpoints log their own events and never set a subject, so they pass through.
func Audit(logger audit.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, st := withRequestState(r.Context())
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if st.subject == "" {
				return
			}
			ar := audit.ParseRoute(r.Method, routePattern(r))
			logger.LogEvent(ctx, st.subject, ar.Action, ar.Resource, "status="+strconv.Itoa(responseStatus(ww)))
		})
	}
}
