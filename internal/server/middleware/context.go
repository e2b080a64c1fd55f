package middleware

import "context"

type contextKey struct{ name string }

var (
	subjectKey  = contextKey{"subject"}
	clientIPKey = contextKey{"client_ip"}
)

// WithSubject returns a context carrying the authenticated account email.
func WithSubject(ctx context.Context, subject string) context.Context {
	noteSubject(ctx, subject)
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext returns the authenticated subject and true if set; otherwise "", false.
func SubjectFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(subjectKey).(string)
	return v, ok && v != ""
}

// WithClientIP returns a context carrying the resolved client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the IP stored by ClientIP, or "" if none.
// It has the shape of audit.IPExtractor.
func ClientIPFromContext(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}

// requestState is shared between the outer middlewares and the route-level authenticator,
// which runs deeper in the chain and cannot hand its context back up.
type requestState struct {
	subject string
}

var stateKey = contextKey{"request_state"}

func withRequestState(ctx context.Context) (context.Context, *requestState) {
	if st, ok := ctx.Value(stateKey).(*requestState); ok {
		return ctx, st
	}
	st := &requestState{}
	return context.WithValue(ctx, stateKey, st), st
}

func noteSubject(ctx context.Context, subject string) {
	if st, ok := ctx.Value(stateKey).(*requestState); ok {
		st.subject = subject
	}
}
