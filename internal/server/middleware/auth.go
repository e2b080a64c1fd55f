package middleware

import (
	"errors"
	"net/http"
	"strings"

	"movie-auth/backend/internal/platform/httpjson"
	"movie-auth/backend/internal/security"
)

const bearerPrefix = "bearer "

// Authentication failure messages.
const (
	MsgHeaderMissing   = "Authorization header ('Bearer token') not found"
	MsgHeaderMalformed = "Authorization header is malformed"
	MsgTokenExpired    = "JWT token has expired"
	MsgTokenInvalid    = "Invalid JWT token"
)

var (
	// ErrMissingAuthorization is returned when no bearer header is present.
	ErrMissingAuthorization = errors.New(MsgHeaderMissing)
	// ErrMalformedAuthorization is returned when the Authorization header is not a bearer header.
	ErrMalformedAuthorization = errors.New(MsgHeaderMalformed)
	// ErrEmptyBearer is returned for a bearer header that carries no token.
	ErrEmptyBearer = errors.New("bearer token is empty")
)

// TokenVerifier verifies a token and its class.
type TokenVerifier interface {
	VerifyClass(token string, class security.TokenClass) (*security.VerifiedToken, error)
}

// Authenticator checks access tokens on incoming requests. It only verifies signatures and
// claims; it never reads the credential store.
type Authenticator struct {
	tokens TokenVerifier
}

// NewAuthenticator returns an Authenticator backed by tokens.
func NewAuthenticator(tokens TokenVerifier) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Authenticate verifies an access token and returns its subject.
// The error is security.ErrTokenExpired or security.ErrInvalidToken.
func (a *Authenticator) Authenticate(token string) (string, error) {
	vt, err := a.tokens.VerifyClass(token, security.TokenClassAccess)
	if err != nil {
		return "", err
	}
	return vt.Subject, nil
}

// RequireBearer rejects requests without a valid access token and stores the subject in the context.
func (a *Authenticator) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearer(r)
		if err != nil {
			httpjson.WriteError(w, http.StatusUnauthorized, MsgHeaderMissing)
			return
		}
		subject, err := a.Authenticate(token)
		if err != nil {
			httpjson.WriteError(w, http.StatusUnauthorized, tokenFailureMessage(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
	})
}

// OptionalBearer lets anonymous requests through. A header that is present must be a bearer
// header carrying a valid access token; its subject is stored in the context.
func (a *Authenticator) OptionalBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearer(r)
		switch {
		case errors.Is(err, ErrMissingAuthorization):
			next.ServeHTTP(w, r)
			return
		case errors.Is(err, ErrEmptyBearer):
			httpjson.WriteError(w, http.StatusUnauthorized, MsgTokenInvalid)
			return
		case err != nil:
			httpjson.WriteError(w, http.StatusUnauthorized, MsgHeaderMalformed)
			return
		}
		subject, err := a.Authenticate(token)
		if err != nil {
			httpjson.WriteError(w, http.StatusUnauthorized, MsgTokenInvalid)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
	})
}

func tokenFailureMessage(err error) string {
	if errors.Is(err, security.ErrTokenExpired) {
		return MsgTokenExpired
	}
	return MsgTokenInvalid
}

// extractBearer returns the token from the Authorization header.
// No header is ErrMissingAuthorization, a bare "Bearer" is ErrEmptyBearer and any other
// non-bearer header is ErrMalformedAuthorization.
func extractBearer(r *http.Request) (string, error) {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if v == "" {
		return "", ErrMissingAuthorization
	}
	if strings.EqualFold(v, strings.TrimSpace(bearerPrefix)) {
		return "", ErrEmptyBearer
	}
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return "", ErrMalformedAuthorization
	}
	return strings.TrimSpace(v[len(bearerPrefix):]), nil
}
