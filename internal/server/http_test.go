package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	healthhandler "movie-auth/backend/internal/health/handler"
	identityservice "movie-auth/backend/internal/identity/service"
	"movie-auth/backend/internal/metrics"
	"movie-auth/backend/internal/policy/engine"
	"movie-auth/backend/internal/security"
	"movie-auth/backend/internal/server/middleware"
	"movie-auth/backend/internal/user/repository"
	userservice "movie-auth/backend/internal/user/service"
)

func newTestAPI(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	tokens := security.NewTestTokenProvider()
	policy, err := engine.NewOPAEvaluator(ctx)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics.RegisterCollectors(reg)

	return NewHTTPHandler(Deps{
		Auth:          identityservice.NewAuthService(repo, security.NewHasher(4), tokens, identityservice.DefaultTTLs(), nil, nil),
		Profiles:      userservice.NewProfileService(repo, policy),
		Authenticator: middleware.NewAuthenticator(tokens),
		Health:        healthhandler.NewServer(repo, policy),
		Gatherer:      reg,
	})
}

type apiResponse struct {
	code int
	body map[string]any
	raw  string
}

func call(t *testing.T, h http.Handler, method, path, bearer string, body any) apiResponse {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	resp := apiResponse{code: rec.Code, raw: rec.Body.String()}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp.body))
	}
	return resp
}

func tokenField(t *testing.T, r apiResponse, key string) (token string, expiresIn float64) {
	t.Helper()
	d, ok := r.body[key].(map[string]any)
	require.True(t, ok, "missing %s in %v", key, r.body)
	return d["token"].(string), d["expires_in"].(float64)
}

func credentials(email, password string) map[string]any {
	return map[string]any{"email": email, "password": password}
}

func TestAPI_SessionScenario(t *testing.T) {
	api := newTestAPI(t)

	r := call(t, api, http.MethodPost, "/user/register", "", credentials("a@x.com", "pw1"))
	require.Equal(t, http.StatusCreated, r.code)
	assert.Equal(t, "User created", r.body["message"])

	r = call(t, api, http.MethodPost, "/user/register", "", credentials("a@x.com", "pw1"))
	require.Equal(t, http.StatusConflict, r.code)
	assert.Equal(t, "User already exists", r.body["message"])

	r = call(t, api, http.MethodPost, "/user/login", "", credentials("a@x.com", "wrong"))
	require.Equal(t, http.StatusUnauthorized, r.code)
	assert.Equal(t, "Invalid email or password", r.body["message"])

	r = call(t, api, http.MethodPost, "/user/login", "", credentials("a@x.com", "pw1"))
	require.Equal(t, http.StatusOK, r.code)
	_, accessExp := tokenField(t, r, "bearerToken")
	refresh1, refreshExp := tokenField(t, r, "refreshToken")
	assert.Equal(t, float64(600), accessExp)
	assert.Equal(t, float64(86400), refreshExp)

	r = call(t, api, http.MethodPost, "/user/refresh", "", map[string]any{"refreshToken": refresh1})
	require.Equal(t, http.StatusOK, r.code)
	refresh2, _ := tokenField(t, r, "refreshToken")

	r = call(t, api, http.MethodPost, "/user/refresh", "", map[string]any{"refreshToken": refresh1})
	require.Equal(t, http.StatusUnauthorized, r.code)

	r = call(t, api, http.MethodPost, "/user/logout", "", map[string]any{"refreshToken": refresh2})
	require.Equal(t, http.StatusOK, r.code)
	assert.Equal(t, "Token successfully invalidated", r.body["message"])
	assert.Equal(t, false, r.body["error"])

	r = call(t, api, http.MethodPost, "/user/refresh", "", map[string]any{"refreshToken": refresh2})
	require.Equal(t, http.StatusUnauthorized, r.code)
}

func TestAPI_ProfileFlow(t *testing.T) {
	api := newTestAPI(t)
	for _, email := range []string{"a@x.com", "b@x.com"} {
		require.Equal(t, http.StatusCreated, call(t, api, http.MethodPost, "/user/register", "", credentials(email, "pw")).code)
	}
	login := func(email string) string {
		r := call(t, api, http.MethodPost, "/user/login", "", credentials(email, "pw"))
		require.Equal(t, http.StatusOK, r.code)
		token, _ := tokenField(t, r, "bearerToken")
		return token
	}
	ownerToken, otherToken := login("a@x.com"), login("b@x.com")
	profile := map[string]any{"firstName": "Ann", "lastName": "Lee", "dob": "1990-12-10", "address": "1 Main St"}

	r := call(t, api, http.MethodPut, "/user/a@x.com/profile", "", profile)
	require.Equal(t, http.StatusUnauthorized, r.code)
	assert.Equal(t, middleware.MsgHeaderMissing, r.body["message"])

	r = call(t, api, http.MethodPut, "/user/a@x.com/profile", otherToken, profile)
	require.Equal(t, http.StatusForbidden, r.code)

	r = call(t, api, http.MethodPut, "/user/a@x.com/profile", ownerToken, map[string]any{"firstName": "Ann"})
	require.Equal(t, http.StatusBadRequest, r.code)

	r = call(t, api, http.MethodPut, "/user/a@x.com/profile", ownerToken, profile)
	require.Equal(t, http.StatusOK, r.code)
	assert.Equal(t, "1990-12-10", r.body["dob"])

	reduced := map[string]any{"email": "a@x.com", "firstName": "Ann", "lastName": "Lee"}

	r = call(t, api, http.MethodGet, "/user/a@x.com/profile", "", nil)
	require.Equal(t, http.StatusOK, r.code)
	assert.Equal(t, reduced, r.body)

	r = call(t, api, http.MethodGet, "/user/a@x.com/profile", otherToken, nil)
	require.Equal(t, http.StatusOK, r.code)
	assert.Equal(t, reduced, r.body)

	r = call(t, api, http.MethodGet, "/user/a@x.com/profile", ownerToken, nil)
	require.Equal(t, http.StatusOK, r.code)
	assert.Equal(t, "1 Main St", r.body["address"])
	assert.Equal(t, "1990-12-10", r.body["dob"])

	r = call(t, api, http.MethodGet, "/user/a@x.com/profile", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, r.code)
	assert.Equal(t, middleware.MsgTokenInvalid, r.body["message"])

	r = call(t, api, http.MethodGet, "/user/nobody@x.com/profile", "", nil)
	require.Equal(t, http.StatusNotFound, r.code)
	assert.Equal(t, "User not found", r.body["message"])
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	r := call(t, api, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, r.code)
	assert.Equal(t, "SERVING", r.body["status"])

	call(t, api, http.MethodPost, "/user/login", "", credentials("nobody@x.com", "pw"))

	r = call(t, api, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, r.code)
	assert.Contains(t, r.raw, "movieauth_auth_operations_total")
	assert.Contains(t, r.raw, `route="/user/login"`)
}

func TestAPI_UnknownRoute(t *testing.T) {
	r := call(t, newTestAPI(t), http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, r.code)
}
