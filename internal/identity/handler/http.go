package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"movie-auth/backend/internal/identity/service"
	"movie-auth/backend/internal/platform/httpjson"
)

// AuthService is the session manager used by the handler.
type AuthService interface {
	Register(ctx context.Context, email, password string) error
	Login(ctx context.Context, email, password string, longExpiry bool) (*service.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

const (
	msgUserCreated      = "User created"
	msgTokenInvalidated = "Token successfully invalidated"
	msgBodyInvalid      = "Request body invalid"
	msgInternal         = "Internal server error"
)

// AuthHandler serves register, login, refresh and logout under /user.
type AuthHandler struct {
	auth AuthService
}

// NewAuthHandler returns a handler backed by auth.
func NewAuthHandler(auth AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Routes mounts the handler's endpoints on r.
func (h *AuthHandler) Routes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)
}

type credentialsRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	LongExpiry any    `json:"longExpiry"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenDescriptor struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

type tokenPairResponse struct {
	BearerToken  tokenDescriptor `json:"bearerToken"`
	RefreshToken tokenDescriptor `json:"refreshToken"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpjson.DecodeJSON(w, r, &req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, msgBodyInvalid)
		return
	}
	if err := h.auth.Register(r.Context(), req.Email, req.Password); err != nil {
		writeAuthError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusCreated, messageResponse{Message: msgUserCreated})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpjson.DecodeJSON(w, r, &req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, msgBodyInvalid)
		return
	}
	pair, err := h.auth.Login(r.Context(), req.Email, req.Password, truthy(req.LongExpiry))
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, toPairResponse(pair))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpjson.DecodeJSON(w, r, &req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, msgBodyInvalid)
		return
	}
	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, toPairResponse(pair))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpjson.DecodeJSON(w, r, &req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, msgBodyInvalid)
		return
	}
	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		writeAuthError(w, r, err)
		return
	}
	httpjson.WriteMessage(w, http.StatusOK, msgTokenInvalidated)
}

// writeAuthError maps service sentinel errors to statuses; the sentinel text is the message.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrMissingCredentials),
		errors.Is(err, service.ErrMissingRefreshToken),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrPasswordTooLong):
		httpjson.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		httpjson.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrRefreshTokenExpired),
		errors.Is(err, service.ErrWrongTokenClass),
		errors.Is(err, service.ErrRefreshTokenReused):
		httpjson.WriteError(w, http.StatusUnauthorized, err.Error())
	default:
		slog.ErrorContext(r.Context(), "auth request failed", "path", r.URL.Path, "error", err)
		httpjson.WriteError(w, http.StatusInternalServerError, msgInternal)
	}
}

func toPairResponse(p *service.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		BearerToken:  tokenDescriptor{Token: p.Access.Token, TokenType: string(p.Access.Class), ExpiresIn: p.Access.ExpiresIn},
		RefreshToken: tokenDescriptor{Token: p.Refresh.Token, TokenType: string(p.Refresh.Class), ExpiresIn: p.Refresh.ExpiresIn},
	}
}

// truthy reports whether a loosely typed JSON flag is set: true, a non-zero number or a
// non-empty string.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return false
	}
}
