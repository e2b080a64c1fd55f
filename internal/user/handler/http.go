package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"movie-auth/backend/internal/platform/httpjson"
	"movie-auth/backend/internal/server/middleware"
	"movie-auth/backend/internal/user/domain"
	"movie-auth/backend/internal/user/service"
)

// ProfileService is the profile use-case layer used by the handler.
type ProfileService interface {
	GetProfile(ctx context.Context, owner, subject string) (*service.ProfileView, error)
	UpdateProfile(ctx context.Context, owner, subject string, body map[string]any) (*domain.Profile, error)
}

// ProfileHandler serves GET and PUT /user/{email}/profile. Authentication is applied by the
// router: optional for Get, required for Put.
type ProfileHandler struct {
	profiles ProfileService
}

// NewProfileHandler returns a handler backed by profiles.
func NewProfileHandler(profiles ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// profileResponse omits dob and address for the reduced view.
type profileResponse struct {
	Email     string  `json:"email"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	DOB       *string `json:"dob,omitempty"`
	Address   *string `json:"address,omitempty"`
}

func toResponse(p domain.Profile, private bool) profileResponse {
	resp := profileResponse{Email: p.Email, FirstName: p.FirstName, LastName: p.LastName}
	if private {
		resp.DOB = &p.DOB
		resp.Address = &p.Address
	}
	return resp
}

// Get returns the profile; private fields only when the caller may see them.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	subject, _ := middleware.SubjectFromContext(r.Context())
	view, err := h.profiles.GetProfile(r.Context(), chi.URLParam(r, "email"), subject)
	if err != nil {
		writeProfileError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, toResponse(view.Profile, view.Private))
}

// Put replaces every profile field and returns the full profile.
func (h *ProfileHandler) Put(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := httpjson.DecodeJSON(w, r, &body); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "Request body invalid")
		return
	}
	subject, _ := middleware.SubjectFromContext(r.Context())
	p, err := h.profiles.UpdateProfile(r.Context(), chi.URLParam(r, "email"), subject, body)
	if err != nil {
		writeProfileError(w, r, err)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, toResponse(*p, true))
}

func writeProfileError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrProfileIncomplete),
		errors.Is(err, domain.ErrProfileNotStrings),
		errors.Is(err, domain.ErrDOBFormat),
		errors.Is(err, domain.ErrDOBInFuture),
		errors.Is(err, domain.ErrDOBTooOld):
		httpjson.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		httpjson.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		httpjson.WriteError(w, http.StatusNotFound, err.Error())
	default:
		slog.ErrorContext(r.Context(), "profile request failed", "path", r.URL.Path, "error", err)
		httpjson.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
