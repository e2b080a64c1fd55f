package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"movie-auth/backend/internal/policy/engine"
	"movie-auth/backend/internal/user/domain"
	"movie-auth/backend/internal/user/repository"
)

// Sentinel errors for the profile service; their text is the client-facing message.
var (
	ErrUserNotFound = errors.New("User not found")
	ErrForbidden    = errors.New("Forbidden")
)

// ProfileRepo is the minimal user repository needed by the profile service.
type ProfileRepo interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateProfile(ctx context.Context, email string, p domain.ProfileUpdate) (*domain.User, error)
}

// ProfileView is a profile together with whether its private fields may be shown.
type ProfileView struct {
	Profile domain.Profile
	Private bool
}

// ProfileService reads and replaces account profiles, gated by the access policy.
type ProfileService struct {
	repo   ProfileRepo
	policy engine.Evaluator
	now    func() time.Time
}

// NewProfileService returns a ProfileService backed by repo and policy.
func NewProfileService(repo ProfileRepo, policy engine.Evaluator) *ProfileService {
	return &ProfileService{repo: repo, policy: policy, now: time.Now}
}

// GetProfile returns owner's profile as seen by subject ("" for anonymous requests).
// Viewers the policy does not grant private access get the reduced view, not an error.
func (s *ProfileService) GetProfile(ctx context.Context, owner, subject string) (*ProfileView, error) {
	owner = domain.NormalizeEmail(owner)
	u, err := s.repo.GetByEmail(ctx, owner)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	access, err := s.policy.EvaluateProfileAccess(ctx, engine.ProfileAccessInput{
		Authenticated: subject != "",
		Subject:       subject,
		Owner:         owner,
	})
	if err != nil {
		return nil, fmt.Errorf("profile access policy: %w", err)
	}
	p := u.Profile()
	if !access.ViewPrivate {
		p = p.Reduced()
	}
	return &ProfileView{Profile: p, Private: access.ViewPrivate}, nil
}

// UpdateProfile validates body and replaces owner's profile on behalf of subject.
// Validation errors come from domain.ParseProfileUpdate.
func (s *ProfileService) UpdateProfile(ctx context.Context, owner, subject string, body map[string]any) (*domain.Profile, error) {
	update, err := domain.ParseProfileUpdate(body, s.now())
	if err != nil {
		return nil, err
	}
	owner = domain.NormalizeEmail(owner)
	access, err := s.policy.EvaluateProfileAccess(ctx, engine.ProfileAccessInput{
		Authenticated: subject != "",
		Subject:       subject,
		Owner:         owner,
	})
	if err != nil {
		return nil, fmt.Errorf("profile access policy: %w", err)
	}
	if !access.Edit {
		return nil, ErrForbidden
	}
	u, err := s.repo.UpdateProfile(ctx, owner, update)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}
