package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	auditdomain "movie-auth/backend/internal/audit/domain"
	"movie-auth/backend/internal/metrics"
	"movie-auth/backend/internal/security"
	userdomain "movie-auth/backend/internal/user/domain"
	"movie-auth/backend/internal/user/repository"
)

// Sentinel errors for the auth service; the HTTP handler maps them to statuses and their text is the
// client-facing message.
var (
	ErrMissingCredentials     = errors.New("Request body incomplete: email and password are required.")
	ErrInvalidEmail           = errors.New("Invalid email format")
	ErrPasswordTooLong        = errors.New("Invalid password: must be at most 72 bytes.")
	ErrEmailAlreadyRegistered = errors.New("User already exists")
	ErrInvalidCredentials     = errors.New("Invalid email or password")
	ErrMissingRefreshToken    = errors.New("Request body incomplete, refresh token required")
	ErrInvalidRefreshToken    = errors.New("Invalid JWT token")
	ErrRefreshTokenExpired    = errors.New("JWT token has expired")
	ErrWrongTokenClass        = errors.New("Invalid token type")
	ErrRefreshTokenReused     = errors.New("Invalid or reused refresh token")
)

// Operation names used for metrics.
const (
	opRegister = "register"
	opLogin    = "login"
	opRefresh  = "refresh"
	opLogout   = "logout"
)

// TokenDescriptor is one issued token and its lifetime in seconds.
type TokenDescriptor struct {
	Token     string
	Class     security.TokenClass
	ExpiresIn int64
}

// TokenPair is the result of Login and Refresh.
type TokenPair struct {
	Access  TokenDescriptor
	Refresh TokenDescriptor
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	SetRefreshToken(ctx context.Context, email, tokenHash string) error
	ConsumeRefreshToken(ctx context.Context, email, tokenHash, replacementHash string) (bool, error)
}

// AuditLogger records session lifecycle events. Best-effort.
type AuditLogger interface {
	LogEvent(ctx context.Context, email, action, resource, metadata string)
}

// OperationRecorder counts operations by outcome.
type OperationRecorder interface {
	AuthOperation(operation, outcome string)
}

// TTLs are the token lifetimes used by the auth service.
type TTLs struct {
	Access  time.Duration
	Refresh time.Duration
	// Long is used for both tokens when a login asks for long expiry.
	Long time.Duration
}

// DefaultTTLs returns 600s access, 86400s refresh and one year long expiry.
func DefaultTTLs() TTLs {
	return TTLs{Access: 600 * time.Second, Refresh: 86400 * time.Second, Long: 31536000 * time.Second}
}

// AuthService implements register, login, refresh, and logout over a single refresh token per account.
type AuthService struct {
	userRepo UserRepo
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	ttls     TTLs
	audit    AuditLogger
	recorder OperationRecorder
	now      func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
// auditLogger and recorder may be nil.
func NewAuthService(
	userRepo UserRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	ttls TTLs,
	auditLogger AuditLogger,
	recorder OperationRecorder,
) *AuthService {
	if recorder == nil {
		recorder = metrics.Recorder{}
	}
	return &AuthService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		ttls:     ttls,
		audit:    auditLogger,
		recorder: recorder,
		now:      time.Now,
	}
}

// Register creates an account in the logged out state.
func (s *AuthService) Register(ctx context.Context, email, password string) error {
	email = userdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		s.record(opRegister, metrics.OutcomeRejected)
		return ErrMissingCredentials
	}
	if err := validateEmail(email); err != nil {
		s.record(opRegister, metrics.OutcomeRejected)
		return err
	}
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		s.record(opRegister, metrics.OutcomeError)
		return err
	}
	if existing != nil {
		s.record(opRegister, metrics.OutcomeRejected)
		return ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooLong) {
			s.record(opRegister, metrics.OutcomeRejected)
			return ErrPasswordTooLong
		}
		s.record(opRegister, metrics.OutcomeError)
		return err
	}
	now := s.now().UTC()
	user := &userdomain.User{
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.record(opRegister, metrics.OutcomeRejected)
			return ErrEmailAlreadyRegistered
		}
		s.record(opRegister, metrics.OutcomeError)
		return err
	}
	s.logEvent(ctx, email, auditdomain.ActionRegister, "")
	s.record(opRegister, metrics.OutcomeSuccess)
	return nil
}

// Login verifies the password and issues a new token pair, replacing any previous session.
// With longExpiry both tokens live for the long TTL.
func (s *AuthService) Login(ctx context.Context, email, password string, longExpiry bool) (*TokenPair, error) {
	email = userdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		s.record(opLogin, metrics.OutcomeRejected)
		return nil, ErrMissingCredentials
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		s.record(opLogin, metrics.OutcomeError)
		return nil, err
	}
	if user == nil {
		s.loginFailed(ctx, email, "unknown_account")
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if !errors.Is(err, security.ErrPasswordMismatch) {
			s.record(opLogin, metrics.OutcomeError)
			return nil, err
		}
		s.loginFailed(ctx, email, "password_mismatch")
		return nil, ErrInvalidCredentials
	}

	accessTTL, refreshTTL := s.ttls.Access, s.ttls.Refresh
	if longExpiry {
		accessTTL, refreshTTL = s.ttls.Long, s.ttls.Long
	}
	pair, err := s.issuePair(email, accessTTL, refreshTTL)
	if err != nil {
		s.record(opLogin, metrics.OutcomeError)
		return nil, err
	}
	if err := s.userRepo.SetRefreshToken(ctx, email, security.HashRefreshToken(pair.Refresh.Token)); err != nil {
		s.record(opLogin, metrics.OutcomeError)
		return nil, err
	}
	s.logEvent(ctx, email, auditdomain.ActionLoginSuccess, "long_expiry="+strconv.FormatBool(longExpiry))
	s.record(opLogin, metrics.OutcomeSuccess)
	return pair, nil
}

// Refresh redeems refreshToken once and issues a new pair with the default short TTLs.
// The stored token is swapped for the new one with a single compare-and-swap, so of several
// concurrent refreshes with the same token at most one succeeds, and a logout is never undone
// by a rotation that was already in flight.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		s.record(opRefresh, metrics.OutcomeRejected)
		return nil, ErrMissingRefreshToken
	}
	vt, err := s.verifyRefresh(refreshToken)
	if err != nil {
		s.refreshRejected(ctx, "", err)
		return nil, err
	}
	pair, err := s.issuePair(vt.Subject, s.ttls.Access, s.ttls.Refresh)
	if err != nil {
		s.record(opRefresh, metrics.OutcomeError)
		return nil, err
	}
	consumed, err := s.userRepo.ConsumeRefreshToken(ctx, vt.Subject,
		security.HashRefreshToken(refreshToken), security.HashRefreshToken(pair.Refresh.Token))
	if err != nil {
		s.record(opRefresh, metrics.OutcomeError)
		return nil, err
	}
	if !consumed {
		s.refreshRejected(ctx, vt.Subject, ErrRefreshTokenReused)
		return nil, ErrRefreshTokenReused
	}
	s.logEvent(ctx, vt.Subject, auditdomain.ActionRefresh, "")
	s.record(opRefresh, metrics.OutcomeSuccess)
	return pair, nil
}

// Logout clears the stored refresh token of the token's subject. Only the subject claim is
// trusted: a verified but already rotated token still logs the account out.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		s.record(opLogout, metrics.OutcomeRejected)
		return ErrMissingRefreshToken
	}
	vt, err := s.verifyRefresh(refreshToken)
	if err != nil {
		s.record(opLogout, metrics.OutcomeRejected)
		return err
	}
	if err := s.userRepo.SetRefreshToken(ctx, vt.Subject, ""); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.record(opLogout, metrics.OutcomeRejected)
			return ErrInvalidRefreshToken
		}
		s.record(opLogout, metrics.OutcomeError)
		return err
	}
	s.logEvent(ctx, vt.Subject, auditdomain.ActionLogout, "")
	s.record(opLogout, metrics.OutcomeSuccess)
	return nil
}

// verifyRefresh maps codec failures onto the service's sentinel errors.
func (s *AuthService) verifyRefresh(token string) (*security.VerifiedToken, error) {
	vt, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrRefreshTokenExpired
		}
		return nil, ErrInvalidRefreshToken
	}
	if vt.Class != security.TokenClassRefresh {
		return nil, ErrWrongTokenClass
	}
	return vt, nil
}

func (s *AuthService) issuePair(email string, accessTTL, refreshTTL time.Duration) (*TokenPair, error) {
	access, _, err := s.tokens.Issue(email, security.TokenClassAccess, accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, _, err := s.tokens.Issue(email, security.TokenClassRefresh, refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &TokenPair{
		Access:  TokenDescriptor{Token: access, Class: security.TokenClassAccess, ExpiresIn: int64(accessTTL / time.Second)},
		Refresh: TokenDescriptor{Token: refresh, Class: security.TokenClassRefresh, ExpiresIn: int64(refreshTTL / time.Second)},
	}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email, reason string) {
	s.logEvent(ctx, email, auditdomain.ActionLoginFailure, "reason="+reason)
	s.record(opLogin, metrics.OutcomeRejected)
}

func (s *AuthService) refreshRejected(ctx context.Context, email string, cause error) {
	s.logEvent(ctx, email, auditdomain.ActionRefreshRejected, "reason="+cause.Error())
	s.record(opRefresh, metrics.OutcomeRejected)
}

func (s *AuthService) logEvent(ctx context.Context, email, action, metadata string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, email, action, auditdomain.ResourceSession, metadata)
}

func (s *AuthService) record(operation, outcome string) {
	s.recorder.AuthOperation(operation, outcome)
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}
