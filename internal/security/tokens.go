package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, carries a bad signature,
	// a foreign issuer or an unknown class.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a token is well formed and signed but past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// TokenClass tags a token as access or refresh. The values are the wire "type" claim.
type TokenClass string

const (
	TokenClassAccess  TokenClass = "Bearer"
	TokenClassRefresh TokenClass = "Refresh"
)

func (c TokenClass) valid() bool {
	return c == TokenClassAccess || c == TokenClassRefresh
}

// Claims holds the JWT claims for both token classes. The subject is the account email.
type Claims struct {
	jwt.RegisteredClaims
	Type TokenClass `json:"type"`
}

// VerifiedToken is the decoded content of a token that passed Verify.
type VerifiedToken struct {
	ID        string
	Subject   string
	Class     TokenClass
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenProvider issues and verifies HS256 JWTs with a single process-wide secret.
// It holds no mutable state and is safe for concurrent use.
type TokenProvider struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with secret and stamps issuer on every token.
func NewTokenProvider(secret []byte, issuer string) *TokenProvider {
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenProvider{secret: key, issuer: issuer, now: time.Now}
}

// Issue signs a new token for subject with the given class and lifetime.
// Every call yields a distinct token (random jti). A ttl of zero produces an already expired token.
func (p *TokenProvider) Issue(subject string, class TokenClass, ttl time.Duration) (token string, expiresAt time.Time, err error) {
	if subject == "" || !class.valid() {
		return "", time.Time{}, ErrInvalidToken
	}
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.now().UTC()
	expiresAt = now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Type: class,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify checks signature, issuer and expiry and returns the decoded token.
// Expiry is reported as ErrTokenExpired; every other failure as ErrInvalidToken.
func (p *TokenProvider) Verify(tokenString string) (*VerifiedToken, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" || !claims.Type.valid() {
		return nil, ErrInvalidToken
	}
	out := &VerifiedToken{
		ID:      claims.ID,
		Subject: claims.Subject,
		Class:   claims.Type,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// VerifyClass is Verify plus a class check; a token of the other class is ErrInvalidToken.
func (p *TokenProvider) VerifyClass(tokenString string, class TokenClass) (*VerifiedToken, error) {
	vt, err := p.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if vt.Class != class {
		return nil, ErrInvalidToken
	}
	return vt, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
