package security

// Test secret for unit tests only. Do not use in production.
const (
	testSecret = "test-secret-do-not-use"
	testIssuer = "test-issuer"
)

// NewTestTokenProvider returns a TokenProvider with a fixed test secret and issuer.
// For unit tests only.
func NewTestTokenProvider() *TokenProvider {
	return NewTokenProvider([]byte(testSecret), testIssuer)
}
