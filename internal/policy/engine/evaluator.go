package engine

import "context"

// ProfileAccessInput describes one request for a profile.
type ProfileAccessInput struct {
	// Authenticated is true when a valid access token was presented.
	Authenticated bool
	// Subject is the token subject; empty when anonymous.
	Subject string
	// Owner is the email of the profile being accessed.
	Owner string
}

// ProfileAccess is the policy decision for a profile request.
type ProfileAccess struct {
	// ViewPrivate unlocks dob and address.
	ViewPrivate bool
	// Edit allows replacing the profile.
	Edit bool
}

// Evaluator evaluates profile access policies using OPA or other engines.
type Evaluator interface {
	// EvaluateProfileAccess returns the decision for in. On error the decision denies everything.
	EvaluateProfileAccess(ctx context.Context, in ProfileAccessInput) (ProfileAccess, error)
}
