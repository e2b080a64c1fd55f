package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const profilePolicyQuery = "data.movieauth.profile"

// DefaultProfilePolicy grants private view and edit to the profile owner only.
const DefaultProfilePolicy = `package movieauth.profile

default view_private := false
default edit := false

owner if {
	input.authenticated
	input.subject != ""
	input.subject == input.owner
}

view_private if owner

edit if owner
`

// OPAEvaluator evaluates the profile access policy using OPA Rego.
// The policy is compiled once; evaluation is safe for concurrent use.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator returns an evaluator for DefaultProfilePolicy.
func NewOPAEvaluator(ctx context.Context) (*OPAEvaluator, error) {
	return NewOPAEvaluatorWithPolicy(ctx, DefaultProfilePolicy)
}

// NewOPAEvaluatorWithPolicy compiles module, which must define package movieauth.profile with
// boolean rules view_private and edit.
func NewOPAEvaluatorWithPolicy(ctx context.Context, module string) (*OPAEvaluator, error) {
	compiler, err := ast.CompileModules(map[string]string{"profile.rego": module})
	if err != nil {
		return nil, fmt.Errorf("compile profile policy: %w", err)
	}
	pq, err := rego.New(
		rego.Query(profilePolicyQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare profile policy: %w", err)
	}
	return &OPAEvaluator{query: pq}, nil
}

// HealthCheck evaluates the compiled policy against an anonymous request and expects a denial.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	got, err := e.EvaluateProfileAccess(ctx, ProfileAccessInput{Owner: "healthcheck@localhost"})
	if err != nil {
		return err
	}
	if got.ViewPrivate || got.Edit {
		return errors.New("profile policy grants access to anonymous requests")
	}
	return nil
}

// EvaluateProfileAccess evaluates the policy for in.
func (e *OPAEvaluator) EvaluateProfileAccess(ctx context.Context, in ProfileAccessInput) (ProfileAccess, error) {
	input := map[string]interface{}{
		"authenticated": in.Authenticated,
		"subject":       in.Subject,
		"owner":         in.Owner,
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return ProfileAccess{}, fmt.Errorf("eval profile policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return ProfileAccess{}, errors.New("profile policy query returned no result")
	}
	doc, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return ProfileAccess{}, fmt.Errorf("profile policy returned %T", rs[0].Expressions[0].Value)
	}
	out := ProfileAccess{}
	if v, ok := doc["view_private"].(bool); ok {
		out.ViewPrivate = v
	}
	if v, ok := doc["edit"].(bool); ok {
		out.Edit = v
	}
	return out, nil
}
