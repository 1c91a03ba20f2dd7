// Package policy decides whether a query is admitted to the answer pipeline.
package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Engine is the OPA policy engine.
type Engine struct {
	mu    sync.RWMutex
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	query, err := prepare(ctx, policyContent)
	if err != nil {
		return nil, err
	}
	return &Engine{query: query}, nil
}

func prepare(ctx context.Context, policyContent string) (rego.PreparedEvalQuery, error) {
	r := rego.New(
		rego.Query("data.query_policy"),
		rego.Module("query_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return query, nil
}

// Reload swaps in a new policy. The previous policy stays active on error.
func (e *Engine) Reload(ctx context.Context, policyContent string) error {
	query, err := prepare(ctx, policyContent)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.query = query
	e.mu.Unlock()
	return nil
}

// Evaluate checks a query.
// Input carries user_id, session_id and query.
// Returns: decision (allow, block), reason (optional), error
func (e *Engine) Evaluate(ctx context.Context, input map[string]interface{}) (string, string, error) {
	e.mu.RLock()
	query := e.query
	e.mu.RUnlock()

	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, "default", nil
	}

	doc, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return DecisionAllow, "unexpected return type", nil
	}
	decision, _ := doc["decision"].(string)
	if decision == "" {
		decision = DecisionAllow
	}
	reason, _ := doc["reason"].(string)
	return decision, reason, nil
}

// DefaultPolicy is the built-in admission policy.
const DefaultPolicy = `
package query_policy

default decision = "allow"

default reason = ""

decision = "block" {
	trim_space(input.query) == ""
}

decision = "block" {
	count(input.query) > 2000
}

reason = "query is empty" {
	trim_space(input.query) == ""
}

reason = "query exceeds 2000 characters" {
	count(input.query) > 2000
}
`
