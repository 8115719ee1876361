package engine

import (
	"log/slog"
	"time"

	"arbiter-hq/arbiter/pkg/apl/ast"
)

// PolicyProvider supplies candidate policies for an action. Implementations
// return ACTIVE policies whose action scope covers the given action id,
// specific scopes and "any"-scoped fallbacks alike. The store's immutable
// snapshot satisfies this.
type PolicyProvider interface {
	ActiveFor(actionID string) []*ast.Policy
}

// Engine is the policy evaluation engine: a single-pass pure decision
// function over the request, a policy snapshot, and the engine mode.
type Engine struct {
	logger *slog.Logger
}

// New creates an evaluation engine.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger: logger.With("component", "policy.engine"),
	}
}

// Evaluate computes the decision for one request.
//
// Every candidate's condition is evaluated, even after a forbid already
// settled the outcome, so the decision record is complete for audit. Only
// the decision itself is short-circuited by deny-override. A condition that
// fails to evaluate excludes just that policy (fail-closed per policy) and
// is recorded on the decision.
func (e *Engine) Evaluate(req Request, provider PolicyProvider, mode Mode) Decision {
	start := time.Now()

	decision := Decision{ModeApplied: mode}

	for _, policy := range provider.ActiveFor(req.ActionID) {
		if !policy.ResourceScope.Covers(req.Resource) {
			continue
		}
		decision.CandidateCount++

		matched, evalErr := EvaluateCondition(policy.Condition, req.PrincipalTags, req.ContextInput)
		if evalErr != nil {
			// Fail closed for this policy only; the decision completes.
			decision.PolicyErrors = append(decision.PolicyErrors, PolicyError{
				PolicyID: policy.ID,
				Err:      evalErr,
			})
			e.logger.Warn("condition evaluation error, policy excluded",
				"policy_id", policy.ID,
				"action_id", req.ActionID,
				"error", evalErr,
			)
			continue
		}
		if !matched {
			continue
		}

		switch policy.Effect {
		case ast.EffectForbid:
			decision.MatchedForbidIDs = append(decision.MatchedForbidIDs, policy.ID)
		case ast.EffectPermit:
			decision.MatchedPermitIDs = append(decision.MatchedPermitIDs, policy.ID)
		}
	}

	// Deny-override, then default-deny.
	decision.Allowed = len(decision.MatchedForbidIDs) == 0 && len(decision.MatchedPermitIDs) > 0
	decision.EvaluationTime = time.Since(start)

	e.logger.Debug("evaluated request",
		"action_id", req.ActionID,
		"resource", req.Resource,
		"allowed", decision.Allowed,
		"forbid_matches", len(decision.MatchedForbidIDs),
		"permit_matches", len(decision.MatchedPermitIDs),
		"candidates", decision.CandidateCount,
		"mode", mode,
		"duration", decision.EvaluationTime,
	)

	return decision
}
