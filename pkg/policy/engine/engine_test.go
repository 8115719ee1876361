package engine

import (
	"testing"

	"arbiter-hq/arbiter/pkg/apl/ast"
)

// sliceProvider serves a fixed candidate list; status and action scoping are
// assumed to have been applied already, as the store snapshot does.
type sliceProvider []*ast.Policy

func (p sliceProvider) ActiveFor(actionID string) []*ast.Policy {
	var out []*ast.Policy
	for _, policy := range p {
		if policy.Status == ast.StatusActive && policy.ActionScope.Covers(actionID) {
			out = append(out, policy)
		}
	}
	return out
}

func permitPolicy(id, actionID string, cond *ast.ExprNode) *ast.Policy {
	return &ast.Policy{
		ID:          id,
		Effect:      ast.EffectPermit,
		Status:      ast.StatusActive,
		ActionScope: ast.ActionScope{Actions: []string{actionID}},
		Condition:   cond,
	}
}

func forbidPolicy(id, actionID string, cond *ast.ExprNode) *ast.Policy {
	p := permitPolicy(id, actionID, cond)
	p.Effect = ast.EffectForbid
	return p
}

const createApp = "ApplicationToolTarget___create_application"

func request(amount float64) Request {
	return Request{
		ActionID: createApp,
		ContextInput: map[string]ast.Value{
			"coverage_amount": ast.NumberValue(amount),
		},
	}
}

func TestEngine_Evaluate_PermitMatches(t *testing.T) {
	provider := sliceProvider{
		permitPolicy("cap", createApp,
			ast.Compare(ast.OperatorLessThan, ast.Field("coverage_amount"), ast.Literal(ast.NumberValue(1000000)))),
	}

	decision := New(nil).Evaluate(request(500000), provider, ModeEnforce)
	if !decision.Allowed {
		t.Error("matching permit should allow")
	}
	if decision.ShouldBlock() {
		t.Error("allowed decision should not block")
	}
	if len(decision.MatchedPermitIDs) != 1 || decision.MatchedPermitIDs[0] != "cap" {
		t.Errorf("MatchedPermitIDs = %v, want [cap]", decision.MatchedPermitIDs)
	}
	if decision.CandidateCount != 1 {
		t.Errorf("CandidateCount = %d, want 1", decision.CandidateCount)
	}
}

func TestEngine_Evaluate_DefaultDeny(t *testing.T) {
	// No candidates at all: deny.
	decision := New(nil).Evaluate(request(100), sliceProvider{}, ModeEnforce)
	if decision.Allowed {
		t.Error("empty candidate set should deny")
	}
	if !decision.ShouldBlock() {
		t.Error("enforce-mode denial should block")
	}

	// A permit whose condition does not hold: still deny.
	provider := sliceProvider{
		permitPolicy("cap", createApp,
			ast.Compare(ast.OperatorLessThan, ast.Field("coverage_amount"), ast.Literal(ast.NumberValue(1000)))),
	}
	decision = New(nil).Evaluate(request(5000), provider, ModeEnforce)
	if decision.Allowed {
		t.Error("non-matching permit should deny")
	}
	if len(decision.MatchedPermitIDs) != 0 {
		t.Errorf("MatchedPermitIDs = %v, want none", decision.MatchedPermitIDs)
	}
}

func TestEngine_Evaluate_DenyOverride(t *testing.T) {
	provider := sliceProvider{
		permitPolicy("broad-permit", createApp, nil),
		forbidPolicy("high-amount", createApp,
			ast.Compare(ast.OperatorGreaterThan, ast.Field("coverage_amount"), ast.Literal(ast.NumberValue(1000)))),
	}

	decision := New(nil).Evaluate(request(5000), provider, ModeEnforce)
	if decision.Allowed {
		t.Error("matching forbid should override the permit")
	}
	// Both matches are recorded for audit even though the forbid settled it.
	if len(decision.MatchedPermitIDs) != 1 {
		t.Errorf("MatchedPermitIDs = %v, want the overridden permit recorded", decision.MatchedPermitIDs)
	}
	if len(decision.MatchedForbidIDs) != 1 || decision.MatchedForbidIDs[0] != "high-amount" {
		t.Errorf("MatchedForbidIDs = %v, want [high-amount]", decision.MatchedForbidIDs)
	}
}

func TestEngine_Evaluate_LogOnlyNeverBlocks(t *testing.T) {
	provider := sliceProvider{
		forbidPolicy("deny-all", createApp, nil),
	}

	decision := New(nil).Evaluate(request(100), provider, ModeLogOnly)
	if decision.Allowed {
		t.Error("log_only computes the same raw outcome")
	}
	if !decision.Denied() {
		t.Error("Denied() should report the raw outcome")
	}
	if decision.ShouldBlock() {
		t.Error("log_only denial must not block")
	}
	if decision.ModeApplied != ModeLogOnly {
		t.Errorf("ModeApplied = %q, want %q", decision.ModeApplied, ModeLogOnly)
	}
}

func TestEngine_Evaluate_InactiveExcluded(t *testing.T) {
	inactive := permitPolicy("dormant", createApp, nil)
	inactive.Status = ast.StatusInactive

	decision := New(nil).Evaluate(request(100), sliceProvider{inactive}, ModeEnforce)
	if decision.Allowed {
		t.Error("inactive policies must never match")
	}
	if decision.CandidateCount != 0 {
		t.Errorf("CandidateCount = %d, want 0", decision.CandidateCount)
	}
}

func TestEngine_Evaluate_ResourceScopeFilters(t *testing.T) {
	scoped := permitPolicy("prod-only", createApp, nil)
	scoped.ResourceScope = ast.ResourceScope{Resource: "arn:gateway:prod/claims"}

	req := request(100)
	req.Resource = "arn:gateway:staging/claims"
	decision := New(nil).Evaluate(req, sliceProvider{scoped}, ModeEnforce)
	if decision.Allowed {
		t.Error("resource-scoped policy should not apply to another resource")
	}
	if decision.CandidateCount != 0 {
		t.Errorf("CandidateCount = %d, want 0 after resource filtering", decision.CandidateCount)
	}

	req.Resource = "arn:gateway:prod/claims"
	decision = New(nil).Evaluate(req, sliceProvider{scoped}, ModeEnforce)
	if !decision.Allowed {
		t.Error("resource-scoped policy should apply to its exact resource")
	}
}

func TestEngine_Evaluate_PolicyErrorFailsClosedPerPolicy(t *testing.T) {
	provider := sliceProvider{
		// Unguarded getTag on a missing tag: evaluation error, fail closed.
		permitPolicy("broken", createApp,
			ast.Compare(ast.OperatorEqual, ast.GetTag("role"), ast.Literal(ast.StringValue("admin")))),
		// A healthy permit alongside it.
		permitPolicy("healthy", createApp, nil),
	}

	decision := New(nil).Evaluate(request(100), provider, ModeEnforce)
	if !decision.Allowed {
		t.Error("a broken policy must not poison the rest of the evaluation")
	}
	if len(decision.PolicyErrors) != 1 {
		t.Fatalf("len(PolicyErrors) = %d, want 1", len(decision.PolicyErrors))
	}
	pe := decision.PolicyErrors[0]
	if pe.PolicyID != "broken" {
		t.Errorf("PolicyErrors[0].PolicyID = %q, want %q", pe.PolicyID, "broken")
	}
	if pe.Err.Kind != ErrorKindMissingTag {
		t.Errorf("PolicyErrors[0].Err.Kind = %q, want %q", pe.Err.Kind, ErrorKindMissingTag)
	}
	if decision.CandidateCount != 2 {
		t.Errorf("CandidateCount = %d, want 2", decision.CandidateCount)
	}
}

func TestEngine_Evaluate_BrokenPermitAloneDenies(t *testing.T) {
	provider := sliceProvider{
		permitPolicy("broken", createApp,
			ast.Compare(ast.OperatorGreaterThan, ast.Field("absent_field"), ast.Literal(ast.NumberValue(0)))),
	}

	decision := New(nil).Evaluate(request(100), provider, ModeEnforce)
	if decision.Allowed {
		t.Error("a permit that fails to evaluate must not grant access")
	}
	if len(decision.PolicyErrors) != 1 {
		t.Errorf("len(PolicyErrors) = %d, want 1", len(decision.PolicyErrors))
	}
}

func TestEngine_Evaluate_AllCandidatesEvaluated(t *testing.T) {
	// A forbid that matches immediately does not stop the remaining
	// candidates from being evaluated for the audit record.
	provider := sliceProvider{
		forbidPolicy("f1", createApp, nil),
		permitPolicy("p1", createApp, nil),
		forbidPolicy("f2", createApp, nil),
	}

	decision := New(nil).Evaluate(request(100), provider, ModeEnforce)
	if decision.Allowed {
		t.Error("forbids should deny")
	}
	if len(decision.MatchedForbidIDs) != 2 {
		t.Errorf("MatchedForbidIDs = %v, want both forbids", decision.MatchedForbidIDs)
	}
	if len(decision.MatchedPermitIDs) != 1 {
		t.Errorf("MatchedPermitIDs = %v, want the permit recorded", decision.MatchedPermitIDs)
	}
	if decision.CandidateCount != 3 {
		t.Errorf("CandidateCount = %d, want 3", decision.CandidateCount)
	}
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(
		map[string]string{"role": "adjuster"},
		createApp,
		"arn:gateway:prod/claims",
		map[string]interface{}{
			"coverage_amount": 250000.0,
			"state":           "CA",
			"expedited":       true,
		},
	)
	if err != nil {
		t.Fatalf("NewRequest() failed: %v", err)
	}
	if !req.ContextInput["coverage_amount"].Equal(ast.NumberValue(250000)) {
		t.Errorf("coverage_amount = %v", req.ContextInput["coverage_amount"])
	}
	if !req.ContextInput["state"].Equal(ast.StringValue("CA")) {
		t.Errorf("state = %v", req.ContextInput["state"])
	}

	_, err = NewRequest(nil, createApp, "", map[string]interface{}{
		"bad": map[string]string{"nested": "map"},
	})
	if err == nil {
		t.Error("NewRequest() should reject unconvertible input values")
	}
}

func TestMode_Valid(t *testing.T) {
	if !ModeEnforce.Valid() || !ModeLogOnly.Valid() {
		t.Error("built-in modes should be valid")
	}
	if Mode("dry_run").Valid() {
		t.Error("unknown mode should be invalid")
	}
}
