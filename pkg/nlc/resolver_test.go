package nlc

import (
	"context"
	"errors"
	"strings"
	"testing"

	"arbiter-hq/arbiter/pkg/apl/ast"
	"arbiter-hq/arbiter/pkg/schema"
)

func claimsSnapshot(t *testing.T) *schema.Snapshot {
	t.Helper()
	registry := schema.NewRegistry()
	err := registry.RegisterAll([]schema.ActionSpec{
		{
			Target:  "ApplicationToolTarget",
			Method:  "create_application",
			Aliases: []string{"intake form"},
			Params: []schema.Param{
				{Name: "coverage_amount", Type: schema.TypeNumber},
				{Name: "state", Type: schema.TypeString},
				{Name: "expedited", Type: schema.TypeBoolean},
			},
		},
		{
			Target: "ApprovalToolTarget",
			Method: "approve_claim",
			Params: []schema.Param{
				{Name: "claim_amount", Type: schema.TypeNumber},
				{Name: "state", Type: schema.TypeString},
			},
		},
		{
			Target: "ApprovalToolTarget",
			Method: "reject_claim",
			Params: []schema.Param{
				{Name: "reason", Type: schema.TypeString},
			},
		},
	})
	if err != nil {
		t.Fatalf("RegisterAll() failed: %v", err)
	}
	return registry.Snapshot()
}

func resolve(t *testing.T, stmt string) *Intent {
	t.Helper()
	intent, err := NewRuleBasedResolver().Resolve(context.Background(), stmt, claimsSnapshot(t))
	if err != nil {
		t.Fatalf("Resolve(%q) failed: %v", stmt, err)
	}
	return intent
}

func resolveErr(t *testing.T, stmt string) *ResolveError {
	t.Helper()
	_, err := NewRuleBasedResolver().Resolve(context.Background(), stmt, claimsSnapshot(t))
	if err == nil {
		t.Fatalf("Resolve(%q) should fail", stmt)
	}
	var re *ResolveError
	if !errors.As(err, &re) {
		t.Fatalf("error type = %T, want *ResolveError", err)
	}
	return re
}

func TestRuleBasedResolver_Comparatives(t *testing.T) {
	tests := []struct {
		stmt string
		want *ast.ExprNode
	}{
		{
			"permit application tool for coverage under 1000000",
			ast.Compare(ast.OperatorLessThan, ast.Field("coverage_amount"), ast.Literal(ast.NumberValue(1000000))),
		},
		{
			"permit application tool for coverage at least 1000",
			ast.Compare(ast.OperatorGreaterEqual, ast.Field("coverage_amount"), ast.Literal(ast.NumberValue(1000))),
		},
		{
			"permit application tool with coverage no more than 5000",
			ast.Compare(ast.OperatorLessEqual, ast.Field("coverage_amount"), ast.Literal(ast.NumberValue(5000))),
		},
		{
			"forbid application tool for coverage exceeding 250000",
			ast.Compare(ast.OperatorGreaterThan, ast.Field("coverage_amount"), ast.Literal(ast.NumberValue(250000))),
		},
		{
			"permit application tool for coverage up to 1,000,000",
			ast.Compare(ast.OperatorLessEqual, ast.Field("coverage_amount"), ast.Literal(ast.NumberValue(1000000))),
		},
		{
			"permit application tool when state is CA",
			ast.Compare(ast.OperatorEqual, ast.Field("state"), ast.Literal(ast.StringValue("CA"))),
		},
		{
			"forbid application tool if expedited is true",
			ast.Compare(ast.OperatorEqual, ast.Field("expedited"), ast.Literal(ast.BoolValue(true))),
		},
	}

	for _, tt := range tests {
		t.Run(tt.stmt, func(t *testing.T) {
			intent := resolve(t, tt.stmt)
			if !intent.Condition.Equal(tt.want) {
				t.Errorf("Condition = %s, want %s", intent.Condition, tt.want)
			}
		})
	}
}

func TestRuleBasedResolver_SetMembership(t *testing.T) {
	intent := resolve(t, "allow application tool when state in [CA, NY]")
	want := ast.In(ast.Field("state"), []ast.Value{ast.StringValue("CA"), ast.StringValue("NY")})
	if !intent.Condition.Equal(want) {
		t.Errorf("Condition = %s, want %s", intent.Condition, want)
	}
}

func TestRuleBasedResolver_Absence(t *testing.T) {
	intent := resolve(t, "block application tool if coverage is absent")
	want := ast.Not(ast.Has("coverage_amount"))
	if !intent.Condition.Equal(want) {
		t.Errorf("Condition = %s, want %s", intent.Condition, want)
	}
	if intent.Effect != ast.EffectForbid {
		t.Errorf("Effect = %q, want forbid", intent.Effect)
	}
}

func TestRuleBasedResolver_TagPhrase(t *testing.T) {
	intent := resolve(t, `permit application tool when role tag is senior-adjuster`)
	want := ast.And(
		ast.HasTag("role"),
		ast.Compare(ast.OperatorEqual, ast.GetTag("role"), ast.Literal(ast.StringValue("senior-adjuster"))),
	)
	if !intent.Condition.Equal(want) {
		t.Errorf("Condition = %s, want %s", intent.Condition, want)
	}
}

func TestRuleBasedResolver_Unless(t *testing.T) {
	intent := resolve(t, "forbid approval tool approve claim unless role tag is senior-adjuster")
	want := ast.Not(ast.And(
		ast.HasTag("role"),
		ast.Compare(ast.OperatorEqual, ast.GetTag("role"), ast.Literal(ast.StringValue("senior-adjuster"))),
	))
	if !intent.Condition.Equal(want) {
		t.Errorf("Condition = %s, want %s", intent.Condition, want)
	}
	if intent.Effect != ast.EffectForbid {
		t.Errorf("Effect = %q, want forbid", intent.Effect)
	}
}

func TestRuleBasedResolver_NegatedTagPhrase(t *testing.T) {
	intent := resolve(t, "forbid application tool when region tag is not emea")
	want := ast.Not(ast.And(
		ast.HasTag("region"),
		ast.Compare(ast.OperatorEqual, ast.GetTag("region"), ast.Literal(ast.StringValue("emea"))),
	))
	if !intent.Condition.Equal(want) {
		t.Errorf("Condition = %s, want %s", intent.Condition, want)
	}
}

func TestRuleBasedResolver_ActionResolution(t *testing.T) {
	// Humanized target name, minus the Target suffix.
	intent := resolve(t, "permit application tool")
	if len(intent.ActionIDs) != 1 || intent.ActionIDs[0] != "ApplicationToolTarget___create_application" {
		t.Errorf("ActionIDs = %v", intent.ActionIDs)
	}
	if intent.Condition != nil {
		t.Errorf("Condition = %s, want nil", intent.Condition)
	}

	// Declared alias.
	intent = resolve(t, "block intake form")
	if len(intent.ActionIDs) != 1 || intent.ActionIDs[0] != "ApplicationToolTarget___create_application" {
		t.Errorf("ActionIDs = %v", intent.ActionIDs)
	}

	// Multi-method target requires a method mention.
	intent = resolve(t, "forbid approval tool reject claim")
	if len(intent.ActionIDs) != 1 || intent.ActionIDs[0] != "ApprovalToolTarget___reject_claim" {
		t.Errorf("ActionIDs = %v", intent.ActionIDs)
	}
}

func TestRuleBasedResolver_Unresolvable(t *testing.T) {
	tests := []struct {
		name     string
		stmt     string
		contains string
	}{
		{"no effect verb", "the application tool", "no effect verb"},
		{"unknown tool", "permit the teleporter", "no declared tool name"},
		{"method not named", "permit approval tool", "methods"},
		{"ordering needs a number", "permit application tool when state under pressure", "needs a numeric value"},
		{"unless without condition", "permit application tool unless something odd", "without a recognizable condition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := resolveErr(t, tt.stmt)
			if !strings.Contains(re.Reason, tt.contains) {
				t.Errorf("Reason = %q, does not mention %q", re.Reason, tt.contains)
			}
		})
	}
}

func TestRuleBasedResolver_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRuleBasedResolver().Resolve(ctx, "permit application tool", claimsSnapshot(t))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestHumanize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ApplicationToolTarget", "application tool target"},
		{"create_application", "create application"},
		{"ApprovalToolTarget", "approval tool target"},
		{"simple", "simple"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := humanize(tt.in); got != tt.want {
			t.Errorf("humanize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIndexPhrase_WordBoundaries(t *testing.T) {
	if indexPhrase("the state of things", "state") < 0 {
		t.Error("whole word should match")
	}
	if indexPhrase("interstate commerce", "state") >= 0 {
		t.Error("substring inside a word should not match")
	}
	if indexPhrase("coverage amount matters", "coverage amount") < 0 {
		t.Error("multi-word phrase should match")
	}
	if indexPhrase("state", "state") != 0 {
		t.Error("exact match at position 0")
	}
}
