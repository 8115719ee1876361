package nlc

import (
	"context"
	"errors"
	"strings"
	"testing"

	"arbiter-hq/arbiter/pkg/apl"
	"arbiter-hq/arbiter/pkg/apl/ast"
)

func TestCompiler_Compile_CoverageCap(t *testing.T) {
	snap := claimsSnapshot(t)
	policies, warnings, err := NewCompiler(nil, nil).Compile(context.Background(),
		"Permit application tool for coverage under 1000000.", snap)
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v, want none", warnings)
	}
	if len(policies) != 1 {
		t.Fatalf("len(policies) = %d, want 1", len(policies))
	}

	want := "permit(principal, action == ApplicationToolTarget___create_application, resource) when { context.input.coverage_amount < 1000000 };"
	if policies[0].Text != want {
		t.Errorf("Text = %q, want %q", policies[0].Text, want)
	}
	if policies[0].Policy.Effect != ast.EffectPermit {
		t.Errorf("Effect = %q, want permit", policies[0].Policy.Effect)
	}
}

func TestCompiler_Compile_UnlessTagGuard(t *testing.T) {
	snap := claimsSnapshot(t)
	policies, warnings, err := NewCompiler(nil, nil).Compile(context.Background(),
		"Forbid approval tool approve claim unless role tag is senior-adjuster.", snap)
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v, want none", warnings)
	}
	if len(policies) != 1 {
		t.Fatalf("len(policies) = %d, want 1", len(policies))
	}

	want := `forbid(principal, action == ApprovalToolTarget___approve_claim, resource) when { !(principal.hasTag("role") && principal.getTag("role") == "senior-adjuster") };`
	if policies[0].Text != want {
		t.Errorf("Text = %q, want %q", policies[0].Text, want)
	}
}

func TestCompiler_Compile_MultipleStatements(t *testing.T) {
	snap := claimsSnapshot(t)
	text := "Permit application tool for coverage under 500000. Block approval tool reject claim."

	policies, warnings, err := NewCompiler(nil, nil).Compile(context.Background(), text, snap)
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v, want none", warnings)
	}
	if len(policies) != 2 {
		t.Fatalf("len(policies) = %d, want 2", len(policies))
	}
	if policies[0].Policy.Effect != ast.EffectPermit || policies[1].Policy.Effect != ast.EffectForbid {
		t.Errorf("effects = (%q, %q)", policies[0].Policy.Effect, policies[1].Policy.Effect)
	}
	if policies[1].Policy.ActionScope.Actions[0] != "ApprovalToolTarget___reject_claim" {
		t.Errorf("second policy scope = %v", policies[1].Policy.ActionScope.Actions)
	}
}

func TestCompiler_Compile_UnresolvableStatementBecomesWarning(t *testing.T) {
	snap := claimsSnapshot(t)
	policies, warnings, err := NewCompiler(nil, nil).Compile(context.Background(),
		"Permit the teleporter. Block intake form.", snap)
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("len(policies) = %d, want 1", len(policies))
	}
	if len(warnings) != 1 {
		t.Fatalf("len(warnings) = %d, want 1", len(warnings))
	}
	if warnings[0].StatementIndex != 0 {
		t.Errorf("warning index = %d, want 0", warnings[0].StatementIndex)
	}
	if !strings.Contains(warnings[0].Reason, "no declared tool name") {
		t.Errorf("Reason = %q", warnings[0].Reason)
	}
	// The resolvable statement was not aborted by the warning.
	if policies[0].Policy.Effect != ast.EffectForbid {
		t.Errorf("Effect = %q, want forbid", policies[0].Policy.Effect)
	}
}

func TestCompiler_Compile_SegmentationWarningsPropagate(t *testing.T) {
	snap := claimsSnapshot(t)
	policies, warnings, err := NewCompiler(nil, nil).Compile(context.Background(),
		"allow intake form, with extra conditions, block intake form", snap)
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("len(policies) = %d, want 2", len(policies))
	}
	if len(warnings) != 1 {
		t.Fatalf("len(warnings) = %d, want 1", len(warnings))
	}
	if warnings[0].StatementIndex != 1 {
		t.Errorf("warning index = %d, want 1", warnings[0].StatementIndex)
	}
}

// Every generated policy is already validated: feeding its text back through
// the normal policy path cannot fail and yields a structurally equal AST.
func TestCompiler_Compile_GeneratedPoliciesRoundTrip(t *testing.T) {
	snap := claimsSnapshot(t)
	text := "Permit application tool for coverage under 1000000. " +
		"Forbid approval tool approve claim unless role tag is senior-adjuster. " +
		"Block application tool if coverage is absent. " +
		"Allow application tool when state in [CA, NY]."

	policies, warnings, err := NewCompiler(nil, nil).Compile(context.Background(), text, snap)
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v, want none", warnings)
	}
	if len(policies) != 4 {
		t.Fatalf("len(policies) = %d, want 4", len(policies))
	}

	for i, gen := range policies {
		reparsed, err := apl.ParseAndValidate(gen.Text, "", snap)
		if err != nil {
			t.Fatalf("policy %d: generated text %q failed to re-parse: %v", i, gen.Text, err)
		}
		if !gen.Policy.Equal(reparsed) {
			t.Errorf("policy %d: round trip changed the policy", i)
		}
	}
}

func TestCompiler_Compile_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewCompiler(nil, nil).Compile(ctx, "permit application tool", claimsSnapshot(t))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestWarning_String(t *testing.T) {
	w := Warning{StatementIndex: 2, Statement: "frobnicate", Reason: "no effect verb"}
	got := w.String()
	if !strings.Contains(got, "2") || !strings.Contains(got, "frobnicate") || !strings.Contains(got, "no effect verb") {
		t.Errorf("String() = %q", got)
	}
}
