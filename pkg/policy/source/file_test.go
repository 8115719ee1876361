package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"arbiter-hq/arbiter/pkg/apl/ast"
	"arbiter-hq/arbiter/pkg/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	registry := schema.NewRegistry()
	err := registry.RegisterAll([]schema.ActionSpec{
		{
			Target: "ApplicationToolTarget",
			Method: "create_application",
			Params: []schema.Param{{Name: "coverage_amount", Type: schema.TypeNumber}},
		},
		{Target: "ApprovalToolTarget", Method: "approve_claim"},
	})
	if err != nil {
		t.Fatalf("RegisterAll() failed: %v", err)
	}
	return registry
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) failed: %v", name, err)
	}
	return path
}

func TestFileSource_Load_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "permits.apl", `
@id("permit-create")
permit(principal, action == ApplicationToolTarget___create_application, resource);
`)
	writeFile(t, dir, "forbids.apl", `
forbid(principal, action == ApplicationToolTarget___create_application, resource) when { context.input.coverage_amount > 1000000 };
forbid(principal, action == ApprovalToolTarget___approve_claim, resource);
`)
	writeFile(t, dir, "notes.txt", "not a policy file")

	policies, err := NewFileSource(dir, testRegistry(t), nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(policies) != 3 {
		t.Fatalf("len(policies) = %d, want 3", len(policies))
	}
}

func TestFileSource_Load_SkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.apl",
		"permit(principal, action == ApprovalToolTarget___approve_claim, resource);")
	writeFile(t, dir, "syntax-error.apl",
		"permit(principal, action, resource")
	writeFile(t, dir, "unknown-action.apl",
		"permit(principal, action == Nope___missing, resource);")

	policies, err := NewFileSource(dir, testRegistry(t), nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	// Broken files are skipped with a warning, valid ones still load.
	if len(policies) != 1 {
		t.Fatalf("len(policies) = %d, want 1", len(policies))
	}
	if policies[0].ActionScope.Actions[0] != "ApprovalToolTarget___approve_claim" {
		t.Errorf("loaded the wrong policy: %v", policies[0].ActionScope.Actions)
	}
}

func TestFileSource_Load_SingleFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "one.apl",
		"permit(principal, action == ApprovalToolTarget___approve_claim, resource);")

	policies, err := NewFileSource(path, testRegistry(t), nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("len(policies) = %d, want 1", len(policies))
	}
	if policies[0].SourceFile != path {
		t.Errorf("SourceFile = %q, want %q", policies[0].SourceFile, path)
	}
}

func TestFileSource_Load_MissingPath(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	if _, err := NewFileSource(missing, testRegistry(t), nil).Load(context.Background()); err == nil {
		t.Error("Load() on a missing path should fail")
	}
}

func TestFileSource_Watch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "permits.apl",
		"permit(principal, action == ApprovalToolTarget___approve_claim, resource);")

	s := NewFileSource(dir, testRegistry(t), nil)
	s.debounceInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloads := make(chan []*ast.Policy, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func(policies []*ast.Policy) error {
			reloads <- policies
			return nil
		})
	}()

	// Give the watcher time to register before the first change.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, dir, "forbids.apl",
		"forbid(principal, action == ApplicationToolTarget___create_application, resource) when { context.input.coverage_amount > 1000000 };")

	select {
	case policies := <-reloads:
		if len(policies) != 2 {
			t.Errorf("reloaded %d policies, want 2", len(policies))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after a policy file change")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() returned %v after cancellation, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch() did not return after cancellation")
	}
}

func TestFileSource_Watch_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "permits.apl",
		"permit(principal, action == ApprovalToolTarget___approve_claim, resource);")

	s := NewFileSource(dir, testRegistry(t), nil)
	s.debounceInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloads := make(chan []*ast.Policy, 4)
	go s.Watch(ctx, func(policies []*ast.Policy) error {
		reloads <- policies
		return nil
	})

	time.Sleep(200 * time.Millisecond)
	writeFile(t, dir, "notes.txt", "not a policy file")

	select {
	case <-reloads:
		t.Error("a non-.apl file change triggered a reload")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestMemorySource(t *testing.T) {
	p1 := &ast.Policy{ID: "p1", Effect: ast.EffectPermit}
	p2 := &ast.Policy{ID: "p2", Effect: ast.EffectForbid}

	s := NewMemorySource(p1)
	policies, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(policies) != 1 || policies[0].ID != "p1" {
		t.Errorf("policies = %v", policies)
	}

	s.SetPolicies([]*ast.Policy{p1, p2})
	policies, _ = s.Load(context.Background())
	if len(policies) != 2 {
		t.Errorf("len(policies) = %d, want 2", len(policies))
	}
}
