package schema

import (
	"errors"
	"testing"
)

func TestActionID_SplitActionID(t *testing.T) {
	id := ActionID("ApplicationToolTarget", "create_application")
	if id != "ApplicationToolTarget___create_application" {
		t.Errorf("ActionID() = %q", id)
	}

	target, method, ok := SplitActionID(id)
	if !ok || target != "ApplicationToolTarget" || method != "create_application" {
		t.Errorf("SplitActionID(%q) = (%q, %q, %v)", id, target, method, ok)
	}

	for _, bad := range []string{"", "noseparator", "A___", "___m", "A___b___c"} {
		if _, _, ok := SplitActionID(bad); ok {
			t.Errorf("SplitActionID(%q) should fail", bad)
		}
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	err := r.Register(ActionSpec{
		Target: "ApplicationToolTarget",
		Method: "create_application",
		Params: []Param{{Name: "coverage_amount", Type: TypeNumber}},
	})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	spec, ok := r.Snapshot().Lookup("ApplicationToolTarget___create_application")
	if !ok {
		t.Fatal("Lookup() should find the registered action")
	}
	if spec.Target != "ApplicationToolTarget" || spec.Method != "create_application" {
		t.Errorf("spec = %+v", spec)
	}
	pt, ok := spec.ParamType("coverage_amount")
	if !ok || pt != TypeNumber {
		t.Errorf("ParamType(coverage_amount) = (%q, %v), want (number, true)", pt, ok)
	}
}

func TestRegistry_Register_FillsIDAndHalves(t *testing.T) {
	r := NewRegistry()

	// Registering by id alone derives target and method.
	if err := r.Register(ActionSpec{ID: "A___m"}); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	spec, _ := r.Snapshot().Lookup("A___m")
	if spec.Target != "A" || spec.Method != "m" {
		t.Errorf("spec halves = (%q, %q), want (A, m)", spec.Target, spec.Method)
	}

	if err := r.Register(ActionSpec{ID: "malformed"}); err == nil {
		t.Error("Register() should reject a malformed id")
	}
	if err := r.Register(ActionSpec{}); err == nil {
		t.Error("Register() should reject an empty spec")
	}
	if err := r.Register(ActionSpec{ID: "B___n", Params: []Param{{Name: "x", Type: "blob"}}}); err == nil {
		t.Error("Register() should reject an unknown parameter type")
	}
}

func TestRegistry_Register_IdempotentAndConflicting(t *testing.T) {
	r := NewRegistry()
	spec := ActionSpec{
		Target: "A", Method: "m",
		Params: []Param{{Name: "x", Type: TypeNumber}},
	}
	if err := r.Register(spec); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	// Identical re-registration is a no-op.
	if err := r.Register(spec); err != nil {
		t.Errorf("identical re-registration failed: %v", err)
	}

	// Same id with a different parameter type conflicts.
	err := r.Register(ActionSpec{
		Target: "A", Method: "m",
		Params: []Param{{Name: "x", Type: TypeString}},
	})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error type = %T, want *ConflictError", err)
	}
	if conflict.Param != "x" || conflict.Existing != TypeNumber || conflict.Proposed != TypeString {
		t.Errorf("conflict = %+v", conflict)
	}

	// Same id with a different parameter set conflicts too.
	err = r.Register(ActionSpec{
		Target: "A", Method: "m",
		Params: []Param{{Name: "x", Type: TypeNumber}, {Name: "y", Type: TypeString}},
	})
	if !errors.As(err, &conflict) {
		t.Fatalf("error type = %T, want *ConflictError", err)
	}

	// The registry is left unchanged after conflicts.
	got, _ := r.Snapshot().Lookup("A___m")
	if pt, _ := got.ParamType("x"); pt != TypeNumber {
		t.Errorf("ParamType(x) = %q after conflict, want number", pt)
	}
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	r := NewRegistry()
	r.Register(ActionSpec{Target: "A", Method: "m"})

	snap := r.Snapshot()
	r.Register(ActionSpec{Target: "B", Method: "n"})

	if snap.Len() != 1 {
		t.Errorf("old snapshot Len() = %d, want 1", snap.Len())
	}
	if r.Snapshot().Len() != 2 {
		t.Errorf("fresh snapshot Len() = %d, want 2", r.Snapshot().Len())
	}
}

func TestSnapshot_ActionIDs_Sorted(t *testing.T) {
	r := NewRegistry()
	r.RegisterAll([]ActionSpec{
		{Target: "B", Method: "n"},
		{Target: "A", Method: "m"},
		{Target: "C", Method: "k"},
	})

	ids := r.Snapshot().ActionIDs()
	want := []string{"A___m", "B___n", "C___k"}
	if len(ids) != len(want) {
		t.Fatalf("len(ids) = %d, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestParamType_Valid(t *testing.T) {
	for _, pt := range []ParamType{TypeString, TypeNumber, TypeBoolean, TypeList} {
		if !pt.Valid() {
			t.Errorf("Valid(%q) = false, want true", pt)
		}
	}
	if ParamType("object").Valid() {
		t.Error("unknown type should be invalid")
	}
}
