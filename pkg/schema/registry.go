package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ParamType represents the primitive type of a declared tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeList    ParamType = "list"
)

// Valid returns true for a recognized parameter type.
func (t ParamType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeList:
		return true
	default:
		return false
	}
}

// Param is a single declared parameter of an action.
type Param struct {
	Name string
	Type ParamType
}

// ActionSpec describes one action (tool method) exposed by a gateway target.
type ActionSpec struct {
	// ID is the canonical action id (<TargetName>___<method_name>).
	ID string

	// Target and Method are the two halves of the id.
	Target string
	Method string

	// Params is the ordered set of declared parameters.
	Params []Param

	// Aliases are NL-resolvable names for the owning target, declared in the
	// catalogue. The NL compiler matches tool mentions against the target
	// name and these aliases only; it never infers beyond them.
	Aliases []string
}

// ActionID builds the canonical id for a target/method pair.
func ActionID(target, method string) string {
	return target + "___" + method
}

// SplitActionID splits a canonical id into target and method.
func SplitActionID(id string) (target, method string, ok bool) {
	parts := strings.Split(id, "___")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// ParamType returns the declared type of the named parameter.
func (a *ActionSpec) ParamType(name string) (ParamType, bool) {
	for _, p := range a.Params {
		if p.Name == name {
			return p.Type, true
		}
	}
	return "", false
}

// HasParam returns true if the action declares the named parameter.
func (a *ActionSpec) HasParam(name string) bool {
	_, ok := a.ParamType(name)
	return ok
}

// ConflictError is returned when registering an action id that already exists
// with incompatible parameters. The registry is left unchanged.
type ConflictError struct {
	ActionID string
	Param    string
	Existing ParamType
	Proposed ParamType
}

func (e *ConflictError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("schema conflict for action %q: parameter sets differ", e.ActionID)
	}
	return fmt.Sprintf("schema conflict for action %q: parameter %q is %s, cannot re-register as %s",
		e.ActionID, e.Param, e.Existing, e.Proposed)
}

// Snapshot is an immutable view of the registry at one point in time.
// All reads during a single evaluation or compilation go through one snapshot.
type Snapshot struct {
	actions map[string]*ActionSpec
}

// Lookup returns the spec for the given action id.
func (s *Snapshot) Lookup(actionID string) (*ActionSpec, bool) {
	spec, ok := s.actions[actionID]
	return spec, ok
}

// ActionIDs returns all registered action ids, sorted.
func (s *Snapshot) ActionIDs() []string {
	ids := make([]string, 0, len(s.actions))
	for id := range s.actions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Actions returns all registered specs, sorted by id.
func (s *Snapshot) Actions() []*ActionSpec {
	specs := make([]*ActionSpec, 0, len(s.actions))
	for _, id := range s.ActionIDs() {
		specs = append(specs, s.actions[id])
	}
	return specs
}

// Len returns the number of registered actions.
func (s *Snapshot) Len() int {
	return len(s.actions)
}

// Registry is the mutable schema registry. Mutations build a new snapshot and
// swap it in atomically (copy-on-write); readers never block writers.
type Registry struct {
	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[Snapshot]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.snap.Store(&Snapshot{actions: map[string]*ActionSpec{}})
	return r
}

// Snapshot returns the current immutable snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.snap.Load()
}

// Register adds an action spec to the registry.
// Re-registering an identical spec is a no-op. Re-registering with a
// different parameter set fails with a ConflictError and leaves the
// registry unchanged.
func (r *Registry) Register(spec ActionSpec) error {
	if spec.ID == "" {
		if spec.Target == "" || spec.Method == "" {
			return fmt.Errorf("action spec requires an id or target/method pair")
		}
		spec.ID = ActionID(spec.Target, spec.Method)
	}
	if spec.Target == "" || spec.Method == "" {
		target, method, ok := SplitActionID(spec.ID)
		if !ok {
			return fmt.Errorf("malformed action id %q", spec.ID)
		}
		spec.Target, spec.Method = target, method
	}
	for _, p := range spec.Params {
		if !p.Type.Valid() {
			return fmt.Errorf("action %q: parameter %q has unknown type %q", spec.ID, p.Name, p.Type)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.snap.Load()
	if existing, ok := current.actions[spec.ID]; ok {
		if err := compatible(existing, &spec); err != nil {
			return err
		}
		return nil // identical re-registration is idempotent
	}

	next := make(map[string]*ActionSpec, len(current.actions)+1)
	for id, s := range current.actions {
		next[id] = s
	}
	copied := spec
	next[spec.ID] = &copied

	r.snap.Store(&Snapshot{actions: next})
	return nil
}

// RegisterAll registers multiple specs, stopping at the first conflict.
func (r *Registry) RegisterAll(specs []ActionSpec) error {
	for _, spec := range specs {
		if err := r.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

// compatible reports whether a proposed spec matches the existing one.
func compatible(existing, proposed *ActionSpec) error {
	if len(existing.Params) != len(proposed.Params) {
		return &ConflictError{ActionID: existing.ID}
	}
	for _, p := range proposed.Params {
		existingType, ok := existing.ParamType(p.Name)
		if !ok {
			return &ConflictError{ActionID: existing.ID}
		}
		if existingType != p.Type {
			return &ConflictError{
				ActionID: existing.ID,
				Param:    p.Name,
				Existing: existingType,
				Proposed: p.Type,
			}
		}
	}
	return nil
}
