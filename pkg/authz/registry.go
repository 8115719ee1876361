package authz

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"arbiter-hq/arbiter/pkg/policy/engine"
)

// engineState is the immutable per-engine configuration inside a snapshot.
type engineState struct {
	id       string
	mode     engine.Mode
	attached map[string]struct{} // attached policy ids
}

// registrySnapshot is an immutable view of every engine and gateway
// attachment. Readers follow the atomic pointer; writers rebuild and swap.
type registrySnapshot struct {
	engines  map[string]*engineState
	gateways map[string]string // gateway id -> engine id
}

// engineRegistry manages engines and gateway attachments with copy-on-write
// snapshots.
type engineRegistry struct {
	mu      sync.Mutex
	current atomic.Pointer[registrySnapshot]
}

func newEngineRegistry() *engineRegistry {
	r := &engineRegistry{}
	r.current.Store(&registrySnapshot{
		engines:  map[string]*engineState{},
		gateways: map[string]string{},
	})
	return r
}

func (r *engineRegistry) snapshot() *registrySnapshot {
	return r.current.Load()
}

// swap rebuilds the snapshot under the writer lock and publishes it.
func (r *engineRegistry) swap(mutate func(engines map[string]*engineState, gateways map[string]string)) {
	cur := r.current.Load()

	engines := make(map[string]*engineState, len(cur.engines)+1)
	for id, st := range cur.engines {
		engines[id] = st
	}
	gateways := make(map[string]string, len(cur.gateways)+1)
	for gw, eng := range cur.gateways {
		gateways[gw] = eng
	}

	mutate(engines, gateways)
	r.current.Store(&registrySnapshot{engines: engines, gateways: gateways})
}

// createEngine registers a new engine and returns its id.
func (r *engineRegistry) createEngine(mode engine.Mode) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	r.swap(func(engines map[string]*engineState, _ map[string]string) {
		engines[id] = &engineState{
			id:       id,
			mode:     mode,
			attached: map[string]struct{}{},
		}
	})
	return id
}

// mutateEngine rebuilds one engine's state through fn.
func (r *engineRegistry) mutateEngine(engineID string, fn func(st *engineState)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	old, ok := cur.engines[engineID]
	if !ok {
		return &EngineNotFoundError{EngineID: engineID}
	}

	next := &engineState{
		id:       old.id,
		mode:     old.mode,
		attached: make(map[string]struct{}, len(old.attached)+1),
	}
	for pid := range old.attached {
		next.attached[pid] = struct{}{}
	}
	fn(next)

	r.swap(func(engines map[string]*engineState, _ map[string]string) {
		engines[engineID] = next
	})
	return nil
}

// attachGateway binds a gateway to an engine. Re-attaching moves the
// gateway.
func (r *engineRegistry) attachGateway(engineID, gatewayID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.current.Load().engines[engineID]; !ok {
		return &EngineNotFoundError{EngineID: engineID}
	}
	r.swap(func(_ map[string]*engineState, gateways map[string]string) {
		gateways[gatewayID] = engineID
	})
	return nil
}

// detachGateway removes a gateway's engine binding.
func (r *engineRegistry) detachGateway(gatewayID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.current.Load().gateways[gatewayID]; !ok {
		return &GatewayNotAttachedError{GatewayID: gatewayID}
	}
	r.swap(func(_ map[string]*engineState, gateways map[string]string) {
		delete(gateways, gatewayID)
	})
	return nil
}

// engineFor resolves the engine attached to a gateway.
func (s *registrySnapshot) engineFor(gatewayID string) (*engineState, bool) {
	engineID, ok := s.gateways[gatewayID]
	if !ok {
		return nil, false
	}
	st, ok := s.engines[engineID]
	return st, ok
}
