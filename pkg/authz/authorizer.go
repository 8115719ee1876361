package authz

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"arbiter-hq/arbiter/pkg/apl"
	"arbiter-hq/arbiter/pkg/apl/ast"
	"arbiter-hq/arbiter/pkg/audit"
	"arbiter-hq/arbiter/pkg/policy/engine"
	"arbiter-hq/arbiter/pkg/policy/store"
	"arbiter-hq/arbiter/pkg/schema"
	"arbiter-hq/arbiter/pkg/telemetry/logging"
	"arbiter-hq/arbiter/pkg/telemetry/metrics"
	"arbiter-hq/arbiter/pkg/telemetry/tracing"
)

// Options configures an Authorizer. Recorder, Metrics, and Tracer are
// optional; a nil field disables that concern.
type Options struct {
	Recorder *audit.Recorder
	Metrics  *metrics.Collector
	Tracer   *tracing.Tracer
	Logger   *slog.Logger
}

// Authorizer wires the policy store, schema registry, engines, and gateway
// attachments into the authorization lifecycle.
type Authorizer struct {
	store    *store.Store
	schema   *schema.Registry
	eval     *engine.Engine
	registry *engineRegistry

	recorder *audit.Recorder
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	logger   *slog.Logger
}

// New creates an Authorizer.
func New(policyStore *store.Store, schemaRegistry *schema.Registry, opts Options) *Authorizer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "authz")

	return &Authorizer{
		store:    policyStore,
		schema:   schemaRegistry,
		eval:     engine.New(logger),
		registry: newEngineRegistry(),
		recorder: opts.Recorder,
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
		logger:   logger,
	}
}

// Store returns the underlying policy store.
func (a *Authorizer) Store() *store.Store {
	return a.store
}

// SchemaRegistry returns the underlying schema registry.
func (a *Authorizer) SchemaRegistry() *schema.Registry {
	return a.schema
}

// CreatePolicy parses and schema-validates policy text, then stores it.
// Returns the assigned policy id. No invalid policy is ever stored.
func (a *Authorizer) CreatePolicy(text string) (string, error) {
	policy, err := apl.ParseAndValidate(text, "", a.schema.Snapshot())
	if err != nil {
		return "", err
	}

	id, err := a.store.Create(policy)
	if err != nil {
		return "", err
	}

	a.publishPolicyCount()
	a.logger.Info("policy created", "policy_id", id, "effect", policy.Effect)
	return id, nil
}

// SetPolicyStatus activates or deactivates a stored policy.
func (a *Authorizer) SetPolicyStatus(id string, status ast.Status) error {
	if err := a.store.SetStatus(id, status); err != nil {
		return err
	}
	a.publishPolicyCount()
	a.logger.Info("policy status changed", "policy_id", id, "status", status)
	return nil
}

// DeletePolicy removes a policy from the store. Engines that had it attached
// simply stop seeing it; the attachment entry is inert.
func (a *Authorizer) DeletePolicy(id string) error {
	if err := a.store.Delete(id); err != nil {
		return err
	}
	a.publishPolicyCount()
	a.logger.Info("policy deleted", "policy_id", id)
	return nil
}

// CreateEngine creates an evaluation engine with the given mode and returns
// its id. A fresh engine has no attached policies and therefore denies
// everything (default-deny).
func (a *Authorizer) CreateEngine(mode engine.Mode) (string, error) {
	if !mode.Valid() {
		return "", &InvalidModeError{Mode: string(mode)}
	}
	id := a.registry.createEngine(mode)
	a.logger.Info("engine created", "engine_id", id, "mode", mode)
	return id, nil
}

// AttachPolicy attaches a stored policy to an engine. The engine is checked
// first: attaching to an unknown engine reports the engine, not the policy.
func (a *Authorizer) AttachPolicy(engineID, policyID string) error {
	if _, ok := a.registry.snapshot().engines[engineID]; !ok {
		return &EngineNotFoundError{EngineID: engineID}
	}
	if _, ok := a.store.Get(policyID); !ok {
		return &store.NotFoundError{PolicyID: policyID, Operation: "attach"}
	}
	return a.registry.mutateEngine(engineID, func(st *engineState) {
		st.attached[policyID] = struct{}{}
	})
}

// DetachPolicy removes a policy from an engine's attached set.
func (a *Authorizer) DetachPolicy(engineID, policyID string) error {
	return a.registry.mutateEngine(engineID, func(st *engineState) {
		delete(st.attached, policyID)
	})
}

// SetMode changes an engine's mode. Takes effect for evaluations that start
// after the swap; in-flight evaluations keep the mode they started with.
func (a *Authorizer) SetMode(engineID string, mode engine.Mode) error {
	if !mode.Valid() {
		return &InvalidModeError{Mode: string(mode)}
	}
	return a.registry.mutateEngine(engineID, func(st *engineState) {
		st.mode = mode
	})
}

// AttachGateway binds a gateway to an engine. A gateway has at most one
// engine; re-attaching moves it.
func (a *Authorizer) AttachGateway(engineID, gatewayID string) error {
	if err := a.registry.attachGateway(engineID, gatewayID); err != nil {
		return err
	}
	a.logger.Info("gateway attached", "gateway_id", gatewayID, "engine_id", engineID)
	return nil
}

// DetachGateway removes a gateway's engine binding. Subsequent evaluations
// for the gateway allow through with checks disabled.
func (a *Authorizer) DetachGateway(gatewayID string) error {
	if err := a.registry.detachGateway(gatewayID); err != nil {
		return err
	}
	a.logger.Info("gateway detached", "gateway_id", gatewayID)
	return nil
}

// Evaluate computes the decision for one tool invocation on a gateway.
//
// A gateway with no attached engine gets an allow-through decision: checks
// are disabled for it, which is logged at Warn and still audited. Everything
// else goes through the engine against the store's current snapshot.
func (a *Authorizer) Evaluate(ctx context.Context, gatewayID string, req engine.Request) engine.Decision {
	ctx, span := a.startSpan(ctx, gatewayID, req)
	defer span.End()

	correlationID := logging.CorrelationID(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	reg := a.registry.snapshot()
	st, attached := reg.engineFor(gatewayID)
	if !attached {
		a.logger.Warn("gateway has no engine attached, allowing through",
			"gateway_id", gatewayID,
			"action_id", req.ActionID,
		)
		decision := engine.Decision{Allowed: true, ModeApplied: engine.ModeLogOnly}
		a.finish(ctx, span, gatewayID, correlationID, req, decision)
		return decision
	}

	provider := attachedProvider{
		snap:     a.store.Snapshot(),
		attached: st.attached,
	}
	decision := a.eval.Evaluate(req, provider, st.mode)
	a.finish(ctx, span, gatewayID, correlationID, req, decision)
	return decision
}

// Close flushes the audit recorder.
func (a *Authorizer) Close() error {
	if a.recorder != nil {
		return a.recorder.Close()
	}
	return nil
}

// finish emits audit, metrics, and span attributes for a decision.
func (a *Authorizer) finish(ctx context.Context, span trace.Span, gatewayID, correlationID string, req engine.Request, decision engine.Decision) {
	if a.recorder != nil {
		a.recorder.Record(ctx, gatewayID, correlationID, req, decision)
	}
	if a.metrics != nil {
		a.metrics.RecordEvaluation(decision)
	}
	span.SetAttributes(
		attribute.Bool("authz.allowed", decision.Allowed),
		attribute.Bool("authz.blocked", decision.ShouldBlock()),
		attribute.Int("authz.candidates", decision.CandidateCount),
	)
}

func (a *Authorizer) startSpan(ctx context.Context, gatewayID string, req engine.Request) (context.Context, trace.Span) {
	if a.tracer == nil {
		return noopSpan(ctx)
	}
	return a.tracer.Start(ctx, "authz.evaluate",
		trace.WithAttributes(
			attribute.String("authz.gateway_id", gatewayID),
			attribute.String("authz.action_id", req.ActionID),
			attribute.String("authz.resource", req.Resource),
		),
	)
}

func noopSpan(ctx context.Context) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

// publishPolicyCount pushes the active policy count to the metrics gauge.
func (a *Authorizer) publishPolicyCount() {
	if a.metrics == nil {
		return
	}
	active := 0
	for _, p := range a.store.Snapshot().Policies() {
		if p.Status == ast.StatusActive {
			active++
		}
	}
	a.metrics.SetActivePolicies(active)
}

// attachedProvider narrows a store snapshot to an engine's attached set.
type attachedProvider struct {
	snap     *store.Snapshot
	attached map[string]struct{}
}

// ActiveFor implements engine.PolicyProvider.
func (p attachedProvider) ActiveFor(actionID string) []*ast.Policy {
	var out []*ast.Policy
	for _, policy := range p.snap.ActiveFor(actionID) {
		if _, ok := p.attached[policy.ID]; ok {
			out = append(out, policy)
		}
	}
	return out
}
