// Package authz is the composition root of the authorization service.
//
// The Authorizer owns the policy store, the schema registry, a set of
// evaluation engines, and the gateway-to-engine attachments. It exposes the
// full lifecycle: policy CRUD with parse-and-validate at the door, engine
// creation with per-engine mode and attached policy sets, gateway
// attachment, and request evaluation with audit, metrics, and tracing on
// every decision.
//
// Evaluation is lock-free on the hot path: engine and attachment state is
// published as an immutable snapshot behind an atomic pointer, the same
// copy-on-write discipline the policy store uses.
package authz
