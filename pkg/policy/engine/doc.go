// Package engine implements condition evaluation and decision resolution for
// the authorization engine.
//
// Evaluation is a pure, stateless computation over three read-only inputs: the
// request, a policy snapshot, and the engine mode. It holds no locks, performs
// no I/O, and the same inputs always produce the same decision. Conditions are
// forbidden from calling out; this is what keeps evaluation deterministic and
// lets it run at arbitrary concurrency.
//
// # Decision semantics
//
// Candidates are the ACTIVE policies whose action and resource scopes cover
// the request. Every candidate's condition is evaluated (for audit
// completeness); the decision itself follows deny-override then default-deny:
//
//  1. any forbid candidate with a true condition => denied
//  2. otherwise any permit candidate with a true condition => allowed
//  3. otherwise => denied
//
// A condition that fails to evaluate (missing tag without a hasTag guard,
// type mismatch, absent context field used directly) marks only that policy
// as not matching; it never aborts the request's decision.
//
// # Modes
//
// log_only computes exactly the same decision as enforce; the difference is
// confined to Decision.ShouldBlock, which tells the gateway caller whether a
// denial actually blocks the call.
package engine
