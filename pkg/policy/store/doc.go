// Package store provides the policy store: thread-safe storage of parsed
// policies keyed by id, with lifecycle status handling.
//
// The store is one of the two pieces of mutable shared state in the engine
// (the schema registry is the other). Every mutation - create, status toggle,
// replace, delete - builds a new immutable Snapshot and swaps it in
// atomically, so an in-flight evaluation always observes one consistent
// snapshot even under concurrent writers. There is no policy-level locking
// and nothing on the evaluation path blocks.
//
// Snapshots index ACTIVE policies by action id for O(1) candidate lookup,
// with "any"-scoped policies appended as the fallback set. INACTIVE policies
// stay stored but are never returned to the evaluator.
package store
