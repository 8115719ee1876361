// Package nlc implements the natural-language-to-policy compiler.
//
// The compiler turns plain-language authorization intents into syntactically
// valid APL policies. It is an authoring-time pipeline, completely separate
// from the evaluation path: its output is submitted to the policy store
// through the same creation path as hand-written policies.
//
// The pipeline has four stages:
//
//  1. Segmentation: the input is split into independent statements on
//     sentence delimiters. A comma splits only when both sides carry an
//     effect verb; ambiguous fragments become warnings, never guesses.
//  2. Resolution: each statement is resolved against the schema snapshot
//     into a structured intent - effect, canonical action ids, and phrase
//     fragments. Tool mentions match target names and declared catalogue
//     aliases only; there is no fuzzy inference beyond the schema.
//  3. Condition synthesis: comparative language becomes an expression tree.
//     Tag phrases always emit the hasTag guard before getTag.
//  4. Serialization: every generated policy is rendered to canonical APL
//     text and re-parsed through the standard parse path, so each one is
//     independently re-parseable (the round-trip law).
//
// Language understanding is abstracted behind the Resolver interface. The
// default RuleBasedResolver is deterministic phrase matching; an
// implementation backed by a model can be slow or remote, so Compile honors
// context cancellation at the resolver boundary.
//
// An unresolvable statement (unknown tool, unknown parameter, unsupported
// comparative) produces a Warning carrying the statement index and is
// excluded from the output. The compiler never emits a best-guess policy.
package nlc
