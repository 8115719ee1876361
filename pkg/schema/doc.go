// Package schema provides the action parameter registry for the authorization
// engine.
//
// The registry maps canonical action ids (<TargetName>___<method_name>) to the
// ordered set of declared parameters and their primitive types. It is consulted
// at two points only: policy parse-time validation (every context.input
// reference must be declared for the policy's action scope) and NL compilation
// (mapping free-text tool and parameter mentions to canonical identifiers).
//
// The registry is read-mostly. Registration produces a new immutable snapshot
// that is swapped in atomically, so an in-flight evaluation or compilation
// always observes one consistent catalogue. Registering an action id that
// already exists with incompatible parameter types fails with a ConflictError
// and leaves the registry unchanged.
package schema
