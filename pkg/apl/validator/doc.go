// Package validator performs schema binding of parsed APL policies.
//
// Binding happens once, at policy-creation time - never per evaluation. For a
// policy scoped to specific actions, every context.input reference in the
// condition must be declared for every action in scope, and operators must be
// compatible with the declared parameter types: ordering comparisons require
// number parameters, like requires string parameters, set membership requires
// elements of the parameter's type.
//
// Policies scoped to any action ("action" with no qualifier) skip field
// binding: there is no single action to bind against, and tag-only conditions
// are the expected shape for such policies.
package validator
