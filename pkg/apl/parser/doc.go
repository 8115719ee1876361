// Package parser provides lexing and parsing for APL policy text.
//
// The grammar is a Cedar-like subset:
//
//	permit(principal, action == Target___method, resource == "arn:...")
//	when { context.input.coverage_amount <= 1000000 };
//
//	forbid(principal, action in [A___x, B___y], resource)
//	when { principal.hasTag("role") && principal.getTag("role") == "intern" };
//
// Scope forms: bare "action"/"resource" match anything; "action == Id" and
// "action in [Ids]" restrict by action id; "resource == \"arn\"" restricts to
// one gateway resource. An optional leading @id("...") annotation fixes the
// policy id. // line comments are allowed.
//
// The parser is purely syntactic. Schema binding - rejecting undeclared
// context.input parameters and operator/type mismatches - is performed by the
// validator package after parsing, once per policy creation.
package parser
