// Arbiter is a policy engine for authorizing tool invocations made through
// a gateway.
//
// It evaluates declarative APL policies over principal tags and call input
// parameters, producing allow/deny decisions with deny-override and
// default-deny semantics, and compiles natural-language authorization
// intent into APL.
//
// Usage:
//
//	# Validate policy files against a schema catalogue
//	arbiter lint --dir policies/ --catalogue schema/catalogue.yaml
//
//	# Compile natural language into policies
//	arbiter compile --catalogue schema/catalogue.yaml "forbid approval tool unless role tag is senior-adjuster"
//
//	# Evaluate one request against a policy directory
//	arbiter eval --dir policies/ --catalogue schema/catalogue.yaml --request request.json
//
//	# Show version information
//	arbiter version
package main

func main() {
	Execute()
}
