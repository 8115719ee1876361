// Package metrics provides Prometheus metrics for the authorization
// service: evaluation counters and latency, policy match and error
// counters, and NL compiler outcomes.
package metrics
