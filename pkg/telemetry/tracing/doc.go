// Package tracing provides OpenTelemetry distributed tracing with an OTLP
// gRPC exporter. When disabled it degrades to noop spans.
package tracing
