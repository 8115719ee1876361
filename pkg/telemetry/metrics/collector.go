package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arbiter-hq/arbiter/pkg/config"
	"arbiter-hq/arbiter/pkg/policy/engine"
)

// Collector registers and records all Prometheus metrics for the
// authorization service.
//
// Metrics:
//   - arbiter_authz_evaluations_total: evaluations by decision and mode
//   - arbiter_authz_evaluation_duration_seconds: evaluation latency
//   - arbiter_authz_policy_matches_total: policy matches by effect
//   - arbiter_authz_policy_errors_total: per-policy evaluation errors by kind
//   - arbiter_authz_active_policies: active policies in the store
//   - arbiter_authz_compile_statements_total: NL compiler statements by outcome
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	policyMatchesTotal *prometheus.CounterVec
	policyErrorsTotal  *prometheus.CounterVec
	activePolicies     prometheus.Gauge
	compileStatements  *prometheus.CounterVec
}

// NewCollector creates a metrics collector. If registry is nil a fresh
// registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "arbiter"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "authz"
	}
	if len(cfg.EvalDurationBuckets) == 0 {
		// Evaluations are in-memory tree walks, well under a millisecond.
		cfg.EvalDurationBuckets = prometheus.ExponentialBuckets(0.000001, 2, 15) // 1µs to 16ms
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of authorization evaluations",
			},
			[]string{"decision", "mode"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of authorization evaluation in seconds",
				Buckets:   cfg.EvalDurationBuckets,
			},
		),

		policyMatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_matches_total",
				Help:      "Total number of policy condition matches by effect",
			},
			[]string{"effect"},
		),

		policyErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_errors_total",
				Help:      "Total number of per-policy condition evaluation errors",
			},
			[]string{"kind"},
		),

		activePolicies: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "active_policies",
				Help:      "Number of active policies in the store",
			},
		),

		compileStatements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "compile_statements_total",
				Help:      "Natural-language compiler statements by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		c.evaluationsTotal,
		c.evaluationDuration,
		c.policyMatchesTotal,
		c.policyErrorsTotal,
		c.activePolicies,
		c.compileStatements,
	)

	return c
}

// RecordEvaluation records one completed evaluation.
func (c *Collector) RecordEvaluation(decision engine.Decision) {
	if !c.config.Enabled {
		return
	}

	outcome := "deny"
	if decision.Allowed {
		outcome = "allow"
	}
	c.evaluationsTotal.WithLabelValues(outcome, string(decision.ModeApplied)).Inc()
	c.evaluationDuration.Observe(decision.EvaluationTime.Seconds())

	if n := len(decision.MatchedPermitIDs); n > 0 {
		c.policyMatchesTotal.WithLabelValues("permit").Add(float64(n))
	}
	if n := len(decision.MatchedForbidIDs); n > 0 {
		c.policyMatchesTotal.WithLabelValues("forbid").Add(float64(n))
	}
	for _, pe := range decision.PolicyErrors {
		c.policyErrorsTotal.WithLabelValues(string(pe.Err.Kind)).Inc()
	}
}

// SetActivePolicies updates the active policy gauge.
func (c *Collector) SetActivePolicies(n int) {
	if !c.config.Enabled {
		return
	}
	c.activePolicies.Set(float64(n))
}

// RecordCompileStatement records one NL compiler statement outcome
// ("generated" or "warning").
func (c *Collector) RecordCompileStatement(outcome string) {
	if !c.config.Enabled {
		return
	}
	c.compileStatements.WithLabelValues(outcome).Inc()
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}

// Serve starts a metrics HTTP listener on the configured port. It returns
// immediately; a zero port disables the listener.
func (c *Collector) Serve() *http.Server {
	if !c.config.Enabled || c.config.Port == 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, c.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go srv.ListenAndServe()
	return srv
}
