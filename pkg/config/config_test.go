package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arbiter.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Schema.CataloguePath != "schema/catalogue.yaml" {
		t.Errorf("Schema.CataloguePath = %q", cfg.Schema.CataloguePath)
	}
	if cfg.Policy.Path != "policies/" {
		t.Errorf("Policy.Path = %q", cfg.Policy.Path)
	}
	if !cfg.Policy.Watch {
		t.Error("Policy.Watch = false, want true")
	}
	if cfg.Policy.Mode != "enforce" {
		t.Errorf("Policy.Mode = %q, want enforce", cfg.Policy.Mode)
	}
	if !cfg.Audit.Enabled {
		t.Error("Audit.Enabled = false, want true")
	}
	if cfg.Audit.Backend != "sqlite" {
		t.Errorf("Audit.Backend = %q, want sqlite", cfg.Audit.Backend)
	}
	if cfg.Audit.AsyncBuffer != 1000 {
		t.Errorf("Audit.AsyncBuffer = %d, want 1000", cfg.Audit.AsyncBuffer)
	}
	if cfg.Audit.WriteTimeout != 5*time.Second {
		t.Errorf("Audit.WriteTimeout = %v, want 5s", cfg.Audit.WriteTimeout)
	}
	if cfg.Audit.Retention.RetentionDays != 90 {
		t.Errorf("Retention.RetentionDays = %d, want 90", cfg.Audit.Retention.RetentionDays)
	}
	if cfg.Telemetry.Logging.Level != "info" || cfg.Telemetry.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Telemetry.Logging)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if cfg.Telemetry.Tracing.Enabled {
		t.Error("Tracing.Enabled = true, want false")
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0.1 {
		t.Errorf("Tracing.SampleRatio = %v, want 0.1", cfg.Telemetry.Tracing.SampleRatio)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
policy:
  path: /etc/arbiter/policies
  mode: log_only
audit:
  backend: memory
telemetry:
  logging:
    level: debug
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Policy.Path != "/etc/arbiter/policies" {
		t.Errorf("Policy.Path = %q", cfg.Policy.Path)
	}
	if cfg.Policy.Mode != "log_only" {
		t.Errorf("Policy.Mode = %q, want log_only", cfg.Policy.Mode)
	}
	if cfg.Audit.Backend != "memory" {
		t.Errorf("Audit.Backend = %q, want memory", cfg.Audit.Backend)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Telemetry.Logging.Level)
	}

	// Untouched fields keep their defaults.
	if cfg.Audit.AsyncBuffer != 1000 {
		t.Errorf("Audit.AsyncBuffer = %d, want 1000", cfg.Audit.AsyncBuffer)
	}
	if cfg.Schema.CataloguePath != "schema/catalogue.yaml" {
		t.Errorf("Schema.CataloguePath = %q", cfg.Schema.CataloguePath)
	}
}

func TestLoadConfig_ExplicitFalseSurvives(t *testing.T) {
	path := writeConfig(t, `
policy:
  watch: false
audit:
  enabled: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.Policy.Watch {
		t.Error("Policy.Watch = true, want explicit false from file")
	}
	if cfg.Audit.Enabled {
		t.Error("Audit.Enabled = true, want explicit false from file")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("LoadConfig() succeeded for a missing file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "policy: [not a mapping")
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("LoadConfig() succeeded for invalid YAML")
	}
	if !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("err = %v, want parse failure", err)
	}
}

func TestValidate_CollectsFieldErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Policy.Mode = "dry_run"
	cfg.Audit.Backend = "postgres"
	cfg.Telemetry.Logging.Level = "verbose"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() succeeded")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %T, want ValidationError", err)
	}
	if len(verr.Errors) != 3 {
		t.Fatalf("len(Errors) = %d, want 3: %v", len(verr.Errors), verr)
	}

	fields := make(map[string]bool)
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	for _, want := range []string{"policy.mode", "audit.backend", "telemetry.logging.level"} {
		if !fields[want] {
			t.Errorf("missing field error for %q in %v", want, verr.Errors)
		}
	}
}

func TestValidate_AuditSkippedWhenDisabled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Audit.Enabled = false
	cfg.Audit.Backend = "postgres"
	cfg.Audit.Retention.PruneSchedule = "not a cron expression"

	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() = %v, want nil when audit is disabled", err)
	}
}

func TestValidate_TracingChecksOnlyWhenEnabled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Telemetry.Tracing.Sampler = "coin-flip"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() = %v, want nil while tracing disabled", err)
	}

	cfg.Telemetry.Tracing.Enabled = true
	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() succeeded with tracing enabled")
	}
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %T, want ValidationError", err)
	}
	// Sampler is invalid and the endpoint is empty.
	if len(verr.Errors) != 2 {
		t.Errorf("len(Errors) = %d, want 2: %v", len(verr.Errors), verr)
	}
}

func TestValidate_BadCronSchedule(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Audit.Retention.PruneSchedule = "every day at three"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() succeeded with a bad cron expression")
	}
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %T, want ValidationError", err)
	}
	if verr.Errors[0].Field != "audit.retention.prune_schedule" {
		t.Errorf("Field = %q", verr.Errors[0].Field)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
policy:
  mode: enforce
`)

	t.Setenv("ARBITER_POLICY_MODE", "log_only")
	t.Setenv("ARBITER_AUDIT_BACKEND", "memory")
	t.Setenv("ARBITER_METRICS_PORT", "9464")
	t.Setenv("ARBITER_AUDIT_WRITE_TIMEOUT", "2s")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() failed: %v", err)
	}
	if cfg.Policy.Mode != "log_only" {
		t.Errorf("Policy.Mode = %q, want log_only", cfg.Policy.Mode)
	}
	if cfg.Audit.Backend != "memory" {
		t.Errorf("Audit.Backend = %q, want memory", cfg.Audit.Backend)
	}
	if cfg.Telemetry.Metrics.Port != 9464 {
		t.Errorf("Metrics.Port = %d, want 9464", cfg.Telemetry.Metrics.Port)
	}
	if cfg.Audit.WriteTimeout != 2*time.Second {
		t.Errorf("Audit.WriteTimeout = %v, want 2s", cfg.Audit.WriteTimeout)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverrideFailsValidation(t *testing.T) {
	path := writeConfig(t, "")

	t.Setenv("ARBITER_POLICY_MODE", "dry_run")

	_, err := LoadConfigWithEnvOverrides(path)
	if err == nil {
		t.Fatal("LoadConfigWithEnvOverrides() succeeded with an invalid mode override")
	}
	if !strings.Contains(err.Error(), "environment overrides") {
		t.Errorf("err = %v", err)
	}
}
