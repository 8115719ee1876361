package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"arbiter-hq/arbiter/pkg/apl/ast"
	"arbiter-hq/arbiter/pkg/audit"
	"arbiter-hq/arbiter/pkg/audit/retention"
	auditstorage "arbiter-hq/arbiter/pkg/audit/storage"
	"arbiter-hq/arbiter/pkg/authz"
	"arbiter-hq/arbiter/pkg/config"
	"arbiter-hq/arbiter/pkg/policy/engine"
	"arbiter-hq/arbiter/pkg/policy/source"
	"arbiter-hq/arbiter/pkg/policy/store"
	"arbiter-hq/arbiter/pkg/schema"
	"arbiter-hq/arbiter/pkg/telemetry/logging"
	"arbiter-hq/arbiter/pkg/telemetry/metrics"
	"arbiter-hq/arbiter/pkg/telemetry/tracing"
)

var runFlags struct {
	logLevel string
	gateway  string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Arbiter authorization service",
	Long: `Start the long-running authorization service.

The service loads the schema catalogue and policy directory from the
configuration, creates a default engine in the configured mode with every
loaded policy attached, and keeps the operational machinery running:
the policy file watcher (hot reload), the audit retention scheduler, the
Prometheus metrics listener, and the OTLP tracer.

Examples:
  # Start with a config file
  arbiter run --config /etc/arbiter/arbiter.yaml

  # Override the log level
  arbiter run --config arbiter.yaml --log-level debug`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.gateway, "gateway", "default", "gateway id bound to the default engine")
}

func runService(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	if cfgFile != "" {
		loaded, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg = config.NewDefaultConfig()
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	if _, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	}); err != nil {
		return err
	}

	fmt.Printf("Arbiter v%s\n", Version)

	registry, err := schema.LoadCatalogue(cfg.Schema.CataloguePath)
	if err != nil {
		return fmt.Errorf("failed to load schema catalogue: %w", err)
	}
	fmt.Printf("✓ Schema catalogue loaded (%d actions)\n", len(registry.Snapshot().Actions()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policyStore := store.NewStore(nil)
	fileSource := source.NewFileSource(cfg.Policy.Path, registry, nil)
	policies, err := fileSource.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}
	if err := policyStore.ReplaceAll(policies); err != nil {
		return fmt.Errorf("failed to store policies: %w", err)
	}
	fmt.Printf("✓ Policies loaded (%d policies)\n", len(policies))

	var opts authz.Options
	var sink audit.Storage
	if cfg.Audit.Enabled {
		sink, err = openAuditStorage(&cfg.Audit)
		if err != nil {
			return err
		}
		defer sink.Close()

		opts.Recorder = audit.NewRecorder(sink, &audit.RecorderConfig{
			Enabled:      true,
			AsyncBuffer:  cfg.Audit.AsyncBuffer,
			WriteTimeout: cfg.Audit.WriteTimeout,
		})

		if cfg.Audit.Retention.PruneSchedule != "" {
			pruner := retention.NewPruner(sink, &retention.Config{
				RetentionDays: cfg.Audit.Retention.RetentionDays,
				PruneSchedule: cfg.Audit.Retention.PruneSchedule,
				MaxRecords:    cfg.Audit.Retention.MaxRecords,
			})
			scheduler := retention.NewScheduler(pruner)
			if err := scheduler.Start(ctx); err != nil {
				slog.Warn("failed to start retention scheduler", "error", err)
			} else {
				defer scheduler.Stop()
			}
		}
		fmt.Printf("✓ Audit trail enabled (%s backend)\n", cfg.Audit.Backend)
	}

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	opts.Metrics = collector
	if srv := collector.Serve(); srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		fmt.Printf("✓ Metrics listening on :%d%s\n", cfg.Telemetry.Metrics.Port, cfg.Telemetry.Metrics.Path)
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	opts.Tracer = tracer
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracer.Shutdown(shutdownCtx)
	}()

	authorizer := authz.New(policyStore, registry, opts)
	defer authorizer.Close()

	engineID, err := authorizer.CreateEngine(engine.Mode(cfg.Policy.Mode))
	if err != nil {
		return err
	}
	if err := attachAll(authorizer, engineID, policyStore.Snapshot().Policies()); err != nil {
		return err
	}
	if err := authorizer.AttachGateway(engineID, runFlags.gateway); err != nil {
		return err
	}
	fmt.Printf("✓ Engine ready (mode %s, gateway %q)\n", cfg.Policy.Mode, runFlags.gateway)

	if cfg.Policy.Watch {
		go func() {
			err := fileSource.Watch(ctx, func(reloaded []*ast.Policy) error {
				if err := policyStore.ReplaceAll(reloaded); err != nil {
					return err
				}
				// ReplaceAll assigns fresh ids to unannotated policies, so the
				// attachment set is rebuilt on every reload.
				return attachAll(authorizer, engineID, policyStore.Snapshot().Policies())
			})
			if err != nil {
				slog.Error("policy watcher exited", "error", err)
			}
		}()
		fmt.Printf("✓ Watching %s for policy changes\n", cfg.Policy.Path)
	}

	fmt.Println("\nPress Ctrl+C to stop")
	<-ctx.Done()
	fmt.Println("\nShutting down")
	return nil
}

// attachAll attaches every stored policy to the engine.
func attachAll(authorizer *authz.Authorizer, engineID string, policies []*ast.Policy) error {
	for _, p := range policies {
		if err := authorizer.AttachPolicy(engineID, p.ID); err != nil {
			return err
		}
	}
	return nil
}

// openAuditStorage opens the configured audit backend.
func openAuditStorage(cfg *config.AuditConfig) (audit.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return auditstorage.NewMemoryStorage(), nil
	default:
		return auditstorage.NewSQLiteStorage(&auditstorage.SQLiteConfig{
			Path:         cfg.Path,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			WALMode:      true,
			BusyTimeout:  cfg.WriteTimeout,
		})
	}
}
