package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"arbiter-hq/arbiter/pkg/audit"
	"arbiter-hq/arbiter/pkg/authz"
	"arbiter-hq/arbiter/pkg/config"
	"arbiter-hq/arbiter/pkg/policy/engine"
	"arbiter-hq/arbiter/pkg/policy/source"
	"arbiter-hq/arbiter/pkg/policy/store"
	"arbiter-hq/arbiter/pkg/schema"
)

var evalFlags struct {
	catalogue string
	dir       string
	mode      string
	request   string
	gateway   string
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate one request against a policy directory",
	Long: `Evaluate a single authorization request and print the decision.

The request is a JSON document:

  {
    "principal_tags": {"role": "adjuster"},
    "action_id": "ApplicationToolTarget___create_application",
    "resource": "arn:gateway:prod-1",
    "input": {"coverage_amount": 250000}
  }

All policies in the directory are loaded, validated against the catalogue,
and attached to a fresh engine in the requested mode.

Examples:
  arbiter eval --dir policies/ --catalogue schema/catalogue.yaml --request request.json

  # Read the request from stdin, log-only mode
  cat request.json | arbiter eval --dir policies/ --catalogue schema/catalogue.yaml \
    --request - --mode log_only`,
	RunE: evalRequest,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVar(&evalFlags.catalogue, "catalogue", "", "schema catalogue YAML (required)")
	evalCmd.Flags().StringVarP(&evalFlags.dir, "dir", "d", "", "directory of .apl policy files (required)")
	evalCmd.Flags().StringVar(&evalFlags.mode, "mode", "enforce", "engine mode: enforce, log_only")
	evalCmd.Flags().StringVarP(&evalFlags.request, "request", "r", "", "request JSON file, or - for stdin (required)")
	evalCmd.Flags().StringVar(&evalFlags.gateway, "gateway", "cli", "gateway id to evaluate as")
	evalCmd.MarkFlagRequired("catalogue")
	evalCmd.MarkFlagRequired("dir")
	evalCmd.MarkFlagRequired("request")
}

// EvalRequest is the JSON request shape.
type EvalRequest struct {
	PrincipalTags map[string]string      `json:"principal_tags"`
	ActionID      string                 `json:"action_id"`
	Resource      string                 `json:"resource"`
	Input         map[string]interface{} `json:"input"`
}

// EvalOutput is the JSON decision shape.
type EvalOutput struct {
	Allowed          bool     `json:"allowed"`
	Blocked          bool     `json:"blocked"`
	Mode             string   `json:"mode"`
	MatchedPermitIDs []string `json:"matched_permit_ids,omitempty"`
	MatchedForbidIDs []string `json:"matched_forbid_ids,omitempty"`
	PolicyErrors     []string `json:"policy_errors,omitempty"`
	Candidates       int      `json:"candidates"`
	EvaluationTimeUs int64    `json:"evaluation_time_us"`
}

func evalRequest(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	if cfgFile != "" {
		loaded, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		if evalFlags.catalogue == "" {
			evalFlags.catalogue = cfg.Schema.CataloguePath
		}
		if evalFlags.dir == "" {
			evalFlags.dir = cfg.Policy.Path
		}
		if !cmd.Flags().Changed("mode") {
			evalFlags.mode = cfg.Policy.Mode
		}
	}

	registry, err := schema.LoadCatalogue(evalFlags.catalogue)
	if err != nil {
		return fmt.Errorf("failed to load schema catalogue: %w", err)
	}

	var reqData []byte
	if evalFlags.request == "-" {
		reqData, err = io.ReadAll(os.Stdin)
	} else {
		reqData, err = os.ReadFile(evalFlags.request)
	}
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}

	var rawReq EvalRequest
	if err := json.Unmarshal(reqData, &rawReq); err != nil {
		return fmt.Errorf("failed to parse request JSON: %w", err)
	}
	if rawReq.ActionID == "" {
		return fmt.Errorf("request is missing action_id")
	}

	req, err := engine.NewRequest(rawReq.PrincipalTags, rawReq.ActionID, rawReq.Resource, rawReq.Input)
	if err != nil {
		return fmt.Errorf("invalid request input: %w", err)
	}

	fileSource := source.NewFileSource(evalFlags.dir, registry, nil)
	policies, err := fileSource.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	policyStore := store.NewStore(nil)
	if err := policyStore.ReplaceAll(policies); err != nil {
		return fmt.Errorf("failed to store policies: %w", err)
	}

	var opts authz.Options
	var sink audit.Storage
	if cfg != nil && cfg.Audit.Enabled {
		sink, err = openAuditStorage(&cfg.Audit)
		if err != nil {
			return err
		}
		opts.Recorder = audit.NewRecorder(sink, &audit.RecorderConfig{
			Enabled:      true,
			AsyncBuffer:  cfg.Audit.AsyncBuffer,
			WriteTimeout: cfg.Audit.WriteTimeout,
		})
	}

	authorizer := authz.New(policyStore, registry, opts)
	// Flushes the audit recorder; must also run before the blocked exit
	// below, which bypasses defers.
	var shutdownOnce sync.Once
	shutdown := func() {
		shutdownOnce.Do(func() {
			authorizer.Close()
			if sink != nil {
				sink.Close()
			}
		})
	}
	defer shutdown()

	engineID, err := authorizer.CreateEngine(engine.Mode(evalFlags.mode))
	if err != nil {
		return err
	}
	for _, p := range policyStore.Snapshot().Policies() {
		if err := authorizer.AttachPolicy(engineID, p.ID); err != nil {
			return err
		}
	}
	if err := authorizer.AttachGateway(engineID, evalFlags.gateway); err != nil {
		return err
	}

	decision := authorizer.Evaluate(cmd.Context(), evalFlags.gateway, req)

	out := EvalOutput{
		Allowed:          decision.Allowed,
		Blocked:          decision.ShouldBlock(),
		Mode:             string(decision.ModeApplied),
		MatchedPermitIDs: decision.MatchedPermitIDs,
		MatchedForbidIDs: decision.MatchedForbidIDs,
		Candidates:       decision.CandidateCount,
		EvaluationTimeUs: decision.EvaluationTime.Microseconds(),
	}
	for _, pe := range decision.PolicyErrors {
		out.PolicyErrors = append(out.PolicyErrors, fmt.Sprintf("%s: %s", pe.PolicyID, pe.Err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}

	if out.Blocked {
		shutdown()
		os.Exit(2)
	}
	return nil
}
