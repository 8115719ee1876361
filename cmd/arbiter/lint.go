package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"arbiter-hq/arbiter/pkg/apl"
	aplErrors "arbiter-hq/arbiter/pkg/apl/errors"
	"arbiter-hq/arbiter/pkg/schema"
)

var lintFlags struct {
	file      string
	dir       string
	catalogue string
	format    string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate policy files",
	Long: `Validate APL policy files for syntax and schema binding errors.

The lint command parses each policy file and checks it against the schema
catalogue:
  - APL syntax (effects, scopes, when clauses)
  - Action ids resolve to declared tool methods
  - Condition references use declared parameters with matching types

Examples:
  # Lint a single file
  arbiter lint --file policies/claims.apl --catalogue schema/catalogue.yaml

  # Lint a directory
  arbiter lint --dir policies/ --catalogue schema/catalogue.yaml

  # JSON output for CI/CD
  arbiter lint --dir policies/ --catalogue schema/catalogue.yaml --format json`,
	RunE: lintPolicies,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "policy file to validate")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of .apl policy files")
	lintCmd.Flags().StringVar(&lintFlags.catalogue, "catalogue", "", "schema catalogue YAML (required)")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
	lintCmd.MarkFlagRequired("catalogue")
}

// LintResult is the validation result for a single policy file.
type LintResult struct {
	File     string      `json:"file"`
	Valid    bool        `json:"valid"`
	Policies int         `json:"policies"`
	Errors   []LintError `json:"errors,omitempty"`
}

// LintError is a single validation error.
type LintError struct {
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
	Type       string `json:"type,omitempty"`
	Message    string `json:"message"`
	Clause     string `json:"clause,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func lintPolicies(cmd *cobra.Command, args []string) error {
	if lintFlags.file == "" && lintFlags.dir == "" {
		return fmt.Errorf("either --file or --dir must be specified")
	}

	registry, err := schema.LoadCatalogue(lintFlags.catalogue)
	if err != nil {
		return fmt.Errorf("failed to load schema catalogue: %w", err)
	}
	snap := registry.Snapshot()

	var files []string
	if lintFlags.file != "" {
		files = append(files, lintFlags.file)
	}
	if lintFlags.dir != "" {
		matches, err := filepath.Glob(filepath.Join(lintFlags.dir, "*.apl"))
		if err != nil {
			return fmt.Errorf("failed to list policy files: %w", err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no policy files found")
	}

	results := make([]LintResult, 0, len(files))
	for _, file := range files {
		results = append(results, lintFile(file, snap))
	}

	if lintFlags.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		printLintResults(results)
	}

	for _, r := range results {
		if !r.Valid {
			return fmt.Errorf("validation failed")
		}
	}
	return nil
}

func lintFile(path string, snap *schema.Snapshot) LintResult {
	result := LintResult{File: path, Valid: true}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, LintError{Message: err.Error()})
		return result
	}

	policies, err := apl.ParseAndValidateAll(string(data), path, snap)
	if err != nil {
		result.Valid = false
		result.Errors = toLintErrors(err)
		return result
	}

	result.Policies = len(policies)
	return result
}

// toLintErrors flattens APL error values into lint output rows.
func toLintErrors(err error) []LintError {
	var list *aplErrors.ErrorList
	if errors.As(err, &list) {
		out := make([]LintError, 0, len(list.Errors))
		for _, e := range list.Errors {
			out = append(out, toLintError(e))
		}
		return out
	}

	var single *aplErrors.Error
	if errors.As(err, &single) {
		return []LintError{toLintError(single)}
	}

	return []LintError{{Message: err.Error()}}
}

func toLintError(e *aplErrors.Error) LintError {
	return LintError{
		Line:       e.Location.Line,
		Column:     e.Location.Column,
		Type:       string(e.Type),
		Message:    e.Message,
		Clause:     e.Clause,
		Suggestion: e.Suggestion,
	}
}

func printLintResults(results []LintResult) {
	for _, r := range results {
		if r.Valid {
			fmt.Printf("✓ %s (%d policies)\n", r.File, r.Policies)
			continue
		}
		fmt.Printf("✗ %s\n", r.File)
		for _, e := range r.Errors {
			if e.Line > 0 {
				fmt.Printf("  %d:%d  %s", e.Line, e.Column, e.Message)
			} else {
				fmt.Printf("  %s", e.Message)
			}
			if e.Suggestion != "" {
				fmt.Printf(" (%s)", e.Suggestion)
			}
			fmt.Println()
		}
	}
}
