package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"arbiter-hq/arbiter/pkg/nlc"
	"arbiter-hq/arbiter/pkg/schema"
)

var compileFlags struct {
	catalogue string
	file      string
	format    string
}

var compileCmd = &cobra.Command{
	Use:   "compile [statement...]",
	Short: "Compile natural language into policies",
	Long: `Compile natural-language authorization statements into APL policies.

Statements are segmented on periods and semicolons, resolved against the
schema catalogue, and emitted as validated policy text. Statements that
cannot be resolved become indexed warnings; nothing is guessed at.

Examples:
  # Compile a statement from the command line
  arbiter compile --catalogue schema/catalogue.yaml \
    "permit application tool for coverage under 1000000"

  # Compile statements from a file
  arbiter compile --catalogue schema/catalogue.yaml --file intents.txt

  # JSON output
  arbiter compile --catalogue schema/catalogue.yaml --format json \
    "forbid approval tool unless role tag is senior-adjuster"`,
	RunE: compileStatements,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVar(&compileFlags.catalogue, "catalogue", "", "schema catalogue YAML (required)")
	compileCmd.Flags().StringVarP(&compileFlags.file, "file", "f", "", "file containing statements")
	compileCmd.Flags().StringVar(&compileFlags.format, "format", "text", "output format: text, json")
	compileCmd.MarkFlagRequired("catalogue")
}

// CompileOutput is the JSON shape of a compile run.
type CompileOutput struct {
	Policies []CompiledPolicy `json:"policies"`
	Warnings []CompileWarning `json:"warnings,omitempty"`
}

// CompiledPolicy is one generated policy.
type CompiledPolicy struct {
	Text string `json:"text"`
}

// CompileWarning is one unresolvable statement.
type CompileWarning struct {
	Statement int    `json:"statement"`
	Text      string `json:"text"`
	Reason    string `json:"reason"`
}

func compileStatements(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if compileFlags.file != "" {
		data, err := os.ReadFile(compileFlags.file)
		if err != nil {
			return fmt.Errorf("failed to read statements file: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no statements given (pass arguments or --file)")
	}

	registry, err := schema.LoadCatalogue(compileFlags.catalogue)
	if err != nil {
		return fmt.Errorf("failed to load schema catalogue: %w", err)
	}

	compiler := nlc.NewCompiler(nil, nil)
	generated, warnings, err := compiler.Compile(cmd.Context(), text, registry.Snapshot())
	if err != nil {
		return err
	}

	if compileFlags.format == "json" {
		out := CompileOutput{}
		for _, g := range generated {
			out.Policies = append(out.Policies, CompiledPolicy{Text: g.Text})
		}
		for _, w := range warnings {
			out.Warnings = append(out.Warnings, CompileWarning{
				Statement: w.StatementIndex,
				Text:      w.Statement,
				Reason:    w.Reason,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, g := range generated {
		fmt.Println(g.Text)
		fmt.Println()
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	return nil
}
