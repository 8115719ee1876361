package nlc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"arbiter-hq/arbiter/pkg/apl"
	"arbiter-hq/arbiter/pkg/apl/ast"
	"arbiter-hq/arbiter/pkg/schema"
)

// Compiler turns natural-language authorization intent into validated APL
// policies. Statements that cannot be resolved become warnings; they never
// silently disappear and never abort the statements around them.
type Compiler struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewCompiler creates a compiler with the given resolver. A nil resolver
// selects the deterministic rule-based one.
func NewCompiler(resolver Resolver, logger *slog.Logger) *Compiler {
	if resolver == nil {
		resolver = NewRuleBasedResolver()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{resolver: resolver, logger: logger}
}

// Compile segments the input, resolves each statement, and emits one
// validated policy per resolved statement. Every generated policy is
// serialized and re-parsed against the schema before it is returned, so
// callers only ever see policies the parser and validator both accept.
//
// The error return is reserved for context cancellation and internal
// failures; per-statement problems are warnings.
func (c *Compiler) Compile(ctx context.Context, text string, snap *schema.Snapshot) ([]GeneratedPolicy, []Warning, error) {
	statements, warnings := segment(text)

	var generated []GeneratedPolicy
	for _, stmt := range statements {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		intent, err := c.resolver.Resolve(ctx, stmt.text, snap)
		if err != nil {
			var re *ResolveError
			if errors.As(err, &re) {
				c.logger.Debug("statement not resolved",
					slog.Int("statement", stmt.index),
					slog.String("reason", re.Reason))
				warnings = append(warnings, Warning{
					StatementIndex: stmt.index,
					Statement:      stmt.text,
					Reason:         re.Reason,
				})
				continue
			}
			return nil, nil, err
		}

		policy := &ast.Policy{
			Effect:      intent.Effect,
			Status:      ast.StatusActive,
			ActionScope: ast.ActionScope{Actions: intent.ActionIDs},
			Condition:   intent.Condition,
		}

		serialized := policy.Serialize()
		reparsed, err := apl.ParseAndValidate(serialized, "", snap)
		if err != nil {
			return nil, nil, fmt.Errorf("generated policy for statement %d failed validation: %w", stmt.index, err)
		}
		if !policy.Equal(reparsed) {
			return nil, nil, fmt.Errorf("generated policy for statement %d did not survive a parse round trip", stmt.index)
		}

		generated = append(generated, GeneratedPolicy{
			Policy: reparsed,
			Text:   serialized,
		})
	}

	return generated, warnings, nil
}
