package nlc

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"arbiter-hq/arbiter/pkg/apl/ast"
	"arbiter-hq/arbiter/pkg/schema"
)

// Resolver turns one natural-language statement into a structured intent.
//
// The default implementation is deterministic phrase matching, but the
// interface deliberately admits implementations backed by an external
// language model. Those can be slow or remote, so Resolve takes a context
// and must honor cancellation.
type Resolver interface {
	Resolve(ctx context.Context, statement string, snap *schema.Snapshot) (*Intent, error)
}

// ResolveError describes why a statement could not be resolved. It becomes a
// Warning; it never aborts compilation of other statements.
type ResolveError struct {
	Reason string
}

func (e *ResolveError) Error() string {
	return e.Reason
}

func resolveErrorf(format string, args ...interface{}) *ResolveError {
	return &ResolveError{Reason: fmt.Sprintf(format, args...)}
}

// RuleBasedResolver resolves statements by exact phrase matching against the
// schema: target names, declared aliases, parameter names, and a fixed set
// of comparative phrases. It never infers beyond what the schema declares.
type RuleBasedResolver struct{}

// NewRuleBasedResolver creates the default resolver.
func NewRuleBasedResolver() *RuleBasedResolver {
	return &RuleBasedResolver{}
}

// comparative phrases in match order: longer phrases first so "less than"
// wins over "is", "at least" over "least".
var comparatives = []struct {
	phrase string
	op     ast.Operator
}{
	{"no more than", ast.OperatorLessEqual},
	{"at least", ast.OperatorGreaterEqual},
	{"at most", ast.OperatorLessEqual},
	{"up to", ast.OperatorLessEqual},
	{"less than", ast.OperatorLessThan},
	{"more than", ast.OperatorGreaterThan},
	{"greater than", ast.OperatorGreaterThan},
	{"under", ast.OperatorLessThan},
	{"below", ast.OperatorLessThan},
	{"over", ast.OperatorGreaterThan},
	{"above", ast.OperatorGreaterThan},
	{"exceeding", ast.OperatorGreaterThan},
	{"exceeds", ast.OperatorGreaterThan},
	{"equals", ast.OperatorEqual},
	{"is", ast.OperatorEqual},
}

var tagPhraseRe = regexp.MustCompile(`([a-zA-Z][\w-]*)\s+tag\s+is\s+(?:not\s+)?"?([\w.@-]+)"?`)
var tagPhraseNegRe = regexp.MustCompile(`([a-zA-Z][\w-]*)\s+tag\s+is\s+not\s+`)
var absenceRe = regexp.MustCompile(`is\s+(absent|missing)`)
var setRe = regexp.MustCompile(`\[([^\]]*)\]`)

// Resolve implements Resolver.
func (r *RuleBasedResolver) Resolve(ctx context.Context, stmt string, snap *schema.Snapshot) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lower := strings.ToLower(stmt)

	effect, err := resolveEffect(lower)
	if err != nil {
		return nil, err
	}

	specs, err := resolveActions(lower, snap)
	if err != nil {
		return nil, err
	}

	condText := stmt
	negate := false
	if idx := indexWord(lower, "unless"); idx >= 0 {
		condText = stmt[idx+len("unless"):]
		negate = true
	}

	condition, err := r.synthesizeCondition(condText, specs)
	if err != nil {
		return nil, err
	}
	if negate {
		if condition == nil {
			return nil, resolveErrorf("%q clause without a recognizable condition", "unless")
		}
		condition = ast.Not(condition)
	}

	actionIDs := make([]string, 0, len(specs))
	for _, spec := range specs {
		actionIDs = append(actionIDs, spec.ID)
	}

	return &Intent{
		Effect:    effect,
		ActionIDs: actionIDs,
		Condition: condition,
	}, nil
}

func resolveEffect(lower string) (ast.Effect, error) {
	for _, v := range permitVerbs {
		if indexWord(lower, v) >= 0 {
			return ast.EffectPermit, nil
		}
	}
	for _, v := range forbidVerbs {
		if indexWord(lower, v) >= 0 {
			return ast.EffectForbid, nil
		}
	}
	return "", resolveErrorf("no effect verb (allow/permit or block/forbid/deny) found")
}

// resolveActions maps tool mentions to schema actions. A target matches if
// its humanized name, its humanized name minus a trailing "Target", or one
// of its declared aliases appears in the statement. If the matched target
// has several methods, a method-name mention is required to pick one.
func resolveActions(lower string, snap *schema.Snapshot) ([]*schema.ActionSpec, error) {
	byTarget := make(map[string][]*schema.ActionSpec)
	for _, spec := range snap.Actions() {
		byTarget[spec.Target] = append(byTarget[spec.Target], spec)
	}

	var matchedTarget string
	for target, specs := range byTarget {
		names := []string{humanize(target), humanize(strings.TrimSuffix(target, "Target"))}
		names = append(names, aliasNames(specs[0])...)

		for _, name := range names {
			if name == "" || indexPhrase(lower, name) < 0 {
				continue
			}
			if matchedTarget != "" && matchedTarget != target {
				return nil, resolveErrorf("statement mentions more than one tool (%q and %q)",
					matchedTarget, target)
			}
			matchedTarget = target
		}
	}

	if matchedTarget == "" {
		return nil, resolveErrorf("no declared tool name matches the statement")
	}

	candidates := byTarget[matchedTarget]
	if len(candidates) == 1 {
		return candidates, nil
	}

	var byMethod []*schema.ActionSpec
	for _, spec := range candidates {
		if indexPhrase(lower, humanize(spec.Method)) >= 0 {
			byMethod = append(byMethod, spec)
		}
	}
	if len(byMethod) == 0 {
		return nil, resolveErrorf("tool %q exposes %d methods and the statement names none of them",
			matchedTarget, len(candidates))
	}
	return byMethod, nil
}

func aliasNames(spec *schema.ActionSpec) []string {
	out := make([]string, 0, len(spec.Aliases))
	for _, a := range spec.Aliases {
		out = append(out, strings.ToLower(strings.TrimSpace(a)))
	}
	return out
}

// synthesizeCondition builds a condition tree from tag phrases, absence
// phrases, and parameter comparatives found in the statement. Returns nil
// when the statement carries no condition language.
func (r *RuleBasedResolver) synthesizeCondition(text string, specs []*schema.ActionSpec) (*ast.ExprNode, error) {
	lower := strings.ToLower(text)
	var conjuncts []*ast.ExprNode

	// Tag phrases: always the hasTag guard before getTag.
	for _, m := range tagPhraseRe.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(m[1])
		value := m[2]
		guarded := ast.And(
			ast.HasTag(name),
			ast.Compare(ast.OperatorEqual, ast.GetTag(name), ast.Literal(ast.StringValue(value))),
		)
		if tagPhraseNegRe.MatchString(strings.ToLower(m[0])) {
			conjuncts = append(conjuncts, ast.Not(guarded))
		} else {
			conjuncts = append(conjuncts, guarded)
		}
	}

	// Parameter phrases against the schema declarations shared by all
	// resolved actions.
	param, paramType, err := findParamMention(lower, specs)
	if err != nil {
		return nil, err
	}
	if param != "" {
		expr, err := r.paramCondition(text, lower, param, paramType)
		if err != nil {
			return nil, err
		}
		if expr != nil {
			conjuncts = append(conjuncts, expr)
		}
	}

	switch len(conjuncts) {
	case 0:
		return nil, nil
	case 1:
		return conjuncts[0], nil
	default:
		return ast.And(conjuncts...), nil
	}
}

// findParamMention locates a declared parameter mentioned in the statement.
// A parameter matches on its full normalized name ("coverage amount") or on
// its first word alone when no sibling parameter shares that word
// ("coverage" resolves to coverage_amount). The schema declaration is the
// whole universe: anything else is unresolvable.
func findParamMention(lower string, specs []*schema.ActionSpec) (string, schema.ParamType, error) {
	shared := sharedParams(specs)

	var matched string
	var matchedType schema.ParamType
	for _, p := range shared {
		full := strings.ReplaceAll(p.Name, "_", " ")
		firstWord := strings.SplitN(full, " ", 2)[0]

		hit := indexPhrase(lower, full) >= 0
		if !hit && indexPhrase(lower, firstWord) >= 0 && uniqueFirstWord(shared, firstWord) {
			hit = true
		}
		if !hit {
			continue
		}
		if matched != "" && matched != p.Name {
			return "", "", resolveErrorf("statement mentions more than one parameter (%q and %q)", matched, p.Name)
		}
		matched = p.Name
		matchedType = p.Type
	}
	return matched, matchedType, nil
}

// sharedParams returns the parameters declared with the same type by every
// resolved action.
func sharedParams(specs []*schema.ActionSpec) []schema.Param {
	if len(specs) == 0 {
		return nil
	}
	var out []schema.Param
	for _, p := range specs[0].Params {
		sharedByAll := true
		for _, other := range specs[1:] {
			t, ok := other.ParamType(p.Name)
			if !ok || t != p.Type {
				sharedByAll = false
				break
			}
		}
		if sharedByAll {
			out = append(out, p)
		}
	}
	return out
}

func uniqueFirstWord(params []schema.Param, word string) bool {
	count := 0
	for _, p := range params {
		if strings.SplitN(strings.ReplaceAll(p.Name, "_", " "), " ", 2)[0] == word {
			count++
		}
	}
	return count == 1
}

// paramCondition synthesizes the condition for one mentioned parameter.
func (r *RuleBasedResolver) paramCondition(text, lower, param string, paramType schema.ParamType) (*ast.ExprNode, error) {
	// Absence phrase: "if coverage_amount is absent" compiles to an explicit
	// has() guard, never to implicit missing-field semantics.
	if absenceRe.MatchString(lower) {
		return ast.Not(ast.Has(param)), nil
	}

	// Set membership: "in [US, CA]".
	if m := setRe.FindStringSubmatch(text); m != nil {
		set, err := parseSetLiteral(m[1], paramType)
		if err != nil {
			return nil, err
		}
		return ast.In(ast.Field(param), set), nil
	}

	for _, c := range comparatives {
		idx := indexPhrase(lower, c.phrase)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(text[idx+len(c.phrase):])
		value, err := parseValueToken(rest, paramType)
		if err != nil {
			return nil, err
		}
		if c.op.IsOrdering() && value.Type != ast.ValueTypeNumber {
			return nil, resolveErrorf("comparative %q needs a numeric value, found %q", c.phrase, rest)
		}
		return ast.Compare(c.op, ast.Field(param), ast.Literal(value)), nil
	}

	return nil, resolveErrorf("parameter %q is mentioned without a supported comparative phrase", param)
}

func parseSetLiteral(inner string, paramType schema.ParamType) ([]ast.Value, error) {
	var set []ast.Value
	for _, raw := range strings.Split(inner, ",") {
		raw = strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`))
		if raw == "" {
			continue
		}
		v, err := parseScalar(raw, paramType)
		if err != nil {
			return nil, err
		}
		set = append(set, v)
	}
	if len(set) == 0 {
		return nil, resolveErrorf("empty value set")
	}
	return set, nil
}

// parseValueToken parses the first value token of rest.
func parseValueToken(rest string, paramType schema.ParamType) (ast.Value, error) {
	if rest == "" {
		return ast.Value{}, resolveErrorf("comparative phrase with no value")
	}
	fields := strings.Fields(rest)
	token := strings.Trim(fields[0], `"',.;`)
	return parseScalar(token, paramType)
}

// parseScalar parses one scalar against the declared parameter type.
func parseScalar(token string, paramType schema.ParamType) (ast.Value, error) {
	switch paramType {
	case schema.TypeNumber:
		n, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", ""), 64)
		if err != nil {
			return ast.Value{}, resolveErrorf("expected a number, found %q", token)
		}
		return ast.NumberValue(n), nil
	case schema.TypeBoolean:
		b, err := strconv.ParseBool(token)
		if err != nil {
			return ast.Value{}, resolveErrorf("expected a boolean, found %q", token)
		}
		return ast.BoolValue(b), nil
	default:
		return ast.StringValue(token), nil
	}
}

// humanize turns a CamelCase identifier or snake_case name into a
// space-separated lowercase phrase: "ApplicationToolTarget" becomes
// "application tool target", "create_application" becomes
// "create application".
func humanize(name string) string {
	if name == "" {
		return ""
	}
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteByte(ch - 'A' + 'a')
		case ch == '_':
			sb.WriteByte(' ')
		default:
			sb.WriteByte(ch)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// indexPhrase finds phrase in text at word boundaries, or -1.
func indexPhrase(text, phrase string) int {
	for from := 0; from <= len(text)-len(phrase); {
		idx := strings.Index(text[from:], phrase)
		if idx < 0 {
			return -1
		}
		abs := from + idx
		beforeOK := abs == 0 || !isWordChar(text[abs-1])
		end := abs + len(phrase)
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return abs
		}
		from = abs + 1
	}
	return -1
}

// indexWord finds a single word at word boundaries.
func indexWord(text, word string) int {
	return indexPhrase(text, word)
}

func isWordChar(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
