package nlc

import "strings"

// statement is one segmented input statement with its position.
type statement struct {
	index int
	text  string
}

// effect verbs recognized by segmentation and the rule-based resolver.
var permitVerbs = []string{"permit", "allow"}
var forbidVerbs = []string{"forbid", "block", "deny"}

func hasEffectVerb(text string) bool {
	words := strings.Fields(strings.ToLower(text))
	for _, w := range words {
		for _, v := range permitVerbs {
			if w == v {
				return true
			}
		}
		for _, v := range forbidVerbs {
			if w == v {
				return true
			}
		}
	}
	return false
}

// segment splits the input into independent statements. Periods and
// semicolons always delimit (outside brackets); a comma delimits only when
// both sides carry an effect verb of their own. Fragments produced by a
// comma split that lack a verb are reported as warnings, never merged or
// guessed.
func segment(text string) ([]statement, []Warning) {
	pieces := splitTopLevel(text, func(ch byte) bool { return ch == '.' || ch == ';' })

	var statements []statement
	var warnings []Warning
	index := 0

	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}

		fragments := splitTopLevel(piece, func(ch byte) bool { return ch == ',' })

		// Count fragments that could stand alone.
		withVerb := 0
		for _, frag := range fragments {
			if hasEffectVerb(frag) {
				withVerb++
			}
		}

		if withVerb <= 1 {
			// Commas are internal to a single statement (lists, clauses).
			statements = append(statements, statement{index: index, text: piece})
			index++
			continue
		}

		for _, frag := range fragments {
			frag = strings.TrimSpace(frag)
			if frag == "" {
				continue
			}
			if !hasEffectVerb(frag) {
				warnings = append(warnings, Warning{
					StatementIndex: index,
					Statement:      frag,
					Reason:         "ambiguous segment: fragment does not independently name an authorization intent",
				})
				index++
				continue
			}
			statements = append(statements, statement{index: index, text: frag})
			index++
		}
	}

	return statements, warnings
}

// splitTopLevel splits on delimiter characters that are outside [] brackets
// and not between digits (so "1.5" and "[US, CA]" stay whole).
func splitTopLevel(text string, isDelim func(byte) bool) []string {
	var out []string
	depth := 0
	start := 0

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 && isDelim(text[i]) {
				betweenDigits := i > 0 && i+1 < len(text) &&
					text[i-1] >= '0' && text[i-1] <= '9' &&
					text[i+1] >= '0' && text[i+1] <= '9'
				if !betweenDigits {
					out = append(out, text[start:i])
					start = i + 1
				}
			}
		}
	}
	out = append(out, text[start:])
	return out
}
