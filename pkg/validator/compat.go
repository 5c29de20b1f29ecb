package validator

import "strings"

// checkCompatibility runs the rule table over every non-blank,
// non-comment line. The first rule to match on the first matching line
// is reported.
func (v *Validator) checkCompatibility(source string) (Result, bool) {
	for i, raw := range strings.Split(source, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r, ok := v.rules.Match(line)
		if !ok {
			continue
		}
		return Result{
			Kind:       r.Kind,
			Line:       i + 1,
			Message:    r.Message,
			Suggestion: r.Suggestion,
			Severity:   r.EffectiveSeverity(),
			Rule:       r.ID,
		}, true
	}
	return Result{}, false
}

// FixResult is the outcome of Fix.
type FixResult struct {
	Source  string   `json:"code"`
	Changed bool     `json:"changed"`
	Applied []string `json:"applied,omitempty"` // rule IDs, in first-applied order
}

// Fix applies the mechanical rewrites of every compatibility rule that
// matches a line, on that line only. Rules without a rewrite are left for
// the user. Grammar errors are never touched.
func (v *Validator) Fix(source string) FixResult {
	lines := strings.Split(source, "\n")
	seen := map[string]bool{}
	var applied []string

	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		line := raw
		for _, r := range v.rules.Rules() {
			if !r.HasFix() || !r.Matches(strings.TrimSpace(line)) {
				continue
			}
			fixed := r.Apply(line)
			if fixed == line {
				continue
			}
			line = fixed
			if !seen[r.ID] {
				seen[r.ID] = true
				applied = append(applied, r.ID)
			}
		}
		lines[i] = line
	}

	out := strings.Join(lines, "\n")
	return FixResult{Source: out, Changed: out != source, Applied: applied}
}
