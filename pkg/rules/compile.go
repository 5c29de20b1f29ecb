package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// CompiledTable is an immutable, ready-to-evaluate rule table. It is safe
// for concurrent use.
type CompiledTable struct {
	Version string
	Target  string
	rules   []*CompiledRule
}

// CompiledRule is a rule with its patterns and predicate compiled.
type CompiledRule struct {
	Rule
	regex *regexp.Regexp
	call  *regexp.Regexp
	when  *vm.Program
	fix   []compiledRewrite
}

type compiledRewrite struct {
	re      *regexp.Regexp
	replace string
}

// whenEnv is the environment a Call rule's When predicate is evaluated in.
type whenEnv struct {
	Args []string `expr:"args"`
	Argc int      `expr:"argc"`
	Line string   `expr:"line"`
}

func compileWhen(src string) (*vm.Program, error) {
	prog, err := expr.Compile(src, expr.Env(whenEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile when %q: %w", src, err)
	}
	return prog, nil
}

// Compile validates t and compiles every rule.
func Compile(t *Table) (*CompiledTable, error) {
	if errs := Validate(t); len(errs) > 0 {
		return nil, joinTableErrors(errs)
	}

	ct := &CompiledTable{Version: t.Version, Target: t.Target}
	for _, r := range t.Rules {
		cr := &CompiledRule{Rule: r}
		if r.Match.Regex != "" {
			cr.regex = regexp.MustCompile(r.Match.Regex)
		}
		if r.Match.Call != "" {
			cr.call = regexp.MustCompile(`\b` + regexp.QuoteMeta(r.Match.Call) + `\s*\(`)
		}
		if r.Match.When != "" {
			prog, err := compileWhen(r.Match.When)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %q: %v", ErrInvalidTable, r.ID, err)
			}
			cr.when = prog
		}
		for _, fx := range r.Fix {
			cr.fix = append(cr.fix, compiledRewrite{re: regexp.MustCompile(fx.Pattern), replace: fx.Replace})
		}
		ct.rules = append(ct.rules, cr)
	}
	return ct, nil
}

// Rules returns the compiled rules in evaluation order.
func (t *CompiledTable) Rules() []*CompiledRule {
	out := make([]*CompiledRule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Table returns the source form of the compiled table.
func (t *CompiledTable) Table() *Table {
	out := &Table{Version: t.Version, Target: t.Target}
	for _, r := range t.rules {
		out.Rules = append(out.Rules, r.Rule)
	}
	return out
}

// Match returns the first rule, in table order, that fires on line.
func (t *CompiledTable) Match(line string) (*CompiledRule, bool) {
	for _, r := range t.rules {
		if r.Matches(line) {
			return r, true
		}
	}
	return nil, false
}

// Matches reports whether the rule fires on a single (trimmed) source line.
// A When predicate that fails at run time counts as no match.
func (r *CompiledRule) Matches(line string) bool {
	m := &r.Match
	if len(m.Contains) > 0 && !containsAny(line, m.Contains) {
		return false
	}
	if r.regex != nil && !r.regex.MatchString(line) {
		return false
	}
	if containsAny(line, m.Exclude) {
		return false
	}
	if r.call == nil {
		return true
	}

	loc := r.call.FindStringIndex(line)
	if loc == nil {
		return false
	}
	raw, ok := callArgs(line[loc[1]:])
	if !ok || strings.TrimSpace(raw) == "" {
		return false
	}
	if r.when == nil {
		return true
	}
	args := SplitArgs(raw)
	out, err := expr.Run(r.when, whenEnv{Args: args, Argc: len(args), Line: line})
	if err != nil {
		return false
	}
	ok, _ = out.(bool)
	return ok
}

// HasFix reports whether the rule carries a mechanical rewrite.
func (r *CompiledRule) HasFix() bool {
	return len(r.fix) > 0
}

// Apply runs the rule's rewrites over line in order.
func (r *CompiledRule) Apply(line string) string {
	for _, fx := range r.fix {
		line = fx.re.ReplaceAllString(line, fx.replace)
	}
	return line
}

// callArgs returns the argument text of a call whose opening paren has
// just been consumed, up to the matching close. It reports false when the
// call is not closed on the line.
func callArgs(rest string) (string, bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				return rest[:i], c == ')'
			}
			depth--
		}
	}
	return "", false
}

// SplitArgs splits a raw argument list on its top-level commas and trims
// each element. Commas inside nested calls, brackets or strings do not
// split.
func SplitArgs(raw string) []string {
	var parts []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(raw[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(raw[start:]))
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
