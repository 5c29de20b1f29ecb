// Package rules defines the compatibility rule table: the curated list of
// constructs known to break on the target Manim release, kept as data so it
// can follow the renderer's version history without code changes.
package rules

// TableVersion is the only rule table format understood by this package.
const TableVersion = "rules/v1"

// ---------------------------------------------------------------------------
// Diagnostic taxonomy
// ---------------------------------------------------------------------------

// Kind discriminates diagnostics. It drives message and severity selection.
type Kind string

const (
	KindNone           Kind = ""
	KindFontWeight     Kind = "FontWeightIncompatibility"
	KindGradientArity  Kind = "GradientArityIncompatibility"
	KindLatexUsage     Kind = "LatexUsageWarning"
	KindEscapeSequence Kind = "EscapeSequenceWarning"
	KindGenericSyntax  Kind = "GenericSyntaxError"
)

// String returns the kind name, "None" for the zero value.
func (k Kind) String() string {
	if k == KindNone {
		return "None"
	}
	return string(k)
}

// CompatibilityKinds lists the kinds a rule table entry may report.
var CompatibilityKinds = []Kind{
	KindFontWeight,
	KindGradientArity,
	KindLatexUsage,
	KindEscapeSequence,
}

// IsCompatibility reports whether k may be produced by a compatibility rule.
func (k Kind) IsCompatibility() bool {
	for _, c := range CompatibilityKinds {
		if k == c {
			return true
		}
	}
	return false
}

// Severity is either error (execution will fail) or warning (advisory).
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ---------------------------------------------------------------------------
// Table
// ---------------------------------------------------------------------------

// Table is the top-level rule table document.
type Table struct {
	Version string `yaml:"version" json:"version" jsonschema:"enum=rules/v1"`
	Target  string `yaml:"target"  json:"target"  jsonschema:"description=Renderer release the rules were written against"`
	Rules   []Rule `yaml:"rules"   json:"rules"   jsonschema:"minItems=1"`
}

// Rule is one compatibility check. Rules are evaluated in table order
// against each source line; the first match wins.
type Rule struct {
	ID         string    `yaml:"id"                   json:"id"                   jsonschema:"pattern=^[a-z][a-z0-9-]*$"`
	Kind       Kind      `yaml:"kind"                 json:"kind"                 jsonschema:"enum=FontWeightIncompatibility,enum=GradientArityIncompatibility,enum=LatexUsageWarning,enum=EscapeSequenceWarning"`
	Severity   Severity  `yaml:"severity,omitempty"   json:"severity,omitempty"   jsonschema:"enum=error,enum=warning"`
	Match      Match     `yaml:"match"                json:"match"`
	Message    string    `yaml:"message"              json:"message"              jsonschema:"minLength=1"`
	Suggestion string    `yaml:"suggestion,omitempty" json:"suggestion,omitempty"`
	Fix        []Rewrite `yaml:"fix,omitempty"        json:"fix,omitempty"`
}

// Match describes when a rule fires on a line. All populated clauses must
// hold: at least one Contains substring, the Regex, none of Exclude, and
// for Call rules the When predicate over the call's arguments.
type Match struct {
	Contains []string `yaml:"contains,omitempty" json:"contains,omitempty"`
	Regex    string   `yaml:"regex,omitempty"    json:"regex,omitempty"`
	Exclude  []string `yaml:"exclude,omitempty"  json:"exclude,omitempty"`
	Call     string   `yaml:"call,omitempty"     json:"call,omitempty"     jsonschema:"pattern=^[A-Za-z_][A-Za-z0-9_]*$"`
	When     string   `yaml:"when,omitempty"     json:"when,omitempty"     jsonschema:"description=expr-lang predicate over args and argc and line"`
}

// Rewrite is one mechanical fix step: an RE2 pattern and its replacement
// (regexp.ReplaceAllString syntax).
type Rewrite struct {
	Pattern string `yaml:"pattern" json:"pattern" jsonschema:"minLength=1"`
	Replace string `yaml:"replace" json:"replace"`
}

// EffectiveSeverity returns the rule severity, defaulting to warning.
func (r *Rule) EffectiveSeverity() Severity {
	if r.Severity == "" {
		return SeverityWarning
	}
	return r.Severity
}
