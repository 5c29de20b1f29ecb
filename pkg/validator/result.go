package validator

import (
	"fmt"

	"github.com/manimagic/manimagic/pkg/rules"
)

// Kind and Severity are shared with the rule table so a table entry can
// name the diagnostic it produces.
type (
	Kind     = rules.Kind
	Severity = rules.Severity
)

const (
	KindNone           = rules.KindNone
	KindFontWeight     = rules.KindFontWeight
	KindGradientArity  = rules.KindGradientArity
	KindLatexUsage     = rules.KindLatexUsage
	KindEscapeSequence = rules.KindEscapeSequence
	KindGenericSyntax  = rules.KindGenericSyntax

	SeverityError   = rules.SeverityError
	SeverityWarning = rules.SeverityWarning
)

// Result is the outcome of one Validate call. It is built fresh per call
// and never mutated after it is returned.
type Result struct {
	Valid      bool     `json:"isValid"`
	Kind       Kind     `json:"kind,omitempty"`
	Line       int      `json:"line,omitempty"`   // 1-based; 0 when unknown
	Column     int      `json:"column,omitempty"` // 1-based, in runes; 0 when unknown
	Message    string   `json:"message,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	Severity   Severity `json:"severity,omitempty"`
	Rule       string   `json:"rule,omitempty"` // compatibility rule ID or grammar heuristic name
}

func valid() Result {
	return Result{Valid: true}
}

// Blocking reports whether the caller should refuse to submit the source.
// Compatibility warnings are advisory; only grammar errors block.
func (r Result) Blocking() bool {
	return !r.Valid && r.Severity == SeverityError
}

func (r Result) String() string {
	if r.Valid {
		return "valid"
	}
	loc := ""
	switch {
	case r.Line > 0 && r.Column > 0:
		loc = fmt.Sprintf(" at %d:%d", r.Line, r.Column)
	case r.Line > 0:
		loc = fmt.Sprintf(" at line %d", r.Line)
	}
	return fmt.Sprintf("%s[%s]%s: %s", r.Severity, r.Kind, loc, r.Message)
}
