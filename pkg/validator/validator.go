// Package validator checks Manim scene scripts before they are rendered.
//
// Validation runs in two passes:
//
//  1. Compatibility: a line-oriented rule table flags API usage that is
//     syntactically fine Python but breaks on the targeted Manim version.
//  2. Grammar: the source is parsed and the first error node is turned into
//     a human-readable diagnostic by an ordered list of heuristics.
//
// The first diagnostic wins. The grammar pass fails open: if the parser
// errors or panics the source is reported valid and the renderer produces
// the authoritative error.
package validator

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/manimagic/manimagic/pkg/pyparse"
	"github.com/manimagic/manimagic/pkg/rules"
)

// Validator holds the compiled rule table and the grammar engine. A
// Validator is immutable after New and safe for concurrent use.
type Validator struct {
	rules  *rules.CompiledTable
	parser pyparse.Parser
	logger *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithRules replaces the embedded default rule table.
func WithRules(t *rules.CompiledTable) Option {
	return func(v *Validator) {
		if t != nil {
			v.rules = t
		}
	}
}

// WithParser replaces the grammar engine.
func WithParser(p pyparse.Parser) Option {
	return func(v *Validator) {
		if p != nil {
			v.parser = p
		}
	}
}

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// New creates a Validator. Without options it uses the embedded rule table
// and the tree-sitter Python grammar.
func New(opts ...Option) *Validator {
	v := &Validator{
		rules:  rules.Default(),
		parser: pyparse.TreeSitter{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Rules returns the compiled table the validator checks against.
func (v *Validator) Rules() *rules.CompiledTable {
	return v.rules
}

// Validate checks source and returns the first diagnostic, or a valid
// result. It never panics.
func (v *Validator) Validate(source string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Warn("validation aborted", "panic", fmt.Sprint(r))
			res = valid()
		}
	}()

	if r, ok := v.checkCompatibility(source); ok {
		return r
	}
	return v.checkGrammar(source)
}

var defaultValidator = sync.OnceValue(func() *Validator { return New() })

// Validate checks source with the default validator.
func Validate(source string) Result {
	return defaultValidator().Validate(source)
}

// Fix applies the default validator's rewrites to source.
func Fix(source string) FixResult {
	return defaultValidator().Fix(source)
}
