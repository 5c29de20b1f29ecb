package governance

import (
	"regexp"
	"strings"
)

// RedactionRule replaces every match of Pattern in subprocess output.
type RedactionRule struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Replace string `yaml:"replace" json:"replace"`
}

// CompiledRedaction is a pre-compiled redaction rule.
type CompiledRedaction struct {
	Pattern *regexp.Regexp
	Replace string
}

// CompileRedactionRules compiles redaction rules from the policy.
func CompileRedactionRules(rules []RedactionRule) ([]*CompiledRedaction, error) {
	var compiled []*CompiledRedaction
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, &CompiledRedaction{
			Pattern: re,
			Replace: r.Replace,
		})
	}
	return compiled, nil
}

// RedactOutput applies all compiled redaction rules to the given output.
func RedactOutput(output string, rules []*CompiledRedaction) string {
	result := output
	for _, r := range rules {
		result = r.Pattern.ReplaceAllString(result, r.Replace)
	}
	return result
}

// Redact applies the engine's redaction rules, then replaces every
// occurrence of the given literal paths (the render workspace) with a
// stable placeholder.
func (g *Engine) Redact(output string, paths ...string) string {
	out := RedactOutput(output, g.redactions)
	for _, p := range paths {
		if p != "" {
			out = strings.ReplaceAll(out, p, "<workdir>")
		}
	}
	return out
}
