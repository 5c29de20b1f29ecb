package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/manimagic/manimagic/pkg/rules"
)

// RulesMarkdown documents the rule table as markdown.
func RulesMarkdown(t *rules.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Compatibility rules\n\nTarget: **%s** (`%s`)\n", t.Target, t.Version)

	for _, r := range t.Rules {
		fmt.Fprintf(&b, "\n## %s\n\n", r.ID)
		fmt.Fprintf(&b, "- Kind: `%s`\n- Severity: `%s`\n", r.Kind, r.EffectiveSeverity())
		if len(r.Match.Contains) > 0 {
			quoted := make([]string, len(r.Match.Contains))
			for i, c := range r.Match.Contains {
				quoted[i] = "`" + c + "`"
			}
			fmt.Fprintf(&b, "- Contains: %s\n", strings.Join(quoted, ", "))
		}
		if r.Match.Call != "" {
			fmt.Fprintf(&b, "- Call: `%s(...)`\n", r.Match.Call)
		}
		if r.Match.When != "" {
			fmt.Fprintf(&b, "- When: `%s`\n", r.Match.When)
		}
		if r.Match.Regex != "" {
			fmt.Fprintf(&b, "- Pattern: `%s`\n", r.Match.Regex)
		}
		if len(r.Fix) > 0 {
			b.WriteString("- Auto-fix: yes\n")
		}
		fmt.Fprintf(&b, "\n%s\n", r.Message)
		if r.Suggestion != "" {
			fmt.Fprintf(&b, "\n> %s\n", r.Suggestion)
		}
	}
	return b.String()
}

// RenderMarkdown styles markdown for the terminal, wrapped at width.
// A width of 0 disables wrapping.
func RenderMarkdown(md string, width int) (string, error) {
	if strings.TrimSpace(md) == "" {
		return md, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}
