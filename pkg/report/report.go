package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/manimagic/manimagic/pkg/rules"
	"github.com/manimagic/manimagic/pkg/validator"
)

// Printer writes human-readable diagnostics.
type Printer struct {
	w     io.Writer
	style styles
}

// New creates a Printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w, style: newStyles(w)}
}

// Result prints one file's result. A diagnostic is followed by the
// offending source line and, when the column is known, a caret under it.
//
//	scene.py:1:5: error[GenericSyntaxError] Unclosed parenthesis - missing closing ")"
//	   1 | x = (1 + 2
//	     |     ^
//	  hint: Add a closing parenthesis ")" to match the opening one.
func (p *Printer) Result(name, source string, res validator.Result) {
	if res.Valid {
		fmt.Fprintf(p.w, "%s: %s\n", p.style.location.Render(name), p.style.ok.Render("ok"))
		return
	}

	loc := name
	switch {
	case res.Line > 0 && res.Column > 0:
		loc = fmt.Sprintf("%s:%d:%d", name, res.Line, res.Column)
	case res.Line > 0:
		loc = fmt.Sprintf("%s:%d", name, res.Line)
	}
	label := p.style.warningLabel
	if res.Severity == validator.SeverityError {
		label = p.style.errorLabel
	}
	fmt.Fprintf(p.w, "%s: %s %s\n",
		p.style.location.Render(loc),
		label.Render(fmt.Sprintf("%s[%s]", res.Severity, res.Kind)),
		res.Message)

	if line, ok := sourceLine(source, res.Line); ok {
		num := fmt.Sprintf("%4d", res.Line)
		blank := strings.Repeat(" ", len(num))
		fmt.Fprintf(p.w, "%s %s\n", p.style.gutter.Render(num+" |"), line)
		if res.Column > 0 {
			fmt.Fprintf(p.w, "%s %s%s\n", p.style.gutter.Render(blank+" |"), caretPad(line, res.Column), p.style.caret.Render("^"))
		}
	}
	if res.Suggestion != "" {
		fmt.Fprintf(p.w, "  %s %s\n", p.style.hint.Render("hint:"), res.Suggestion)
	}
}

// Summary prints the totals line for a batch of checked files.
func (p *Printer) Summary(files, errors, warnings int) {
	fmt.Fprintf(p.w, "\n%d file(s) checked, %d error(s), %d warning(s)\n", files, errors, warnings)
}

// Rules prints the rule table as aligned columns.
func (p *Printer) Rules(t *rules.CompiledTable) {
	fmt.Fprintf(p.w, "%s (%s)\n\n", p.style.header.Render("Compatibility rules"), t.Target)

	header := []string{"ID", "KIND", "SEVERITY", "FIX"}
	rows := [][]string{header}
	for _, r := range t.Rules() {
		fix := "-"
		if r.HasFix() {
			fix = "yes"
		}
		rows = append(rows, []string{r.ID, string(r.Kind), string(r.EffectiveSeverity()), fix})
	}

	widths := make([]int, len(header))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	for _, row := range rows {
		var b strings.Builder
		for i, cell := range row {
			if i == len(row)-1 {
				b.WriteString(cell)
				break
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]+2))
		}
		fmt.Fprintln(p.w, strings.TrimRight(b.String(), " "))
	}
}

func sourceLine(source string, n int) (string, bool) {
	if n <= 0 {
		return "", false
	}
	lines := strings.Split(source, "\n")
	if n > len(lines) {
		return "", false
	}
	return strings.TrimRight(lines[n-1], "\r"), true
}

// caretPad returns the padding that puts a caret under the given 1-based
// rune column. Tabs are kept so the terminal expands them the same way on
// both lines; wide runes count as two cells.
func caretPad(line string, column int) string {
	var b strings.Builder
	i := 1
	for _, r := range line {
		if i >= column {
			break
		}
		if r == '\t' {
			b.WriteByte('\t')
		} else {
			b.WriteString(strings.Repeat(" ", runewidth.RuneWidth(r)))
		}
		i++
	}
	if i < column {
		b.WriteString(strings.Repeat(" ", column-i))
	}
	return b.String()
}
