// Package report renders validation results and the rule table for
// terminals.
package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Palette matches the rest of the terminal output.
var (
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorGreen  = lipgloss.Color("42")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
)

// styles are bound to a renderer so color follows the output writer:
// a pipe or a buffer gets plain text.
type styles struct {
	errorLabel   lipgloss.Style
	warningLabel lipgloss.Style
	ok           lipgloss.Style
	location     lipgloss.Style
	gutter       lipgloss.Style
	caret        lipgloss.Style
	hint         lipgloss.Style
	header       lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		errorLabel:   r.NewStyle().Bold(true).Foreground(colorRed),
		warningLabel: r.NewStyle().Bold(true).Foreground(colorYellow),
		ok:           r.NewStyle().Foreground(colorGreen),
		location:     r.NewStyle().Bold(true),
		gutter:       r.NewStyle().Foreground(colorDim),
		caret:        r.NewStyle().Bold(true).Foreground(colorRed),
		hint:         r.NewStyle().Foreground(colorCyan),
		header:       r.NewStyle().Bold(true).Underline(true),
	}
}
