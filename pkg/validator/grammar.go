package validator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/manimagic/manimagic/pkg/pyparse"
)

// errorSite is everything the heuristics get to look at for one error node.
type errorSite struct {
	line       int    // 1-based
	column     int    // 1-based, runes
	text       string // source spanned by the error node
	lineText   string // full line containing the node start
	prevText   string // previous non-blank, non-comment line ("" if none)
	atLineHead bool   // only whitespace precedes the node on its line
}

// checkGrammar parses the source and classifies the first error node.
// Any failure of the grammar engine, including a panic, yields a valid
// result: the renderer gives the authoritative error instead.
func (v *Validator) checkGrammar(source string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Warn("python syntax validation failed", "panic", fmt.Sprint(r))
			res = valid()
		}
	}()

	tree, err := v.parser.Parse(context.Background(), []byte(source))
	if err != nil {
		v.logger.Warn("python syntax validation failed", "error", err)
		return valid()
	}
	if !tree.HasError {
		return valid()
	}

	site := locate(source, tree.Error)
	h, msg, suggestion := classify(site)
	return Result{
		Kind:       KindGenericSyntax,
		Line:       site.line,
		Column:     site.column,
		Message:    msg,
		Suggestion: suggestion,
		Severity:   SeverityError,
		Rule:       h,
	}
}

// locate converts a byte span into a line/column and extracts the
// surrounding text.
func locate(source string, span pyparse.Span) errorSite {
	from := clamp(span.From, 0, len(source))
	to := clamp(span.To, from, len(source))

	before := source[:from]
	lineStart := strings.LastIndexByte(before, '\n') + 1
	lines := strings.Split(source, "\n")
	lineNo := strings.Count(before, "\n") + 1

	site := errorSite{
		line:       lineNo,
		column:     utf8.RuneCountInString(before[lineStart:]) + 1,
		text:       source[from:to],
		lineText:   strings.TrimRight(lines[lineNo-1], "\r"),
		atLineHead: strings.TrimSpace(before[lineStart:]) == "",
	}
	for i := lineNo - 2; i >= 0; i-- {
		prev := strings.TrimSpace(lines[i])
		if prev != "" && !strings.HasPrefix(prev, "#") {
			site.prevText = strings.TrimRight(lines[i], "\r")
			break
		}
	}
	return site
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
