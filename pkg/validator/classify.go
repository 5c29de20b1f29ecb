package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// heuristic is one entry of the ordered error classification list.
// Entries are evaluated top to bottom; the first whose match holds builds
// the message. New entries go where their precedence belongs without
// touching the others.
type heuristic struct {
	name  string
	match func(s errorSite) bool
	build func(s errorSite) (message, suggestion string)
}

var (
	blockKeywordRe = regexp.MustCompile(`^\s*(?:async\s+)?(def|class|if|elif|else|for|while|with|try|except|finally)\b`)
	trailingTextRe = regexp.MustCompile(`\)\s*[A-Za-z_]\w*$`)
	wordTailRe     = regexp.MustCompile(`\w+\s*$`)
)

var colonMessages = map[string][2]string{
	"def":     {`Function definition missing colon ":"`, `Add a colon ":" at the end of the function definition line.`},
	"class":   {`Class definition missing colon ":"`, `Add a colon ":" at the end of the class definition line.`},
	"if":      {`If statement missing colon ":"`, `Add a colon ":" at the end of the if condition.`},
	"elif":    {`Elif clause missing colon ":"`, `Add a colon ":" at the end of the elif condition.`},
	"else":    {`Else clause missing colon ":"`, `Add a colon ":" after else.`},
	"for":     {`For loop missing colon ":"`, `Add a colon ":" at the end of the for statement.`},
	"while":   {`While loop missing colon ":"`, `Add a colon ":" at the end of the while condition.`},
	"with":    {`With statement missing colon ":"`, `Add a colon ":" at the end of the with statement.`},
	"try":     {`Try block missing colon ":"`, `Add a colon ":" after try.`},
	"except":  {`Except clause missing colon ":"`, `Add a colon ":" at the end of the except clause.`},
	"finally": {`Finally block missing colon ":"`, `Add a colon ":" after finally.`},
}

var heuristics = []heuristic{
	// A runaway string swallows every bracket after its opening quote.
	{
		name:  "unclosed-string",
		match: unclosedString,
		build: fixed("Unclosed string - missing closing quote", "Add a closing quote to match the opening quote."),
	},
	bracketHeuristic("unclosed-paren", '(', `Unclosed parenthesis - missing closing ")"`, `Add a closing parenthesis ")" to match the opening one.`),
	bracketHeuristic("unclosed-bracket", '[', `Unclosed bracket - missing closing "]"`, `Add a closing bracket "]" to match the opening one.`),
	bracketHeuristic("unclosed-brace", '{', `Unclosed brace - missing closing "}"`, `Add a closing brace "}" to match the opening one.`),
	{
		name: "trailing-comma",
		match: func(s errorSite) bool {
			return anyCandidate(s, func(ls lineScan) bool { return strings.HasSuffix(ls.code, ",") })
		},
		build: fixed("Unexpected comma at end of line", "Remove the trailing comma or add the next item in the list."),
	},
	{
		name: "missing-colon",
		match: func(s errorSite) bool {
			_, ok := missingColon(s)
			return ok
		},
		build: func(s errorSite) (string, string) {
			kw, _ := missingColon(s)
			m := colonMessages[kw]
			return m[0], m[1]
		},
	},
	{
		name: "assignment-equality",
		match: func(s errorSite) bool {
			return scanLine(s.lineText).bareEquals > 1
		},
		build: fixed(`Invalid assignment - use "==" for comparison`, `Use "==" for equality comparison or check your assignment syntax.`),
	},
	{
		name:  "trailing-text",
		match: trailingText,
		build: fixed("Unexpected text after expression", "Remove the extra text at the end of the line or check for typos."),
	},
}

// classify picks the message for an error site. It always produces a
// message: when no heuristic matches, the offending token is quoted.
func classify(s errorSite) (name, message, suggestion string) {
	for _, h := range heuristics {
		if h.match(s) {
			message, suggestion = h.build(s)
			return h.name, message, suggestion
		}
	}
	return "fallback",
		fmt.Sprintf("Syntax error near: %q", nearToken(s.text)),
		"Check the syntax around this location. Look for missing colons, parentheses, or quotes."
}

// unclosedString holds when the error line ends inside a string, or when
// the error text opens a triple-quoted string it never closes.
func unclosedString(s errorSite) bool {
	first, _, _ := strings.Cut(s.text, "\n")
	if scanLine(first).unterminated || scanLine(s.lineText).unterminated {
		return true
	}
	text := strings.TrimSpace(s.text)
	for _, q := range []string{`"""`, "'''"} {
		if strings.HasPrefix(text, q) && strings.Count(text, q)%2 == 1 {
			return true
		}
	}
	return false
}

// trailingText holds for a balanced line ending in a bare identifier after
// a closing paren. The error node may start anywhere up to that identifier:
// the parser often flags the whole call rather than the stray word.
func trailingText(s errorSite) bool {
	ls := scanLine(s.lineText)
	if !ls.balanced() || !trailingTextRe.MatchString(ls.code) {
		return false
	}
	if s.text == "" {
		return true
	}
	lead := strings.Index(s.lineText, ls.code)
	tail := wordTailRe.FindStringIndex(ls.code)
	if lead < 0 || tail == nil {
		return false
	}
	at := lead + tail[0]
	return s.column <= utf8.RuneCountInString(s.lineText[:at])+1
}

func bracketHeuristic(name string, open byte, message, suggestion string) heuristic {
	return heuristic{
		name: name,
		match: func(s errorSite) bool {
			return anyCandidate(s, func(ls lineScan) bool { return ls.unclosed(open) })
		},
		build: fixed(message, suggestion),
	}
}

func fixed(message, suggestion string) func(errorSite) (string, string) {
	return func(errorSite) (string, string) { return message, suggestion }
}

// candidates are the lines a structural heuristic may blame. An error node
// at the head of a line is usually fallout from the line before it, so the
// previous statement line is examined too.
func candidates(s errorSite) []string {
	if s.atLineHead && s.prevText != "" {
		return []string{s.lineText, s.prevText}
	}
	return []string{s.lineText}
}

func anyCandidate(s errorSite, pred func(lineScan) bool) bool {
	for _, line := range candidates(s) {
		if pred(scanLine(line)) {
			return true
		}
	}
	return false
}

// missingColon returns the block keyword of the first candidate line that
// opens a block without a top-level colon.
func missingColon(s errorSite) (string, bool) {
	for _, line := range candidates(s) {
		m := blockKeywordRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if !scanLine(line).topColon {
			return m[1], true
		}
	}
	return "", false
}

const maxTokenRunes = 40

// nearToken renders the error node text for the fallback message: first
// line only, trimmed and shortened.
func nearToken(text string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	first = strings.TrimSpace(first)
	if first == "" {
		return "unexpected token"
	}
	if utf8.RuneCountInString(first) > maxTokenRunes {
		r := []rune(first)
		return string(r[:maxTokenRunes]) + "..."
	}
	return first
}
