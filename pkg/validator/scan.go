package validator

import "strings"

// lineScan summarizes one physical line of Python, ignoring everything
// inside string literals and after a comment.
type lineScan struct {
	opens        map[byte]int
	closes       map[byte]int
	topColon     bool // ':' outside any bracket
	bareEquals   int  // '=' that is not part of ==, !=, <=, >=, :=, += ... and not inside brackets
	unterminated bool // ends inside a single-quoted or double-quoted string
	code         string
}

var closerOf = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// scanLine walks a single line with a small string/bracket state machine.
// Triple-quoted strings left open are not reported: they legitimately
// continue on the next line.
func scanLine(line string) lineScan {
	s := lineScan{opens: map[byte]int{}, closes: map[byte]int{}}
	depth := 0
	var quote byte // active string delimiter, 0 outside strings
	triple := false
	end := len(line)

	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			switch {
			case c == '\\':
				i++ // skip escaped character
			case c == quote && triple && strings.HasPrefix(line[i:], strings.Repeat(string(quote), 3)):
				quote, triple = 0, false
				i += 2
			case c == quote && !triple:
				quote = 0
			}
			continue
		}

		switch c {
		case '#':
			end = i
			i = len(line)
		case '"', '\'':
			quote = c
			if strings.HasPrefix(line[i:], strings.Repeat(string(c), 3)) {
				triple = true
				i += 2
			}
		case '(', '[', '{':
			s.opens[c]++
			depth++
		case ')', ']', '}':
			s.closes[c]++
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 && !(i+1 < len(line) && line[i+1] == '=') {
				s.topColon = true
			}
		case '=':
			if i+1 < len(line) && line[i+1] == '=' {
				i++ // ==
				continue
			}
			if i > 0 && strings.IndexByte("=!<>+-*/%&|^:@", line[i-1]) >= 0 {
				continue
			}
			if depth == 0 {
				s.bareEquals++
			}
		}
	}

	s.unterminated = quote != 0 && !triple
	s.code = strings.TrimSpace(line[:end])
	return s
}

// unclosed reports whether the line opens more of the given bracket than
// it closes.
func (s lineScan) unclosed(open byte) bool {
	return s.opens[open] > s.closes[closerOf[open]]
}

// balanced reports whether every bracket kind opened on the line is closed
// on the line.
func (s lineScan) balanced() bool {
	for open, closer := range closerOf {
		if s.opens[open] != s.closes[closer] {
			return false
		}
	}
	return true
}
