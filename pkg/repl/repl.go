// Package repl implements the interactive checker: type or paste a scene,
// and it is validated as you go.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/manimagic/manimagic/pkg/report"
	"github.com/manimagic/manimagic/pkg/validator"
)

const bufferName = "<repl>"

var commands = []string{":check", ":fix", ":clear", ":show", ":help", ":quit"}

// REPL accumulates source lines and checks them on demand.
type REPL struct {
	validator *validator.Validator
	output    io.Writer
	printer   *report.Printer
	lines     []string
}

// New creates a REPL writing to stdout.
func New(v *validator.Validator) *REPL {
	return NewWithOutput(v, os.Stdout)
}

// NewWithOutput creates a REPL writing to w.
func NewWithOutput(v *validator.Validator, w io.Writer) *REPL {
	return &REPL{validator: v, output: w, printer: report.New(w)}
}

// Source returns the accumulated buffer.
func (r *REPL) Source() string {
	return strings.Join(r.lines, "\n")
}

// Run starts the readline loop. It returns nil on :quit, Ctrl-C or EOF.
func (r *REPL) Run(ctx context.Context) error {
	completer := readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children, readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.prompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
		Stdout:          r.output,
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(r.output, "manimagic repl: enter a scene, blank line to check. Type :help for commands.\n\n")

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		rl.SetPrompt(r.prompt())
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if r.Handle(line) {
			return nil
		}
	}
}

// Handle processes one input line and reports whether the session should
// end. Lines starting with ':' are commands; a blank line after some
// content checks the buffer; anything else is appended to it.
func (r *REPL) Handle(line string) (quit bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, ":") {
		if trimmed == "" {
			if len(r.lines) > 0 {
				r.check()
			}
			return false
		}
		r.lines = append(r.lines, strings.TrimRight(line, "\r"))
		return false
	}

	switch cmd := strings.Fields(trimmed)[0]; cmd {
	case ":check", ":c":
		r.check()
	case ":fix", ":f":
		r.fix()
	case ":clear":
		r.lines = nil
		fmt.Fprintln(r.output, "Buffer cleared.")
	case ":show", ":s":
		r.show()
	case ":help", ":h", ":?":
		r.help()
	case ":quit", ":q", ":exit":
		return true
	default:
		fmt.Fprintf(r.output, "Unknown command: %q. Type :help for available commands.\n", cmd)
	}
	return false
}

func (r *REPL) prompt() string {
	if len(r.lines) == 0 {
		return ">>> "
	}
	return "... "
}

func (r *REPL) check() {
	if len(r.lines) == 0 {
		fmt.Fprintln(r.output, "Buffer is empty.")
		return
	}
	src := r.Source()
	r.printer.Result(bufferName, src, r.validator.Validate(src))
}

func (r *REPL) fix() {
	res := r.validator.Fix(r.Source())
	if !res.Changed {
		fmt.Fprintln(r.output, "Nothing to fix.")
		return
	}
	r.lines = strings.Split(res.Source, "\n")
	fmt.Fprintf(r.output, "Applied: %s\n", strings.Join(res.Applied, ", "))
	r.show()
}

func (r *REPL) show() {
	if len(r.lines) == 0 {
		fmt.Fprintln(r.output, "Buffer is empty.")
		return
	}
	for i, l := range r.lines {
		fmt.Fprintf(r.output, "%4d | %s\n", i+1, l)
	}
}

func (r *REPL) help() {
	fmt.Fprintln(r.output, `Commands:
  :check, :c     Validate the buffer
  :fix, :f       Apply compatibility fixes to the buffer
  :show, :s      Print the buffer with line numbers
  :clear         Empty the buffer
  :help, :h      Show this help
  :quit, :q      Exit
A blank line validates the buffer.`)
}
