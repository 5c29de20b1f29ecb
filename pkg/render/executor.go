package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Command is one subprocess invocation.
type Command struct {
	Name string
	Args []string
	Env  []string // nil inherits the parent environment
	Dir  string
}

// CommandResult holds the output of a single command execution.
type CommandResult struct {
	Stdout   []byte        `json:"stdout"`
	Stderr   []byte        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// CommandExecutor abstracts the subprocess so tests can stand in for manim.
// Implementations: RealExecutor, test fakes.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd Command) (*CommandResult, error)
}

// RealExecutor runs commands via os/exec with timeout support.
type RealExecutor struct{}

// Execute runs the command and captures its output. A non-zero exit is
// reported in the result, not as an error; errors mean the process could
// not be run at all.
func (RealExecutor) Execute(ctx context.Context, c Command) (*CommandResult, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = c.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			exitCode = exitErr.ExitCode()
		case isExecNotFound(err):
			return nil, fmt.Errorf("interpreter %q not found: %w", c.Name, err)
		default:
			return nil, fmt.Errorf("execute command %q: %w", c.Name, err)
		}
	}

	return &CommandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Duration: duration,
	}, nil
}

// isExecNotFound returns true when the error indicates the executable was not found.
func isExecNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var execErr *exec.Error
	return errors.As(err, &execErr)
}
