package render

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCode is returned for an empty submission.
	ErrNoCode = errors.New("no code provided")
	// ErrInvalidRequest wraps policy rejections of files, scene names or
	// the interpreter.
	ErrInvalidRequest = errors.New("invalid render request")
)

// Error is a failed manim run. Message is what the user sees first;
// Details carries the exit code and both output streams.
type Error struct {
	Message  string `json:"error"`
	Details  string `json:"details,omitempty"`
	ExitCode int    `json:"exitCode"`
}

func (e *Error) Error() string {
	return e.Message
}

func failureDetails(exitCode int, stdout, stderr string) string {
	return fmt.Sprintf("Exit code: %d\nstdout: %s\nstderr: %s", exitCode, stdout, stderr)
}
