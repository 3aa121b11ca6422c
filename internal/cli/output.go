package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/animlist/internal/ir"
	"github.com/roach88/animlist/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenario failure, invalid list, digest mismatch
	ExitCommandError = 2 // Command error (bad paths, unreadable journal, bad config)
)

// ExitError carries the exit code a command should end with.
type ExitError struct {
	Code    int    // Exit code (ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the JSON envelope of a command result.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "INVALID_LIST", "SCENARIO_FAILED", ...
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// FrameLine is the printed form of one frame, live or journaled.
type FrameLine struct {
	Session    string       `json:"session"`
	Seq        int64        `json:"seq"`
	Kind       ir.FrameKind `json:"kind"`
	States     []string     `json:"states"`
	DurationMS int64        `json:"duration_ms"`
	Digest     string       `json:"digest"`
}

func frameLine(f ir.Frame[string]) FrameLine {
	return FrameLine{
		Session:    f.Session,
		Seq:        f.Seq,
		Kind:       f.Kind,
		States:     f.States(),
		DurationMS: f.Duration.Milliseconds(),
		Digest:     f.Digest,
	}
}

func recordLine(r store.FrameRecord) FrameLine {
	return FrameLine{
		Session:    r.Session,
		Seq:        r.Seq,
		Kind:       r.Kind,
		States:     r.States(),
		DurationMS: r.Duration.Milliseconds(),
		Digest:     r.Digest,
	}
}

// Frame writes one frame: a JSON object per line, or a compact text line.
func (f *OutputFormatter) Frame(line FrameLine) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(line)
	}
	_, err := fmt.Fprintf(f.Writer, "#%-3d %-12s %s\n", line.Seq, line.Kind, strings.Join(line.States, " "))
	return err
}
