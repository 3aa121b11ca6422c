package harness

import (
	"time"

	"github.com/roach88/animlist/internal/ir"
)

// TraceFrame is the recorded form of one emitted frame.
type TraceFrame struct {
	Seq      int64        `json:"seq"`
	Kind     ir.FrameKind `json:"kind"`
	States   []string     `json:"states"`
	Duration int64        `json:"duration_ms"`
	Digest   string       `json:"digest"`
}

func traceFrame(f ir.Frame[string]) TraceFrame {
	return TraceFrame{
		Seq:      f.Seq,
		Kind:     f.Kind,
		States:   f.States(),
		Duration: f.Duration.Milliseconds(),
		Digest:   f.Digest,
	}
}

// Result is the outcome of a scenario run.
type Result struct {
	Scenario string `json:"scenario"`
	Session  string `json:"session"`

	// Pass is true if every expectation held.
	Pass bool `json:"pass"`

	// Trace holds every frame the session emitted, in order.
	Trace []TraceFrame `json:"trace"`

	// Settled holds the keys of the final settled list.
	Settled []string `json:"settled"`

	// Errors describes failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Elapsed is the manual time the scenario advanced through.
	Elapsed time.Duration `json:"elapsed"`
}

// NewResult creates a passing result.
func NewResult(scenario, session string) *Result {
	return &Result{
		Scenario: scenario,
		Session:  session,
		Pass:     true,
		Trace:    []TraceFrame{},
		Settled:  []string{},
		Errors:   []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
