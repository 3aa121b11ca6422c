package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/animlist/internal/ir"
)

// Assertion types.
const (
	AssertFrame   = "frame"
	AssertSettled = "settled"
	AssertFrames  = "frames"
)

// AssertionError is returned when an expectation fails.
type AssertionError struct {
	Step     int          // Index of the expect step
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceFrame // Frames emitted up to the failure
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "steps[%d]: assertion failed: %s\n", e.Step, e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, f := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", f.Seq, f.Kind, strings.Join(f.States, " "))
		}
	}
	return buf.String()
}

// check evaluates an expect step against the frames emitted so far and the
// settled keys.
func check(step int, e Expect, trace []TraceFrame, settled []string) []error {
	var errs []error

	if e.Kind != "" {
		if err := checkLatest(step, e, trace); err != nil {
			errs = append(errs, err)
		}
	}

	if e.Settled != nil {
		want := *e.Settled
		if !equalStrings(want, settled) {
			errs = append(errs, &AssertionError{
				Step:     step,
				Type:     AssertSettled,
				Expected: formatList(want),
				Actual:   formatList(settled),
				Trace:    trace,
			})
		}
	}

	if e.Frames != nil && *e.Frames != len(trace) {
		errs = append(errs, &AssertionError{
			Step:     step,
			Type:     AssertFrames,
			Expected: fmt.Sprintf("%d frames", *e.Frames),
			Actual:   fmt.Sprintf("%d frames", len(trace)),
			Trace:    trace,
		})
	}
	return errs
}

// checkLatest compares the most recent frame with the expectation.
func checkLatest(step int, e Expect, trace []TraceFrame) error {
	expected := fmt.Sprintf("%s %s", e.Kind, formatList(e.States))

	if len(trace) == 0 {
		return &AssertionError{
			Step:     step,
			Type:     AssertFrame,
			Expected: expected,
			Actual:   "no frame emitted",
		}
	}

	got := trace[len(trace)-1]
	if got.Kind != e.Kind || !equalStrings(e.States, got.States) {
		return &AssertionError{
			Step:     step,
			Type:     AssertFrame,
			Expected: expected,
			Actual:   fmt.Sprintf("%s %s (seq %d)", got.Kind, formatList(got.States), got.Seq),
			Trace:    trace,
		}
	}
	return nil
}

// equalStrings treats nil and empty as equal.
func equalStrings(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return slices.Equal(a, b)
}

func formatList(s []string) string {
	return "[" + strings.Join(s, " ") + "]"
}

// traceOf converts frames to their recorded form.
func traceOf(frames []ir.Frame[string]) []TraceFrame {
	out := make([]TraceFrame, len(frames))
	for i, f := range frames {
		out[i] = traceFrame(f)
	}
	return out
}
