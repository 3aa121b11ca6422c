// Package harness runs list-animation scenarios against a real session.
//
// A scenario is a list of steps: submit a snapshot, advance the manual timer,
// or expect something about the frames emitted so far. Scenarios are written
// in YAML or CUE:
//
//	name: swap
//	steps:
//	  - submit: [a, b]
//	  - advance: 400
//	  - submit: [b, a]
//	  - expect:
//	      kind: transitional
//	      states: ["b:IDLE", "a-temp:REMOVED", "a:INSERTED"]
//
// The harness owns the session's timer, so a run is fully deterministic: the
// same scenario always produces the same trace, which makes golden files
// under testdata/golden a stable record of the engine's behavior.
package harness
