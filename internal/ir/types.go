package ir

import (
	"fmt"
	"time"
)

// KeyedItem is one entry of a list snapshot.
//
// Key must be unique within a snapshot. Value is compared with == to detect
// content changes for items that share a key. Payload is whatever the
// rendering layer needs to draw the item; the engine never looks inside it.
type KeyedItem[T comparable] struct {
	Key     string `json:"key" yaml:"key"`
	Value   T      `json:"value" yaml:"value"`
	Payload any    `json:"-" yaml:"-"`
}

// WithKey returns a copy of the item carrying a different key.
// Used for move ghosts; the original item is left untouched.
func (k KeyedItem[T]) WithKey(key string) KeyedItem[T] {
	k.Key = key
	return k
}

// AnimationState is the presentation state of an item inside a frame.
type AnimationState int

const (
	// StateInitial marks an item's first appearance in a previously empty list.
	StateInitial AnimationState = iota
	// StateInserted marks a newly added item or the destination of a move.
	StateInserted
	// StateRemoved marks a deleted item or the ghost left behind by a move.
	StateRemoved
	// StateIdle is the steady state.
	StateIdle
	// StateAllRemoved marks removal when the whole list became empty.
	StateAllRemoved
)

var stateNames = [...]string{
	StateInitial:    "INITIAL",
	StateInserted:   "INSERTED",
	StateRemoved:    "REMOVED",
	StateIdle:       "IDLE",
	StateAllRemoved: "ALL_REMOVED",
}

// String returns the upper-case state name.
func (s AnimationState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("AnimationState(%d)", int(s))
	}
	return stateNames[s]
}

// Entering reports whether the renderer should animate the item in.
func (s AnimationState) Entering() bool {
	return s == StateInitial || s == StateInserted
}

// Leaving reports whether the renderer should animate the item out.
func (s AnimationState) Leaving() bool {
	return s == StateRemoved || s == StateAllRemoved
}

// ParseAnimationState parses a state name as produced by String.
func ParseAnimationState(name string) (AnimationState, error) {
	for i, n := range stateNames {
		if n == name {
			return AnimationState(i), nil
		}
	}
	return 0, fmt.Errorf("unknown animation state %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s AnimationState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *AnimationState) UnmarshalText(text []byte) error {
	parsed, err := ParseAnimationState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// AnimatedItem pairs an item with its state in one frame.
// AnimatedItems are rebuilt on every update.
type AnimatedItem[T comparable] struct {
	Item  KeyedItem[T]   `json:"item"`
	State AnimationState `json:"state"`
}

// Move is a matched item whose relative order changed.
// From indexes the previous list, To indexes the current list.
type Move struct {
	From int `json:"from" yaml:"from"`
	To   int `json:"to" yaml:"to"`
}

// EditScript is the result of diffing two keyed lists.
//
// Index spaces:
//   - Inserted: current list
//   - Removed: previous list
//   - Moved: From in previous, To in current
//   - Changed: current list
//
// The script is a value: it is computed in one call and never mutated after.
type EditScript struct {
	Inserted []int  `json:"inserted" yaml:"inserted"`
	Removed  []int  `json:"removed" yaml:"removed"`
	Moved    []Move `json:"moved" yaml:"moved"`
	Changed  []int  `json:"changed" yaml:"changed"`

	// AllRemoved is true iff the current list is empty and something was removed.
	AllRemoved bool `json:"all_removed" yaml:"all_removed"`
}

// IsEmpty reports whether the script describes no change at all.
func (s EditScript) IsEmpty() bool {
	return len(s.Inserted) == 0 &&
		len(s.Removed) == 0 &&
		len(s.Moved) == 0 &&
		len(s.Changed) == 0
}

// MovedTo reports whether index i of the current list is a move destination.
func (s EditScript) MovedTo(i int) bool {
	for _, m := range s.Moved {
		if m.To == i {
			return true
		}
	}
	return false
}

// FrameKind distinguishes the two frames of one update.
type FrameKind string

const (
	// FrameTransitional is emitted right after a diff.
	FrameTransitional FrameKind = "transitional"
	// FrameSettled is emitted once the animation duration elapsed.
	FrameSettled FrameKind = "settled"
)

// Frame is one observable output of a session.
type Frame[T comparable] struct {
	Session  string            `json:"session"`
	Seq      int64             `json:"seq"`
	Kind     FrameKind         `json:"kind"`
	Items    []AnimatedItem[T] `json:"items"`
	Duration time.Duration     `json:"duration"`
	Digest   string            `json:"digest"`
}

// Keys returns the item keys of the frame in order.
func (f Frame[T]) Keys() []string {
	keys := make([]string, len(f.Items))
	for i, it := range f.Items {
		keys[i] = it.Item.Key
	}
	return keys
}

// States returns "key:STATE" pairs, the compact form used by scenarios and traces.
func (f Frame[T]) States() []string {
	out := make([]string, len(f.Items))
	for i, it := range f.Items {
		out[i] = it.Item.Key + ":" + it.State.String()
	}
	return out
}
