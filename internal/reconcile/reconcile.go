package reconcile

import (
	"time"

	"github.com/roach88/animlist/internal/ir"
)

// DefaultGhostSuffix is appended to a moved item's key to build its ghost key.
const DefaultGhostSuffix = "-temp"

// DefaultDuration is the default animation duration.
const DefaultDuration = 400 * time.Millisecond

// Options tunes transitional frame construction.
type Options struct {
	// ReverseLayout places move ghosts before the move source instead of after it.
	ReverseLayout bool

	// GhostSuffix decorates ghost keys. Empty means DefaultGhostSuffix.
	GhostSuffix string

	// IndexLookup shows, for each removal, the previous item found at the
	// clamped insertion index instead of the removed item itself. This mirrors
	// an older rendering of removals and is off by default.
	IndexLookup bool
}

func (o Options) ghostSuffix() string {
	if o.GhostSuffix == "" {
		return DefaultGhostSuffix
	}
	return o.GhostSuffix
}

// Plan is the outcome of one reconciliation.
type Plan[T comparable] struct {
	// Transitional is emitted immediately.
	Transitional []ir.AnimatedItem[T]

	// Settled is emitted after Delay, unless the plan is cancelled.
	Settled []ir.AnimatedItem[T]

	// Delay is the time between the two frames.
	Delay time.Duration
}

// Reconciler builds plans with fixed options and duration.
type Reconciler[T comparable] struct {
	Options  Options
	Duration time.Duration
}

// Reconcile builds the plan for moving from prev to cur.
// script must be Diff(prev, cur); it is ignored when prev is empty.
func (r Reconciler[T]) Reconcile(prev, cur []ir.KeyedItem[T], script ir.EditScript) Plan[T] {
	return Plan[T]{
		Transitional: Transitional(prev, cur, script, r.Options),
		Settled:      Settled(cur),
		Delay:        r.Duration,
	}
}

// Initial tags every item INITIAL.
func Initial[T comparable](cur []ir.KeyedItem[T]) []ir.AnimatedItem[T] {
	return tagAll(cur, ir.StateInitial)
}

// Settled tags every item IDLE.
func Settled[T comparable](cur []ir.KeyedItem[T]) []ir.AnimatedItem[T] {
	return tagAll(cur, ir.StateIdle)
}

func tagAll[T comparable](items []ir.KeyedItem[T], state ir.AnimationState) []ir.AnimatedItem[T] {
	out := make([]ir.AnimatedItem[T], len(items))
	for i, it := range items {
		out[i] = ir.AnimatedItem[T]{Item: it, State: state}
	}
	return out
}

// Transitional builds the transitional frame for prev → cur.
func Transitional[T comparable](prev, cur []ir.KeyedItem[T], script ir.EditScript, opts Options) []ir.AnimatedItem[T] {
	if len(prev) == 0 {
		return Initial(cur)
	}

	inserted := make(map[int]bool, len(script.Inserted)+len(script.Moved))
	for _, i := range script.Inserted {
		inserted[i] = true
	}
	for _, m := range script.Moved {
		inserted[m.To] = true
	}

	frame := make([]ir.AnimatedItem[T], 0, len(cur)+len(script.Removed)+len(script.Moved))
	for i, it := range cur {
		state := ir.StateIdle
		if inserted[i] {
			state = ir.StateInserted
		}
		frame = append(frame, ir.AnimatedItem[T]{Item: it, State: state})
	}

	leaving := ir.StateRemoved
	if script.AllRemoved {
		leaving = ir.StateAllRemoved
	}

	// Removal order matters: each insertion shifts the slots the next one sees.
	for _, p := range script.Removed {
		idx := RemovalIndex(p, len(frame))
		src := p
		if opts.IndexLookup || p >= len(prev) {
			src = clamp(idx, 0, len(prev)-1)
		}
		frame = insertAt(frame, idx, ir.AnimatedItem[T]{Item: prev[src], State: leaving})
	}

	if !script.AllRemoved {
		suffix := opts.ghostSuffix()
		taken := make(map[string]bool, len(prev)+len(cur)+len(script.Moved))
		for _, it := range prev {
			taken[it.Key] = true
		}
		for _, it := range cur {
			taken[it.Key] = true
		}
		for _, m := range script.Moved {
			if m.From < 0 || m.From >= len(prev) {
				continue
			}
			src := prev[m.From]
			idx := GhostIndex(m, len(frame), opts.ReverseLayout)
			key := ghostKey(src.Key, suffix, taken)
			taken[key] = true
			ghost := ir.AnimatedItem[T]{Item: src.WithKey(key), State: ir.StateRemoved}
			frame = insertAt(frame, idx, ghost)
		}
	}

	return dedupByKey(frame)
}

// ghostKey appends suffix to key until the result names no item in taken.
func ghostKey(key, suffix string, taken map[string]bool) string {
	ghost := key + suffix
	for taken[ghost] {
		ghost += suffix
	}
	return ghost
}

// RemovalIndex clamps a removal position to an insertion index for a frame
// of length n. Positions past the end land on the last slot; a position equal
// to n appends.
func RemovalIndex(p, n int) int {
	if p > n {
		p = n - 1
	}
	return max(0, p)
}

// GhostIndex returns where the ghost of move m is inserted in a frame of
// length n. The ghost goes right after the source position, or right before
// it in a reversed layout, where a (0,1) move is placed as if it were (1,0).
func GhostIndex(m ir.Move, n int, reverse bool) int {
	from := m.From
	offset := 1
	if reverse {
		offset = -1
		if m.From == 0 && m.To == 1 {
			from = 1
		}
	}
	return clamp(from+offset, 0, n)
}

func clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

func insertAt[T comparable](frame []ir.AnimatedItem[T], idx int, it ir.AnimatedItem[T]) []ir.AnimatedItem[T] {
	frame = append(frame, ir.AnimatedItem[T]{})
	copy(frame[idx+1:], frame[idx:])
	frame[idx] = it
	return frame
}

func dedupByKey[T comparable](frame []ir.AnimatedItem[T]) []ir.AnimatedItem[T] {
	seen := make(map[string]bool, len(frame))
	out := frame[:0]
	for _, it := range frame {
		if seen[it.Item.Key] {
			continue
		}
		seen[it.Item.Key] = true
		out = append(out, it)
	}
	return out
}
