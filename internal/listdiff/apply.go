package listdiff

import (
	"fmt"

	"github.com/roach88/animlist/internal/ir"
)

// Apply replays script against the previous key order and returns the
// resulting key order.
//
// cur is consulted only for the keys at inserted positions; every other slot
// is derived from prev: moved keys land on their To index, and the remaining
// (stationary) keys fill the free slots in their previous relative order.
// When script came from Diff(prev, cur) the result equals cur's key order.
func Apply(prev, cur []string, script ir.EditScript) ([]string, error) {
	removed := make(map[int]bool, len(script.Removed))
	for _, p := range script.Removed {
		if p < 0 || p >= len(prev) {
			return nil, fmt.Errorf("%w: removed position %d out of range [0,%d)", ErrInvalidScript, p, len(prev))
		}
		removed[p] = true
	}

	n := len(prev) - len(removed) + len(script.Inserted)
	if n < 0 {
		return nil, fmt.Errorf("%w: negative result length", ErrInvalidScript)
	}
	out := make([]string, n)
	filled := make([]bool, n)

	place := func(at int, key, what string) error {
		if at < 0 || at >= n {
			return fmt.Errorf("%w: %s position %d out of range [0,%d)", ErrInvalidScript, what, at, n)
		}
		if filled[at] {
			return fmt.Errorf("%w: %s position %d already filled", ErrInvalidScript, what, at)
		}
		out[at] = key
		filled[at] = true
		return nil
	}

	for _, i := range script.Inserted {
		if i < 0 || i >= len(cur) {
			return nil, fmt.Errorf("%w: inserted position %d out of range [0,%d)", ErrInvalidScript, i, len(cur))
		}
		if err := place(i, cur[i], "inserted"); err != nil {
			return nil, err
		}
	}

	moved := make(map[int]bool, len(script.Moved))
	for _, m := range script.Moved {
		if m.From < 0 || m.From >= len(prev) || removed[m.From] {
			return nil, fmt.Errorf("%w: move source %d is not a surviving item", ErrInvalidScript, m.From)
		}
		if err := place(m.To, prev[m.From], "move"); err != nil {
			return nil, err
		}
		moved[m.From] = true
	}

	slot := 0
	for i, key := range prev {
		if removed[i] || moved[i] {
			continue
		}
		for slot < n && filled[slot] {
			slot++
		}
		if slot == n {
			return nil, fmt.Errorf("%w: no slot left for stationary key %q", ErrInvalidScript, key)
		}
		out[slot] = key
		filled[slot] = true
	}

	for i, ok := range filled {
		if !ok {
			return nil, fmt.Errorf("%w: position %d left empty", ErrInvalidScript, i)
		}
	}
	return out, nil
}
