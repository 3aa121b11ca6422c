package demo

import (
	"github.com/roach88/animlist/internal/ir"
)

// Action names a random edit.
type Action string

const (
	ActionAdd    Action = "add"
	ActionAddEnd Action = "add-end"
	ActionRemove Action = "remove"
	ActionMove   Action = "move"
	ActionClear  Action = "clear"
)

// Step applies one random edit and returns what it did and the snapshot.
//
// Adds dominate while the list is short so that runs grow to an interesting
// size; a clear happens rarely.
func (l *List) Step() (Action, []ir.KeyedItem[string], error) {
	n := l.Len()

	l.mu.Lock()
	roll := l.rng.Intn(100)
	l.mu.Unlock()

	switch {
	case n < 3 || roll < 35:
		if roll%2 == 0 {
			s, err := l.AddEnd()
			return ActionAddEnd, s, err
		}
		s, err := l.AddRandom()
		return ActionAdd, s, err
	case roll < 65:
		if s, ok := l.RemoveRandom(); ok {
			return ActionRemove, s, nil
		}
	case roll < 97:
		if s, ok := l.MoveRandom(); ok {
			return ActionMove, s, nil
		}
	default:
		return ActionClear, l.Clear(), nil
	}

	s, err := l.AddEnd()
	return ActionAddEnd, s, err
}
