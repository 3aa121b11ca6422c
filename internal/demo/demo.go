// Package demo is a sample producer of list snapshots: an in-memory list
// that is edited at random and emits a fresh snapshot after every edit.
package demo

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/animlist/internal/ir"
)

var (
	// ErrOutOfRange is returned for an insertion or move position outside the list.
	ErrOutOfRange = errors.New("position out of range")
	// ErrUnknownItem is returned when an id is not in the list.
	ErrUnknownItem = errors.New("unknown item")
)

// List is a mutable list of demo items. Every edit returns the new snapshot;
// snapshots are never modified afterwards.
type List struct {
	mu    sync.Mutex
	items []ir.KeyedItem[string]
	rng   *rand.Rand
}

// New creates an empty list. rng drives both random edits and item ids, so a
// seeded rng gives a reproducible run.
func New(rng *rand.Rand) *List {
	return &List{items: []ir.KeyedItem[string]{}, rng: rng}
}

// Items returns the current snapshot.
func (l *List) Items() []ir.KeyedItem[string] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.items)
}

// Len returns the number of items.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// AddAt inserts a new item at index i, 0 <= i <= Len().
func (l *List) AddAt(i int) ([]ir.KeyedItem[string], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addAt(i)
}

func (l *List) addAt(i int) ([]ir.KeyedItem[string], error) {
	if i < 0 || i > len(l.items) {
		return nil, fmt.Errorf("add at %d: %w (len %d)", i, ErrOutOfRange, len(l.items))
	}
	id, err := uuid.NewRandomFromReader(l.rng)
	if err != nil {
		return nil, fmt.Errorf("add at %d: %w", i, err)
	}
	item := ir.KeyedItem[string]{
		Key:   id.String(),
		Value: fmt.Sprintf("Item: %d", len(l.items)),
	}
	l.items = slices.Insert(slices.Clone(l.items), i, item)
	return slices.Clone(l.items), nil
}

// AddEnd appends a new item.
func (l *List) AddEnd() ([]ir.KeyedItem[string], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addAt(len(l.items))
}

// AddRandom inserts a new item at a random index before the last position,
// or at the front of an empty list.
func (l *List) AddRandom() ([]ir.KeyedItem[string], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := 0
	if len(l.items) > 0 {
		i = l.rng.Intn(len(l.items))
	}
	return l.addAt(i)
}

// Remove deletes the item with the given id.
func (l *List) Remove(id string) ([]ir.KeyedItem[string], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remove(id)
}

func (l *List) remove(id string) ([]ir.KeyedItem[string], error) {
	i := l.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("remove %s: %w", id, ErrUnknownItem)
	}
	l.items = slices.Delete(slices.Clone(l.items), i, i+1)
	return slices.Clone(l.items), nil
}

// RemoveRandom deletes a random item. It returns ok=false on an empty list.
func (l *List) RemoveRandom() (snapshot []ir.KeyedItem[string], ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == 0 {
		return nil, false
	}
	snapshot, err := l.remove(l.items[l.rng.Intn(len(l.items))].Key)
	return snapshot, err == nil
}

// Move relocates the item with the given id so that it ends up at position.
// position indexes the resulting list and must be in [0, Len()-1].
func (l *List) Move(id string, position int) ([]ir.KeyedItem[string], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(id, position)
}

func (l *List) move(id string, position int) ([]ir.KeyedItem[string], error) {
	from := l.indexOf(id)
	if from < 0 {
		return nil, fmt.Errorf("move %s: %w", id, ErrUnknownItem)
	}
	if position < 0 || position >= len(l.items) {
		return nil, fmt.Errorf("move %s to %d: %w (len %d)", id, position, ErrOutOfRange, len(l.items))
	}
	item := l.items[from]
	next := slices.Delete(slices.Clone(l.items), from, from+1)
	l.items = slices.Insert(next, position, item)
	return slices.Clone(l.items), nil
}

// MoveRandom moves a random item to a random position. It returns ok=false
// when the list has fewer than two items.
func (l *List) MoveRandom() (snapshot []ir.KeyedItem[string], ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) < 2 {
		return nil, false
	}
	id := l.items[l.rng.Intn(len(l.items))].Key
	snapshot, err := l.move(id, l.rng.Intn(len(l.items)))
	return snapshot, err == nil
}

// Clear empties the list.
func (l *List) Clear() []ir.KeyedItem[string] {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = []ir.KeyedItem[string]{}
	return []ir.KeyedItem[string]{}
}

func (l *List) indexOf(id string) int {
	return slices.IndexFunc(l.items, func(it ir.KeyedItem[string]) bool { return it.Key == id })
}
