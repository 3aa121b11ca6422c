package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/animlist/internal/ir"
)

// Items builds a string-valued snapshot whose values are "v-<key>".
func Items(keys ...string) []ir.KeyedItem[string] {
	out := make([]ir.KeyedItem[string], len(keys))
	for i, k := range keys {
		out[i] = ir.KeyedItem[string]{Key: k, Value: "v-" + k}
	}
	return out
}

// States renders animated items as "key:STATE" pairs.
func States[T comparable](items []ir.AnimatedItem[T]) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Item.Key + ":" + it.State.String()
	}
	return out
}

// SequentialIDs generates "<prefix>-1", "<prefix>-2", ... for deterministic
// session ids.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix means "session".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "session"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
