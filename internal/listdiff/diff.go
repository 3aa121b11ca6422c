package listdiff

import (
	"sort"

	"github.com/roach88/animlist/internal/ir"
)

// Diff computes the edit script that turns prev into cur.
//
// Returns an InvalidListError if either list contains a duplicate key; no
// partial script is returned in that case.
//
// All slices of the returned script are non-nil so the script serializes
// identically whether or not a category is empty.
func Diff[T comparable](prev, cur []ir.KeyedItem[T]) (ir.EditScript, error) {
	prevIdx, err := indexKeys(prev)
	if err != nil {
		return ir.EditScript{}, err
	}
	curIdx, err := indexKeys(cur)
	if err != nil {
		return ir.EditScript{}, err
	}

	script := ir.EditScript{
		Inserted: []int{},
		Removed:  []int{},
		Moved:    []ir.Move{},
		Changed:  []int{},
	}

	// Walk prev once: removals, and the matched items in previous order.
	matchedFrom := make([]int, 0, len(prev))
	matchedTo := make([]int, 0, len(prev))
	for i, item := range prev {
		j, ok := curIdx[item.Key]
		if !ok {
			script.Removed = append(script.Removed, i)
			continue
		}
		matchedFrom = append(matchedFrom, i)
		matchedTo = append(matchedTo, j)
		if item.Value != cur[j].Value {
			script.Changed = append(script.Changed, j)
		}
	}

	for j, item := range cur {
		if _, ok := prevIdx[item.Key]; !ok {
			script.Inserted = append(script.Inserted, j)
		}
	}

	stays := longestIncreasing(matchedTo)
	for m := range matchedFrom {
		if !stays[m] {
			script.Moved = append(script.Moved, ir.Move{From: matchedFrom[m], To: matchedTo[m]})
		}
	}

	sort.Ints(script.Changed)
	script.AllRemoved = len(cur) == 0 && len(script.Removed) > 0

	return script, nil
}

// Validate checks that every key in items is unique.
func Validate[T comparable](items []ir.KeyedItem[T]) error {
	_, err := indexKeys(items)
	return err
}

// Keys returns the keys of items in order.
func Keys[T comparable](items []ir.KeyedItem[T]) []string {
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.Key
	}
	return keys
}

// indexKeys builds the key→index map, rejecting duplicates.
func indexKeys[T comparable](items []ir.KeyedItem[T]) (map[string]int, error) {
	idx := make(map[string]int, len(items))
	for i, item := range items {
		if first, dup := idx[item.Key]; dup {
			return nil, &InvalidListError{Key: item.Key, First: first, Second: i}
		}
		idx[item.Key] = i
	}
	return idx, nil
}

// longestIncreasing marks the members of one longest strictly increasing
// subsequence of seq (patience sorting, O(n log n)).
//
// When several subsequences share the maximum length, the one ending at the
// smallest final value is chosen, so for [1, 0] the element 0 stays and the
// element 1 is reported as moved.
func longestIncreasing(seq []int) []bool {
	mark := make([]bool, len(seq))
	if len(seq) == 0 {
		return mark
	}

	tails := make([]int, 0, len(seq)) // indices into seq
	parent := make([]int, len(seq))
	for i, v := range seq {
		k := sort.Search(len(tails), func(t int) bool { return seq[tails[t]] >= v })
		if k > 0 {
			parent[i] = tails[k-1]
		} else {
			parent[i] = -1
		}
		if k == len(tails) {
			tails = append(tails, i)
		} else {
			tails[k] = i
		}
	}

	for i := tails[len(tails)-1]; i >= 0; i = parent[i] {
		mark[i] = true
	}
	return mark
}
