// Package listdiff computes edit scripts between two keyed list snapshots.
//
// Items are matched by key through key→index maps, so matching is O(n)
// regardless of order. Matched items whose values differ are reported as
// changed. Matched items that keep their relative order form the longest
// increasing subsequence of their new positions; every other matched item is
// reported as a move, which keeps the number of moves minimal.
//
// For a fixed (previous, current) pair the script is deterministic:
//   - Inserted, Removed and Changed are ascending
//   - Moved is ascending by From
//
// Apply replays a script against the previous key order so callers (and
// tests) can check that the script reconstructs the current order exactly.
package listdiff
