// Package reconcile turns an edit script into animation frames.
//
// A reconciliation produces two frames. The transitional frame is a superset
// of the current list: removed items are re-inserted near their old
// positions tagged REMOVED (or ALL_REMOVED when the list became empty), and
// every moved item leaves a ghost copy with a decorated key at its old
// position while the real item enters at its new one. The settled frame is
// the current list with every item IDLE.
//
// Transitional frame construction, in order:
//  1. Previous list empty: every item is INITIAL and nothing else happens.
//  2. Current items are INSERTED when inserted or a move destination, else IDLE.
//  3. Removed items are inserted at their clamped removal index.
//  4. Unless everything was removed, move ghosts are inserted next to the
//     move source (after it, or before it in a reversed layout).
//  5. Entries are de-duplicated by key, first occurrence wins.
//
// Everything in this package is pure; timing and cancellation live in the
// session package.
package reconcile
