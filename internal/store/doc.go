// Package store provides the SQLite-backed frame journal.
//
// The journal is append-only. Every frame a session emits is one row keyed by
// (session_id, seq), so writing the same frame twice is a no-op and reading a
// session back yields its frames in emission order.
//
// # Conventions
//
//   - Ordering uses the logical seq, never wall-clock time
//   - Item keys and states are stored as RFC 8785 canonical JSON, so the stored
//     text of a frame is byte-stable and its digest can be recomputed on read
//   - Item values are stored as plain JSON next to the canonical part; they do
//     not take part in the digest
//
// # Connection settings
//
// Every connection opens with WAL journaling, synchronous=NORMAL, a 5 second
// busy timeout and foreign keys enforced. The pool holds a single connection.
package store
