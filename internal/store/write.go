package store

import (
	"context"
	"fmt"

	"github.com/roach88/animlist/internal/ir"
)

// WriteFrame appends a frame to the journal.
// Uses ON CONFLICT DO NOTHING for idempotency - writing the same
// (session, seq) twice is silently ignored.
//
// The session row is created on its first frame; its duration is the
// largest transitional duration seen.
func (s *Store) WriteFrame(ctx context.Context, rec FrameRecord) error {
	if rec.Session == "" {
		return fmt.Errorf("write frame: empty session id")
	}
	if len(rec.Values) != 0 && len(rec.Values) != len(rec.Items) {
		return fmt.Errorf("write frame: %d values for %d items", len(rec.Values), len(rec.Items))
	}

	itemsJSON, err := marshalItems(rec.Items)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	valuesJSON, err := marshalValues(rec.Values)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	version := rec.FrameVersion
	if version == "" {
		version = ir.FrameVersion
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write frame: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, duration_ms, engine_version)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET duration_ms = MAX(duration_ms, excluded.duration_ms)
	`, rec.Session, rec.Duration.Milliseconds(), ir.EngineVersion)
	if err != nil {
		return fmt.Errorf("write frame: session: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO frames
		(session_id, seq, kind, items, item_values, duration_ms, digest, frame_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		rec.Session,
		rec.Seq,
		string(rec.Kind),
		itemsJSON,
		valuesJSON,
		rec.Duration.Milliseconds(),
		rec.Digest,
		version,
	)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write frame: commit: %w", err)
	}
	return nil
}

// Recorder journals the frames of sessions whose items have type T.
type Recorder[T comparable] struct {
	store *Store
}

// NewRecorder creates a recorder writing to s.
func NewRecorder[T comparable](s *Store) *Recorder[T] {
	return &Recorder[T]{store: s}
}

// Record writes one frame.
func (r *Recorder[T]) Record(ctx context.Context, f ir.Frame[T]) error {
	rec, err := RecordOf(f)
	if err != nil {
		return fmt.Errorf("record frame: %w", err)
	}
	return r.store.WriteFrame(ctx, rec)
}
