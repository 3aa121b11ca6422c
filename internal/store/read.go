package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/animlist/internal/ir"
)

// ErrFrameNotFound is returned when a requested frame does not exist.
var ErrFrameNotFound = errors.New("frame not found")

// SessionSummary describes one journaled session.
type SessionSummary struct {
	ID         string        `json:"id"`
	Duration   time.Duration `json:"duration"`
	Frames     int           `json:"frames"`
	LastSeq    int64         `json:"last_seq"`
	LastDigest string        `json:"last_digest"`
}

const frameColumns = `session_id, seq, kind, items, item_values, duration_ms, digest, frame_version`

// ReadFrames returns every frame of a session ordered by seq.
// Returns an empty slice (not nil) if the session has no frames.
func (s *Store) ReadFrames(ctx context.Context, session string) ([]FrameRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+frameColumns+`
		FROM frames
		WHERE session_id = ?
		ORDER BY seq ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	return collectFrames(rows)
}

// ReadFrame returns one frame.
func (s *Store) ReadFrame(ctx context.Context, session string, seq int64) (FrameRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+frameColumns+`
		FROM frames
		WHERE session_id = ? AND seq = ?
	`, session, seq)

	rec, err := scanFrame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return FrameRecord{}, fmt.Errorf("%w: %s/%d", ErrFrameNotFound, session, seq)
	}
	return rec, err
}

// FindByDigest returns every frame with the given digest, across sessions.
// Results are ordered by session id, then seq.
func (s *Store) FindByDigest(ctx context.Context, digest string) ([]FrameRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+frameColumns+`
		FROM frames
		WHERE digest = ?
		ORDER BY session_id COLLATE BINARY ASC, seq ASC
	`, digest)
	if err != nil {
		return nil, fmt.Errorf("query frames by digest: %w", err)
	}
	return collectFrames(rows)
}

// ListSessions summarizes every journaled session, ordered by id.
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.duration_ms, COUNT(f.seq), COALESCE(MAX(f.seq), 0),
		       COALESCE((SELECT digest FROM frames l WHERE l.session_id = s.id ORDER BY l.seq DESC LIMIT 1), '')
		FROM sessions s
		LEFT JOIN frames f ON f.session_id = s.id
		GROUP BY s.id
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	summaries := []SessionSummary{}
	for rows.Next() {
		var sum SessionSummary
		var durationMS int64
		if err := rows.Scan(&sum.ID, &durationMS, &sum.Frames, &sum.LastSeq, &sum.LastDigest); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.Duration = time.Duration(durationMS) * time.Millisecond
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return summaries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func collectFrames(rows *sql.Rows) ([]FrameRecord, error) {
	defer rows.Close()

	frames := []FrameRecord{}
	for rows.Next() {
		rec, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		frames = append(frames, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frames: %w", err)
	}
	return frames, nil
}

func scanFrame(row scanner) (FrameRecord, error) {
	var (
		rec                   FrameRecord
		kind                  string
		itemsJSON, valuesJSON string
		durationMS            int64
	)
	err := row.Scan(&rec.Session, &rec.Seq, &kind, &itemsJSON, &valuesJSON, &durationMS, &rec.Digest, &rec.FrameVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return FrameRecord{}, err
	}
	if err != nil {
		return FrameRecord{}, fmt.Errorf("scan frame: %w", err)
	}

	rec.Kind = ir.FrameKind(kind)
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	if rec.Items, err = unmarshalItems(itemsJSON); err != nil {
		return FrameRecord{}, fmt.Errorf("scan frame %s/%d: %w", rec.Session, rec.Seq, err)
	}
	if rec.Values, err = unmarshalValues(valuesJSON); err != nil {
		return FrameRecord{}, fmt.Errorf("scan frame %s/%d: %w", rec.Session, rec.Seq, err)
	}
	return rec, nil
}
