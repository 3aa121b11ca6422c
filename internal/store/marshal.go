package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/animlist/internal/ir"
)

// ItemState is the stored form of one animated item.
type ItemState struct {
	Key   string `json:"key"`
	State string `json:"state"`
}

// FrameRecord is one journal row.
type FrameRecord struct {
	Session      string            `json:"session"`
	Seq          int64             `json:"seq"`
	Kind         ir.FrameKind      `json:"kind"`
	Items        []ItemState       `json:"items"`
	Values       []json.RawMessage `json:"values"`
	Duration     time.Duration     `json:"duration"`
	Digest       string            `json:"digest"`
	FrameVersion string            `json:"frame_version"`
}

// RecordOf converts a frame to its journal form. Item values are encoded
// with encoding/json; payloads are dropped.
func RecordOf[T comparable](f ir.Frame[T]) (FrameRecord, error) {
	rec := FrameRecord{
		Session:      f.Session,
		Seq:          f.Seq,
		Kind:         f.Kind,
		Items:        make([]ItemState, len(f.Items)),
		Values:       make([]json.RawMessage, len(f.Items)),
		Duration:     f.Duration,
		Digest:       f.Digest,
		FrameVersion: ir.FrameVersion,
	}
	for i, it := range f.Items {
		rec.Items[i] = ItemState{Key: it.Item.Key, State: it.State.String()}
		v, err := json.Marshal(it.Item.Value)
		if err != nil {
			return FrameRecord{}, fmt.Errorf("marshal value of %q: %w", it.Item.Key, err)
		}
		rec.Values[i] = v
	}
	return rec, nil
}

// States returns "key:STATE" pairs.
func (r FrameRecord) States() []string {
	out := make([]string, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Key + ":" + it.State
	}
	return out
}

// Verify recomputes the frame digest from the stored keys and states.
func (r FrameRecord) Verify() error {
	items := make([]ir.AnimatedItem[string], len(r.Items))
	for i, it := range r.Items {
		state, err := ir.ParseAnimationState(it.State)
		if err != nil {
			return fmt.Errorf("verify %s/%d: item %d: %w", r.Session, r.Seq, i, err)
		}
		items[i] = ir.AnimatedItem[string]{Item: ir.KeyedItem[string]{Key: it.Key}, State: state}
	}
	digest, err := ir.FrameDigest(r.Kind, items)
	if err != nil {
		return fmt.Errorf("verify %s/%d: %w", r.Session, r.Seq, err)
	}
	if digest != r.Digest {
		return fmt.Errorf("verify %s/%d: digest mismatch: stored %s, computed %s", r.Session, r.Seq, r.Digest, digest)
	}
	return nil
}

// marshalItems converts item states to canonical JSON TEXT for storage.
func marshalItems(items []ItemState) (string, error) {
	list := make([]any, len(items))
	for i, it := range items {
		list[i] = map[string]any{"key": it.Key, "state": it.State}
	}
	data, err := ir.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("marshal items: %w", err)
	}
	return string(data), nil
}

// marshalValues converts raw item values to a JSON array.
// HTML escaping is disabled so stored text matches what producers sent.
func marshalValues(values []json.RawMessage) (string, error) {
	if values == nil {
		values = []json.RawMessage{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(values); err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalItems(data string) ([]ItemState, error) {
	var items []ItemState
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	if items == nil {
		items = []ItemState{}
	}
	return items, nil
}

func unmarshalValues(data string) ([]json.RawMessage, error) {
	var values []json.RawMessage
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	if values == nil {
		values = []json.RawMessage{}
	}
	return values, nil
}
