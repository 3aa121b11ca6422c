package server

import (
	"github.com/roach88/animlist/internal/ir"
	"github.com/roach88/animlist/internal/session"
)

type itemJSON struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type itemsRequest struct {
	Items []itemJSON `json:"items"`
}

func (r itemsRequest) keyedItems() []ir.KeyedItem[string] {
	out := make([]ir.KeyedItem[string], len(r.Items))
	for i, it := range r.Items {
		out[i] = ir.KeyedItem[string]{Key: it.Key, Value: it.Value}
	}
	return out
}

type animatedJSON struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	State string `json:"state"`
}

type frameJSON struct {
	Session    string         `json:"session"`
	Seq        int64          `json:"seq"`
	Kind       ir.FrameKind   `json:"kind"`
	Items      []animatedJSON `json:"items"`
	DurationMS int64          `json:"duration_ms"`
	Digest     string         `json:"digest"`
}

func frameView(f ir.Frame[string]) frameJSON {
	items := make([]animatedJSON, len(f.Items))
	for i, it := range f.Items {
		items[i] = animatedJSON{Key: it.Item.Key, Value: it.Item.Value, State: it.State.String()}
	}
	return frameJSON{
		Session:    f.Session,
		Seq:        f.Seq,
		Kind:       f.Kind,
		Items:      items,
		DurationMS: f.Duration.Milliseconds(),
		Digest:     f.Digest,
	}
}

type sessionJSON struct {
	ID          string     `json:"id"`
	DurationMS  int64      `json:"duration_ms"`
	Settled     []itemJSON `json:"settled"`
	Current     *frameJSON `json:"current,omitempty"`
	Subscribers int        `json:"subscribers"`
}

func sessionView(s *session.Session[string]) sessionJSON {
	settled := s.Settled()
	view := sessionJSON{
		ID:          s.ID(),
		DurationMS:  s.Duration().Milliseconds(),
		Settled:     make([]itemJSON, len(settled)),
		Subscribers: s.Subscribers(),
	}
	for i, it := range settled {
		view.Settled[i] = itemJSON{Key: it.Key, Value: it.Value}
	}
	if f, ok := s.Current(); ok {
		fv := frameView(f)
		view.Current = &fv
	}
	return view
}

type updateResponse struct {
	Session string     `json:"session"`
	Frame   *frameJSON `json:"frame,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Key     string `json:"key,omitempty"`
}
