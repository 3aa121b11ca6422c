package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainFrame is the digest domain prefix for frames.
// The version suffix enables future algorithm migration.
const DomainFrame = "animlist/frame/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FrameDocument is the canonical map form of a frame's visible content:
// the kind plus the ordered (key, state) pairs. Values and payloads are
// excluded because renderers redraw them anyway.
func FrameDocument[T comparable](kind FrameKind, items []AnimatedItem[T]) map[string]any {
	list := make([]any, len(items))
	for i, it := range items {
		list[i] = map[string]any{
			"key":   it.Item.Key,
			"state": it.State.String(),
		}
	}
	return map[string]any{
		"kind":  string(kind),
		"items": list,
	}
}

// FrameDigest computes the content digest of a frame.
// Two frames with the same kind, keys and states share a digest, which lets a
// renderer skip a re-render of a frame it already shows.
func FrameDigest[T comparable](kind FrameKind, items []AnimatedItem[T]) (string, error) {
	canonical, err := MarshalCanonical(FrameDocument(kind, items))
	if err != nil {
		return "", fmt.Errorf("FrameDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainFrame, canonical), nil
}
