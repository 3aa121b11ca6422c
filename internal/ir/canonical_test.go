package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int", -100, "-100"},
		{"max int64", int64(9223372036854775807), "9223372036854775807"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"empty array", []any{}, "[]"},
		{"string array", []string{"a", "b"}, `["a","b"]`},
		{"empty object", map[string]any{}, "{}"},
		{"mixed array", []any{1, "x", true}, `[1,"x",true]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"nested": map[string]any{
			"b": 1,
			"a": 2,
		},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"nested":{"a":2,"b":1},"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// UTF-16 puts the surrogate pair (0xD800) before U+E000; UTF-8 would not.
	obj := map[string]any{
		"\uE000":     1,
		"\U00010000": 2,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical("<a&b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a&b>"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	decomposed, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	composed, err := MarshalCanonical("\u00e9")
	require.NoError(t, err)

	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))

	escaped, err := MarshalCanonical(`\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(escaped), "a literal backslash sequence is left alone")
}

func TestMarshalCanonicalControlCharsEscaped(t *testing.T) {
	result, err := MarshalCanonical("tab\there\n")
	require.NoError(t, err)
	assert.Equal(t, `"tab\there\n"`, string(result))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"null", nil},
		{"float", 1.5},
		{"nested float", map[string]any{"x": []any{float32(2)}}},
		{"unsupported", struct{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.input)
			assert.Error(t, err)
		})
	}
}
