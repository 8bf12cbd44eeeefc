// Package jsonutil provides generic decoding of Graph API responses and job
// descriptors into typed schemas, with truncated previews of the offending
// payload in error messages.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// previewLen is how much of an offending payload is echoed into errors.
const previewLen = 200

// Decode unmarshals raw into a value of type T. On failure the error carries
// a truncated preview of the payload for debugging.
func Decode[T any](raw []byte) (T, error) {
	var result T
	if err := json.Unmarshal(raw, &result); err != nil {
		var zero T
		return zero, fmt.Errorf("invalid JSON: %w (text: %s)", err, Preview(raw))
	}
	return result, nil
}

// Preview returns the first bytes of raw as a string, appending "..." if truncated.
func Preview(raw []byte) string {
	s := string(bytes.TrimSpace(raw))
	if len(s) > previewLen {
		return s[:previewLen] + "..."
	}
	return s
}

// IsArray reports whether raw holds a JSON array (ignoring leading whitespace).
func IsArray(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// SplitArray decodes raw as either a single JSON value or an array and
// returns its elements. A single object yields a one-element slice. Input
// that is not valid JSON is rejected before anything is split.
func SplitArray(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("no JSON content found")
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("invalid JSON (text: %s)", Preview(trimmed))
	}
	if !IsArray(trimmed) {
		return []json.RawMessage{json.RawMessage(trimmed)}, nil
	}
	elems, err := Decode[[]json.RawMessage](trimmed)
	if err != nil {
		return nil, err
	}
	return elems, nil
}
