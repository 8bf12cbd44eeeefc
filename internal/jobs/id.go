// Package jobs provides run identifiers and route parsing for the API.
package jobs

import (
	"strings"

	"github.com/google/uuid"
)

// RunIDPrefix is prepended to every generated run ID.
const RunIDPrefix = "run-"

// NewRunID creates a new random run ID, e.g. "run-3f2c...".
func NewRunID() string {
	return RunIDPrefix + uuid.NewString()
}

// NormalizeRunID accepts a run ID with or without its prefix and returns
// the prefixed form. It reports false when the remainder is not a UUID.
func NormalizeRunID(id string) (string, bool) {
	raw := strings.TrimPrefix(id, RunIDPrefix)
	if _, err := uuid.Parse(raw); err != nil {
		return "", false
	}
	return RunIDPrefix + raw, true
}
