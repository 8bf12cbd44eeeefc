package jobs

import (
	"strings"
	"testing"
)

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if !strings.HasPrefix(a, RunIDPrefix) {
		t.Errorf("NewRunID() = %q, missing prefix", a)
	}
	if a == b {
		t.Error("NewRunID returned the same ID twice")
	}
	if got, ok := NormalizeRunID(a); !ok || got != a {
		t.Errorf("NormalizeRunID(%q) = %q, %v", a, got, ok)
	}
}

func TestParseRoute(t *testing.T) {
	const id = "0b7c9a52-8f0e-4c43-9d5e-2f52f0e3a111"
	tests := []struct {
		path       string
		wantID     string
		wantAction string
		wantOK     bool
	}{
		{"/api/runs/run-" + id + "/records", "run-" + id, "records", true},
		{"/api/runs/" + id + "/records", "run-" + id, "records", true},
		{"/api/runs/" + id, "", "", false},
		{"/api/runs/" + id + "/", "", "", false},
		{"/api/runs/not-a-uuid/records", "", "", false},
		{"/api/other/" + id + "/records", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			id, action, ok := ParseRoute(tt.path, "/api/runs/")
			if ok != tt.wantOK || id != tt.wantID || action != tt.wantAction {
				t.Errorf("ParseRoute(%q) = %q, %q, %v; want %q, %q, %v", tt.path, id, action, ok, tt.wantID, tt.wantAction, tt.wantOK)
			}
		})
	}
}
