package platform

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"FINISHED", StatusFinished},
		{"finished", StatusFinished},
		{" PUBLISHED ", StatusPublished},
		{"IN_PROGRESS", StatusInProgress},
		{"", StatusInProgress},
		{"ERROR", StatusError},
		{"EXPIRED", StatusExpired},
		{"SOMETHING_NEW", StatusUnknown},
	}
	for _, tt := range tests {
		if got := ParseStatus(tt.in); got != tt.want {
			t.Errorf("ParseStatus(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	tests := []struct {
		s        Status
		terminal bool
		ready    bool
	}{
		{StatusInProgress, false, false},
		{StatusFinished, true, true},
		{StatusPublished, true, true},
		{StatusError, true, false},
		{StatusExpired, true, false},
		{StatusUnknown, false, false},
	}
	for _, tt := range tests {
		if tt.s.Terminal() != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.s, tt.s.Terminal(), tt.terminal)
		}
		if tt.s.Ready() != tt.ready {
			t.Errorf("%s.Ready() = %v, want %v", tt.s, tt.s.Ready(), tt.ready)
		}
	}
}

func TestErrorSentinels(t *testing.T) {
	var err error = fmt.Errorf("wrapped: %w", &CreationError{Platform: Instagram, Variant: "IMAGE", Raw: `{}`})
	if !errors.Is(err, ErrCreationFailed) {
		t.Error("expected CreationError to match ErrCreationFailed")
	}
	if errors.Is(err, ErrPublishFailed) {
		t.Error("CreationError must not match ErrPublishFailed")
	}

	err = &PublishError{Platform: Threads, ContainerID: "c1", Raw: `{"success":true}`}
	if !errors.Is(err, ErrPublishFailed) {
		t.Error("expected PublishError to match ErrPublishFailed")
	}
}
