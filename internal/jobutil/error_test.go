package jobutil

import (
	"context"
	"errors"
	"testing"
)

func TestSetJobError(t *testing.T) {
	var gotRun, gotMsg string
	gotIndex := -1
	err := SetJobError(context.Background(), "run-1", 4, "boom", func(_ context.Context, runID string, index int, msg string) error {
		gotRun, gotIndex, gotMsg = runID, index, msg
		return nil
	})
	if err != nil {
		t.Fatalf("SetJobError: %v", err)
	}
	if gotRun != "run-1" || gotIndex != 4 || gotMsg != "boom" {
		t.Errorf("writer got %q %d %q", gotRun, gotIndex, gotMsg)
	}
}

func TestSetJobError_PropagatesWriterError(t *testing.T) {
	want := errors.New("dynamo down")
	err := SetJobError(context.Background(), "run-1", 0, "boom", func(context.Context, string, int, string) error { return want })
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}
