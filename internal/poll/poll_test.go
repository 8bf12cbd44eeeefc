package poll

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUntilStopsAtFirstDone(t *testing.T) {
	statuses := []string{"IN_PROGRESS", "IN_PROGRESS", "FINISHED", "ERROR"}
	calls := 0
	out, err := Until(context.Background(), Options[string]{
		Check: func(ctx context.Context) (string, error) {
			s := statuses[calls]
			calls++
			return s, nil
		},
		IsDone:        func(s string) bool { return s == "FINISHED" || s == "ERROR" },
		Interval:      time.Millisecond,
		MaxWait:       time.Minute,
		DisableJitter: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 checks, got %d", calls)
	}
	if !out.Done || out.TimedOut() {
		t.Errorf("expected Done outcome, got %+v", out)
	}
	if out.Value != "FINISHED" {
		t.Errorf("expected FINISHED, got %q", out.Value)
	}
	if out.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", out.Attempts)
	}
}

func TestUntilZeroMaxWaitChecksOnce(t *testing.T) {
	calls := 0
	out, err := Until(context.Background(), Options[string]{
		Check: func(ctx context.Context) (string, error) {
			calls++
			return "IN_PROGRESS", nil
		},
		IsDone:   func(s string) bool { return false },
		Interval: time.Hour,
		MaxWait:  0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 check, got %d", calls)
	}
	if !out.TimedOut() || out.Value != "IN_PROGRESS" {
		t.Errorf("expected timed-out IN_PROGRESS outcome, got %+v", out)
	}
}

func TestUntilZeroMaxWaitReturnsDoneValue(t *testing.T) {
	out, _ := Until(context.Background(), Options[int]{
		Check:   func(ctx context.Context) (int, error) { return 7, nil },
		IsDone:  func(v int) bool { return v == 7 },
		MaxWait: 0,
	})
	if !out.Done || out.Value != 7 {
		t.Errorf("expected done with 7, got %+v", out)
	}
}

func TestUntilSoftTimeout(t *testing.T) {
	calls := 0
	out, err := Until(context.Background(), Options[string]{
		Check: func(ctx context.Context) (string, error) {
			calls++
			return "IN_PROGRESS", nil
		},
		IsDone:        func(s string) bool { return s == "FINISHED" },
		Interval:      2 * time.Millisecond,
		MaxWait:       20 * time.Millisecond,
		DisableJitter: true,
	})
	if err != nil {
		t.Fatalf("timeout must not be an error, got %v", err)
	}
	if out.Done {
		t.Error("expected timed-out outcome")
	}
	if calls < 2 {
		t.Errorf("expected several checks before the deadline, got %d", calls)
	}
}

func TestUntilCheckError(t *testing.T) {
	boom := errors.New("status read failed")
	_, err := Until(context.Background(), Options[string]{
		Check:   func(ctx context.Context) (string, error) { return "", boom },
		IsDone:  func(string) bool { return true },
		MaxWait: time.Second,
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected check error, got %v", err)
	}
}

func TestUntilContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, err := Until(ctx, Options[string]{
		Check: func(ctx context.Context) (string, error) {
			cancel()
			return "IN_PROGRESS", nil
		},
		IsDone:   func(string) bool { return false },
		Interval: time.Hour,
		MaxWait:  time.Hour,
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestOnAttemptObservesEveryValue(t *testing.T) {
	var seen []int
	n := 0
	Until(context.Background(), Options[int]{
		Check:         func(ctx context.Context) (int, error) { n++; return n, nil },
		IsDone:        func(v int) bool { return v == 3 },
		Interval:      time.Millisecond,
		MaxWait:       time.Minute,
		DisableJitter: true,
		OnAttempt:     func(attempt, v int) { seen = append(seen, attempt) },
	})
	if len(seen) != 3 || seen[2] != 3 {
		t.Errorf("expected attempts [1 2 3], got %v", seen)
	}
}

func TestJitterCapped(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 30 * time.Millisecond},
		{5, 150 * time.Millisecond},
		{10, 300 * time.Millisecond},
		{50, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := Jitter(tt.attempt); got != tt.want {
			t.Errorf("Jitter(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}
