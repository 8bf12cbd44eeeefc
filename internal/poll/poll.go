// Package poll repeatedly checks a remote processing status until a
// completion predicate holds or a wall-clock deadline passes.
//
// The deadline is soft: Until never fails because time ran out. It hands
// back the last observed value with Done=false, and callers must treat a
// timed-out outcome as "not ready, do not publish".
package poll

import (
	"context"
	"time"
)

const (
	// DefaultInterval is the pause between status checks.
	DefaultInterval = 2 * time.Second
	// DefaultMaxWait is the default deadline for one poll loop.
	DefaultMaxWait = 180 * time.Second

	jitterStep = 30 * time.Millisecond
	jitterCap  = 300 * time.Millisecond
)

// Options configures one poll loop.
type Options[T any] struct {
	// Check fetches the current status. An error aborts the loop.
	Check func(ctx context.Context) (T, error)
	// IsDone reports whether a status is terminal.
	IsDone func(T) bool
	// Interval is the base pause between checks.
	Interval time.Duration
	// MaxWait is the deadline measured from the first check. Zero means
	// check exactly once.
	MaxWait time.Duration
	// DisableJitter turns off the small growing delay added to Interval.
	DisableJitter bool
	// OnAttempt, if set, observes every checked value.
	OnAttempt func(attempt int, value T)
}

// Outcome is the result of a poll loop. Value is the last value IsDone was
// evaluated against.
type Outcome[T any] struct {
	Value    T
	Done     bool
	Attempts int
	Elapsed  time.Duration
}

// TimedOut reports whether the loop gave up before IsDone held.
func (o Outcome[T]) TimedOut() bool {
	return !o.Done
}

// Until runs the poll loop described by opts. It returns an error only when
// Check fails or ctx is cancelled.
func Until[T any](ctx context.Context, opts Options[T]) (Outcome[T], error) {
	start := time.Now()
	var out Outcome[T]

	for {
		out.Attempts++
		value, err := opts.Check(ctx)
		if err != nil {
			out.Elapsed = time.Since(start)
			return out, err
		}
		out.Value = value
		if opts.OnAttempt != nil {
			opts.OnAttempt(out.Attempts, value)
		}

		if opts.IsDone(value) {
			out.Done = true
			out.Elapsed = time.Since(start)
			return out, nil
		}
		if time.Since(start) >= opts.MaxWait {
			out.Elapsed = time.Since(start)
			return out, nil
		}

		wait := opts.Interval
		if !opts.DisableJitter {
			wait += Jitter(out.Attempts)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			out.Elapsed = time.Since(start)
			return out, ctx.Err()
		case <-timer.C:
		}
	}
}

// Jitter returns the extra delay added after the given attempt:
// 30ms per attempt, capped at 300ms.
func Jitter(attempt int) time.Duration {
	j := time.Duration(attempt) * jitterStep
	if j > jitterCap {
		return jitterCap
	}
	return j
}
