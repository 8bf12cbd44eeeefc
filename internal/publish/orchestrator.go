package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/fpang/meta-publisher/internal/facebook"
	"github.com/fpang/meta-publisher/internal/instagram"
	"github.com/fpang/meta-publisher/internal/platform"
	"github.com/fpang/meta-publisher/internal/poll"
	"github.com/fpang/meta-publisher/internal/threads"
)

// DefaultFinishDelay is the pause before a Facebook upload finish call.
// Finishing immediately after the upload is answered with a rate-limit error.
const DefaultFinishDelay = 2 * time.Second

// MediaResolver rewrites a media reference (for example s3://bucket/key)
// into a URL the platform can fetch. Plain http(s) URLs are returned as is.
type MediaResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Orchestrator runs jobs against the platform adapters. Each job runs to
// completion sequentially; an Orchestrator holds no per-job state and may
// be shared.
type Orchestrator struct {
	instagram *instagram.Client
	facebook  *facebook.Client
	threads   *threads.Client

	observer      Observer
	media         MediaResolver
	finishDelay   time.Duration
	disableJitter bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithInstagram(c *instagram.Client) Option { return func(o *Orchestrator) { o.instagram = c } }
func WithFacebook(c *facebook.Client) Option   { return func(o *Orchestrator) { o.facebook = c } }
func WithThreads(c *threads.Client) Option     { return func(o *Orchestrator) { o.threads = c } }

// WithObserver replaces the default LogObserver.
func WithObserver(obs Observer) Option { return func(o *Orchestrator) { o.observer = obs } }

// WithMediaResolver sets the resolver applied to every media URL.
func WithMediaResolver(r MediaResolver) Option { return func(o *Orchestrator) { o.media = r } }

// WithFinishDelay overrides DefaultFinishDelay.
func WithFinishDelay(d time.Duration) Option { return func(o *Orchestrator) { o.finishDelay = d } }

// WithoutJitter disables the poll jitter, for deterministic tests.
func WithoutJitter() Option { return func(o *Orchestrator) { o.disableJitter = true } }

// New creates an Orchestrator. Jobs for a platform whose adapter is not
// supplied fail with ErrPlatformNotConfigured.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		observer:    LogObserver{},
		finishDelay: DefaultFinishDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// jobRun carries the identity of the job in flight to event emission.
type jobRun struct {
	o   *Orchestrator
	job Job
	cfg Common
}

func (r *jobRun) emit(ctx context.Context, e Event) {
	e.Platform = r.job.Platform()
	e.Operation = r.job.Operation()
	e.JobID = r.cfg.ID
	r.o.observer.Observe(ctx, e)
}

// Run validates job and executes it. A timed-out poll is not an error: the
// result carries TimedOut=true and Published=false.
func (o *Orchestrator) Run(ctx context.Context, job Job) (*Result, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	run := &jobRun{o: o, job: job, cfg: job.settings()}
	start := time.Now()
	run.emit(ctx, Event{Kind: EventJobStarted})

	res, err := run.dispatch(ctx)
	if res != nil {
		res.ID = run.cfg.ID
	}
	run.emit(ctx, Event{Kind: EventJobFinished, Result: res, Err: err, Elapsed: time.Since(start)})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *jobRun) dispatch(ctx context.Context) (*Result, error) {
	switch j := r.job.(type) {
	case IGImage, IGVideo, IGReel, IGStory, IGCarousel:
		if r.o.instagram == nil {
			return nil, fmt.Errorf("%s: %w", platform.Instagram, ErrPlatformNotConfigured)
		}
		return r.runInstagram(ctx)
	case FBPhoto, FBVideo, FBReel, FBStoryPhoto, FBStoryVideo:
		if r.o.facebook == nil {
			return nil, fmt.Errorf("%s: %w", platform.Facebook, ErrPlatformNotConfigured)
		}
		return r.runFacebook(ctx)
	case ThreadsText, ThreadsImage, ThreadsVideo, ThreadsCarousel:
		if r.o.threads == nil {
			return nil, fmt.Errorf("%s: %w", platform.Threads, ErrPlatformNotConfigured)
		}
		return r.runThreads(ctx)
	default:
		return nil, &UnsupportedOperationError{Resource: string(j.Platform()), Operation: string(j.Operation())}
	}
}

// --- Shared steps ---

type statusFunc func(ctx context.Context, id string) (platform.Container, error)

// resolve maps a media reference through the configured MediaResolver.
func (r *jobRun) resolve(ctx context.Context, ref string) (string, error) {
	if r.o.media == nil || ref == "" {
		return ref, nil
	}
	u, err := r.o.media.Resolve(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("resolve media %s: %w", ref, err)
	}
	return u, nil
}

func (r *jobRun) created(ctx context.Context, id, role string) {
	r.emit(ctx, Event{Kind: EventContainerCreated, ContainerID: id, Role: role})
}

// await polls id until its status is terminal or the job's MaxWait passes.
func (r *jobRun) await(ctx context.Context, id string, check statusFunc) (poll.Outcome[platform.Container], error) {
	out, err := poll.Until(ctx, poll.Options[platform.Container]{
		Check: func(ctx context.Context) (platform.Container, error) {
			return check(ctx, id)
		},
		IsDone:        func(c platform.Container) bool { return c.Status.Terminal() },
		Interval:      r.cfg.PollInterval,
		MaxWait:       r.cfg.MaxWait,
		DisableJitter: r.o.disableJitter,
		OnAttempt: func(attempt int, c platform.Container) {
			r.emit(ctx, Event{Kind: EventStatusPolled, ContainerID: id, Status: c.Status, Attempt: attempt})
		},
	})
	if err != nil {
		return out, fmt.Errorf("poll %s: %w", id, err)
	}
	return out, nil
}

// ready reports whether a poll outcome allows the container to be used.
func ready(out poll.Outcome[platform.Container]) bool {
	return out.Done && out.Value.Status.Ready()
}

// assembleChildren creates every carousel child in list order, then polls
// each one until it is ready. The first child that fails or times out
// aborts the assembly with ChildNotReadyError; the caller must not create
// a parent in that case.
func (r *jobRun) assembleChildren(ctx context.Context, n int, create func(ctx context.Context, i int) (string, error), check statusFunc) ([]string, map[string]platform.Status, error) {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := create(ctx, i)
		if err != nil {
			return nil, nil, fmt.Errorf("carousel child %d: %w", i, err)
		}
		r.created(ctx, id, RoleChild)
		ids = append(ids, id)
	}

	statuses := make(map[string]platform.Status, n)
	for i, id := range ids {
		out, err := r.await(ctx, id, check)
		if err != nil {
			return nil, nil, fmt.Errorf("carousel child %d: %w", i, err)
		}
		statuses[id] = out.Value.Status
		if !ready(out) {
			return nil, nil, &ChildNotReadyError{
				Platform: r.job.Platform(),
				Index:    i,
				ChildID:  id,
				Status:   out.Value.Status,
				Message:  out.Value.ErrorMessage,
				TimedOut: out.TimedOut(),
			}
		}
	}
	return ids, statuses, nil
}

// permalink fetches a permalink and swallows failures into an event.
func (r *jobRun) permalink(ctx context.Context, id string, fetch func(ctx context.Context, id string) (string, error)) string {
	link, err := fetch(ctx, id)
	if err != nil {
		r.emit(ctx, Event{Kind: EventPermalinkFailed, ContainerID: id, Err: err})
		return ""
	}
	return link
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
