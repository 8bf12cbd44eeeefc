package publish

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/meta-publisher/internal/metrics"
	"github.com/fpang/meta-publisher/internal/platform"
)

// EventKind identifies a point in a job's lifecycle.
type EventKind string

const (
	EventJobStarted       EventKind = "job_started"
	EventContainerCreated EventKind = "container_created"
	EventStatusPolled     EventKind = "status_polled"
	EventPublished        EventKind = "published"
	EventPermalinkFailed  EventKind = "permalink_failed"
	EventJobFinished      EventKind = "job_finished"
)

// Container roles carried on container events.
const (
	RoleContainer = "container"
	RoleChild     = "child"
	RoleParent    = "parent"
	RoleVideo     = "video"
)

// Event is emitted by the Orchestrator. Only the fields relevant to Kind
// are set.
type Event struct {
	Kind        EventKind
	Platform    platform.Name
	Operation   Operation
	JobID       string
	ContainerID string
	Role        string
	Status      platform.Status
	Attempt     int
	Result      *Result
	Err         error
	Elapsed     time.Duration
}

// Observer receives lifecycle events. Implementations must not block.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) Observe(ctx context.Context, e Event) { f(ctx, e) }

// Observers fans an event out to several observers in order.
type Observers []Observer

func (obs Observers) Observe(ctx context.Context, e Event) {
	for _, o := range obs {
		o.Observe(ctx, e)
	}
}

// LogObserver writes events to the global zerolog logger.
type LogObserver struct{}

func (LogObserver) Observe(_ context.Context, e Event) {
	switch e.Kind {
	case EventJobStarted:
		log.Info().Str("platform", string(e.Platform)).Str("operation", string(e.Operation)).Str("jobId", e.JobID).Msg("Publish job started")
	case EventContainerCreated:
		log.Info().Str("platform", string(e.Platform)).Str("containerId", e.ContainerID).Str("role", e.Role).Msg("Container created")
	case EventStatusPolled:
		log.Debug().Str("platform", string(e.Platform)).Str("containerId", e.ContainerID).Str("status", string(e.Status)).Int("attempt", e.Attempt).Msg("Container status")
	case EventPublished:
		log.Info().Str("platform", string(e.Platform)).Str("containerId", e.ContainerID).Msg("Container published")
	case EventPermalinkFailed:
		log.Warn().Err(e.Err).Str("platform", string(e.Platform)).Str("containerId", e.ContainerID).Msg("Permalink lookup failed")
	case EventJobFinished:
		if e.Err != nil {
			log.Error().Err(e.Err).Str("platform", string(e.Platform)).Str("operation", string(e.Operation)).Dur("elapsed", e.Elapsed).Msg("Publish job failed")
			return
		}
		evt := log.Info().Str("platform", string(e.Platform)).Str("operation", string(e.Operation)).Dur("elapsed", e.Elapsed)
		if e.Result != nil {
			evt = evt.Str("status", string(e.Result.Status)).Bool("published", e.Result.Published).Bool("timedOut", e.Result.TimedOut)
		}
		evt.Msg("Publish job finished")
	}
}

// MetricsObserver emits one CloudWatch EMF document per finished job.
// Out defaults to stdout.
type MetricsObserver struct {
	Namespace string
	Out       io.Writer
}

func (m MetricsObserver) Observe(_ context.Context, e Event) {
	if e.Kind != EventJobFinished {
		return
	}
	rec := metrics.New(m.Namespace).To(m.Out).
		Dimension("Platform", string(e.Platform)).
		Dimension("Operation", string(e.Operation)).
		Metric("JobDurationMs", float64(e.Elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("JobCount")
	switch {
	case e.Err != nil:
		rec.Count("JobFailed").Property("error", e.Err.Error())
	case e.Result != nil && e.Result.Published:
		rec.Count("JobPublished")
	case e.Result != nil && e.Result.TimedOut:
		rec.Count("JobTimedOut")
	}
	if e.JobID != "" {
		rec.Property("jobId", e.JobID)
	}
	rec.Flush()
}
