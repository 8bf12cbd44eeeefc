package publish

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/meta-publisher/internal/events"
	"github.com/fpang/meta-publisher/internal/jobs"
	"github.com/fpang/meta-publisher/internal/jobutil"
	"github.com/fpang/meta-publisher/internal/store"
)

// BatchItem is the outcome of one input job. Exactly one of Result and
// Error is set.
type BatchItem struct {
	Index int `json:"index"`
	*Result
	Error string `json:"error,omitempty"`
}

// BatchOutput is returned by Batch.Run.
type BatchOutput struct {
	RunID   string      `json:"runId"`
	Results []BatchItem `json:"results"`
}

// Batch runs job descriptors sequentially in input order, recording each
// job's progress and emitting an event for every success.
type Batch struct {
	orch           *Orchestrator
	store          store.RecordStore
	emitter        events.Emitter
	defaults       Common
	continueOnFail bool
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithStore records every job in s.
func WithStore(s store.RecordStore) BatchOption { return func(b *Batch) { b.store = s } }

// WithEmitter emits a PublishResult event for every successful job.
func WithEmitter(e events.Emitter) BatchOption { return func(b *Batch) { b.emitter = e } }

// ContinueOnFail makes a failed job an error item instead of stopping the
// batch.
func ContinueOnFail(v bool) BatchOption { return func(b *Batch) { b.continueOnFail = v } }

// WithJobDefaults replaces DefaultCommon for fields descriptors omit.
func WithJobDefaults(c Common) BatchOption { return func(b *Batch) { b.defaults = c } }

func NewBatch(o *Orchestrator, opts ...BatchOption) *Batch {
	b := &Batch{orch: o, defaults: DefaultCommon()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RunRaw splits raw into descriptors and runs them. See Run.
func (b *Batch) RunRaw(ctx context.Context, runID string, raw []byte) (*BatchOutput, error) {
	descs, err := SplitDescriptors(raw)
	if err != nil {
		return nil, err
	}
	return b.Run(ctx, runID, descs)
}

// Run executes descs in order under runID (generated when empty). Without
// ContinueOnFail the first failure stops the batch: the output so far is
// returned together with a JobError for the failed index.
func (b *Batch) Run(ctx context.Context, runID string, descs []json.RawMessage) (*BatchOutput, error) {
	if runID == "" {
		runID = jobs.NewRunID()
	}
	out := &BatchOutput{RunID: runID, Results: make([]BatchItem, 0, len(descs))}
	log.Info().Str("runId", runID).Int("jobs", len(descs)).Bool("continueOnFail", b.continueOnFail).Msg("Publish run started")

	for i, raw := range descs {
		res, jerr := b.runOne(ctx, runID, i, raw)
		if jerr != nil {
			if !b.continueOnFail {
				log.Warn().Str("runId", runID).Int("index", i).Msg("Publish run stopped at failed job")
				return out, jerr
			}
			out.Results = append(out.Results, BatchItem{Index: i, Error: jerr.Err.Error()})
			continue
		}
		out.Results = append(out.Results, BatchItem{Index: i, Result: res})
	}

	log.Info().Str("runId", runID).Int("results", len(out.Results)).Msg("Publish run finished")
	return out, nil
}

func (b *Batch) runOne(ctx context.Context, runID string, index int, raw json.RawMessage) (*Result, *JobError) {
	job, err := DecodeJobWithDefaults(raw, b.defaults)
	if err != nil {
		b.fail(ctx, runID, index, err)
		return nil, decodeError(index, raw, err)
	}

	rec := &store.Record{
		RunID:     runID,
		Index:     index,
		JobID:     job.settings().ID,
		Platform:  string(job.Platform()),
		Operation: string(job.Operation()),
		Phase:     store.PhaseRunning,
	}
	b.put(ctx, rec)

	res, err := b.orch.Run(ctx, job)
	if err != nil {
		b.fail(ctx, runID, index, err)
		return nil, &JobError{Index: index, Platform: job.Platform(), Operation: job.Operation(), Err: err}
	}

	rec.Phase = store.PhaseComplete
	rec.CreationID = res.CreationID
	rec.VideoID = res.VideoID
	rec.Status = string(res.Status)
	rec.Published = res.Published
	rec.Permalink = res.Permalink
	rec.UpdatedAt = time.Now().Unix()
	b.put(ctx, rec)
	b.emit(ctx, runID, index, job, res)
	return res, nil
}

func (b *Batch) put(ctx context.Context, rec *store.Record) {
	if b.store == nil {
		return
	}
	if err := b.store.PutRecord(ctx, rec); err != nil {
		log.Warn().Err(err).Str("runId", rec.RunID).Int("index", rec.Index).Msg("Failed to persist run record")
	}
}

func (b *Batch) fail(ctx context.Context, runID string, index int, cause error) {
	write := func(context.Context, string, int, string) error { return nil }
	if b.store != nil {
		write = b.store.SetRecordError
	}
	if err := jobutil.SetJobError(ctx, runID, index, cause.Error(), write); err != nil {
		log.Warn().Err(err).Str("runId", runID).Int("index", index).Msg("Failed to persist job error")
	}
}

func (b *Batch) emit(ctx context.Context, runID string, index int, job Job, res *Result) {
	if b.emitter == nil {
		return
	}
	detail, err := json.Marshal(res)
	if err != nil {
		log.Warn().Err(err).Str("runId", runID).Int("index", index).Msg("Failed to encode result event")
		return
	}
	ev := events.PublishResult{
		RunID:     runID,
		Index:     index,
		JobID:     res.ID,
		Platform:  string(res.Platform),
		Operation: string(job.Operation()),
		Published: res.Published,
		Permalink: res.Permalink,
		Result:    detail,
	}
	if err := b.emitter.EmitResult(ctx, ev); err != nil {
		log.Warn().Err(err).Str("runId", runID).Int("index", index).Msg("Failed to emit result event")
	}
}

// IsJobError reports whether err is a batch failure attributed to one job
// and returns it.
func IsJobError(err error) (*JobError, bool) {
	var je *JobError
	if errors.As(err, &je) {
		return je, true
	}
	return nil, false
}
