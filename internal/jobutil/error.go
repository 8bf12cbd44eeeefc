// Package jobutil provides shared helpers for the publish job lifecycle.
//
// SetJobError unifies the error-writing pattern used by the batch runner
// and the Lambda handlers: log the failure, then persist an error phase to
// the record store.
package jobutil

import (
	"context"

	"github.com/rs/zerolog/log"
)

// ErrorWriter persists a job error to the backing store, for example
// store.RecordStore.SetRecordError.
type ErrorWriter func(ctx context.Context, runID string, index int, errMsg string) error

// SetJobError logs the error and delegates persistence to the provided writer.
func SetJobError(ctx context.Context, runID string, index int, msg string, write ErrorWriter) error {
	log.Error().
		Int("index", index).
		Str("runId", runID).
		Str("error", msg).
		Msg("Job failed")
	return write(ctx, runID, index, msg)
}
