// Package main provides the direct-invoke Lambda entry point for publish
// runs. A Step Functions task or another Lambda sends job descriptors and
// receives the run output.
//
// Event:
//
//	{"jobs": <descriptor | [descriptors] | {"data":[...]}>, "continueOnFail": bool, "runId": "run-..."}
//
// Without continueOnFail the first failed job fails the invocation with an
// error naming the job's index, platform and operation.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/meta-publisher/internal/app"
	"github.com/fpang/meta-publisher/internal/config"
	"github.com/fpang/meta-publisher/internal/logging"
	"github.com/fpang/meta-publisher/internal/publish"
)

const functionName = "publish-lambda"

var coldStart = true

var pipeline *app.App

func init() {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.Load(config.New(), os.Getenv("META_CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	pipeline, err = app.Build(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build publish pipeline")
	}
	pipeline.Startup(functionName, initStart).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Log()
}

func main() {
	lambda.Start(handler)
}

// PublishEvent is the invocation payload. ContinueOnFail overrides
// publish.continue_on_fail when present.
type PublishEvent struct {
	Jobs           json.RawMessage `json:"jobs"`
	ContinueOnFail *bool           `json:"continueOnFail,omitempty"`
	RunID          string          `json:"runId,omitempty"`
}

func handler(ctx context.Context, event PublishEvent) (*publish.BatchOutput, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", functionName).Msg("Cold start, first invocation")
	}
	if len(event.Jobs) == 0 {
		return nil, errors.New("event has no jobs")
	}

	continueOnFail := pipeline.Config.Publish.ContinueOnFail
	if event.ContinueOnFail != nil {
		continueOnFail = *event.ContinueOnFail
	}
	log.Info().Str("runId", event.RunID).Bool("continueOnFail", continueOnFail).Msg("Publish Lambda invoked")

	return pipeline.NewBatch(continueOnFail).RunRaw(ctx, event.RunID, event.Jobs)
}
