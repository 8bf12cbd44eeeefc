// Package main serves the publish HTTP API behind API Gateway (HTTP API,
// payload format 2.0).
//
// Endpoints:
//
//	GET  /api/health
//	POST /api/publish[?continueOnFail=true]
//	GET  /api/runs/{runId}/records
//	GET|POST /api/webhook (when webhook.verify_token is set)
//
// Runs execute inside the request, so long video jobs should go through
// publish-lambda instead; API Gateway cuts requests off after 30 seconds.
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/meta-publisher/internal/api"
	"github.com/fpang/meta-publisher/internal/app"
	"github.com/fpang/meta-publisher/internal/config"
	"github.com/fpang/meta-publisher/internal/logging"
)

var server *api.Server

func init() {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.Load(config.New(), os.Getenv("META_CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	pipeline, err := app.Build(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build publish pipeline")
	}

	opts := []api.Option{
		api.ContinueOnFailDefault(cfg.Publish.ContinueOnFail),
		api.WithOriginSecret(cfg.API.OriginSecret),
		api.WithWebhook(pipeline.WebhookHandler()),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, api.WithMetrics(cfg.Metrics.Namespace, nil))
	}
	if cfg.API.OriginSecret == "" {
		log.Warn().Msg("api.origin_secret not set, origin verification disabled")
	}
	server = api.NewServer(pipeline.NewBatch, pipeline.Store, opts...)

	pipeline.Startup("publish-api-lambda", initStart).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Feature("originVerify", cfg.API.OriginSecret != "").
		Log()
}

func main() {
	adapter := httpadapter.NewV2(server.Handler())
	lambda.Start(adapter.ProxyWithContext)
}
