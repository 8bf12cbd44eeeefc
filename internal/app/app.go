// Package app assembles the publishing pipeline from a config.Config: the
// Graph transports, the three platform adapters, the orchestrator with its
// observers and media resolver, and the optional record store and result
// emitter. Every binary builds its dependencies through Build.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/meta-publisher/internal/config"
	"github.com/fpang/meta-publisher/internal/events"
	"github.com/fpang/meta-publisher/internal/facebook"
	"github.com/fpang/meta-publisher/internal/graph"
	"github.com/fpang/meta-publisher/internal/instagram"
	"github.com/fpang/meta-publisher/internal/lambdaboot"
	"github.com/fpang/meta-publisher/internal/logging"
	"github.com/fpang/meta-publisher/internal/publish"
	"github.com/fpang/meta-publisher/internal/retry"
	"github.com/fpang/meta-publisher/internal/store"
	"github.com/fpang/meta-publisher/internal/threads"
	"github.com/fpang/meta-publisher/internal/webhook"
)

// App is the assembled pipeline.
type App struct {
	Config       *config.Config
	Orchestrator *publish.Orchestrator
	// Store is the DynamoDB store when store.table is set, otherwise an
	// in-process MemoryStore.
	Store store.RecordStore
	// Emitter and Webhooks are nil unless events.bus is set.
	Emitter  events.Emitter
	Webhooks events.WebhookEmitter

	durable bool
}

// Option adjusts the orchestrator Build creates.
type Option func(*[]publish.Option)

// WithOrchestratorOptions appends orchestrator options after the ones
// derived from config.
func WithOrchestratorOptions(opts ...publish.Option) Option {
	return func(dst *[]publish.Option) { *dst = append(*dst, opts...) }
}

// Build wires the pipeline. AWS config is loaded only when a component
// needs it: SSM token lookup, the record table, the event bus, or s3://
// presigning.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{Config: cfg}

	var aws *lambdaboot.AWSClients
	if needsAWS(cfg) {
		clients, err := lambdaboot.LoadAWS(ctx)
		if err != nil {
			return nil, err
		}
		aws = &clients
	}

	token := cfg.AccessToken
	if token == "" && cfg.SSM.AccessTokenParam != "" {
		t, err := lambdaboot.LoadAccessToken(ctx, aws.SSM, cfg.SSM.AccessTokenParam)
		if err != nil {
			return nil, err
		}
		token = t
	}
	if token == "" {
		log.Warn().Msg("No access token configured, Graph requests will be unauthenticated")
	}

	hc := &http.Client{Timeout: cfg.HTTP.Timeout}
	fbBase := cfg.Graph.FacebookBaseURL
	if fbBase == "" {
		fbBase = graph.FacebookBaseURL(cfg.Graph.Version)
	}
	fbAPI := graph.NewClient(fbBase, token, graph.WithHTTPClient(hc))
	thAPI := graph.NewClient(cfg.Graph.ThreadsBaseURL, token, graph.WithHTTPClient(hc))

	rc := retry.Config{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		Factor:       cfg.Retry.Factor,
	}

	observers := publish.Observers{publish.LogObserver{}}
	if cfg.Metrics.Enabled {
		observers = append(observers, publish.MetricsObserver{Namespace: cfg.Metrics.Namespace})
	}

	orchOpts := []publish.Option{
		publish.WithInstagram(instagram.NewClient(fbAPI, instagram.WithRetry(rc))),
		publish.WithFacebook(facebook.NewClient(fbAPI, facebook.WithRetry(rc))),
		publish.WithThreads(threads.NewClient(thAPI, threads.WithRetry(rc))),
		publish.WithObserver(observers),
		publish.WithFinishDelay(cfg.Publish.FinishDelay),
	}
	if cfg.Media.PresignS3 && aws != nil {
		orchOpts = append(orchOpts, publish.WithMediaResolver(lambdaboot.InitMediaResolver(aws.Config, cfg.Media.PresignExpiry)))
	}
	for _, opt := range opts {
		opt(&orchOpts)
	}
	a.Orchestrator = publish.New(orchOpts...)

	a.Store = store.NewMemoryStore()
	if aws != nil {
		// Nil pointers must not reach the interface fields.
		if ds := lambdaboot.InitStoreOptional(aws.Config, cfg.Store.Table); ds != nil {
			a.Store = ds
			a.durable = true
		}
		if em := lambdaboot.InitEventsOptional(aws.Config, cfg.Events.Bus); em != nil {
			a.Emitter = em
			a.Webhooks = em
		}
	}
	return a, nil
}

func needsAWS(cfg *config.Config) bool {
	return (cfg.AccessToken == "" && cfg.SSM.AccessTokenParam != "") ||
		cfg.Store.Table != "" ||
		cfg.Events.Bus != "" ||
		cfg.Media.PresignS3
}

// JobDefaults returns the descriptor defaults derived from the poll config.
func (a *App) JobDefaults() publish.Common {
	c := publish.DefaultCommon()
	c.PollInterval = a.Config.Poll.Interval
	c.MaxWait = a.Config.Poll.MaxWait
	return c
}

// NewBatch returns a batch runner over the app's orchestrator, store and
// emitter.
func (a *App) NewBatch(continueOnFail bool) *publish.Batch {
	opts := []publish.BatchOption{
		publish.WithStore(a.Store),
		publish.WithJobDefaults(a.JobDefaults()),
		publish.ContinueOnFail(continueOnFail),
	}
	if a.Emitter != nil {
		opts = append(opts, publish.WithEmitter(a.Emitter))
	}
	return publish.NewBatch(a.Orchestrator, opts...)
}

// WebhookHandler returns the Meta webhook receiver, or nil when
// webhook.verify_token is not set.
func (a *App) WebhookHandler() http.Handler {
	if a.Config.Webhook.VerifyToken == "" {
		return nil
	}
	return webhook.NewHandler(a.Config.Webhook.VerifyToken, a.Config.Webhook.AppSecret, a.Webhooks)
}

// Startup returns a startup logger describing the non-secret configuration.
func (a *App) Startup(name string, initStart time.Time) *logging.StartupLogger {
	cfg := a.Config
	s := lambdaboot.StartupLog(name, initStart).
		Config("graph.version", cfg.Graph.Version).
		Config("graph.threads_base_url", cfg.Graph.ThreadsBaseURL).
		Config("poll.interval", cfg.Poll.Interval.String()).
		Config("poll.max_wait", cfg.Poll.MaxWait.String()).
		Feature("recordStore", a.durable).
		Feature("resultEvents", a.Emitter != nil).
		Feature("metrics", cfg.Metrics.Enabled).
		Feature("presignS3", cfg.Media.PresignS3).
		Feature("webhook", cfg.Webhook.VerifyToken != "")
	if cfg.Graph.FacebookBaseURL != "" {
		s.Config("graph.facebook_base_url", cfg.Graph.FacebookBaseURL)
	}
	if cfg.SSM.AccessTokenParam != "" {
		s.SSMParam("accessToken", cfg.SSM.AccessTokenParam)
	}
	if cfg.Store.Table != "" {
		s.DynamoTable("records", cfg.Store.Table)
	}
	if cfg.Events.Bus != "" {
		s.EventBus("results", cfg.Events.Bus)
	}
	return s
}
