// Package lambdaboot provides the shared cold-start bootstrap used by the
// Lambdas and the CLI.
//
// Every entry point needs some subset of: AWS config, the S3 presigner for
// s3:// media references, the DynamoDB record store, the EventBridge
// emitter, the access token from SSM, and startup logging. Each helper
// here is one of those steps so an entry point's init is a short
// composition of them.
package lambdaboot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/meta-publisher/internal/events"
	"github.com/fpang/meta-publisher/internal/logging"
	"github.com/fpang/meta-publisher/internal/mediaref"
	"github.com/fpang/meta-publisher/internal/store"
)

// AWSClients holds the core AWS SDK clients used across entry points.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// LoadAWS loads the default AWS config and the clients every entry point
// shares.
func LoadAWS(ctx context.Context) (AWSClients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return AWSClients{}, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}, nil
}

// InitAWS is LoadAWS for Lambda init, where a failure is fatal.
func InitAWS() AWSClients {
	clients, err := LoadAWS(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	return clients
}

// InitMediaResolver returns a resolver that presigns s3:// media references
// with the given expiry.
func InitMediaResolver(cfg aws.Config, expiry time.Duration) *mediaref.S3Resolver {
	return mediaref.NewS3Resolver(s3.NewPresignClient(s3.NewFromConfig(cfg)), expiry)
}

// InitStoreOptional creates the DynamoDB record store if a table is set.
// Returns nil (with a warning) if not configured.
func InitStoreOptional(cfg aws.Config, table string) *store.DynamoStore {
	if table == "" {
		log.Warn().Msg("store.table not set, publish records disabled")
		return nil
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), table)
}

// InitEventsOptional creates the EventBridge emitter if a bus is set.
// Returns nil if not configured.
func InitEventsOptional(cfg aws.Config, bus string) *events.EventBridge {
	if bus == "" {
		log.Debug().Msg("events.bus not set, result events disabled")
		return nil
	}
	return events.NewEventBridge(eventbridge.NewFromConfig(cfg), bus)
}

// ParameterGetter is the subset of the SSM client used by LoadAccessToken.
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, opts ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadAccessToken reads the Meta access token from an SSM SecureString
// parameter. The value is never logged.
func LoadAccessToken(ctx context.Context, client ParameterGetter, param string) (string, error) {
	start := time.Now()
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(param),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read access token from SSM %s: %w", param, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("SSM parameter %s is empty", param)
	}
	log.Debug().Str("param", param).Dur("elapsed", time.Since(start)).Msg("Access token loaded from SSM")
	return aws.ToString(out.Parameter.Value), nil
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
