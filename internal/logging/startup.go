package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Resource kinds reported under "resources".
const (
	resourceDynamoTables = "dynamoTables"
	resourceSSMParams    = "ssmParams"
	resourceEventBuses   = "eventBuses"
)

// StartupLogger emits one structured event describing how a binary was
// bootstrapped: build identity, where it runs, the AWS resources it
// touches, feature flags and non-secret config. Secrets are registered by
// the name or path they were loaded from, never by value.
type StartupLogger struct {
	name         string
	commitHash   string
	buildTime    string
	initDuration time.Duration

	resources map[string]map[string]string
	features  map[string]bool
	config    map[string]string
}

// NewStartupLogger creates a StartupLogger for the binary name, e.g.
// "publish-lambda" or "meta-publisher run".
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:      name,
		resources: make(map[string]map[string]string),
		features:  make(map[string]bool),
		config:    make(map[string]string),
	}
}

func (s *StartupLogger) CommitHash(hash string) *StartupLogger {
	s.commitHash = hash
	return s
}

func (s *StartupLogger) BuildTime(t string) *StartupLogger {
	s.buildTime = t
	return s
}

func (s *StartupLogger) resource(kind, label, name string) *StartupLogger {
	m, ok := s.resources[kind]
	if !ok {
		m = make(map[string]string)
		s.resources[kind] = m
	}
	m[label] = name
	return s
}

// DynamoTable registers a DynamoDB table used by this process.
func (s *StartupLogger) DynamoTable(label, name string) *StartupLogger {
	return s.resource(resourceDynamoTables, label, name)
}

// SSMParam registers the path of an SSM parameter loaded at startup.
func (s *StartupLogger) SSMParam(label, path string) *StartupLogger {
	return s.resource(resourceSSMParams, label, path)
}

// EventBus registers an EventBridge bus events are put on.
func (s *StartupLogger) EventBus(label, name string) *StartupLogger {
	return s.resource(resourceEventBuses, label, name)
}

func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration value.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// processDict describes the binary and, inside Lambda, the function.
func (s *StartupLogger) processDict() *zerolog.Event {
	d := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", zerolog.GlobalLevel().String())
	if s.commitHash != "" {
		d = d.Str("commitHash", s.commitHash)
	}
	if s.buildTime != "" {
		d = d.Str("buildTime", s.buildTime)
	}
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		d = d.Dict("lambda", zerolog.Dict().
			Str("functionName", fn).
			Str("version", os.Getenv("AWS_LAMBDA_FUNCTION_VERSION")).
			Str("region", os.Getenv("AWS_REGION")).
			Str("memoryMB", os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE")).
			Str("logGroup", os.Getenv("AWS_LAMBDA_LOG_GROUP_NAME")))
	}
	return d
}

// Log emits the startup event at info level.
func (s *StartupLogger) Log() {
	evt := log.Info().Dict("process", s.processDict())

	if len(s.resources) > 0 {
		res := zerolog.Dict()
		for kind, m := range s.resources {
			res = res.Dict(kind, strDict(m))
		}
		evt = evt.Dict("resources", res)
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}
	if len(s.config) > 0 {
		evt = evt.Dict("config", strDict(s.config))
	}
	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}
	evt.Msg("Startup complete")
}

func strDict(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
