package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"info":    zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitTo_JSONFormat(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	t.Setenv(EnvFormat, "json")
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	InitTo(&buf)
	log.Debug().Str("k", "v").Msg("hello")

	var doc map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &doc); err != nil {
		t.Fatalf("output %q is not JSON: %v", buf.String(), err)
	}
	if doc["message"] != "hello" || doc["k"] != "v" || doc["level"] != "debug" {
		t.Errorf("doc = %v", doc)
	}
}

func TestInitTo_LevelFilters(t *testing.T) {
	t.Setenv(EnvLevel, "warn")
	t.Setenv(EnvFormat, "json")
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	InitTo(&buf)
	log.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
}

func TestStartupLogger_Log(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "publish-lambda-prod")
	t.Setenv("AWS_REGION", "us-east-1")
	var buf bytes.Buffer
	old := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = old }()

	NewStartupLogger("publish-lambda").
		CommitHash("abc123").
		DynamoTable("records", "publish-records").
		SSMParam("accessToken", "/meta/prod/token").
		EventBus("results", "publish-bus").
		Feature("facebook", true).
		Config("graph.version", "v23.0").
		InitDuration(15 * time.Millisecond).
		Log()

	var doc map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	proc := doc["process"].(map[string]any)
	if proc["name"] != "publish-lambda" || proc["commitHash"] != "abc123" {
		t.Errorf("process = %v", proc)
	}
	if lambda := proc["lambda"].(map[string]any); lambda["functionName"] != "publish-lambda-prod" || lambda["region"] != "us-east-1" {
		t.Errorf("lambda = %v", lambda)
	}
	res := doc["resources"].(map[string]any)
	if res["eventBuses"].(map[string]any)["results"] != "publish-bus" ||
		res["ssmParams"].(map[string]any)["accessToken"] != "/meta/prod/token" ||
		res["dynamoTables"].(map[string]any)["records"] != "publish-records" {
		t.Errorf("resources = %v", res)
	}
	if doc["features"].(map[string]any)["facebook"] != true {
		t.Errorf("features = %v", doc["features"])
	}
	if doc["config"].(map[string]any)["graph.version"] != "v23.0" {
		t.Errorf("config = %v", doc["config"])
	}
}

func TestStartupLogger_OutsideLambda(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	var buf bytes.Buffer
	old := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = old }()

	NewStartupLogger("meta-publisher run").Log()

	var doc map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	proc := doc["process"].(map[string]any)
	if _, ok := proc["lambda"]; ok {
		t.Errorf("lambda block outside Lambda: %v", proc)
	}
	if _, ok := doc["resources"]; ok {
		t.Errorf("empty resources logged: %v", doc)
	}
}
