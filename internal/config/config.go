// Package config loads meta-publisher settings with viper.
//
// Sources, lowest precedence first: built-in defaults, an optional config
// file (meta-publisher.yaml or .json in the working directory, its parent,
// or $HOME/.config/meta-publisher, or an explicit path), environment
// variables prefixed META_ with dots replaced by underscores
// (META_GRAPH_VERSION, META_STORE_TABLE), and finally any cobra flags the
// caller binds to the returned viper instance.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable key.
const EnvPrefix = "META"

// FileName is the config file base name searched for when no explicit
// path is given.
const FileName = "meta-publisher"

type Config struct {
	AccessToken string  `mapstructure:"access_token"`
	Graph       Graph   `mapstructure:"graph"`
	HTTP        HTTP    `mapstructure:"http"`
	Retry       Retry   `mapstructure:"retry"`
	Poll        Poll    `mapstructure:"poll"`
	Publish     Publish `mapstructure:"publish"`
	SSM         SSM     `mapstructure:"ssm"`
	Store       Store   `mapstructure:"store"`
	Events      Events  `mapstructure:"events"`
	Media       Media   `mapstructure:"media"`
	Metrics     Metrics `mapstructure:"metrics"`
	API         API     `mapstructure:"api"`
	Webhook     Webhook `mapstructure:"webhook"`
}

type Graph struct {
	Version string `mapstructure:"version"`
	// FacebookBaseURL overrides the https://graph.facebook.com/{version}
	// base shared by Instagram and Facebook.
	FacebookBaseURL string `mapstructure:"facebook_base_url"`
	ThreadsBaseURL  string `mapstructure:"threads_base_url"`
}

type HTTP struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type Retry struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Factor       float64       `mapstructure:"factor"`
}

// Poll holds the defaults for jobs that omit pollSec or maxWaitSec.
type Poll struct {
	Interval time.Duration `mapstructure:"interval"`
	MaxWait  time.Duration `mapstructure:"max_wait"`
}

type Publish struct {
	ContinueOnFail bool          `mapstructure:"continue_on_fail"`
	FinishDelay    time.Duration `mapstructure:"finish_delay"`
}

type SSM struct {
	AccessTokenParam string `mapstructure:"access_token_param"`
}

type Store struct {
	Table string `mapstructure:"table"`
}

type Events struct {
	Bus string `mapstructure:"bus"`
}

type Media struct {
	PresignS3     bool          `mapstructure:"presign_s3"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

type Metrics struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

type API struct {
	Addr string `mapstructure:"addr"`
	// OriginSecret, when set, must arrive in the x-origin-verify header of
	// every API request except the health check.
	OriginSecret string `mapstructure:"origin_secret"`
}

// Webhook enables /api/webhook when VerifyToken is set.
type Webhook struct {
	VerifyToken string `mapstructure:"verify_token"`
	AppSecret   string `mapstructure:"app_secret"`
}

// New returns a viper instance with defaults and environment lookup
// configured. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Every key needs a default, even an empty one, so Unmarshal picks up its
// environment variable.
func setDefaults(v *viper.Viper) {
	v.SetDefault("access_token", "")
	v.SetDefault("graph.version", "v23.0")
	v.SetDefault("graph.facebook_base_url", "")
	v.SetDefault("graph.threads_base_url", "https://graph.threads.net/v1.0")
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("retry.max_attempts", 6)
	v.SetDefault("retry.initial_delay", time.Second)
	v.SetDefault("retry.factor", 1.6)
	v.SetDefault("poll.interval", 2*time.Second)
	v.SetDefault("poll.max_wait", 180*time.Second)
	v.SetDefault("publish.continue_on_fail", false)
	v.SetDefault("publish.finish_delay", 2*time.Second)
	v.SetDefault("ssm.access_token_param", "")
	v.SetDefault("store.table", "")
	v.SetDefault("events.bus", "")
	v.SetDefault("media.presign_s3", true)
	v.SetDefault("media.presign_expiry", time.Hour)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "MetaPublisher")
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.origin_secret", "")
	v.SetDefault("webhook.verify_token", "")
	v.SetDefault("webhook.app_secret", "")
}

// Load reads the config file, if any, and decodes v into a Config. An
// explicit path that cannot be read is an error; a missing default file
// is not.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.AddConfigPath(filepath.Join("$HOME", ".config", FileName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Debug().Msg("No config file found, using defaults and environment")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the publishing pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Graph.Version == "" && c.Graph.FacebookBaseURL == "":
		return errors.New("config: graph.version or graph.facebook_base_url is required")
	case c.Graph.ThreadsBaseURL == "":
		return errors.New("config: graph.threads_base_url is required")
	case c.Retry.MaxAttempts < 1:
		return fmt.Errorf("config: retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	case c.Poll.Interval < 0 || c.Poll.MaxWait < 0:
		return errors.New("config: poll durations must not be negative")
	case c.Webhook.VerifyToken != "" && c.Webhook.AppSecret == "":
		return errors.New("config: webhook.app_secret is required when webhook.verify_token is set")
	}
	return nil
}
