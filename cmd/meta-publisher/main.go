package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/meta-publisher/internal/app"
	"github.com/fpang/meta-publisher/internal/config"
	"github.com/fpang/meta-publisher/internal/logging"
)

// CLI flags
var (
	configFlag       string
	graphVersionFlag string
)

// v collects defaults, config file, environment and the flags bound below.
var v = config.New()

// rootCmd is the main Cobra command for the meta-publisher CLI.
var rootCmd = &cobra.Command{
	Use:   "meta-publisher",
	Short: "Publish to Instagram, Facebook Pages and Threads through the Graph API",
	Long: `meta-publisher runs publish jobs against the Meta Graph APIs. Each job
creates a media container, waits for the platform to finish processing it,
publishes it, and reports the permalink.

The access token comes from META_ACCESS_TOKEN or, when
META_SSM_ACCESS_TOKEN_PARAM is set, from SSM Parameter Store.

Examples:
  meta-publisher validate --jobs jobs.json
  meta-publisher run --jobs jobs.json
  cat jobs.json | meta-publisher run --continue-on-fail
  meta-publisher serve --addr :9090
  meta-publisher mcp`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
	},
	Version: commitHash + " (" + buildTime + ")",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Config file (default: ./meta-publisher.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&graphVersionFlag, "graph-version", "v23.0", "Graph API version for Instagram and Facebook")
	mustBind(v.BindPFlag("graph.version", rootCmd.PersistentFlags().Lookup("graph-version")))

	rootCmd.AddCommand(runCmd, validateCmd, serveCmd, mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildPipeline loads config and wires the publishing pipeline. mutate may
// adjust the config before wiring.
func buildPipeline(ctx context.Context, name string, mutate func(*config.Config)) (*app.App, error) {
	initStart := time.Now()
	cfg, err := config.Load(v, configFlag)
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Startup(name, initStart).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Log()
	return a, nil
}

// mustBind panics on a flag binding error, which only a misspelled flag
// name can cause.
func mustBind(err error) {
	if err != nil {
		panic(err)
	}
}

// stdoutReserved keeps stdout for command output (results JSON or MCP
// frames) by turning off the EMF observer, which writes there.
func stdoutReserved(cfg *config.Config) {
	if cfg.Metrics.Enabled {
		log.Debug().Msg("EMF metrics disabled: stdout carries command output")
	}
	cfg.Metrics.Enabled = false
}
