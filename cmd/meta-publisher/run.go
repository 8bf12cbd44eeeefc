package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/meta-publisher/internal/publish"
)

var (
	jobsFlag           string
	continueOnFailFlag bool
	runIDFlag          string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run publish jobs from a file or stdin and print the results as JSON",
	Long: `Run reads job descriptors (one object, an array, or a {"data":[...]} envelope)
and runs them in order. Results are printed to stdout as {"runId", "results"}.

Without --continue-on-fail the first failed job stops the run; the results
gathered so far are still printed and the command exits non-zero.`,
	Args: cobra.NoArgs,
	RunE: runJobs,
}

func init() {
	runCmd.Flags().StringVarP(&jobsFlag, "jobs", "j", "-", "Job descriptor file, or - for stdin")
	runCmd.Flags().BoolVar(&continueOnFailFlag, "continue-on-fail", false, "Keep running after a failed job and report it as an error item")
	runCmd.Flags().StringVar(&runIDFlag, "run-id", "", "Run identifier (default: generated)")
	mustBind(v.BindPFlag("publish.continue_on_fail", runCmd.Flags().Lookup("continue-on-fail")))
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	raw, err := readJobs(cmd.InOrStdin(), jobsFlag)
	if err != nil {
		return err
	}

	a, err := buildPipeline(ctx, "meta-publisher run", stdoutReserved)
	if err != nil {
		return err
	}

	out, runErr := a.NewBatch(a.Config.Publish.ContinueOnFail).RunRaw(ctx, runIDFlag, raw)
	if out != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
	}
	if runErr != nil {
		if je, ok := publish.IsJobError(runErr); ok {
			log.Error().Int("index", je.Index).Str("operation", string(je.Operation)).Err(je.Err).Msg("Publish job failed")
		}
		return runErr
	}
	return nil
}

func readJobs(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read jobs from stdin: %w", err)
		}
		if len(raw) == 0 {
			return nil, errors.New("no job descriptors on stdin")
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}
	return raw, nil
}
