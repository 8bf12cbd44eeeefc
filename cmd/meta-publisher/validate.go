package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fpang/meta-publisher/internal/platform"
	"github.com/fpang/meta-publisher/internal/publish"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check job descriptors without calling any platform",
	Long: `Validate decodes job descriptors the same way run does and reports the
platform and operation of each. No token or network access is needed. The
first invalid descriptor fails the command with its index.`,
	Args: cobra.NoArgs,
	RunE: validateJobs,
}

func init() {
	validateCmd.Flags().StringVarP(&jobsFlag, "jobs", "j", "-", "Job descriptor file, or - for stdin")
}

// validatedJob is one line of the validate report.
type validatedJob struct {
	Index     int               `json:"index"`
	Platform  platform.Name     `json:"platform"`
	Operation publish.Operation `json:"operation"`
}

func validateJobs(cmd *cobra.Command, args []string) error {
	raw, err := readJobs(cmd.InOrStdin(), jobsFlag)
	if err != nil {
		return err
	}
	jobs, err := publish.ParseJobs(raw, publish.DefaultCommon())
	if err != nil {
		return err
	}
	report := make([]validatedJob, len(jobs))
	for i, j := range jobs {
		report[i] = validatedJob{Index: i, Platform: j.Platform(), Operation: j.Operation()}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
