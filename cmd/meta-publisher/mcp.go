package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/fpang/meta-publisher/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the publish_jobs and get_run_records MCP tools over stdio",
	Long: `mcp speaks the Model Context Protocol on stdin/stdout so an MCP client can
publish jobs. Logs go to stderr; stdout carries only protocol frames.`,
	Args: cobra.NoArgs,
	RunE: serveMCP,
}

func serveMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := buildPipeline(ctx, "meta-publisher mcp", stdoutReserved)
	if err != nil {
		return err
	}
	server := mcpserver.New(commitHash, a.NewBatch, a.Store)
	return mcpserver.Run(ctx, server)
}
