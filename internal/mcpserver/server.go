// Package mcpserver exposes the publishing pipeline as Model Context
// Protocol tools so an assistant can publish job descriptors and inspect
// runs.
//
// Tools:
//
//	publish_jobs      run job descriptors and return {runId, results}
//	get_run_records   per-job records of an earlier run
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/meta-publisher/internal/jobs"
	"github.com/fpang/meta-publisher/internal/publish"
	"github.com/fpang/meta-publisher/internal/store"
)

const (
	ToolPublishJobs = "publish_jobs"
	ToolRunRecords  = "get_run_records"
)

// BatchFactory returns a batch runner for one tool call.
type BatchFactory func(continueOnFail bool) *publish.Batch

type PublishInput struct {
	Jobs           []map[string]any `json:"jobs" jsonschema:"job descriptors; each needs resource (instagram, facebook or threads) and operation"`
	ContinueOnFail bool             `json:"continueOnFail,omitempty" jsonschema:"keep running after a failed job and report it as an error item"`
}

type RecordsInput struct {
	RunID string `json:"runId" jsonschema:"run identifier returned by publish_jobs"`
}

type handlers struct {
	newBatch BatchFactory
	records  store.RecordStore
}

// New builds the MCP server. records may be nil, in which case
// get_run_records is not registered.
func New(version string, newBatch BatchFactory, records store.RecordStore) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "meta-publisher", Version: version}, nil)
	h := &handlers{newBatch: newBatch, records: records}

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolPublishJobs,
		Description: "Publish Instagram, Facebook Page and Threads posts. Jobs run in order; each result carries the container id, final status, published flag and permalink.",
	}, h.publishJobs)

	if records != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        ToolRunRecords,
			Description: "Return the per-job records (phase, status, permalink, error) of a publish run.",
		}, h.runRecords)
	}
	return server
}

// Run serves the tools over stdin/stdout until ctx is done or the client
// disconnects.
func Run(ctx context.Context, server *mcp.Server) error {
	log.Info().Msg("MCP server listening on stdio")
	return server.Run(ctx, &mcp.StdioTransport{})
}

func (h *handlers) publishJobs(ctx context.Context, _ *mcp.CallToolRequest, in PublishInput) (*mcp.CallToolResult, any, error) {
	if len(in.Jobs) == 0 {
		return errorResult("jobs must contain at least one job descriptor"), nil, nil
	}
	descs := make([]json.RawMessage, 0, len(in.Jobs))
	for i, j := range in.Jobs {
		raw, err := json.Marshal(j)
		if err != nil {
			return errorResult(fmt.Sprintf("job %d: %v", i, err)), nil, nil
		}
		descs = append(descs, raw)
	}

	out, err := h.newBatch(in.ContinueOnFail).Run(ctx, "", descs)
	if err != nil {
		je, ok := publish.IsJobError(err)
		if !ok {
			return nil, nil, err
		}
		res := jsonResult(map[string]any{
			"runId":       out.RunID,
			"results":     out.Results,
			"error":       je.Error(),
			"failedIndex": je.Index,
		})
		res.IsError = true
		return res, nil, nil
	}
	return jsonResult(out), nil, nil
}

func (h *handlers) runRecords(ctx context.Context, _ *mcp.CallToolRequest, in RecordsInput) (*mcp.CallToolResult, any, error) {
	runID, ok := jobs.NormalizeRunID(in.RunID)
	if !ok {
		return errorResult(fmt.Sprintf("invalid runId %q", in.RunID)), nil, nil
	}
	recs, err := h.records.GetRecords(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("read run records: %w", err)
	}
	if len(recs) == 0 {
		return errorResult(fmt.Sprintf("run %s not found", runID)), nil, nil
	}
	return jsonResult(map[string]any{"runId": runID, "records": recs}), nil, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	raw, err := json.Marshal(v)
	if err != nil {
		return errorResult(fmt.Sprintf("encode result: %v", err))
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}}}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
