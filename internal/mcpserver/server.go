// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Raido harvest tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/reports"
)

// Server wraps the MCP server with Raido tools.
type Server struct {
	mcp *server.MCPServer
	svc *reports.Service
}

// New creates a new MCP server with all Raido tools registered.
func New(svc *reports.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Raido",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_batches",
		mcp.WithDescription("List assembled batch outcomes, newest first."),
		mcp.WithNumber("limit", mcp.Description("Max batches to return (default 20)")),
	), s.listBatches)

	s.mcp.AddTool(mcp.NewTool("get_batch",
		mcp.WithDescription("Get one batch outcome: output path, checksum, and record counts."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Batch name (the expanded archive directory name)")),
	), s.getBatch)

	s.mcp.AddTool(mcp.NewTool("list_quarantine",
		mcp.WithDescription("List recent quarantine events with their stored paths and reasons. "+
			"Read the raido://envelope-format resource to understand why a file failed."),
		mcp.WithNumber("limit", mcp.Description("Max events to return (default 20)")),
	), s.listQuarantine)

	s.mcp.AddTool(mcp.NewTool("list_deletions",
		mcp.WithDescription("Return the most recent control numbers appended to the deletion ledger, oldest first."),
		mcp.WithNumber("limit", mcp.Description("Max control numbers to return (default 100)")),
	), s.listDeletions)

	s.mcp.AddTool(mcp.NewTool("run_harvest",
		mcp.WithDescription("Process every archive currently in the inbox and return a run summary. "+
			"Fails if a run is already in progress."),
	), s.runHarvest)

	s.mcp.AddTool(mcp.NewTool("get_envelope_contract",
		mcp.WithDescription("Returns the envelope record format that harvest inbox files must follow."),
	), s.getEnvelopeContract)

	// Resource: envelope format contract.
	s.mcp.AddResource(
		mcp.NewResource("raido://envelope-format", "Envelope Record Format",
			mcp.WithResourceDescription("Record envelope structure that all harvested files must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readEnvelopeFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolLimit(req mcp.CallToolRequest, fallback int) int {
	limit := req.GetInt("limit", fallback)
	if limit <= 0 {
		limit = fallback
	}
	return limit
}

func (s *Server) listBatches(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, total, err := s.svc.ListBatches(ctx, toolLimit(req, 20), 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{"batches": rows, "total": total}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getBatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	row, err := s.svc.GetBatch(ctx, name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("batch not found: %s", name)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(row, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listQuarantine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events, err := s.svc.Quarantine(ctx, toolLimit(req, 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(events) == 0 {
		return mcp.NewToolResultText("no quarantine events"), nil
	}
	out, _ := json.MarshalIndent(events, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listDeletions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := s.svc.RecentDeletions(ctx, toolLimit(req, 100))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(ids) == 0 {
		return mcp.NewToolResultText("no deletions recorded"), nil
	}
	return mcp.NewToolResultText(strings.Join(ids, "\n")), nil
}

func (s *Server) runHarvest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := s.svc.TriggerRun(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrRunBusy) {
			return mcp.NewToolResultError("a harvest run is already in progress"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(summary, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getEnvelopeContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EnvelopeFormatContract), nil
}

func (s *Server) readEnvelopeFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "raido://envelope-format",
			MIMEType: "text/markdown",
			Text:     EnvelopeFormatContract,
		},
	}, nil
}
