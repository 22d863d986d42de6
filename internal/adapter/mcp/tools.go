package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/TuneForge/internal/domain"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.listWorkspacesTool(),
		s.listDatasetsTool(),
		s.exportDatasetTool(),
	)
}

func (s *Server) listWorkspacesTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_workspaces",
		mcplib.WithDescription("List the caller's workspaces with dataset and tool counts"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListWorkspaces}
}

func (s *Server) listDatasetsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_datasets",
		mcplib.WithDescription("List the datasets of a workspace, newest first"),
		mcplib.WithString("workspace_id",
			mcplib.Required(),
			mcplib.Description("Public or internal workspace ID"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListDatasets}
}

func (s *Server) exportDatasetTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("export_dataset",
		mcplib.WithDescription("Export a dataset as OpenAI chat fine-tuning records"),
		mcplib.WithString("dataset_id",
			mcplib.Required(),
			mcplib.Description("Public or internal dataset ID"),
		),
		mcplib.WithString("format",
			mcplib.Description("json (default) or jsonl"),
			mcplib.Enum("json", "jsonl"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleExportDataset}
}

func (s *Server) handleListWorkspaces(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Workspaces == nil {
		return mcplib.NewToolResultError("workspace lister not configured"), nil
	}
	callerID, errResult := s.caller(ctx)
	if errResult != nil {
		return errResult, nil
	}
	list, err := s.deps.Workspaces.List(ctx, callerID)
	if err != nil {
		return toolError(ctx, err, "workspace"), nil
	}
	return jsonResult(list)
}

func (s *Server) handleListDatasets(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Datasets == nil {
		return mcplib.NewToolResultError("dataset lister not configured"), nil
	}
	workspaceID, ok := req.GetArguments()["workspace_id"].(string)
	if !ok || workspaceID == "" {
		return mcplib.NewToolResultError("workspace_id is required"), nil
	}
	callerID, errResult := s.caller(ctx)
	if errResult != nil {
		return errResult, nil
	}
	list, err := s.deps.Datasets.List(ctx, callerID, workspaceID)
	if err != nil {
		return toolError(ctx, err, "workspace"), nil
	}
	return jsonResult(list)
}

// handleExportDataset returns the encoded file as text. Like the HTTP export
// it needs no registered caller.
func (s *Server) handleExportDataset(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Exports == nil {
		return mcplib.NewToolResultError("exporter not configured"), nil
	}
	args := req.GetArguments()
	datasetID, ok := args["dataset_id"].(string)
	if !ok || datasetID == "" {
		return mcplib.NewToolResultError("dataset_id is required"), nil
	}
	format, _ := args["format"].(string)

	file, err := s.deps.Exports.Export(ctx, datasetID, format)
	if err != nil {
		return toolError(ctx, err, "dataset"), nil
	}
	return mcplib.NewToolResultText(string(file.Body)), nil
}

// caller resolves the registered user behind the request's client IP.
func (s *Server) caller(ctx context.Context) (string, *mcplib.CallToolResult) {
	if s.deps.Users == nil {
		return "", mcplib.NewToolResultError("user resolver not configured")
	}
	u, err := s.deps.Users.Resolve(ctx, clientIP(ctx))
	if err != nil {
		return "", toolError(ctx, err, "user")
	}
	return u.ID, nil
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}

// toolError turns a domain error into an error result with the same wording
// the HTTP API uses.
func toolError(ctx context.Context, err error, resource string) *mcplib.CallToolResult {
	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnauthorized):
		return mcplib.NewToolResultError(domain.Message(err))
	case errors.Is(err, domain.ErrForbidden):
		return mcplib.NewToolResultError("you do not own this " + resource)
	case errors.Is(err, domain.ErrNotFound):
		return mcplib.NewToolResultError(resource + " not found")
	case errors.As(err, &upstream):
		return mcplib.NewToolResultError(upstream.Error())
	default:
		slog.ErrorContext(ctx, "mcp tool failed", "error", err)
		return mcplib.NewToolResultError("internal server error")
	}
}
