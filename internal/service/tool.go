package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/Strob0t/TuneForge/internal/adapter/otel"
	"github.com/Strob0t/TuneForge/internal/adapter/toolrunner"
	"github.com/Strob0t/TuneForge/internal/domain/event"
	"github.com/Strob0t/TuneForge/internal/domain/tool"
	"github.com/Strob0t/TuneForge/internal/port/broadcast"
	"github.com/Strob0t/TuneForge/internal/port/database"
)

// ToolExecutor calls a live tool endpoint.
type ToolExecutor interface {
	Execute(ctx context.Context, apiURL string, args json.RawMessage) (*toolrunner.Result, error)
}

// ToolService manages workspace tools and runs live tool calls.
type ToolService struct {
	store   database.Store
	runner  ToolExecutor
	metrics *otel.Metrics
	events  broadcast.Broadcaster
}

// NewToolService creates a ToolService. metrics may be nil.
func NewToolService(store database.Store, runner ToolExecutor, metrics *otel.Metrics, events broadcast.Broadcaster) *ToolService {
	return &ToolService{store: store, runner: runner, metrics: metrics, events: orNop(events)}
}

// List returns a workspace's tools, newest first.
func (s *ToolService) List(ctx context.Context, callerID, workspaceID string) ([]tool.Tool, error) {
	owner, err := authorize(ctx, s.store, callerID, database.KindWorkspace, workspaceID)
	if err != nil {
		return nil, err
	}
	return s.store.ListTools(ctx, owner.WorkspaceID)
}

// Create adds a tool to a workspace.
func (s *ToolService) Create(ctx context.Context, callerID, workspaceID string, req tool.Request) (*tool.Tool, error) {
	f, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	owner, err := authorize(ctx, s.store, callerID, database.KindWorkspace, workspaceID)
	if err != nil {
		return nil, err
	}
	t, err := s.store.CreateTool(ctx, owner.WorkspaceID, f)
	if err != nil {
		return nil, err
	}
	emit(ctx, s.events, event.TypeToolCreated, callerID, owner.WorkspaceID, t.ID)
	return t, nil
}

// Get returns a tool.
func (s *ToolService) Get(ctx context.Context, callerID, id string) (*tool.Tool, error) {
	if _, err := authorize(ctx, s.store, callerID, database.KindTool, id); err != nil {
		return nil, err
	}
	return s.store.GetTool(ctx, id)
}

// Update replaces every editable field of a tool.
func (s *ToolService) Update(ctx context.Context, callerID, id string, req tool.Request) (*tool.Tool, error) {
	f, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	owner, err := authorize(ctx, s.store, callerID, database.KindTool, id)
	if err != nil {
		return nil, err
	}
	t, err := s.store.UpdateTool(ctx, id, f)
	if err != nil {
		return nil, err
	}
	emit(ctx, s.events, event.TypeToolUpdated, callerID, owner.WorkspaceID, t.ID)
	return t, nil
}

// Delete removes a tool.
func (s *ToolService) Delete(ctx context.Context, callerID, id string) error {
	owner, err := authorize(ctx, s.store, callerID, database.KindTool, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTool(ctx, id); err != nil {
		return err
	}
	emit(ctx, s.events, event.TypeToolDeleted, callerID, owner.WorkspaceID, id)
	return nil
}

// Schema previews the JSON Schema built from parameter builder rows.
func (s *ToolService) Schema(req tool.SchemaRequest) (tool.SchemaResponse, error) {
	schema, err := tool.BuildSchema(req.Parameters)
	if err != nil {
		return tool.SchemaResponse{}, err
	}
	return tool.SchemaResponse{Schema: schema}, nil
}

// Execute forwards args to the tool's API URL and returns the upstream reply.
func (s *ToolService) Execute(ctx context.Context, callerID, id string, req tool.ExecuteRequest) (*toolrunner.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	owner, err := authorize(ctx, s.store, callerID, database.KindTool, id)
	if err != nil {
		return nil, err
	}
	t, err := s.store.GetTool(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.APIURL == nil {
		return nil, fmt.Errorf("execute tool %s: %w", t.ID, tool.ErrNoAPIURL)
	}

	host := ""
	if u, err := url.Parse(*t.APIURL); err == nil {
		host = u.Host
	}
	ctx, span := otel.StartToolExecSpan(ctx, t.ID, host)
	defer span.End()

	start := time.Now()
	res, err := s.runner.Execute(ctx, *t.APIURL, req.Args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordToolExecution(ctx, "error", time.Since(start))
		return nil, err
	}
	s.metrics.RecordToolExecution(ctx, "ok", time.Since(start))

	if err := s.store.IncrementToolUsage(ctx, t.ID); err != nil {
		slog.Warn("tool usage increment failed", "tool_id", t.ID, "error", err)
	}
	emit(ctx, s.events, event.TypeToolExecuted, callerID, owner.WorkspaceID, t.ID)
	return res, nil
}
