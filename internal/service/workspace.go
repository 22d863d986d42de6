package service

import (
	"context"
	"fmt"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/TuneForge/internal/domain/dataset"
	"github.com/Strob0t/TuneForge/internal/domain/event"
	"github.com/Strob0t/TuneForge/internal/domain/tool"
	"github.com/Strob0t/TuneForge/internal/domain/workspace"
	"github.com/Strob0t/TuneForge/internal/port/broadcast"
	"github.com/Strob0t/TuneForge/internal/port/database"
)

// WorkspaceDetail is a workspace with its datasets and tools.
type WorkspaceDetail struct {
	workspace.Workspace
	Datasets []dataset.Summary `json:"datasets"`
	Tools    []tool.Tool       `json:"tools"`
}

// WorkspaceService handles workspace business logic.
type WorkspaceService struct {
	store  database.Store
	events broadcast.Broadcaster
}

// NewWorkspaceService creates a new WorkspaceService.
func NewWorkspaceService(store database.Store, events broadcast.Broadcaster) *WorkspaceService {
	return &WorkspaceService{store: store, events: orNop(events)}
}

// List returns the caller's workspaces with dataset and tool counts.
func (s *WorkspaceService) List(ctx context.Context, callerID string) ([]workspace.Summary, error) {
	return s.store.ListWorkspaces(ctx, callerID)
}

// ListAll returns every workspace.
func (s *WorkspaceService) ListAll(ctx context.Context) ([]workspace.Summary, error) {
	return s.store.ListAllWorkspaces(ctx)
}

// Get returns a workspace with its datasets and tools.
func (s *WorkspaceService) Get(ctx context.Context, callerID, id string) (*WorkspaceDetail, error) {
	if _, err := authorize(ctx, s.store, callerID, database.KindWorkspace, id); err != nil {
		return nil, err
	}
	w, err := s.store.GetWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &WorkspaceDetail{Workspace: *w}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detail.Datasets, err = s.store.ListDatasets(gctx, w.ID)
		return err
	})
	g.Go(func() error {
		var err error
		detail.Tools, err = s.store.ListTools(gctx, w.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load workspace %s: %w", id, err)
	}
	return detail, nil
}

// Create creates a workspace owned by the caller.
func (s *WorkspaceService) Create(ctx context.Context, callerID string, req workspace.CreateRequest) (*workspace.Workspace, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	w, err := s.store.CreateWorkspace(ctx, callerID, shortuuid.New(), req.Name)
	if err != nil {
		return nil, err
	}
	emit(ctx, s.events, event.TypeWorkspaceCreated, callerID, w.ID, w.PublicID)
	return w, nil
}

// Update renames a workspace.
func (s *WorkspaceService) Update(ctx context.Context, callerID, id string, req workspace.UpdateRequest) (*workspace.Workspace, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := authorize(ctx, s.store, callerID, database.KindWorkspace, id); err != nil {
		return nil, err
	}
	w, err := s.store.UpdateWorkspace(ctx, id, req.Name)
	if err != nil {
		return nil, err
	}
	emit(ctx, s.events, event.TypeWorkspaceUpdated, callerID, w.ID, w.PublicID)
	return w, nil
}

// Delete removes a workspace and, by cascade, everything in it.
func (s *WorkspaceService) Delete(ctx context.Context, callerID, id string) error {
	owner, err := authorize(ctx, s.store, callerID, database.KindWorkspace, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteWorkspace(ctx, id); err != nil {
		return err
	}
	emit(ctx, s.events, event.TypeWorkspaceDeleted, callerID, owner.WorkspaceID, id)
	return nil
}
