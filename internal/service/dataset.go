package service

import (
	"context"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/Strob0t/TuneForge/internal/domain/dataset"
	"github.com/Strob0t/TuneForge/internal/domain/event"
	"github.com/Strob0t/TuneForge/internal/port/broadcast"
	"github.com/Strob0t/TuneForge/internal/port/database"
)

// DatasetService handles dataset business logic.
type DatasetService struct {
	store  database.Store
	events broadcast.Broadcaster
	now    func() time.Time
}

// NewDatasetService creates a new DatasetService.
func NewDatasetService(store database.Store, events broadcast.Broadcaster) *DatasetService {
	return &DatasetService{store: store, events: orNop(events), now: time.Now}
}

// List returns a workspace's datasets, newest first, with conversation counts.
func (s *DatasetService) List(ctx context.Context, callerID, workspaceID string) ([]dataset.Summary, error) {
	owner, err := authorize(ctx, s.store, callerID, database.KindWorkspace, workspaceID)
	if err != nil {
		return nil, err
	}
	return s.store.ListDatasets(ctx, owner.WorkspaceID)
}

// Create adds a dataset to a workspace. Missing fields get defaults.
func (s *DatasetService) Create(ctx context.Context, callerID, workspaceID string, req dataset.CreateRequest) (*dataset.Dataset, error) {
	if err := req.Normalize(s.now()); err != nil {
		return nil, err
	}
	owner, err := authorize(ctx, s.store, callerID, database.KindWorkspace, workspaceID)
	if err != nil {
		return nil, err
	}
	d, err := s.store.CreateDataset(ctx, owner.WorkspaceID, shortuuid.New(), req)
	if err != nil {
		return nil, err
	}
	emit(ctx, s.events, event.TypeDatasetCreated, callerID, owner.WorkspaceID, d.PublicID)
	return d, nil
}

// Get returns a dataset by public or internal ID.
func (s *DatasetService) Get(ctx context.Context, callerID, id string) (*dataset.Dataset, error) {
	if _, err := authorize(ctx, s.store, callerID, database.KindDataset, id); err != nil {
		return nil, err
	}
	return s.store.GetDataset(ctx, id)
}

// Update applies a partial update.
func (s *DatasetService) Update(ctx context.Context, callerID, id string, req dataset.UpdateRequest) (*dataset.Dataset, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	owner, err := authorize(ctx, s.store, callerID, database.KindDataset, id)
	if err != nil {
		return nil, err
	}
	d, err := s.store.GetDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Apply(d)
	if err := s.store.UpdateDataset(ctx, d); err != nil {
		return nil, err
	}
	emit(ctx, s.events, event.TypeDatasetUpdated, callerID, owner.WorkspaceID, d.PublicID)
	return d, nil
}

// Delete removes a dataset with its conversations.
func (s *DatasetService) Delete(ctx context.Context, callerID, id string) error {
	owner, err := authorize(ctx, s.store, callerID, database.KindDataset, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDataset(ctx, id); err != nil {
		return err
	}
	emit(ctx, s.events, event.TypeDatasetDeleted, callerID, owner.WorkspaceID, id)
	return nil
}
