package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/TuneForge/internal/domain/dataset"
)

const datasetColumns = `d.id, d.public_id, d.workspace_id, d.name, d.description, d.purpose, d.status,
	d.model, d.export_count, d.last_export_at, d.created_at, d.updated_at`

func scanDataset(row scannable) (dataset.Dataset, error) {
	var d dataset.Dataset
	var status string
	err := row.Scan(&d.ID, &d.PublicID, &d.WorkspaceID, &d.Name, &d.Description, &d.Purpose, &status,
		&d.Model, &d.ExportCount, &d.LastExportAt, &d.CreatedAt, &d.UpdatedAt)
	d.Status = dataset.Status(status)
	return d, err
}

func (s *Store) ListDatasets(ctx context.Context, workspaceID string) ([]dataset.Summary, error) {
	if !isUUID(workspaceID) {
		return []dataset.Summary{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+datasetColumns+`,
			(SELECT count(*) FROM legacy_conversations lc WHERE lc.dataset_id = d.id),
			(SELECT count(*) FROM training_conversations tc WHERE tc.dataset_id = d.id)
		 FROM datasets d WHERE d.workspace_id = $1 ORDER BY d.created_at DESC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var result []dataset.Summary
	for rows.Next() {
		var ds dataset.Summary
		var status string
		if err := rows.Scan(&ds.ID, &ds.PublicID, &ds.WorkspaceID, &ds.Name, &ds.Description, &ds.Purpose, &status,
			&ds.Model, &ds.ExportCount, &ds.LastExportAt, &ds.CreatedAt, &ds.UpdatedAt,
			&ds.LegacyConversations, &ds.TrainingConversations); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		ds.Status = dataset.Status(status)
		ds.TotalConversations = ds.LegacyConversations + ds.TrainingConversations
		result = append(result, ds)
	}
	return orEmpty(result), rows.Err()
}

func (s *Store) GetDataset(ctx context.Context, id string) (*dataset.Dataset, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+datasetColumns+` FROM datasets d WHERE d.public_id = $1 OR d.id::text = $1`, id)
	d, err := scanDataset(row)
	if err != nil {
		return nil, classify(err, "get dataset %s", id)
	}
	return &d, nil
}

func (s *Store) CreateDataset(ctx context.Context, workspaceID, publicID string, req dataset.CreateRequest) (*dataset.Dataset, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO datasets AS d (workspace_id, public_id, name, description, purpose, model, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+datasetColumns,
		workspaceID, publicID, req.Name, req.Description, req.Purpose, req.Model, string(dataset.StatusDraft))
	d, err := scanDataset(row)
	if err != nil {
		return nil, classify(err, "create dataset")
	}
	return &d, nil
}

// UpdateDataset writes the mutable fields of d and refreshes its timestamps.
func (s *Store) UpdateDataset(ctx context.Context, d *dataset.Dataset) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE datasets SET name = $2, description = $3, purpose = $4, model = $5, status = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		d.ID, d.Name, d.Description, d.Purpose, d.Model, string(d.Status)).Scan(&d.UpdatedAt)
	if err != nil {
		return classify(err, "update dataset %s", d.ID)
	}
	return nil
}

func (s *Store) DeleteDataset(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM datasets WHERE public_id = $1 OR id::text = $1`, id)
	return execExpectOne(tag, err, "delete dataset %s", id)
}

// RecordExport bumps the export counter and stamps the export time.
func (s *Store) RecordExport(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE datasets SET export_count = export_count + 1, last_export_at = now()
		 WHERE public_id = $1 OR id::text = $1`, id)
	return execExpectOne(tag, err, "record export %s", id)
}
