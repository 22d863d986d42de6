package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/TuneForge/internal/domain/workspace"
)

const workspaceColumns = `w.id, w.public_id, w.name, w.user_id, w.created_at, w.updated_at`

const workspaceSummarySelect = `SELECT ` + workspaceColumns + `,
	(SELECT count(*) FROM datasets d WHERE d.workspace_id = w.id),
	(SELECT count(*) FROM tools t WHERE t.workspace_id = w.id)
	FROM workspaces w`

func scanWorkspace(row scannable) (workspace.Workspace, error) {
	var w workspace.Workspace
	err := row.Scan(&w.ID, &w.PublicID, &w.Name, &w.UserID, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func scanWorkspaceSummary(row scannable) (workspace.Summary, error) {
	var ws workspace.Summary
	err := row.Scan(&ws.ID, &ws.PublicID, &ws.Name, &ws.UserID, &ws.CreatedAt, &ws.UpdatedAt,
		&ws.DatasetCount, &ws.ToolCount)
	return ws, err
}

func (s *Store) listWorkspaceSummaries(ctx context.Context, where string, args ...any) ([]workspace.Summary, error) {
	rows, err := s.pool.Query(ctx, workspaceSummarySelect+where+` ORDER BY w.created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	var result []workspace.Summary
	for rows.Next() {
		ws, err := scanWorkspaceSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		result = append(result, ws)
	}
	return orEmpty(result), rows.Err()
}

func (s *Store) ListWorkspaces(ctx context.Context, userID string) ([]workspace.Summary, error) {
	if !isUUID(userID) {
		return []workspace.Summary{}, nil
	}
	return s.listWorkspaceSummaries(ctx, ` WHERE w.user_id = $1`, userID)
}

func (s *Store) ListAllWorkspaces(ctx context.Context) ([]workspace.Summary, error) {
	return s.listWorkspaceSummaries(ctx, "")
}

func (s *Store) GetWorkspace(ctx context.Context, id string) (*workspace.Workspace, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces w WHERE w.public_id = $1 OR w.id::text = $1`, id)
	w, err := scanWorkspace(row)
	if err != nil {
		return nil, classify(err, "get workspace %s", id)
	}
	return &w, nil
}

func (s *Store) CreateWorkspace(ctx context.Context, userID, publicID, name string) (*workspace.Workspace, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO workspaces AS w (user_id, public_id, name) VALUES ($1, $2, $3)
		 RETURNING `+workspaceColumns, userID, publicID, name)
	w, err := scanWorkspace(row)
	if err != nil {
		return nil, classify(err, "create workspace")
	}
	return &w, nil
}

func (s *Store) UpdateWorkspace(ctx context.Context, id, name string) (*workspace.Workspace, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE workspaces AS w SET name = $2, updated_at = now()
		 WHERE w.public_id = $1 OR w.id::text = $1
		 RETURNING `+workspaceColumns, id, name)
	w, err := scanWorkspace(row)
	if err != nil {
		return nil, classify(err, "update workspace %s", id)
	}
	return &w, nil
}

func (s *Store) DeleteWorkspace(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM workspaces WHERE public_id = $1 OR id::text = $1`, id)
	return execExpectOne(tag, err, "delete workspace %s", id)
}
