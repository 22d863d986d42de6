package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/TuneForge/internal/domain"
	"github.com/Strob0t/TuneForge/internal/domain/tool"
)

const toolColumns = `t.id, t.workspace_id, t.tool_name, t.description, t.parameters, t.api_url, t.usage_count, t.created_at, t.updated_at`

func scanTool(row scannable) (tool.Tool, error) {
	var t tool.Tool
	err := row.Scan(&t.ID, &t.WorkspaceID, &t.Name, &t.Description, &t.Parameters, &t.APIURL, &t.UsageCount, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *Store) ListTools(ctx context.Context, workspaceID string) ([]tool.Tool, error) {
	if !isUUID(workspaceID) {
		return []tool.Tool{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+toolColumns+` FROM tools t WHERE t.workspace_id = $1 ORDER BY t.created_at DESC, t.id`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defer rows.Close()

	var result []tool.Tool
	for rows.Next() {
		t, err := scanTool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tool: %w", err)
		}
		result = append(result, t)
	}
	return orEmpty(result), rows.Err()
}

func (s *Store) GetTool(ctx context.Context, id string) (*tool.Tool, error) {
	if !isUUID(id) {
		return nil, fmt.Errorf("get tool %s: %w", id, domain.ErrNotFound)
	}
	t, err := scanTool(s.pool.QueryRow(ctx, `SELECT `+toolColumns+` FROM tools t WHERE t.id = $1`, id))
	if err != nil {
		return nil, classify(err, "get tool %s", id)
	}
	return &t, nil
}

func (s *Store) CreateTool(ctx context.Context, workspaceID string, f tool.Fields) (*tool.Tool, error) {
	t, err := scanTool(s.pool.QueryRow(ctx,
		`INSERT INTO tools AS t (workspace_id, tool_name, description, parameters, api_url)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+toolColumns,
		workspaceID, f.Name, f.Description, f.Parameters, f.APIURL))
	if err != nil {
		return nil, classify(err, "create tool %q", f.Name)
	}
	return &t, nil
}

func (s *Store) UpdateTool(ctx context.Context, id string, f tool.Fields) (*tool.Tool, error) {
	if !isUUID(id) {
		return nil, fmt.Errorf("update tool %s: %w", id, domain.ErrNotFound)
	}
	t, err := scanTool(s.pool.QueryRow(ctx,
		`UPDATE tools AS t SET tool_name = $2, description = $3, parameters = $4, api_url = $5, updated_at = now()
		 WHERE t.id = $1
		 RETURNING `+toolColumns,
		id, f.Name, f.Description, f.Parameters, f.APIURL))
	if err != nil {
		return nil, classify(err, "update tool %s", id)
	}
	return &t, nil
}

func (s *Store) DeleteTool(ctx context.Context, id string) error {
	if !isUUID(id) {
		return fmt.Errorf("delete tool %s: %w", id, domain.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM tools WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete tool %s", id)
}

func (s *Store) IncrementToolUsage(ctx context.Context, id string) error {
	if !isUUID(id) {
		return fmt.Errorf("increment tool usage %s: %w", id, domain.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE tools SET usage_count = usage_count + 1 WHERE id = $1`, id)
	return execExpectOne(tag, err, "increment tool usage %s", id)
}
