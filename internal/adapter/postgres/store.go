package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/TuneForge/internal/domain"
	"github.com/Strob0t/TuneForge/internal/domain/user"
	"github.com/Strob0t/TuneForge/internal/port/database"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ database.Store = (*Store)(nil)

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Users ---

const userColumns = `id, username, ip_address, created_at, updated_at`

func scanUser(row scannable) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.IPAddress, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, username, ipAddress string) (*user.User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, ip_address) VALUES ($1, $2)
		 RETURNING `+userColumns, username, ipAddress)
	u, err := scanUser(row)
	if err != nil {
		return nil, classify(err, "create user %q", username)
	}
	return &u, nil
}

// GetUserByIP returns the earliest user registered from ipAddress.
func (s *Store) GetUserByIP(ctx context.Context, ipAddress string) (*user.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE ip_address = $1 ORDER BY created_at ASC, id ASC LIMIT 1`, ipAddress)
	u, err := scanUser(row)
	if err != nil {
		return nil, classify(err, "get user by ip %s", ipAddress)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return orEmpty(users), rows.Err()
}

// --- Ownership ---

// ownerQueries resolve the owning workspace and user of each resource kind.
var ownerQueries = map[database.ResourceKind]string{
	database.KindWorkspace: `SELECT w.id, w.user_id FROM workspaces w
		WHERE w.public_id = $1 OR w.id::text = $1`,
	database.KindDataset: `SELECT w.id, w.user_id FROM datasets d
		JOIN workspaces w ON w.id = d.workspace_id
		WHERE d.public_id = $1 OR d.id::text = $1`,
	database.KindConversation: `SELECT w.id, w.user_id FROM training_conversations c
		JOIN datasets d ON d.id = c.dataset_id
		JOIN workspaces w ON w.id = d.workspace_id
		WHERE c.id = $1`,
	database.KindMessage: `SELECT w.id, w.user_id FROM messages m
		JOIN training_conversations c ON c.id = m.conversation_id
		JOIN datasets d ON d.id = c.dataset_id
		JOIN workspaces w ON w.id = d.workspace_id
		WHERE m.id = $1`,
	database.KindTool: `SELECT w.id, w.user_id FROM tools t
		JOIN workspaces w ON w.id = t.workspace_id
		WHERE t.id = $1`,
}

// uuidOnlyKinds are looked up by internal UUID only.
var uuidOnlyKinds = map[database.ResourceKind]bool{
	database.KindConversation: true,
	database.KindMessage:      true,
	database.KindTool:         true,
}

func (s *Store) ResourceOwner(ctx context.Context, kind database.ResourceKind, id string) (database.Owner, error) {
	q, ok := ownerQueries[kind]
	if !ok {
		return database.Owner{}, fmt.Errorf("unknown resource kind %q: %w", kind, domain.ErrValidation)
	}
	if uuidOnlyKinds[kind] && !isUUID(id) {
		return database.Owner{}, fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}

	var o database.Owner
	if err := s.pool.QueryRow(ctx, q, id).Scan(&o.WorkspaceID, &o.UserID); err != nil {
		return database.Owner{}, classify(err, "%s %s owner", kind, id)
	}
	return o, nil
}
