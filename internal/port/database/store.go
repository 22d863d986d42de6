// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/TuneForge/internal/domain/conversation"
	"github.com/Strob0t/TuneForge/internal/domain/dataset"
	"github.com/Strob0t/TuneForge/internal/domain/tool"
	"github.com/Strob0t/TuneForge/internal/domain/user"
	"github.com/Strob0t/TuneForge/internal/domain/workspace"
)

// ResourceKind names a workspace-scoped resource for ownership lookups.
type ResourceKind string

const (
	KindWorkspace    ResourceKind = "workspace"
	KindDataset      ResourceKind = "dataset"
	KindConversation ResourceKind = "conversation"
	KindMessage      ResourceKind = "message"
	KindTool         ResourceKind = "tool"
)

// Owner identifies the workspace a resource lives in and the user owning it.
// WorkspaceID is the workspace's internal ID.
type Owner struct {
	WorkspaceID string
	UserID      string
}

// Store is the port interface for database operations.
// Workspace and dataset IDs accept either the public ID or the internal UUID.
type Store interface {
	// Users
	CreateUser(ctx context.Context, username, ipAddress string) (*user.User, error)
	GetUserByIP(ctx context.Context, ipAddress string) (*user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)

	// Workspaces
	ListWorkspaces(ctx context.Context, userID string) ([]workspace.Summary, error)
	ListAllWorkspaces(ctx context.Context) ([]workspace.Summary, error)
	GetWorkspace(ctx context.Context, id string) (*workspace.Workspace, error)
	CreateWorkspace(ctx context.Context, userID, publicID, name string) (*workspace.Workspace, error)
	UpdateWorkspace(ctx context.Context, id, name string) (*workspace.Workspace, error)
	DeleteWorkspace(ctx context.Context, id string) error

	// Datasets
	ListDatasets(ctx context.Context, workspaceID string) ([]dataset.Summary, error)
	GetDataset(ctx context.Context, id string) (*dataset.Dataset, error)
	CreateDataset(ctx context.Context, workspaceID, publicID string, req dataset.CreateRequest) (*dataset.Dataset, error)
	UpdateDataset(ctx context.Context, d *dataset.Dataset) error
	DeleteDataset(ctx context.Context, id string) error
	RecordExport(ctx context.Context, id string) error

	// Training conversations (returned with ordered messages and tool calls)
	ListConversations(ctx context.Context, datasetID string) ([]conversation.Conversation, error)
	GetConversation(ctx context.Context, id string) (*conversation.Conversation, error)
	CreateConversation(ctx context.Context, datasetID string, req conversation.CreateRequest, msgs []conversation.NewMessage) (*conversation.Conversation, error)
	UpdateConversation(ctx context.Context, c *conversation.Conversation) error
	DeleteConversation(ctx context.Context, id string) error

	// Messages
	ListMessages(ctx context.Context, conversationID string) ([]conversation.Message, error)
	GetMessage(ctx context.Context, id string) (*conversation.Message, error)
	AppendMessage(ctx context.Context, conversationID string, msg conversation.NewMessage) (*conversation.Message, error)
	UpdateMessage(ctx context.Context, id string, content *string, calls []conversation.NewToolCall) (*conversation.Message, error)
	DeleteMessage(ctx context.Context, id string) error

	// Tools
	ListTools(ctx context.Context, workspaceID string) ([]tool.Tool, error)
	GetTool(ctx context.Context, id string) (*tool.Tool, error)
	CreateTool(ctx context.Context, workspaceID string, f tool.Fields) (*tool.Tool, error)
	UpdateTool(ctx context.Context, id string, f tool.Fields) (*tool.Tool, error)
	DeleteTool(ctx context.Context, id string) error
	IncrementToolUsage(ctx context.Context, id string) error

	// Ownership
	ResourceOwner(ctx context.Context, kind ResourceKind, id string) (Owner, error)
}
