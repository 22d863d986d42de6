// Package event defines the domain events pushed to realtime clients.
package event

import "time"

// Type identifies what changed.
type Type string

const (
	TypeUserRegistered      Type = "user.registered"
	TypeWorkspaceCreated    Type = "workspace.created"
	TypeWorkspaceUpdated    Type = "workspace.updated"
	TypeWorkspaceDeleted    Type = "workspace.deleted"
	TypeDatasetCreated      Type = "dataset.created"
	TypeDatasetUpdated      Type = "dataset.updated"
	TypeDatasetDeleted      Type = "dataset.deleted"
	TypeDatasetExported     Type = "dataset.exported"
	TypeConversationCreated Type = "conversation.created"
	TypeConversationUpdated Type = "conversation.updated"
	TypeConversationDeleted Type = "conversation.deleted"
	TypeMessageCreated      Type = "message.created"
	TypeMessageUpdated      Type = "message.updated"
	TypeMessageDeleted      Type = "message.deleted"
	TypeToolCreated         Type = "tool.created"
	TypeToolUpdated         Type = "tool.updated"
	TypeToolDeleted         Type = "tool.deleted"
	TypeToolExecuted        Type = "tool.executed"
)

// Event records a mutation inside a workspace. OwnerID is the user that owns
// the workspace and decides which websocket clients receive the event.
type Event struct {
	Type        Type      `json:"type"`
	OwnerID     string    `json:"owner_id"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	ResourceID  string    `json:"resource_id"`
	At          time.Time `json:"at"`
}

// Subject returns the message-queue subject the event is published on.
func (e Event) Subject() string { return SubjectPrefix + string(e.Type) }

// SubjectPrefix prefixes every event subject; SubjectAll matches all of them.
const (
	SubjectPrefix = "events."
	SubjectAll    = "events.>"
)
