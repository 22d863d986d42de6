// Package conversation defines training conversations, their ordered
// messages and the tool calls recorded on assistant messages.
package conversation

import (
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Strob0t/TuneForge/internal/domain"
)

// Role is the chat role of a message.
type Role string

const (
	RoleSystem    Role = openai.ChatMessageRoleSystem
	RoleUser      Role = openai.ChatMessageRoleUser
	RoleAssistant Role = openai.ChatMessageRoleAssistant
	RoleTool      Role = openai.ChatMessageRoleTool
)

// Valid reports whether r is one of the four roles accepted for fine-tuning.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// MaxTitleLength bounds conversation titles.
const MaxTitleLength = 255

// Conversation is a training conversation inside a dataset.
type Conversation struct {
	ID          string    `json:"id"`
	DatasetID   string    `json:"dataset_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Tags        []string  `json:"tags"`
	Messages    []Message `json:"messages"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Message is one turn of a conversation. Order determines sequence; it is
// neither unique nor contiguous.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Role           Role       `json:"role"`
	Content        *string    `json:"content"`
	Order          int        `json:"order"`
	Name           *string    `json:"name"`
	ToolCallID     *string    `json:"tool_call_id"`
	ToolCalls      []ToolCall `json:"tool_calls"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ToolCall is a recorded function invocation on an assistant message.
// FunctionArguments is JSON text kept exactly as supplied.
type ToolCall struct {
	ID                string    `json:"id"`
	MessageID         string    `json:"message_id"`
	CallID            string    `json:"call_id"`
	Type              string    `json:"type"`
	FunctionName      string    `json:"function_name"`
	FunctionArguments string    `json:"function_arguments"`
	CreatedAt         time.Time `json:"created_at"`
}

// CreateRequest is the input for creating a conversation, optionally seeded
// with messages that receive orders 0..n-1.
type CreateRequest struct {
	Title       string                 `json:"title"`
	Description *string                `json:"description,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Messages    []CreateMessageRequest `json:"messages,omitempty"`
}

// Normalize fills the default title and validates nested messages.
func (r *CreateRequest) Normalize(now time.Time) error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		r.Title = fmt.Sprintf("Conversation %d", now.UnixMilli())
	}
	if len(r.Title) > MaxTitleLength {
		return fmt.Errorf("title exceeds %d characters: %w", MaxTitleLength, domain.ErrValidation)
	}
	r.Tags = cleanTags(r.Tags)
	for i := range r.Messages {
		if err := r.Messages[i].Validate(); err != nil {
			return fmt.Errorf("messages[%d]: %w", i, err)
		}
	}
	return nil
}

// UpdateRequest is a partial update of conversation metadata.
type UpdateRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

// Validate checks present fields and normalizes tags.
func (r *UpdateRequest) Validate() error {
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if title == "" {
			return fmt.Errorf("title cannot be empty: %w", domain.ErrValidation)
		}
		if len(title) > MaxTitleLength {
			return fmt.Errorf("title exceeds %d characters: %w", MaxTitleLength, domain.ErrValidation)
		}
		r.Title = &title
	}
	if r.Tags != nil {
		tags := cleanTags(*r.Tags)
		r.Tags = &tags
	}
	return nil
}

// Apply merges the update into c.
func (r *UpdateRequest) Apply(c *Conversation) {
	if r.Title != nil {
		c.Title = *r.Title
	}
	if r.Description != nil {
		if d := strings.TrimSpace(*r.Description); d != "" {
			c.Description = &d
		} else {
			c.Description = nil
		}
	}
	if r.Tags != nil {
		c.Tags = *r.Tags
	}
}

// cleanTags trims tags, drops blanks and duplicates, and never returns nil.
func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
