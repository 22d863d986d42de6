package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/Strob0t/TuneForge/internal/domain"
)

// CreateMessageRequest is the input for appending a message.
type CreateMessageRequest struct {
	Role       Role            `json:"role"`
	Content    *string         `json:"content,omitempty"`
	Name       *string         `json:"name,omitempty"`
	ToolCallID *string         `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCallInput `json:"tool_calls,omitempty"`
}

// Validate checks the role and every tool call.
func (r *CreateMessageRequest) Validate() error {
	if !r.Role.Valid() {
		return fmt.Errorf("invalid role %q: must be system, user, assistant or tool: %w", r.Role, domain.ErrValidation)
	}
	for i := range r.ToolCalls {
		if err := r.ToolCalls[i].validate(); err != nil {
			return fmt.Errorf("tool_calls[%d]: %w", i, err)
		}
	}
	return nil
}

// UpdateMessageRequest replaces a message's tool calls and, when present, its content.
type UpdateMessageRequest struct {
	Content   *string         `json:"content,omitempty"`
	ToolCalls []ToolCallInput `json:"tool_calls,omitempty"`
}

// Validate checks every tool call.
func (r *UpdateMessageRequest) Validate() error {
	for i := range r.ToolCalls {
		if err := r.ToolCalls[i].validate(); err != nil {
			return fmt.Errorf("tool_calls[%d]: %w", i, err)
		}
	}
	return nil
}

// ToolCallInput mirrors the OpenAI tool_call shape as sent by clients.
// Arguments may be a JSON string or any other JSON value.
type ToolCallInput struct {
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type,omitempty"`
	Function FunctionInput `json:"function"`
}

// FunctionInput is the function part of a ToolCallInput.
type FunctionInput struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// NewToolCall is a normalized tool call ready to be stored.
type NewToolCall struct {
	CallID            string
	Type              string
	FunctionName      string
	FunctionArguments string
}

func (in *ToolCallInput) validate() error {
	if strings.TrimSpace(in.Function.Name) == "" {
		return fmt.Errorf("function.name is required: %w", domain.ErrValidation)
	}
	if len(in.Function.Arguments) > 0 && !json.Valid(in.Function.Arguments) {
		return fmt.Errorf("function.arguments is not valid JSON: %w", domain.ErrValidation)
	}
	return nil
}

// Normalize assigns a call ID and type when missing and converts the
// arguments to the JSON text that is stored and exported. A JSON string is
// unwrapped and kept verbatim; other values are compacted; absent or null
// arguments become "{}".
func (in *ToolCallInput) Normalize() (NewToolCall, error) {
	if err := in.validate(); err != nil {
		return NewToolCall{}, err
	}
	tc := NewToolCall{
		CallID:       strings.TrimSpace(in.ID),
		Type:         strings.TrimSpace(in.Type),
		FunctionName: strings.TrimSpace(in.Function.Name),
	}
	if tc.CallID == "" {
		tc.CallID = "call_" + uuid.NewString()
	}
	if tc.Type == "" {
		tc.Type = string(openai.ToolTypeFunction)
	}

	args, err := argumentsText(in.Function.Arguments)
	if err != nil {
		return NewToolCall{}, err
	}
	tc.FunctionArguments = args
	return tc, nil
}

// NormalizeToolCalls normalizes a slice of inputs, never returning nil.
func NormalizeToolCalls(in []ToolCallInput) ([]NewToolCall, error) {
	out := make([]NewToolCall, 0, len(in))
	for i := range in {
		tc, err := in[i].Normalize()
		if err != nil {
			return nil, fmt.Errorf("tool_calls[%d]: %w", i, err)
		}
		out = append(out, tc)
	}
	return out, nil
}

func argumentsText(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "{}", nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("function.arguments: %w", domain.ErrValidation)
		}
		if strings.TrimSpace(s) == "" {
			return "{}", nil
		}
		return s, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", fmt.Errorf("function.arguments: %w", domain.ErrValidation)
	}
	return buf.String(), nil
}

// NewMessage is a validated message ready to be stored. The store assigns Order.
type NewMessage struct {
	Role       Role
	Content    *string
	Name       *string
	ToolCallID *string
	ToolCalls  []NewToolCall
}

// ToNewMessage validates the request and normalizes its tool calls.
func (r *CreateMessageRequest) ToNewMessage() (NewMessage, error) {
	if err := r.Validate(); err != nil {
		return NewMessage{}, err
	}
	calls, err := NormalizeToolCalls(r.ToolCalls)
	if err != nil {
		return NewMessage{}, err
	}
	return NewMessage{
		Role:       r.Role,
		Content:    r.Content,
		Name:       r.Name,
		ToolCallID: r.ToolCallID,
		ToolCalls:  calls,
	}, nil
}
