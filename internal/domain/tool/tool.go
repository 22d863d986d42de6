// Package tool defines function-calling tool schemas attached to a workspace.
package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Strob0t/TuneForge/internal/domain"
)

// MaxNameLength bounds tool names. OpenAI accepts at most 64 characters.
const MaxNameLength = 64

// ErrNoAPIURL is returned when executing a tool that has no endpoint.
var ErrNoAPIURL = fmt.Errorf("tool has no api url: %w", domain.ErrValidation)

// Tool is a function-calling schema, optionally backed by a live HTTP endpoint.
// Parameters holds JSON Schema text exactly as stored; it is not validated.
type Tool struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"tool_name"`
	Description *string   `json:"description"`
	Parameters  *string   `json:"parameters"`
	APIURL      *string   `json:"api_url"`
	UsageCount  int       `json:"usage_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Request is the body for creating or fully replacing a tool.
// Parameters may be a JSON string (stored verbatim) or a JSON object
// (stored compact). StructuredParameters, when present, takes precedence.
type Request struct {
	Name                 string                `json:"tool_name"`
	Description          *string               `json:"description,omitempty"`
	Parameters           json.RawMessage       `json:"parameters,omitempty"`
	StructuredParameters []ParameterDefinition `json:"structured_parameters,omitempty"`
	APIURL               *string               `json:"api_url,omitempty"`
}

// Fields is a validated Request ready for storage.
type Fields struct {
	Name        string
	Description *string
	Parameters  *string
	APIURL      *string
}

// Normalize validates the request and resolves the stored parameter text.
func (r *Request) Normalize() (Fields, error) {
	f := Fields{Name: strings.TrimSpace(r.Name)}
	if f.Name == "" {
		return Fields{}, fmt.Errorf("tool name is required: %w", domain.ErrValidation)
	}
	if len(f.Name) > MaxNameLength {
		return Fields{}, fmt.Errorf("tool name exceeds %d characters: %w", MaxNameLength, domain.ErrValidation)
	}
	f.Description = blankToNil(r.Description)

	if r.StructuredParameters != nil {
		schema, err := BuildSchema(r.StructuredParameters)
		if err != nil {
			return Fields{}, err
		}
		if schema != "" {
			f.Parameters = &schema
		}
	} else {
		params, err := parametersText(r.Parameters)
		if err != nil {
			return Fields{}, err
		}
		f.Parameters = params
	}

	if u := blankToNil(r.APIURL); u != nil {
		if err := validateAPIURL(*u); err != nil {
			return Fields{}, err
		}
		f.APIURL = u
	}
	return f, nil
}

// ExecuteRequest carries the arguments forwarded to a tool's API URL.
type ExecuteRequest struct {
	Args json.RawMessage `json:"args"`
}

// Validate requires non-empty, non-null arguments.
func (r *ExecuteRequest) Validate() error {
	trimmed := bytes.TrimSpace(r.Args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fmt.Errorf("args are required: %w", domain.ErrValidation)
	}
	if !json.Valid(trimmed) {
		return fmt.Errorf("args must be valid JSON: %w", domain.ErrValidation)
	}
	return nil
}

func parametersText(raw json.RawMessage) (*string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("parameters: %w", domain.ErrValidation)
		}
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		return &s, nil
	case '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return nil, fmt.Errorf("parameters: %w", domain.ErrValidation)
		}
		s := buf.String()
		return &s, nil
	default:
		return nil, fmt.Errorf("parameters must be a JSON string or object: %w", domain.ErrValidation)
	}
}

func validateAPIURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("api_url must be an absolute http or https URL: %w", domain.ErrValidation)
	}
	return nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
