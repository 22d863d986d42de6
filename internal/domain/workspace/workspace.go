// Package workspace defines the workspace domain model.
package workspace

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Strob0t/TuneForge/internal/domain"
)

// MaxNameLength bounds workspace names.
const MaxNameLength = 255

// Workspace groups datasets and tools for one user.
// PublicID is the short identifier shown in URLs; ID is the internal UUID.
type Workspace struct {
	ID        string    `json:"id"`
	PublicID  string    `json:"workspace_id"`
	Name      string    `json:"name"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is a workspace with resource counts, as shown in the workspace grid.
type Summary struct {
	Workspace
	DatasetCount int `json:"dataset_count"`
	ToolCount    int `json:"tool_count"`
}

// CreateRequest is the input for creating a workspace.
type CreateRequest struct {
	Name string `json:"name"`
}

// UpdateRequest is the input for renaming a workspace.
type UpdateRequest struct {
	Name string `json:"name"`
}

// Validate trims and checks the workspace name.
func (r *CreateRequest) Validate() error {
	name, err := validateName(r.Name)
	if err != nil {
		return err
	}
	r.Name = name
	return nil
}

// Validate trims and checks the workspace name.
func (r *UpdateRequest) Validate() error {
	name, err := validateName(r.Name)
	if err != nil {
		return err
	}
	r.Name = name
	return nil
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("workspace name is required and must be a non-empty string: %w", domain.ErrValidation)
	}
	if len(name) > MaxNameLength {
		return "", fmt.Errorf("workspace name exceeds %d characters: %w", MaxNameLength, domain.ErrValidation)
	}
	for _, c := range name {
		if unicode.IsControl(c) {
			return "", fmt.Errorf("workspace name contains control characters: %w", domain.ErrValidation)
		}
	}
	return name, nil
}
