// Package dataset defines the dataset domain model: a named collection of
// training conversations plus export bookkeeping.
package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/TuneForge/internal/domain"
)

// Status tracks where a dataset is in the fine-tuning lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusTraining  Status = "training"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// DefaultPurpose is the OpenAI file purpose for fine-tuning uploads.
const DefaultPurpose = "fine-tune"

// MaxNameLength bounds dataset names.
const MaxNameLength = 255

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusTraining, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Dataset belongs to exactly one workspace.
type Dataset struct {
	ID           string     `json:"id"`
	PublicID     string     `json:"dataset_id"`
	WorkspaceID  string     `json:"workspace_id"`
	Name         string     `json:"name"`
	Description  *string    `json:"description"`
	Purpose      string     `json:"purpose"`
	Status       Status     `json:"status"`
	Model        *string    `json:"model"`
	ExportCount  int        `json:"export_count"`
	LastExportAt *time.Time `json:"last_export_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Summary adds conversation counts for list views.
type Summary struct {
	Dataset
	LegacyConversations   int `json:"legacy_conversations"`
	TrainingConversations int `json:"training_conversations"`
	TotalConversations    int `json:"total_conversations"`
}

// CreateRequest is the input for creating a dataset. Every field is optional.
type CreateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Purpose     string  `json:"purpose,omitempty"`
	Model       *string `json:"model,omitempty"`
}

// Normalize fills defaults and validates the request. now supplies the
// timestamp used in the default name.
func (r *CreateRequest) Normalize(now time.Time) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		r.Name = "Dataset " + now.UTC().Format(time.RFC3339)
	}
	if len(r.Name) > MaxNameLength {
		return fmt.Errorf("dataset name exceeds %d characters: %w", MaxNameLength, domain.ErrValidation)
	}
	r.Purpose = strings.TrimSpace(r.Purpose)
	if r.Purpose == "" {
		r.Purpose = DefaultPurpose
	}
	r.Description = blankToNil(r.Description)
	r.Model = blankToNil(r.Model)
	return nil
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Purpose     *string `json:"purpose,omitempty"`
	Model       *string `json:"model,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// Validate checks the fields that are present.
func (r *UpdateRequest) Validate() error {
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return fmt.Errorf("dataset name cannot be empty: %w", domain.ErrValidation)
		}
		if len(name) > MaxNameLength {
			return fmt.Errorf("dataset name exceeds %d characters: %w", MaxNameLength, domain.ErrValidation)
		}
		r.Name = &name
	}
	if r.Purpose != nil && strings.TrimSpace(*r.Purpose) == "" {
		return fmt.Errorf("purpose cannot be empty: %w", domain.ErrValidation)
	}
	if r.Status != nil && !r.Status.Valid() {
		return fmt.Errorf("invalid status %q: must be draft, training, completed or failed: %w", *r.Status, domain.ErrValidation)
	}
	return nil
}

// Apply merges the update into d.
func (r *UpdateRequest) Apply(d *Dataset) {
	if r.Name != nil {
		d.Name = *r.Name
	}
	if r.Description != nil {
		d.Description = blankToNil(r.Description)
	}
	if r.Purpose != nil {
		d.Purpose = strings.TrimSpace(*r.Purpose)
	}
	if r.Model != nil {
		d.Model = blankToNil(r.Model)
	}
	if r.Status != nil {
		d.Status = *r.Status
	}
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
