// Package user defines the user domain model. A user is identified by the
// IP address it registered from; this is an identity proxy, not a credential.
package user

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Strob0t/TuneForge/internal/domain"
)

// MaxUsernameLength bounds the username column.
const MaxUsernameLength = 64

// User owns workspaces.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegisterRequest is the input for registering the calling IP under a username.
type RegisterRequest struct {
	Username string `json:"username"`
}

// Validate trims and checks the username.
func (r *RegisterRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" {
		return fmt.Errorf("username is required: %w", domain.ErrValidation)
	}
	if len(r.Username) > MaxUsernameLength {
		return fmt.Errorf("username exceeds %d characters: %w", MaxUsernameLength, domain.ErrValidation)
	}
	for _, c := range r.Username {
		if unicode.IsControl(c) {
			return fmt.Errorf("username contains control characters: %w", domain.ErrValidation)
		}
	}
	return nil
}
