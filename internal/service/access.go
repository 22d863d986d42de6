package service

import (
	"context"
	"fmt"

	"github.com/Strob0t/TuneForge/internal/domain"
	"github.com/Strob0t/TuneForge/internal/port/database"
)

// authorize resolves the owner of a resource and fails with ErrForbidden
// when it belongs to someone other than callerID.
func authorize(ctx context.Context, store database.Store, callerID string, kind database.ResourceKind, id string) (database.Owner, error) {
	owner, err := store.ResourceOwner(ctx, kind, id)
	if err != nil {
		return database.Owner{}, err
	}
	if owner.UserID != callerID {
		return database.Owner{}, fmt.Errorf("%s %s: %w", kind, id, domain.ErrForbidden)
	}
	return owner, nil
}
