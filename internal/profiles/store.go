// Package profiles persists profile, account and audit records for signed-in identities.
package profiles

import (
	"context"
	"errors"

	"github.com/Its-donkey/storefront/internal/ui/model"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("profiles: not found")
	// ErrConflict indicates a profile already exists for the identity.
	ErrConflict = errors.New("profiles: profile already exists for identity")
	// ErrInvalid indicates a record is missing required fields.
	ErrInvalid = errors.New("profiles: invalid record")
)

// Store is the profile-record store. It offers no cross-record transactions.
type Store interface {
	FindByUID(ctx context.Context, uid string) (model.Profile, error)
	Get(ctx context.Context, id string) (model.Profile, error)
	CreateProfile(ctx context.Context, profile model.Profile) (model.Profile, error)
	DeleteProfile(ctx context.Context, id string) error
	CreateAccount(ctx context.Context, account model.Account) (model.Account, error)
	DeleteAccount(ctx context.Context, id string) error
	AppendAudit(ctx context.Context, entry model.AuditEntry) error
}
