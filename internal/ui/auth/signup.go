package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/Its-donkey/storefront/internal/profiles"
	"github.com/Its-donkey/storefront/internal/saga"
	"github.com/Its-donkey/storefront/internal/ui/model"
)

// AccountStatusActive is written on every new account record.
const AccountStatusActive = "active"

// Signup writes the profile, account and audit records for identity in that order.
// A failure after the profile is written deletes whatever was already created.
func Signup(ctx context.Context, store profiles.Store, identity model.Identity, role model.Role, action string) (model.Profile, error) {
	if strings.TrimSpace(identity.UID) == "" {
		return model.Profile{}, fmt.Errorf("%w: identity uid is required", profiles.ErrInvalid)
	}
	if !role.Authenticated() {
		role = DefaultRole
	}

	var profile model.Profile
	var account model.Account
	flow := saga.New(
		saga.Step{
			Name: "profile",
			Do: func(ctx context.Context) error {
				created, err := store.CreateProfile(ctx, model.Profile{
					UID:         identity.UID,
					Email:       identity.Email,
					DisplayName: identity.DisplayName,
					PrimaryRole: role,
					Roles:       []model.Role{role},
				})
				if err != nil {
					return err
				}
				profile = created
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return store.DeleteProfile(ctx, profile.ID)
			},
		},
		saga.Step{
			Name: "account",
			Do: func(ctx context.Context) error {
				created, err := store.CreateAccount(ctx, model.Account{
					ProfileID: profile.ID,
					UID:       identity.UID,
					Status:    AccountStatusActive,
				})
				if err != nil {
					return err
				}
				account = created
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return store.DeleteAccount(ctx, account.ID)
			},
		},
		saga.Step{
			Name: "audit",
			Do: func(ctx context.Context) error {
				return store.AppendAudit(ctx, model.AuditEntry{
					ProfileID: profile.ID,
					UID:       identity.UID,
					Action:    action,
					Details:   map[string]string{"role": string(role)},
				})
			},
		},
	)
	if err := flow.Run(ctx); err != nil {
		return model.Profile{}, fmt.Errorf("create profile for %s: %w", identity.UID, err)
	}
	return profile, nil
}
