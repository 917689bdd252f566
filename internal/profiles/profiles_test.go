package profiles

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Its-donkey/storefront/internal/ui/model"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	created, err := store.CreateProfile(ctx, model.Profile{UID: "uid-1", PrimaryRole: model.RoleConsumer})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.False(t, created.CreatedAt.IsZero())

	_, err = store.CreateProfile(ctx, model.Profile{UID: "uid-1"})
	require.ErrorIs(t, err, ErrConflict)

	found, err := store.FindByUID(ctx, "uid-1")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "uid-1", got.UID)

	account, err := store.CreateAccount(ctx, model.Account{ProfileID: created.ID, UID: "uid-1"})
	require.NoError(t, err)
	require.NoError(t, store.AppendAudit(ctx, model.AuditEntry{ProfileID: created.ID, Action: model.AuditSignup}))
	require.Len(t, store.Audit(), 1)

	require.NoError(t, store.DeleteAccount(ctx, account.ID))
	require.NoError(t, store.DeleteProfile(ctx, created.ID))
	_, err = store.FindByUID(ctx, "uid-1")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.DeleteProfile(ctx, created.ID), ErrNotFound)
}

func TestMemoryStoreValidation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.CreateProfile(ctx, model.Profile{})
	require.ErrorIs(t, err, ErrInvalid)
	_, err = store.CreateAccount(ctx, model.Account{UID: "x"})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	created, err := store.CreateProfile(ctx, model.Profile{UID: "u", Roles: []model.Role{model.RoleConsumer}})
	require.NoError(t, err)

	found, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	found.Roles[0] = model.RoleAdmin

	again, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, model.RoleConsumer, again.Roles[0])
}

func TestClientRoundTripsThroughHandler(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	srv := httptest.NewServer(NewHandler(store, nil, nil))
	defer srv.Close()
	client := NewClient(srv.URL, srv.Client(), nil)

	_, err := client.FindByUID(ctx, "uid-9")
	require.ErrorIs(t, err, ErrNotFound)

	created, err := client.CreateProfile(ctx, model.Profile{UID: "uid-9", Roles: []model.Role{model.RoleMerchant}})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	_, err = client.CreateProfile(ctx, model.Profile{UID: "uid-9"})
	require.ErrorIs(t, err, ErrConflict)

	found, err := client.FindByUID(ctx, "uid-9")
	require.NoError(t, err)
	require.Equal(t, []model.Role{model.RoleMerchant}, found.Roles)

	account, err := client.CreateAccount(ctx, model.Account{ProfileID: created.ID, UID: "uid-9", Status: "active"})
	require.NoError(t, err)
	require.NoError(t, client.AppendAudit(ctx, model.AuditEntry{ProfileID: created.ID, UID: "uid-9", Action: model.AuditSignup}))
	require.NoError(t, client.DeleteAccount(ctx, account.ID))
	require.NoError(t, client.DeleteProfile(ctx, created.ID))

	_, err = client.Get(ctx, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, store.Profiles())
	require.Len(t, store.Audit(), 1)
}

func TestHandlerEnforcesCallerIdentity(t *testing.T) {
	auth := func(r *http.Request) (model.Identity, error) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			return model.Identity{}, errors.New("missing token")
		}
		return model.Identity{UID: token}, nil
	}
	srv := httptest.NewServer(NewHandler(NewMemoryStore(), auth, nil))
	defer srv.Close()
	ctx := context.Background()

	anonymous := NewClient(srv.URL, srv.Client(), nil)
	_, err := anonymous.CreateProfile(ctx, model.Profile{UID: "alice"})
	require.ErrorContains(t, err, "401")

	bob := NewClient(srv.URL, srv.Client(), func() string { return "bob" })
	_, err = bob.CreateProfile(ctx, model.Profile{UID: "alice"})
	require.ErrorContains(t, err, "403")

	alice := NewClient(srv.URL, srv.Client(), func() string { return "alice" })
	created, err := alice.CreateProfile(ctx, model.Profile{UID: "alice"})
	require.NoError(t, err)

	_, err = bob.Get(ctx, created.ID)
	require.ErrorContains(t, err, "403")
	require.ErrorContains(t, bob.DeleteProfile(ctx, created.ID), "403")
	require.NoError(t, alice.DeleteProfile(ctx, created.ID))
}
