package identity

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/internal/ui/state"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(testKey, "storefront", "web")
	require.NoError(t, err)
	return v
}

func mint(t *testing.T, uid string) string {
	t.Helper()
	token, err := Mint(testKey, model.Identity{UID: uid, Email: uid + "@example.com"}, MintOptions{Issuer: "storefront", Audience: "web"})
	require.NoError(t, err)
	return token
}

func TestVerifierRoundTrip(t *testing.T) {
	v := newVerifier(t)
	identity, err := v.Verify(mint(t, "u-1"))
	require.NoError(t, err)
	require.Equal(t, model.Identity{UID: "u-1", Email: "u-1@example.com"}, identity)
}

func TestVerifierRejects(t *testing.T) {
	v := newVerifier(t)

	_, err := v.Verify("")
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = v.Verify("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	other, err := Mint([]byte("ffffffffffffffffffffffffffffffff"), model.Identity{UID: "u"}, MintOptions{Issuer: "storefront", Audience: "web"})
	require.NoError(t, err)
	_, err = v.Verify(other)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired, err := Mint(testKey, model.Identity{UID: "u"}, MintOptions{
		Issuer: "storefront", Audience: "web", TTL: time.Minute, Now: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	_, err = v.Verify(expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongAudience, err := Mint(testKey, model.Identity{UID: "u"}, MintOptions{Issuer: "storefront", Audience: "admin"})
	require.NoError(t, err)
	_, err = v.Verify(wrongAudience)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewVerifierRequiresLongKey(t *testing.T) {
	_, err := NewVerifier([]byte("short"), "", "")
	require.Error(t, err)
}

func TestAuthenticateReadsBearerHeader(t *testing.T) {
	v := newVerifier(t)
	req := httptest.NewRequest("GET", "/api/profiles", nil)
	_, err := v.Authenticate(req)
	require.ErrorIs(t, err, ErrMissingToken)

	req.Header.Set("Authorization", "Bearer "+mint(t, "u-2"))
	identity, err := v.Authenticate(req)
	require.NoError(t, err)
	require.Equal(t, "u-2", identity.UID)
}

func TestProviderDeliversInitialCallbackToLateSubscribers(t *testing.T) {
	storage := state.NewMemoryStorage()
	require.NoError(t, storage.SetItem(TokenStorageKey, mint(t, "u-3")))
	p := NewTokenProvider(newVerifier(t), storage, nil)

	var early []*model.Identity
	p.Subscribe(func(id *model.Identity) { early = append(early, id) })
	require.Empty(t, early)

	p.Start()
	require.Len(t, early, 1)
	require.Equal(t, "u-3", early[0].UID)

	var late []*model.Identity
	unsubscribe := p.Subscribe(func(id *model.Identity) { late = append(late, id) })
	require.Len(t, late, 1)
	require.Equal(t, "u-3", late[0].UID)

	unsubscribe()
	require.NoError(t, p.SignOut(context.Background()))
	require.Len(t, late, 1)
	require.Len(t, early, 2)
	require.Nil(t, early[1])

	_, ok, err := storage.GetItem(TokenStorageKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProviderDiscardsInvalidStoredToken(t *testing.T) {
	storage := state.NewMemoryStorage()
	require.NoError(t, storage.SetItem(TokenStorageKey, "garbage"))
	p := NewTokenProvider(newVerifier(t), storage, nil)

	var got []*model.Identity
	p.Subscribe(func(id *model.Identity) { got = append(got, id) })
	p.Start()

	require.Equal(t, []*model.Identity{nil}, got)
	_, ok, _ := storage.GetItem(TokenStorageKey)
	require.False(t, ok)
}

func TestProviderSignIn(t *testing.T) {
	p := NewTokenProvider(newVerifier(t), nil, nil)
	p.Start()

	_, err := p.SignIn("bad")
	require.ErrorIs(t, err, ErrInvalidToken)

	token := mint(t, "u-4")
	identity, err := p.SignIn(token)
	require.NoError(t, err)
	require.Equal(t, "u-4", identity.UID)
	require.Equal(t, token, p.Token())

	current, ok := p.Current()
	require.True(t, ok)
	require.Equal(t, "u-4", current.UID)
}

func TestClaimsReaderSkipsSignatureButChecksExpiry(t *testing.T) {
	reader := NewClaimsReader("storefront", "web")

	other, err := Mint([]byte("ffffffffffffffffffffffffffffffff"), model.Identity{UID: "u-2"}, MintOptions{Issuer: "storefront", Audience: "web"})
	require.NoError(t, err)
	identity, err := reader.Verify(other)
	require.NoError(t, err)
	require.Equal(t, "u-2", identity.UID)

	expired, err := Mint(testKey, model.Identity{UID: "u-3"}, MintOptions{Issuer: "storefront", Audience: "web", Now: time.Now().Add(-2 * time.Hour)})
	require.NoError(t, err)
	_, err = reader.Verify(expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongAudience, err := Mint(testKey, model.Identity{UID: "u-4"}, MintOptions{Issuer: "storefront", Audience: "admin"})
	require.NoError(t, err)
	_, err = reader.Verify(wrongAudience)
	require.ErrorIs(t, err, ErrInvalidToken)
}
