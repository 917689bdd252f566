package kvsqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/internal/ui/state"
)

func openTemp(t *testing.T, path, namespace string) *Store {
	t.Helper()
	store, err := Open(path, namespace)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("", "x"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestItemsRoundTrip(t *testing.T) {
	store := openTemp(t, filepath.Join(t.TempDir(), "session.db"), "browser")

	if _, ok, err := store.GetItem(state.KeyRole); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := store.SetItem(state.KeyRole, "consumer"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetItem(state.KeyRole, "merchant"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, ok, err := store.GetItem(state.KeyRole)
	if err != nil || !ok || value != "merchant" {
		t.Fatalf("unexpected value %q ok=%v err=%v", value, ok, err)
	}
	if err := store.RemoveItem(state.KeyRole); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := store.GetItem(state.KeyRole); ok {
		t.Fatalf("expected key removed")
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	a := openTemp(t, path, "a")
	b := openTemp(t, path, "b")

	if err := a.SetItem("k", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := b.GetItem("k"); ok {
		t.Fatalf("namespace b should not see a's key")
	}
	keys, err := a.Keys(context.Background())
	if err != nil || len(keys) != 1 || keys[0] != "k" {
		t.Fatalf("unexpected keys %v err=%v", keys, err)
	}
}

func TestSessionSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	first, err := Open(path, "browser")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	session := state.NewSession(first, nil)
	if err := session.SetIdentity(model.RoleConsumer, "U1"); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	session.SetLastActive(model.RoleConsumer, "saved")
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := openTemp(t, path, "browser")
	got := state.NewSession(second, nil).State()
	want := model.SessionState{Role: model.RoleConsumer, UserID: "U1", LastActiveRole: model.RoleConsumer, LastActiveView: "saved"}
	if got != want {
		t.Fatalf("unexpected session %+v", got)
	}
}

func TestClosedStoreDegradesSession(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "session.db"), "browser")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = store.Close()

	if _, _, err := store.GetItem("k"); !errors.Is(err, state.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	session := state.NewSession(store, nil)
	session.Set(state.KeyLastActiveView, "home")
	if !session.Degraded() {
		t.Fatalf("expected degraded session")
	}
	if v, ok := session.Get(state.KeyLastActiveView); !ok || v != "home" {
		t.Fatalf("expected in-memory value, got %q", v)
	}
}
