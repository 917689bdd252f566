package state

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/logging"
)

type failingStorage struct {
	*MemoryStorage
	failWrites bool
	failReads  bool
}

var errQuota = errors.New("quota exceeded")

func (f *failingStorage) GetItem(key string) (string, bool, error) {
	if f.failReads {
		return "", false, errQuota
	}
	return f.MemoryStorage.GetItem(key)
}

func (f *failingStorage) SetItem(key, value string) error {
	if f.failWrites {
		return errQuota
	}
	return f.MemoryStorage.SetItem(key, value)
}

func (f *failingStorage) RemoveItem(key string) error {
	if f.failWrites {
		return errQuota
	}
	return f.MemoryStorage.RemoveItem(key)
}

func TestSessionWritesAreImmediatelyVisible(t *testing.T) {
	backend := NewMemoryStorage()
	s := NewSession(backend, nil)

	s.Set("k", "v")
	if v, ok := s.Get("k"); !ok || v != "v" {
		t.Fatalf("expected v, got %q %v", v, ok)
	}
	if snap := backend.Snapshot(); snap["k"] != "v" {
		t.Fatalf("expected durable write, got %+v", snap)
	}
	s.Clear("k")
	if _, ok := s.Get("k"); ok {
		t.Fatalf("expected key cleared")
	}
}

func TestSessionIdentityInvariant(t *testing.T) {
	s := NewSession(NewMemoryStorage(), nil)

	if err := s.SetIdentity(model.RoleMerchant, ""); !errors.Is(err, ErrMissingUserID) {
		t.Fatalf("expected ErrMissingUserID, got %v", err)
	}
	if err := s.SetIdentity("vendor", "u1"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if err := s.SetIdentity(model.RoleMerchant, "U1"); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	if got := s.State(); got.Role != model.RoleMerchant || got.UserID != "U1" {
		t.Fatalf("unexpected state %+v", got)
	}
	if err := s.SetIdentity(model.RoleGuest, "ignored"); err != nil {
		t.Fatalf("set guest: %v", err)
	}
	got := s.State()
	if got.Role != "" || got.UserID != "" || !got.Consistent() {
		t.Fatalf("expected cleared identity, got %+v", got)
	}
}

func TestSessionStateNormalisesInconsistentStorage(t *testing.T) {
	cases := []struct {
		name  string
		items map[string]string
		want  model.SessionState
	}{
		{
			name:  "role without user id",
			items: map[string]string{KeyRole: "admin"},
			want:  model.SessionState{},
		},
		{
			name:  "user id without role",
			items: map[string]string{KeyUserID: "U9"},
			want:  model.SessionState{},
		},
		{
			name:  "unknown role",
			items: map[string]string{KeyRole: "vendor", KeyUserID: "U9", KeyLastActiveRole: "vendor"},
			want:  model.SessionState{},
		},
		{
			name: "complete session",
			items: map[string]string{
				KeyRole: "Consumer", KeyUserID: "U1",
				KeyLastActiveRole: "consumer", KeyLastActiveView: "saved",
			},
			want: model.SessionState{
				Role: model.RoleConsumer, UserID: "U1",
				LastActiveRole: model.RoleConsumer, LastActiveView: "saved",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := NewMemoryStorage()
			for k, v := range tc.items {
				_ = backend.SetItem(k, v)
			}
			got := NewSession(backend, nil).State()
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("state mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSessionFallsBackToMemoryOnWriteFailure(t *testing.T) {
	backend := &failingStorage{MemoryStorage: NewMemoryStorage()}
	_ = backend.MemoryStorage.SetItem(KeyLastActiveView, "home")
	logs := make(chan logging.Entry, 4)
	logger := logging.Discard()
	logger.Subscribe(logs)
	s := NewSession(backend, logger)

	backend.failWrites = true
	s.SetLastActive(model.RoleGuest, "about")

	if !s.Degraded() {
		t.Fatalf("expected degraded session")
	}
	got := s.State()
	if got.LastActiveRole != model.RoleGuest || got.LastActiveView != "about" {
		t.Fatalf("expected in-memory write, got %+v", got)
	}
	if len(logs) == 0 {
		t.Fatalf("expected storage fault to be logged")
	}

	// Later writes keep working even once the backend recovers.
	backend.failWrites = false
	s.Set("k", "v")
	if _, ok, _ := backend.MemoryStorage.GetItem("k"); ok {
		t.Fatalf("expected degraded session to stay in memory")
	}
	if v, ok := s.Get("k"); !ok || v != "v" {
		t.Fatalf("expected memory value, got %q", v)
	}
}

func TestSessionUnreadableStorage(t *testing.T) {
	backend := &failingStorage{MemoryStorage: NewMemoryStorage(), failReads: true}
	s := NewSession(backend, nil)

	if got := s.State(); got != (model.SessionState{}) {
		t.Fatalf("expected empty state, got %+v", got)
	}
	if !s.Degraded() {
		t.Fatalf("expected degraded session")
	}
	if err := s.SetIdentity(model.RoleConsumer, "U2"); err != nil {
		t.Fatalf("set identity: %v", err)
	}
	if got := s.State(); got.Role != model.RoleConsumer {
		t.Fatalf("expected memory-backed role, got %+v", got)
	}
}

func TestNilBackendIsMemoryOnly(t *testing.T) {
	s := NewSession(nil, nil)
	s.Set(KeyLastActiveView, "home")
	if v, _ := s.Get(KeyLastActiveView); v != "home" {
		t.Fatalf("expected home, got %q", v)
	}
	s.ClearAll()
	if _, ok := s.Get(KeyLastActiveView); ok {
		t.Fatalf("expected cleared")
	}
}

func TestLoadedViewsIsMonotonic(t *testing.T) {
	l := NewLoadedViews()
	l.Add("consumer/home")
	l.Add("guest/home")
	l.Add("consumer/home")

	if !l.Has("consumer/home") || l.Has("admin/users") {
		t.Fatalf("unexpected membership: %v", l.Snapshot())
	}
	snap := l.Snapshot()
	snap[0] = "mutated"
	if diff := cmp.Diff([]string{"consumer/home", "guest/home"}, l.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	l.Reset()
	if len(l.Snapshot()) != 0 {
		t.Fatalf("expected reset set")
	}
}
