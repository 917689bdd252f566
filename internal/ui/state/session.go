package state

import (
	"errors"
	"strings"
	"sync"

	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/logging"
)

// Persisted session keys.
const (
	KeyRole           = "currentUserType"
	KeyUserID         = "currentUserId"
	KeyLastActiveRole = "lastActiveRole"
	KeyLastActiveView = "lastActiveView"
)

// SessionKeys lists every key the session owns.
var SessionKeys = []string{KeyRole, KeyUserID, KeyLastActiveRole, KeyLastActiveView}

var (
	// ErrMissingUserID rejects an authenticated role without a user id.
	ErrMissingUserID = errors.New("state: authenticated role requires a user id")
	// ErrInvalidRole rejects roles outside the known set.
	ErrInvalidRole = errors.New("state: invalid role")
)

// Session is the key/value session store backed by durable storage.
//
// The first storage fault switches the store to process memory for the rest of its life;
// writes never return storage errors to the caller.
type Session struct {
	mu       sync.Mutex
	backend  Storage
	memory   *MemoryStorage
	degraded bool
	logger   *logging.Logger
}

// NewSession wraps backend. A nil backend keeps the session in memory only.
func NewSession(backend Storage, logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Session{backend: backend, memory: NewMemoryStorage(), logger: logger}
	if backend == nil {
		s.degraded = true
	}
	return s
}

// Degraded reports whether the session fell back to memory.
func (s *Session) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(key)
}

// Set stores value under key. An empty value removes the key.
func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(key, value)
}

// Clear removes keys.
func (s *Session) Clear(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.remove(key)
	}
}

// ClearAll removes every session key.
func (s *Session) ClearAll() {
	s.Clear(SessionKeys...)
}

// State reads the typed session. Unknown roles and role/userId mismatches read as no session.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st model.SessionState
	if raw, ok := s.get(KeyRole); ok {
		if role, valid := model.ParseRole(raw); valid {
			st.Role = role
		} else {
			s.logger.Warn(logging.CategorySession, "ignoring unknown stored role", map[string]any{"role": raw})
		}
	}
	if uid, ok := s.get(KeyUserID); ok {
		st.UserID = strings.TrimSpace(uid)
	}
	if !st.Consistent() {
		s.logger.Warn(logging.CategorySession, "stored identity is inconsistent", map[string]any{
			"role":   string(st.Role),
			"userId": st.UserID,
		})
		if st.Role.Authenticated() {
			st.Role = ""
		}
		st.UserID = ""
	}
	if raw, ok := s.get(KeyLastActiveRole); ok {
		if role, valid := model.ParseRole(raw); valid {
			st.LastActiveRole = role
		}
	}
	if raw, ok := s.get(KeyLastActiveView); ok {
		st.LastActiveView = model.ViewID(strings.TrimSpace(raw))
	}
	return st
}

// SetIdentity stores the role and user id together.
// Guest clears the user id; any other role requires one.
func (s *Session) SetIdentity(role model.Role, userID string) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	userID = strings.TrimSpace(userID)
	if role.Authenticated() && userID == "" {
		return ErrMissingUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if role == model.RoleGuest {
		s.remove(KeyUserID)
		s.remove(KeyRole)
		return nil
	}
	s.set(KeyUserID, userID)
	s.set(KeyRole, string(role))
	return nil
}

// ClearIdentity removes the role and user id.
func (s *Session) ClearIdentity() {
	s.Clear(KeyRole, KeyUserID)
}

// SetLastActive records the last view the user looked at.
func (s *Session) SetLastActive(role model.Role, view model.ViewID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(KeyLastActiveRole, string(role))
	s.set(KeyLastActiveView, string(view))
}

func (s *Session) get(key string) (string, bool) {
	if !s.degraded {
		v, ok, err := s.backend.GetItem(key)
		if err == nil {
			return v, ok && v != ""
		}
		s.degrade("read", key, err)
	}
	v, ok, _ := s.memory.GetItem(key)
	return v, ok && v != ""
}

func (s *Session) set(key, value string) {
	if value == "" {
		s.remove(key)
		return
	}
	if !s.degraded {
		err := s.backend.SetItem(key, value)
		if err == nil {
			return
		}
		s.degrade("write", key, err)
	}
	_ = s.memory.SetItem(key, value)
}

func (s *Session) remove(key string) {
	if !s.degraded {
		err := s.backend.RemoveItem(key)
		if err == nil {
			return
		}
		s.degrade("remove", key, err)
	}
	_ = s.memory.RemoveItem(key)
}

// degrade copies whatever the backend still returns into memory and stops using it.
func (s *Session) degrade(op, key string, err error) {
	s.degraded = true
	for _, k := range SessionKeys {
		if v, ok, rerr := s.backend.GetItem(k); rerr == nil && ok {
			_ = s.memory.SetItem(k, v)
		}
	}
	s.logger.Error(logging.CategorySession, "durable storage failed; session kept in memory", err, map[string]any{
		"op":  op,
		"key": key,
	})
}
