package profiles

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Its-donkey/storefront/internal/ui/model"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]model.Profile
	accounts map[string]model.Account
	audit    []model.AuditEntry
	now      func() time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]model.Profile),
		accounts: make(map[string]model.Account),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) FindByUID(ctx context.Context, uid string) (model.Profile, error) {
	if err := ctx.Err(); err != nil {
		return model.Profile{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.profiles {
		if p.UID == uid {
			return cloneProfile(p), nil
		}
	}
	return model.Profile{}, ErrNotFound
}

func (m *MemoryStore) Get(ctx context.Context, id string) (model.Profile, error) {
	if err := ctx.Err(); err != nil {
		return model.Profile{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return model.Profile{}, ErrNotFound
	}
	return cloneProfile(p), nil
}

func (m *MemoryStore) CreateProfile(ctx context.Context, profile model.Profile) (model.Profile, error) {
	if err := ctx.Err(); err != nil {
		return model.Profile{}, err
	}
	if strings.TrimSpace(profile.UID) == "" {
		return model.Profile{}, fmt.Errorf("%w: uid is required", ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.UID == profile.UID {
			return model.Profile{}, ErrConflict
		}
	}
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = m.now()
	}
	m.profiles[profile.ID] = cloneProfile(profile)
	return profile, nil
}

func (m *MemoryStore) DeleteProfile(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id]; !ok {
		return ErrNotFound
	}
	delete(m.profiles, id)
	return nil
}

func (m *MemoryStore) CreateAccount(ctx context.Context, account model.Account) (model.Account, error) {
	if err := ctx.Err(); err != nil {
		return model.Account{}, err
	}
	if account.ProfileID == "" {
		return model.Account{}, fmt.Errorf("%w: profile id is required", ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = m.now()
	}
	m.accounts[account.ID] = account
	return account, nil
}

func (m *MemoryStore) DeleteAccount(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(m.accounts, id)
	return nil
}

func (m *MemoryStore) AppendAudit(ctx context.Context, entry model.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.now()
	}
	m.audit = append(m.audit, entry)
	return nil
}

// Profiles returns every stored profile ordered by creation time.
func (m *MemoryStore) Profiles() []model.Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, cloneProfile(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Accounts returns every stored account.
func (m *MemoryStore) Accounts() []model.Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	return out
}

// Audit returns the audit log in append order.
func (m *MemoryStore) Audit() []model.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.AuditEntry(nil), m.audit...)
}

func cloneProfile(p model.Profile) model.Profile {
	p.Roles = append([]model.Role(nil), p.Roles...)
	return p
}
