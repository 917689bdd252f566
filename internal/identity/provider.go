package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/internal/ui/state"
	"github.com/Its-donkey/storefront/logging"
)

// TokenStorageKey is the storage key holding the current ID token.
const TokenStorageKey = "storefront-id-token"

// Listener receives the current identity, or nil when nobody is signed in.
type Listener = func(identity *model.Identity)

// TokenProvider reports the identity named by a persisted ID token.
//
// Listeners registered after Start receive the current identity immediately, so every
// subscriber sees at least one callback per app load.
type TokenProvider struct {
	verifier *Verifier
	storage  state.Storage
	logger   *logging.Logger

	mu        sync.Mutex
	started   bool
	token     string
	current   *model.Identity
	listeners map[int]Listener
	nextID    int
}

// NewTokenProvider reads and writes the token through storage.
func NewTokenProvider(verifier *Verifier, storage state.Storage, logger *logging.Logger) *TokenProvider {
	if storage == nil {
		storage = state.NewMemoryStorage()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &TokenProvider{
		verifier:  verifier,
		storage:   storage,
		logger:    logger,
		listeners: make(map[int]Listener),
	}
}

// Start loads the persisted token and delivers the first callback.
func (p *TokenProvider) Start() {
	token, ok, err := p.storage.GetItem(TokenStorageKey)
	if err != nil {
		p.logger.Warn(logging.CategoryAuth, "token storage unreadable", map[string]any{"error": err.Error()})
	}

	p.mu.Lock()
	p.started = true
	p.current = nil
	p.token = ""
	if ok && token != "" {
		identity, verr := p.verifier.Verify(token)
		if verr != nil {
			p.logger.Warn(logging.CategoryAuth, "discarding stored token", map[string]any{"error": verr.Error()})
			_ = p.storage.RemoveItem(TokenStorageKey)
		} else {
			p.token = token
			p.current = &identity
		}
	}
	p.mu.Unlock()
	p.broadcast()
}

// Subscribe registers fn and returns a function that removes it.
func (p *TokenProvider) Subscribe(fn Listener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	started := p.started
	current := copyIdentity(p.current)
	p.mu.Unlock()

	if started {
		fn(current)
	}
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// SignIn verifies token, persists it and notifies listeners.
func (p *TokenProvider) SignIn(token string) (model.Identity, error) {
	identity, err := p.verifier.Verify(token)
	if err != nil {
		return model.Identity{}, err
	}
	if err := p.storage.SetItem(TokenStorageKey, token); err != nil {
		p.logger.Warn(logging.CategoryAuth, "token not persisted", map[string]any{"error": err.Error()})
	}
	p.mu.Lock()
	p.started = true
	p.token = token
	p.current = &identity
	p.mu.Unlock()
	p.broadcast()
	return identity, nil
}

// SignOut forgets the token and notifies listeners.
func (p *TokenProvider) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var storeErr error
	if err := p.storage.RemoveItem(TokenStorageKey); err != nil {
		storeErr = fmt.Errorf("remove token: %w", err)
	}
	p.mu.Lock()
	p.token = ""
	p.current = nil
	p.mu.Unlock()
	p.broadcast()
	return storeErr
}

// Token returns the current raw token.
func (p *TokenProvider) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

// Current returns the signed-in identity, if any.
func (p *TokenProvider) Current() (model.Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return model.Identity{}, false
	}
	return *p.current, true
}

func (p *TokenProvider) broadcast() {
	p.mu.Lock()
	current := p.current
	listeners := make([]Listener, 0, len(p.listeners))
	for i := 0; i < p.nextID; i++ {
		if fn, ok := p.listeners[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(copyIdentity(current))
	}
}

func copyIdentity(identity *model.Identity) *model.Identity {
	if identity == nil {
		return nil
	}
	cp := *identity
	return &cp
}
