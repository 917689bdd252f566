// Package auth keeps the session identity in line with the identity provider and the
// profile-record store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Its-donkey/storefront/internal/profiles"
	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/internal/ui/state"
	"github.com/Its-donkey/storefront/logging"
)

// RepairFailedMessage is shown when a missing profile cannot be recreated.
const RepairFailedMessage = "We couldn't finish setting up your account, so you have been signed out. Please sign in again."

// Provider is the identity provider subscription surface.
type Provider interface {
	// Subscribe registers fn; the provider calls it at least once per app load.
	Subscribe(fn func(identity *model.Identity)) (unsubscribe func())
	SignOut(ctx context.Context) error
}

// Notifier shows a short user-visible notice.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

// Options configures a Reconciler.
type Options struct {
	Provider Provider
	Store    profiles.Store
	Session  *state.Session
	Notifier Notifier
	Logger   *logging.Logger
	// Timeout bounds the store calls made for one callback. Zero means no bound.
	Timeout time.Duration
}

// Reconciler writes the session identity from provider callbacks.
type Reconciler struct {
	provider Provider
	store    profiles.Store
	session  *state.Session
	notifier Notifier
	logger   *logging.Logger
	timeout  time.Duration

	// mu serialises callback processing.
	mu          sync.Mutex
	ctx         context.Context
	unsubscribe func()

	ready     chan struct{}
	readyOnce sync.Once
}

// NewReconciler builds a reconciler. Provider, Store and Session are required.
func NewReconciler(opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NotifierFunc(func(string) {})
	}
	return &Reconciler{
		provider: opts.Provider,
		store:    opts.Store,
		session:  opts.Session,
		notifier: notifier,
		logger:   logger,
		timeout:  opts.Timeout,
		ready:    make(chan struct{}),
	}
}

// Start attaches the provider listener. ctx bounds every store call made afterwards.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.unsubscribe != nil {
		r.mu.Unlock()
		return
	}
	r.ctx = ctx
	r.mu.Unlock()

	unsubscribe := r.provider.Subscribe(r.handle)

	r.mu.Lock()
	r.unsubscribe = unsubscribe
	r.mu.Unlock()
}

// Stop detaches the provider listener.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Ready is closed once the first provider callback has been processed.
func (r *Reconciler) Ready() <-chan struct{} {
	return r.ready
}

// Wait blocks until Ready is closed or ctx ends.
func (r *Reconciler) Wait(ctx context.Context) error {
	select {
	case <-r.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reconciler) handle(identity *model.Identity) {
	defer r.readyOnce.Do(func() { close(r.ready) })
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error(logging.CategoryAuth, "auth callback panicked", fmt.Errorf("%v", rec), nil)
		}
	}()

	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := r.Reconcile(ctx, identity); err != nil {
		r.logger.Error(logging.CategoryAuth, "auth reconciliation failed", err, nil)
	}
}

// Reconcile processes one provider callback.
func (r *Reconciler) Reconcile(ctx context.Context, identity *model.Identity) error {
	r.mu.Lock()
	err := r.reconcile(ctx, identity)
	r.mu.Unlock()

	var repair *repairError
	if errors.As(err, &repair) {
		// The provider may call back synchronously from SignOut, so it runs unlocked.
		if serr := r.provider.SignOut(context.WithoutCancel(ctx)); serr != nil {
			r.logger.Error(logging.CategoryAuth, "forced sign-out failed", serr, map[string]any{"uid": repair.uid})
		}
		r.notifier.Notify(RepairFailedMessage)
	}
	return err
}

// repairError marks a self-heal failure that requires a forced sign-out.
type repairError struct {
	uid string
	err error
}

func (e *repairError) Error() string { return fmt.Sprintf("repair profile for %s: %v", e.uid, e.err) }

func (e *repairError) Unwrap() error { return e.err }

func (r *Reconciler) reconcile(ctx context.Context, identity *model.Identity) error {
	if identity == nil || identity.UID == "" {
		r.reconcileSignedOut()
		return nil
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	log := r.logger.With(logging.CategoryAuth).WithField("uid", identity.UID)

	profile, err := r.store.FindByUID(ctx, identity.UID)
	switch {
	case err == nil:
	case errors.Is(err, profiles.ErrNotFound):
		profile, err = r.selfHeal(ctx, *identity)
		if err != nil {
			log.Error("profile repair failed; signing out", err)
			r.session.ClearAll()
			return &repairError{uid: identity.UID, err: err}
		}
	default:
		// The store is unreachable; keep the current session rather than guess.
		return fmt.Errorf("look up profile: %w", err)
	}

	role := DeriveRole(profile)
	current := r.session.State()
	if current.Role == role && current.UserID == profile.ID {
		log.Debug("session identity already current")
		return nil
	}
	if err := r.session.SetIdentity(role, profile.ID); err != nil {
		return fmt.Errorf("store session identity: %w", err)
	}
	log.WithFields(map[string]any{
		"role":         string(role),
		"userId":       profile.ID,
		"previousRole": string(current.Role),
	}).Info("session identity updated")
	return nil
}

func (r *Reconciler) reconcileSignedOut() {
	current := r.session.State()
	raw, _ := r.session.Get(state.KeyRole)
	if current.Role.Authenticated() || (raw != "" && raw != string(model.RoleGuest)) {
		r.session.ClearAll()
		r.logger.Info(logging.CategoryAuth, "signed out; cleared stale session", map[string]any{"role": raw})
	}
}

// selfHeal recreates the records of an identity that has no profile and confirms the write.
func (r *Reconciler) selfHeal(ctx context.Context, identity model.Identity) (model.Profile, error) {
	r.logger.Warn(logging.CategoryAuth, "auth.self_heal", map[string]any{
		"uid":    identity.UID,
		"reason": "identity has no profile record",
	})
	created, err := Signup(ctx, r.store, identity, DefaultRole, model.AuditSelfHeal)
	if err != nil {
		return model.Profile{}, err
	}
	confirmed, err := r.store.FindByUID(ctx, identity.UID)
	if err != nil {
		return model.Profile{}, fmt.Errorf("confirm repaired profile: %w", err)
	}
	r.logger.Info(logging.CategoryAuth, "profile repaired", map[string]any{
		"uid":       identity.UID,
		"profileId": created.ID,
	})
	return confirmed, nil
}
