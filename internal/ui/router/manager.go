// Package router reconciles the URL, the stored session and the identity provider into one
// authoritative view, and owns every view transition after that.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/Its-donkey/storefront/internal/ui/dom"
	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/internal/ui/state"
	"github.com/Its-donkey/storefront/internal/ui/views"
	"github.com/Its-donkey/storefront/logging"
)

// Status is the manager lifecycle state.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusReconciling   Status = "reconciling"
	StatusActive        Status = "active"
)

// ErrAlreadyStarted is returned by a second Start call.
var ErrAlreadyStarted = errors.New("router: manager already started")

// Subscriber receives every committed route. A SwitchView made from inside the callback is
// queued and runs once every subscriber has heard about the current route.
type Subscriber func(ctx context.Context, route model.RouteState)

// ContentLoader renders a descriptor into its container.
type ContentLoader interface {
	Load(ctx context.Context, container dom.Element, desc model.ViewDescriptor) error
}

// Readiness is satisfied by the auth reconciler.
type Readiness interface {
	Wait(ctx context.Context) error
}

// Options wires a Manager.
type Options struct {
	Config   *views.Config
	Session  *state.Session
	Document dom.Document
	History  dom.History
	Loader   ContentLoader
	// Auth is awaited before the session is read. Nil means the session is already settled.
	Auth   Readiness
	Loaded *state.LoadedViews
	Logger *logging.Logger
}

type request struct {
	role   model.Role
	view   model.ViewID
	params map[string]string
	// history is how the committed route is recorded.
	history historyMode
}

type historyMode int

const (
	historyPush historyMode = iota
	historyReplace
	historyNone
)

type subscription struct {
	fn      Subscriber
	removed bool
}

// op is one unit of work waiting for the flight slot: a switch or a subscriber attach.
type op struct {
	req *request
	sub *subscription
}

// Manager owns the active view.
type Manager struct {
	cfg     *views.Config
	session *state.Session
	doc     dom.Document
	history dom.History
	loader  ContentLoader
	auth    Readiness
	loaded  *state.LoadedViews
	logger  *logging.Logger

	// flight is held by whoever is running a transition. Work arriving while it is held
	// goes to pending and the holder runs it before letting go.
	flight *semaphore.Weighted
	active chan struct{}

	mu        sync.Mutex
	status    Status
	degraded  bool
	current   model.RouteState
	container dom.Element
	subs      []*subscription
	pending   []op
	// starting is set while Start holds the slot for the initial transition.
	starting bool
}

// NewManager builds a manager in the uninitialized state.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	loaded := opts.Loaded
	if loaded == nil {
		loaded = state.NewLoadedViews()
	}
	return &Manager{
		cfg:     opts.Config,
		session: opts.Session,
		doc:     opts.Document,
		history: opts.History,
		loader:  opts.Loader,
		auth:    opts.Auth,
		loaded:  loaded,
		logger:  logger,
		flight:  semaphore.NewWeighted(1),
		active:  make(chan struct{}),
		status:  StatusUninitialized,
	}
}

// Start runs the one-time reconciliation and activates the manager.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status != StatusUninitialized {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.status = StatusReconciling
	m.mu.Unlock()

	log := m.logger.With(logging.CategoryRouter)
	if m.auth != nil {
		if err := m.auth.Wait(ctx); err != nil {
			m.setStatus(StatusUninitialized)
			return fmt.Errorf("wait for identity: %w", err)
		}
	}

	res := Resolve(Inputs{Hash: m.history.Hash(), Session: m.session.State()}, m.cfg)
	log.WithFields(map[string]any{
		"rule": string(res.Rule),
		"role": string(res.Role),
		"view": string(res.View),
	}).Info("initial route resolved")

	if err := m.flight.Acquire(ctx, 1); err != nil {
		m.setStatus(StatusUninitialized)
		return err
	}
	m.mu.Lock()
	m.starting = true
	m.mu.Unlock()
	m.transition(ctx, request{role: res.Role, view: res.View, params: res.Params, history: historyReplace})

	m.mu.Lock()
	m.status = StatusActive
	m.starting = false
	close(m.active)
	m.mu.Unlock()
	log.Info("view manager active")

	m.leave(ctx)
	return nil
}

// SwitchView shows (role, view). Unknown pairs fall back to the guest default.
//
// Before Start it waits for the manager to become active. While another transition is in
// flight, including one whose subscriber or view behavior is making this call, the switch
// is queued and SwitchView returns at once; the running transition performs it before
// admitting anything else.
func (m *Manager) SwitchView(ctx context.Context, role model.Role, view model.ViewID) error {
	return m.enqueue(ctx, request{role: role, view: view, history: historyPush})
}

// SwitchViewWithParams is SwitchView with route parameters recorded in the hash.
func (m *Manager) SwitchViewWithParams(ctx context.Context, role model.Role, view model.ViewID, params map[string]string) error {
	return m.enqueue(ctx, request{role: role, view: view, params: copyParams(params), history: historyPush})
}

// SwitchRole stores the identity for role and shows the role's default view.
// Switching to guest clears the whole session.
func (m *Manager) SwitchRole(ctx context.Context, role model.Role, userID string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", state.ErrInvalidRole, role)
	}
	if role == model.RoleGuest {
		m.session.ClearAll()
	} else if err := m.session.SetIdentity(role, userID); err != nil {
		return err
	}
	view, ok := m.cfg.DefaultView(role)
	if !ok {
		guest := m.cfg.GuestDefault()
		role, view = guest.Role, guest.View
	}
	m.logger.Info(logging.CategoryRouter, "role switched", map[string]any{"role": string(role)})
	return m.SwitchView(ctx, role, view)
}

// PopState replays a history entry. Absent or unusable state leaves the view unchanged.
func (m *Manager) PopState(ctx context.Context, hs *model.HistoryState) error {
	if hs == nil {
		return nil
	}
	role, ok := model.ParseRole(hs.Role)
	if !ok || hs.ViewID == "" {
		m.logger.Debug(logging.CategoryRouter, "ignoring malformed history state", map[string]any{
			"role": hs.Role,
			"view": hs.ViewID,
		})
		return nil
	}
	view := model.ViewID(hs.ViewID)
	if _, known := m.cfg.Lookup(role, view); !known {
		m.logger.Debug(logging.CategoryRouter, "ignoring unknown history state", map[string]any{
			"role": hs.Role,
			"view": hs.ViewID,
		})
		return nil
	}
	var params map[string]string
	if loc, ok := ParseHash(m.history.Hash()); ok && loc.Role == role && loc.View == view {
		params = loc.Params
	}
	return m.enqueue(ctx, request{role: role, view: view, params: params, history: historyNone})
}

// Subscribe registers fn. When a route is already committed fn is called with it before
// Subscribe returns. While a transition is in flight registration waits for it, so fn
// first hears the route that transition commits and never an older one.
func (m *Manager) Subscribe(ctx context.Context, fn Subscriber) (unsubscribe func()) {
	sub := &subscription{fn: fn}
	unsubscribe = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		sub.removed = true
		for i, s := range m.subs {
			if s == sub {
				m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
				return
			}
		}
	}

	m.mu.Lock()
	if !m.flight.TryAcquire(1) {
		m.pending = append(m.pending, op{sub: sub})
		m.mu.Unlock()
		return unsubscribe
	}
	m.mu.Unlock()
	m.attach(ctx, sub)
	m.leave(ctx)
	return unsubscribe
}

// CurrentState returns the committed route.
func (m *Manager) CurrentState() model.RouteState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRoute(m.current)
}

// Status returns the lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Degraded reports whether a configuration or storage fault forced a fallback.
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	degraded := m.degraded
	m.mu.Unlock()
	return degraded || m.session.Degraded()
}

// LoadedViews returns the descriptor keys rendered this session.
func (m *Manager) LoadedViews() []string {
	return m.loaded.Snapshot()
}

// enqueue runs req now when the slot is free, or hands it to the current holder.
func (m *Manager) enqueue(ctx context.Context, req request) error {
	for {
		m.mu.Lock()
		if m.status == StatusActive || m.starting {
			if !m.flight.TryAcquire(1) {
				m.pending = append(m.pending, op{req: &req})
				m.mu.Unlock()
				return nil
			}
			m.mu.Unlock()
			m.transition(ctx, req)
			m.leave(ctx)
			return nil
		}
		m.mu.Unlock()

		select {
		case <-m.active:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// leave runs queued work in arrival order and then releases the flight slot. The release
// happens under mu, so a concurrent enqueue either queues before it or acquires after it.
// The caller holds the slot.
func (m *Manager) leave(ctx context.Context) {
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.flight.Release(1)
			m.mu.Unlock()
			return
		}
		next := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()

		if next.sub != nil {
			m.attach(ctx, next.sub)
		} else {
			m.transition(ctx, *next.req)
		}
	}
}

// attach adds sub and replays the committed route to it. The caller holds the flight slot.
func (m *Manager) attach(ctx context.Context, sub *subscription) {
	m.mu.Lock()
	if sub.removed {
		m.mu.Unlock()
		return
	}
	m.subs = append(m.subs, sub)
	current := m.current
	m.mu.Unlock()

	if !current.Zero() {
		m.call(ctx, sub.fn, current)
	}
}

// transition performs one switch. The caller holds the flight slot.
func (m *Manager) transition(ctx context.Context, req request) {
	log := m.logger.With(logging.CategoryRouter)

	desc, container, ok := m.target(req)
	if !ok {
		return
	}
	if desc.Role != req.role || desc.View != req.view {
		req.params = nil
	}

	m.mu.Lock()
	current := m.current
	previous := m.container
	m.mu.Unlock()

	if !current.Zero() && current.Role == desc.Role && current.View == desc.View {
		container.Show()
		if desc.Title != "" {
			m.doc.SetTitle(desc.Title)
		}
		route := model.RouteState{Role: desc.Role, View: desc.View, Params: req.params, Config: desc}
		if req.params == nil {
			route.Params = current.Params
		}
		subs := m.commit(route, container)
		log.WithField("view", desc.Key()).Debug("view re-entered")
		m.notify(ctx, subs, route)
		return
	}

	if previous != nil && previous.ID() != container.ID() {
		previous.Hide()
	}
	if !m.loaded.Has(desc.Key()) {
		// A load runs to completion even if the caller stops waiting.
		if err := m.loader.Load(context.WithoutCancel(ctx), container, desc); err != nil {
			log.WithFields(map[string]any{"view": desc.Key(), "error": err.Error()}).Warn("view content unavailable")
		} else {
			m.loaded.Add(desc.Key())
		}
	}
	container.Show()
	if desc.Title != "" {
		m.doc.SetTitle(desc.Title)
	}

	route := model.RouteState{Role: desc.Role, View: desc.View, Params: req.params, Config: desc}
	m.session.SetLastActive(desc.Role, desc.View)
	hs := model.HistoryState{Role: string(desc.Role), ViewID: string(desc.View)}
	switch req.history {
	case historyPush:
		m.history.PushState(hs, FormatHash(desc.Role, desc.View, req.params))
	case historyReplace:
		m.history.ReplaceState(hs, FormatHash(desc.Role, desc.View, req.params))
	}
	subs := m.commit(route, container)
	log.WithFields(map[string]any{
		"view": desc.Key(),
		"from": string(current.Role) + "/" + string(current.View),
	}).Info("view switched")
	m.notify(ctx, subs, route)
}

// target resolves the descriptor and container for req, falling back to the guest default.
func (m *Manager) target(req request) (model.ViewDescriptor, dom.Element, bool) {
	log := m.logger.With(logging.CategoryRouter).WithFields(map[string]any{
		"role": string(req.role),
		"view": string(req.view),
	})
	desc, ok := m.cfg.Lookup(req.role, req.view)
	if !ok {
		log.Warn("unknown view; showing guest default")
		m.markDegraded()
		desc = m.cfg.GuestDefault()
	}
	if container, ok := m.doc.Element(desc.ContainerID); ok {
		return desc, container, true
	}

	log.WithField("container", desc.ContainerID).Warn("view container missing; showing guest default")
	m.markDegraded()
	guest := m.cfg.GuestDefault()
	if container, ok := m.doc.Element(guest.ContainerID); ok && guest.Key() != desc.Key() {
		return guest, container, true
	}
	m.logger.Error(logging.CategoryRouter, "guest default container missing; view left unchanged", nil, map[string]any{
		"container": guest.ContainerID,
	})
	return model.ViewDescriptor{}, nil, false
}

// commit records route and snapshots the subscribers that must hear about it.
func (m *Manager) commit(route model.RouteState, container dom.Element) []Subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = cloneRoute(route)
	m.container = container
	subs := make([]Subscriber, len(m.subs))
	for i, sub := range m.subs {
		subs[i] = sub.fn
	}
	return subs
}

func (m *Manager) notify(ctx context.Context, subs []Subscriber, route model.RouteState) {
	for _, fn := range subs {
		m.call(ctx, fn, route)
	}
}

func (m *Manager) call(ctx context.Context, fn Subscriber, route model.RouteState) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error(logging.CategoryRouter, "subscriber panicked", fmt.Errorf("%v", rec), map[string]any{
				"view": route.Config.Key(),
			})
		}
	}()
	fn(ctx, cloneRoute(route))
}

func (m *Manager) setStatus(status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

func (m *Manager) markDegraded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degraded = true
}

func cloneRoute(route model.RouteState) model.RouteState {
	route.Params = copyParams(route.Params)
	return route
}

func copyParams(params map[string]string) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
