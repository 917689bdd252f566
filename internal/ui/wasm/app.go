//go:build js && wasm

// Package wasm runs the storefront engine in the browser.
package wasm

import (
	"context"
	"net/http"
	"strings"
	"syscall/js"
	"time"

	"github.com/Its-donkey/storefront/internal/identity"
	"github.com/Its-donkey/storefront/internal/profiles"
	"github.com/Its-donkey/storefront/internal/ui/auth"
	"github.com/Its-donkey/storefront/internal/ui/content"
	"github.com/Its-donkey/storefront/internal/ui/dom"
	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/internal/ui/router"
	"github.com/Its-donkey/storefront/internal/ui/state"
	"github.com/Its-donkey/storefront/internal/ui/views"
	"github.com/Its-donkey/storefront/logging"
)

// ManifestPath is fetched at boot; the embedded manifest is used when it is unavailable.
const ManifestPath = "/views.yaml"

const toastContainerID = "app-toast"

type app struct {
	logger     *logging.Logger
	doc        *Document
	session    *state.Session
	provider   *identity.TokenProvider
	reconciler *auth.Reconciler
	manager    *router.Manager

	// handlers keeps js callbacks alive for the page lifetime.
	handlers []js.Func
}

// RunApp bootstraps the storefront UI and blocks forever.
func RunApp() {
	done := make(chan struct{})
	ctx := context.Background()

	logger := logging.New("storefront-ui", logging.INFO, ConsoleWriter{})
	origin := js.Global().Get("location").Get("origin").String()
	fetcher := content.NewViewFetcher(origin)

	a := &app{logger: logger, doc: NewDocument()}
	cfg := a.loadManifest(ctx, fetcher)

	var storage state.Storage
	if ls := NewLocalStorage(); ls != nil {
		storage = ls
	} else {
		logger.Warn(logging.CategorySession, "localStorage unavailable; session kept in memory", nil)
	}
	a.session = state.NewSession(storage, logger)
	a.provider = identity.NewTokenProvider(identity.NewClaimsReader("", ""), storage, logger)

	store := profiles.NewClient(origin, &http.Client{Timeout: 15 * time.Second}, a.provider.Token)
	a.reconciler = auth.NewReconciler(auth.Options{
		Provider: a.provider,
		Store:    store,
		Session:  a.session,
		Notifier: auth.NotifierFunc(a.toast),
		Logger:   logger,
		Timeout:  15 * time.Second,
	})

	behaviors := content.NewBehaviors()
	behaviors.RegisterFunc("auth-form", a.initAuthForm)
	for _, module := range []string{"profile-form", "merchant-dashboard", "admin-dashboard"} {
		behaviors.RegisterFunc(module, a.initAccountMenu)
	}

	a.manager = router.NewManager(router.Options{
		Config:   cfg,
		Session:  a.session,
		Document: a.doc,
		History:  NewHistory(),
		Loader:   content.NewLoader(a.doc, fetcher, behaviors, cfg.Shared(), logger),
		Auth:     a.reconciler,
		Logger:   logger,
	})

	a.reconciler.Start(ctx)
	a.provider.Start()
	a.bindNavigation(ctx)
	a.manager.Subscribe(ctx, a.markActiveTab)

	go func() {
		if err := a.manager.Start(ctx); err != nil {
			logger.Error(logging.CategoryRouter, "view manager failed to start", err, nil)
		}
	}()
	<-done
}

func (a *app) loadManifest(ctx context.Context, fetcher content.Fetcher) *views.Config {
	raw, err := fetcher.Fetch(ctx, ManifestPath)
	if err == nil {
		cfg, perr := views.Parse([]byte(raw))
		if perr == nil {
			return cfg
		}
		err = perr
	}
	a.logger.Error(logging.CategoryRouter, "view manifest unavailable; using built-in manifest", err, nil)
	return views.Default()
}

// bindNavigation routes clicks on [data-view] links and browser back/forward.
func (a *app) bindNavigation(ctx context.Context) {
	onClick := js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		event := args[0]
		target := event.Get("target")
		if !target.Truthy() || target.Get("closest").Type() != js.TypeFunction {
			return nil
		}
		if link := target.Call("closest", "[data-view]"); link.Truthy() {
			event.Call("preventDefault")
			view := model.ViewID(link.Get("dataset").Get("view").String())
			role := a.manager.CurrentState().Role
			if raw := link.Get("dataset").Get("role"); raw.Type() == js.TypeString {
				if parsed, ok := model.ParseRole(raw.String()); ok {
					role = parsed
				}
			}
			go a.switchView(ctx, role, view)
			return nil
		}
		if link := target.Call("closest", `[data-action="sign-out"]`); link.Truthy() {
			event.Call("preventDefault")
			go a.signOut(ctx)
		}
		return nil
	})
	onPop := js.FuncOf(func(this js.Value, args []js.Value) any {
		var hs *model.HistoryState
		if len(args) > 0 {
			hs = decodeHistoryState(args[0].Get("state"))
		}
		go func() {
			if err := a.manager.PopState(ctx, hs); err != nil {
				a.logger.Error(logging.CategoryRouter, "popstate transition failed", err, nil)
			}
		}()
		return nil
	})
	a.handlers = append(a.handlers, onClick, onPop)
	a.doc.doc.Call("addEventListener", "click", onClick)
	js.Global().Call("addEventListener", "popstate", onPop)
}

func (a *app) switchView(ctx context.Context, role model.Role, view model.ViewID) {
	if err := a.manager.SwitchView(ctx, role, view); err != nil {
		a.logger.Error(logging.CategoryRouter, "view switch failed", err, map[string]any{"role": role, "view": view})
	}
}

func (a *app) signOut(ctx context.Context) {
	if err := a.provider.SignOut(ctx); err != nil {
		a.logger.Warn(logging.CategoryAuth, "sign out incomplete", map[string]any{"error": err.Error()})
	}
	if err := a.manager.SwitchRole(ctx, model.RoleGuest, ""); err != nil {
		a.logger.Error(logging.CategoryRouter, "switch to guest failed", err, nil)
	}
}

// initAuthForm wires a sign-in form that posts an ID token field.
func (a *app) initAuthForm(ctx context.Context, container dom.Element) error {
	el, ok := container.(Element)
	if !ok {
		return nil
	}
	form := el.node.Call("querySelector", "form")
	if !form.Truthy() {
		return nil
	}
	onSubmit := js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) > 0 {
			args[0].Call("preventDefault")
		}
		field := form.Call("querySelector", `[name="token"]`)
		if !field.Truthy() {
			return nil
		}
		token := strings.TrimSpace(field.Get("value").String())
		go a.signIn(context.WithoutCancel(ctx), token)
		return nil
	})
	a.handlers = append(a.handlers, onSubmit)
	form.Call("addEventListener", "submit", onSubmit)
	return nil
}

func (a *app) signIn(ctx context.Context, token string) {
	if _, err := a.provider.SignIn(token); err != nil {
		a.toast("Sign-in failed. Check your token and try again.")
		a.logger.Warn(logging.CategoryAuth, "sign in rejected", map[string]any{"error": err.Error()})
		return
	}
	// The reconciler runs inside SignIn, so the session already carries the derived role.
	st := a.session.State()
	if !st.Role.Authenticated() {
		return
	}
	if err := a.manager.SwitchRole(ctx, st.Role, st.UserID); err != nil {
		a.logger.Error(logging.CategoryRouter, "switch after sign in failed", err, nil)
	}
}

// initAccountMenu fills the signed-in name.
func (a *app) initAccountMenu(ctx context.Context, container dom.Element) error {
	el, ok := container.(Element)
	if !ok {
		return nil
	}
	identity, signedIn := a.provider.Current()
	if !signedIn {
		return nil
	}
	if slot := el.node.Call("querySelector", "[data-slot=account-name]"); slot.Truthy() {
		name := identity.DisplayName
		if name == "" {
			name = identity.Email
		}
		slot.Set("textContent", name)
	}
	return nil
}

func (a *app) markActiveTab(ctx context.Context, route model.RouteState) {
	links := a.doc.doc.Call("querySelectorAll", "[data-view]")
	for i := 0; i < links.Length(); i++ {
		link := links.Index(i)
		active := link.Get("dataset").Get("view").String() == string(route.View)
		link.Get("classList").Call("toggle", "active", active)
	}
}

func (a *app) toast(message string) {
	el, ok := a.doc.Element(toastContainerID)
	if !ok {
		js.Global().Get("console").Call("warn", message)
		return
	}
	el.SetHTML("")
	el.(Element).node.Set("textContent", message)
	el.Show()
}
