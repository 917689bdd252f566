//go:build !js && !wasm

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Its-donkey/storefront/internal/config"
	"github.com/Its-donkey/storefront/internal/identity"
	"github.com/Its-donkey/storefront/internal/profiles"
	"github.com/Its-donkey/storefront/internal/storage/kvsqlite"
	"github.com/Its-donkey/storefront/internal/ui/auth"
	"github.com/Its-donkey/storefront/internal/ui/content"
	"github.com/Its-donkey/storefront/internal/ui/dom"
	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/internal/ui/router"
	"github.com/Its-donkey/storefront/internal/ui/state"
	"github.com/Its-donkey/storefront/logging"
)

var bootFlags struct {
	statePath string
	namespace string
	hash      string
	signIn    string
	signOut   bool
	assets    string
	baseURL   string
	api       string
	visits    []string
	timeout   time.Duration
}

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Run one headless page load against a persistent session",
	Long: `Boots the view engine with a SQLite-backed session, the ID token provider and a
profile store, then prints the committed route, the session and the history.
Running boot repeatedly with the same --state behaves like reloading the page.`,
	Args: cobra.NoArgs,
	RunE: runBoot,
}

func init() {
	f := bootCmd.Flags()
	f.StringVar(&bootFlags.statePath, "state", "", "SQLite session database (defaults to STOREFRONT_STATE_PATH)")
	f.StringVar(&bootFlags.namespace, "namespace", "", "session namespace within the database")
	f.StringVar(&bootFlags.hash, "hash", "", "location hash of the page load")
	f.StringVar(&bootFlags.signIn, "sign-in", "", "ID token to sign in with before loading")
	f.BoolVar(&bootFlags.signOut, "sign-out", false, "sign out before loading")
	f.StringVar(&bootFlags.assets, "assets", "", "read view bundles from this directory")
	f.StringVar(&bootFlags.baseURL, "base", "", "fetch view bundles from this base URL")
	f.StringVar(&bootFlags.api, "api", "", "profile API base URL (in-memory store when empty)")
	f.StringArrayVar(&bootFlags.visits, "visit", nil, "role/view to switch to after boot (repeatable)")
	f.DurationVar(&bootFlags.timeout, "timeout", 30*time.Second, "overall time limit")
}

type bootReport struct {
	Route       model.RouteState   `json:"route"`
	Session     model.SessionState `json:"session"`
	Degraded    bool               `json:"degraded"`
	Title       string             `json:"title"`
	Visible     []string           `json:"visible"`
	LoadedViews []string           `json:"loadedViews"`
	History     []string           `json:"history"`
}

func runBoot(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), bootFlags.timeout)
	defer cancel()

	headless, err := config.LoadHeadless()
	if err != nil {
		return err
	}
	if bootFlags.statePath != "" {
		headless.StatePath = bootFlags.statePath
	}
	if bootFlags.namespace != "" {
		headless.Namespace = bootFlags.namespace
	}
	cfg, err := loadViews()
	if err != nil {
		return err
	}
	logger := logging.New("viewctl", logging.ParseLevel(logLevel), logging.NewConsoleWriter(cmd.ErrOrStderr()))

	kv, err := kvsqlite.Open(headless.StatePath, headless.Namespace)
	if err != nil {
		return err
	}
	defer kv.Close()

	session := state.NewSession(kv, logger)
	verifier, err := newVerifier(headless.Identity)
	if err != nil {
		return err
	}
	provider := identity.NewTokenProvider(verifier, kv, logger)

	var store profiles.Store = profiles.NewMemoryStore()
	if bootFlags.api != "" {
		store = profiles.NewClient(bootFlags.api, &http.Client{Timeout: 10 * time.Second}, provider.Token)
	}

	reconciler := auth.NewReconciler(auth.Options{
		Provider: provider,
		Store:    store,
		Session:  session,
		Notifier: auth.NotifierFunc(func(msg string) { fmt.Fprintln(cmd.ErrOrStderr(), "notice:", msg) }),
		Logger:   logger,
		Timeout:  10 * time.Second,
	})
	reconciler.Start(ctx)
	defer reconciler.Stop()

	provider.Start()
	switch {
	case bootFlags.signOut:
		if err := provider.SignOut(ctx); err != nil {
			return err
		}
	case bootFlags.signIn != "":
		if _, err := provider.SignIn(bootFlags.signIn); err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
	}

	doc := dom.NewMemoryDocument(containerIDs(cfg.Descriptors())...)
	history := dom.NewMemoryHistory(bootFlags.hash)
	manager := router.NewManager(router.Options{
		Config:   cfg,
		Session:  session,
		Document: doc,
		History:  history,
		Loader:   content.NewLoader(doc, bundleFetcher(), nil, cfg.Shared(), logger),
		Auth:     reconciler,
		Logger:   logger,
	})
	if err := manager.Start(ctx); err != nil {
		return err
	}
	for _, visit := range bootFlags.visits {
		role, view, ok := strings.Cut(visit, "/")
		if !ok {
			return fmt.Errorf("visit %q: want role/view", visit)
		}
		if err := manager.SwitchView(ctx, model.Role(role), model.ViewID(view)); err != nil {
			return fmt.Errorf("visit %q: %w", visit, err)
		}
	}

	report := bootReport{
		Route:       manager.CurrentState(),
		Session:     session.State(),
		Degraded:    manager.Degraded(),
		Title:       doc.Title(),
		Visible:     doc.VisibleIDs(),
		LoadedViews: manager.LoadedViews(),
	}
	for _, entry := range history.Entries() {
		report.History = append(report.History, entry.URL)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func newVerifier(cfg config.Identity) (*identity.Verifier, error) {
	if cfg.SigningKey == "" {
		return identity.NewClaimsReader(cfg.Issuer, cfg.Audience), nil
	}
	return identity.NewVerifier([]byte(cfg.SigningKey), cfg.Issuer, cfg.Audience)
}

func bundleFetcher() content.Fetcher {
	switch {
	case bootFlags.assets != "":
		root := bootFlags.assets
		return content.FetcherFunc(func(ctx context.Context, path string) (string, error) {
			clean := filepath.Clean("/" + path)
			data, err := os.ReadFile(filepath.Join(root, clean))
			if err != nil {
				return "", fmt.Errorf("read bundle %s: %w", path, err)
			}
			return string(data), nil
		})
	case bootFlags.baseURL != "":
		return &content.HTTPFetcher{Client: &http.Client{Timeout: 10 * time.Second}, Base: bootFlags.baseURL}
	default:
		return content.FetcherFunc(func(ctx context.Context, path string) (string, error) {
			return fmt.Sprintf("<section data-bundle=%q></section>", path), nil
		})
	}
}
