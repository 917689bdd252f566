// Package server serves the storefront shell, its view bundles, the view manifest and the
// profile-record API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Its-donkey/storefront/internal/profiles"
	"github.com/Its-donkey/storefront/logging"
)

// Options configures the UI HTTP server.
type Options struct {
	Listen string
	// AssetsDir holds index.html, wasm_exec.js, main.wasm and the view bundles.
	AssetsDir string
	// ManifestPath overrides the embedded view manifest.
	ManifestPath  string
	WatchManifest bool
	// LogFile, when set, is exposed read-only at /api/logs.
	LogFile  string
	Logger   *logging.Logger
	Profiles profiles.Store
	// APIProxy forwards /api/ to a separate backend instead of serving Profiles locally.
	APIProxy        string
	Authenticator   profiles.Authenticator
	ShutdownTimeout time.Duration
}

// Server is the storefront HTTP server.
type Server struct {
	opts     Options
	logger   *logging.Logger
	manifest *Manifest
	proxy    *url.URL
	handler  http.Handler
}

// New validates opts and builds the handler tree.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Listen == "" {
		opts.Listen = "127.0.0.1:4173"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Profiles == nil {
		opts.Profiles = profiles.NewMemoryStore()
	}

	assets, err := filepath.Abs(opts.AssetsDir)
	if err != nil {
		return nil, fmt.Errorf("resolve assets dir: %w", err)
	}
	if info, err := os.Stat(assets); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("assets directory %s is invalid: %v", assets, err)
	}
	opts.AssetsDir = assets

	manifest, err := NewManifest(opts.ManifestPath, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	s := &Server{opts: opts, logger: opts.Logger, manifest: manifest}
	if opts.APIProxy != "" {
		target, err := url.Parse(opts.APIProxy)
		if err != nil || target.Scheme == "" {
			return nil, fmt.Errorf("invalid api proxy target %q: %v", opts.APIProxy, err)
		}
		s.proxy = target
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Manifest returns the served view manifest.
func (s *Server) Manifest() *Manifest {
	return s.manifest
}

func (s *Server) routes() http.Handler {
	mime.AddExtensionType(".wasm", "application/wasm")

	var api http.Handler
	if s.proxy != nil {
		api = apiProxyHandler(s.proxy)
	} else {
		api = profiles.NewHandler(s.opts.Profiles, s.opts.Authenticator, s.logger)
	}

	mux := http.NewServeMux()
	for _, pattern := range []string{"/api/profiles", "/api/profiles/", "/api/accounts", "/api/accounts/", "/api/audit"} {
		mux.Handle(pattern, api)
	}
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /views.yaml", s.manifest.ServeYAML)
	mux.HandleFunc("GET /views.json", s.manifest.ServeJSON)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("/", staticHandler(s.opts.AssetsDir))

	httpLogger := logging.NewHTTPLogger(s.logger, func(path string) bool { return path == "/healthz" })
	return httpLogger.Middleware(mux)
}

func apiProxyHandler(target *url.URL) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(target)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Host = target.Host
		proxy.ServeHTTP(w, r)
	})
}

// staticHandler serves the shell for "/" and files from root otherwise.
func staticHandler(root string) http.Handler {
	fileServer := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" || r.URL.Path == "" {
			http.ServeFile(w, r, filepath.Join(root, "index.html"))
			return
		}
		if strings.HasSuffix(r.URL.Path, ".wasm") {
			w.Header().Set("Content-Type", "application/wasm")
		}
		fileServer.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.opts.LogFile == "" {
		http.NotFound(w, r)
		return
	}
	n := 100
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = min(parsed, 1000)
	}
	entries, err := logging.ReadRecent(s.opts.LogFile, n)
	if err != nil {
		s.logger.Error(logging.CategoryServer, "read recent logs", err, nil)
		http.Error(w, "log file unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	watchDone := make(chan struct{})
	if s.opts.WatchManifest {
		go func() {
			defer close(watchDone)
			if err := s.manifest.Watch(watchCtx); err != nil {
				s.logger.Error(logging.CategoryServer, "manifest watch stopped", err, nil)
			}
		}()
	} else {
		close(watchDone)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info(logging.CategoryServer, "serving storefront", map[string]any{
		"addr":   ln.Addr().String(),
		"assets": s.opts.AssetsDir,
	})

	var serveErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			serveErr = fmt.Errorf("shutdown: %w", err)
		}
		<-errCh
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serve: %w", err)
		}
	}
	stopWatch()
	<-watchDone
	s.logger.Info(logging.CategoryServer, "server stopped", nil)
	return serveErr
}
