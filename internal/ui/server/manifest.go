package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/internal/ui/views"
	"github.com/Its-donkey/storefront/logging"
)

const manifestDebounce = 200 * time.Millisecond

// Manifest serves the view manifest and reloads it when the file changes.
type Manifest struct {
	path   string
	logger *logging.Logger

	mu   sync.RWMutex
	raw  []byte
	cfg  *views.Config
	etag string
}

type manifestDocument struct {
	Shared   views.Shared                `json:"shared"`
	Defaults map[model.Role]model.ViewID `json:"defaults"`
	Views    []model.ViewDescriptor      `json:"views"`
}

// NewManifest loads path, or the embedded manifest when path is empty.
func NewManifest(path string, logger *logging.Logger) (*Manifest, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	m := &Manifest{logger: logger}
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve manifest path: %w", err)
		}
		m.path = abs
	}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload re-reads the manifest. A manifest that fails validation leaves the previous one in place.
func (m *Manifest) Reload() error {
	raw := views.DefaultManifest()
	if m.path != "" {
		data, err := os.ReadFile(m.path)
		if err != nil {
			return fmt.Errorf("read manifest: %w", err)
		}
		raw = data
	}
	cfg, err := views.Parse(raw)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(raw)

	m.mu.Lock()
	m.raw = raw
	m.cfg = cfg
	m.etag = `"` + hex.EncodeToString(sum[:8]) + `"`
	m.mu.Unlock()
	return nil
}

// Config returns the current manifest.
func (m *Manifest) Config() *views.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manifest) snapshot() ([]byte, *views.Config, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw, m.cfg, m.etag
}

// ServeYAML writes the manifest source, which the browser build parses.
func (m *Manifest) ServeYAML(w http.ResponseWriter, r *http.Request) {
	raw, _, etag := m.snapshot()
	if notModified(w, r, etag) {
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(raw)
}

// ServeJSON writes the resolved descriptors.
func (m *Manifest) ServeJSON(w http.ResponseWriter, r *http.Request) {
	_, cfg, etag := m.snapshot()
	if notModified(w, r, etag) {
		return
	}
	doc := manifestDocument{
		Shared:   cfg.Shared(),
		Defaults: make(map[model.Role]model.ViewID),
		Views:    cfg.Descriptors(),
	}
	for _, role := range model.Roles {
		if view, ok := cfg.DefaultView(role); ok {
			doc.Defaults[role] = view
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func notModified(w http.ResponseWriter, r *http.Request, etag string) bool {
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

// Watch reloads the manifest whenever its file changes, until ctx ends.
// It watches the parent directory so editors that replace the file are noticed.
func (m *Manifest) Watch(ctx context.Context) error {
	if m.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		return fmt.Errorf("watch manifest dir: %w", err)
	}
	log := m.logger.With(logging.CategoryServer).WithField("manifest", m.path)
	log.Info("watching view manifest")

	timer := time.NewTimer(manifestDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != m.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(manifestDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Error(logging.CategoryServer, "manifest watcher error", err, nil)
		case <-timer.C:
			if err := m.Reload(); err != nil {
				m.logger.Error(logging.CategoryServer, "manifest reload rejected; keeping previous", err, map[string]any{"manifest": m.path})
				continue
			}
			m.logger.Info(logging.CategoryServer, "view manifest reloaded", map[string]any{"manifest": m.path})
		}
	}
}
