package state

import (
	"sort"
	"sync"
)

// LoadedViews tracks descriptor keys whose content has been injected this session.
// Keys are only ever added until Reset.
type LoadedViews struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// NewLoadedViews constructs an empty set.
func NewLoadedViews() *LoadedViews {
	return &LoadedViews{keys: make(map[string]struct{})}
}

// Has reports whether key has been loaded.
func (l *LoadedViews) Has(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.keys[key]
	return ok
}

// Add marks key as loaded.
func (l *LoadedViews) Add(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys[key] = struct{}{}
}

// Snapshot returns the loaded keys in sorted order.
//
// Callers can safely modify the returned slice without affecting the set.
func (l *LoadedViews) Snapshot() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.keys))
	for k := range l.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Reset empties the set; only a full app re-init should call it.
func (l *LoadedViews) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = make(map[string]struct{})
}
