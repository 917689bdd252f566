package dom

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Its-donkey/storefront/internal/ui/model"
)

// MemoryElement is an in-memory container.
type MemoryElement struct {
	mu      sync.Mutex
	id      string
	html    string
	visible bool
	writes  int
}

func (e *MemoryElement) ID() string { return e.id }

func (e *MemoryElement) SetHTML(markup string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.html = markup
	e.writes++
}

func (e *MemoryElement) HTML() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.html
}

func (e *MemoryElement) Show() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.visible = true
}

func (e *MemoryElement) Hide() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.visible = false
}

func (e *MemoryElement) Visible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible
}

// Writes counts SetHTML calls.
func (e *MemoryElement) Writes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writes
}

// MemoryDocument is a headless Document used by tests and the CLI host.
type MemoryDocument struct {
	mu          sync.Mutex
	elements    map[string]*MemoryElement
	stylesheets []string
	title       string
}

// NewMemoryDocument creates hidden containers for every id.
func NewMemoryDocument(ids ...string) *MemoryDocument {
	d := &MemoryDocument{elements: make(map[string]*MemoryElement, len(ids))}
	for _, id := range ids {
		d.elements[id] = &MemoryElement{id: id}
	}
	return d
}

// Element returns the container with id.
func (d *MemoryDocument) Element(id string) (Element, bool) {
	el, ok := d.Get(id)
	if !ok {
		return nil, false
	}
	return el, true
}

// Get returns the concrete container with id.
func (d *MemoryDocument) Get(id string) (*MemoryElement, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.elements[id]
	return el, ok
}

// HasStylesheet reports whether href is linked.
func (d *MemoryDocument) HasStylesheet(href string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.stylesheets {
		if s == href {
			return true
		}
	}
	return false
}

// AddStylesheet links href. Linking the same href twice is an error.
func (d *MemoryDocument) AddStylesheet(href string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.stylesheets {
		if s == href {
			return fmt.Errorf("stylesheet %s already linked", href)
		}
	}
	d.stylesheets = append(d.stylesheets, href)
	return nil
}

// Stylesheets returns the linked stylesheets in insertion order.
func (d *MemoryDocument) Stylesheets() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.stylesheets...)
}

func (d *MemoryDocument) SetTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = title
}

func (d *MemoryDocument) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title
}

// VisibleIDs lists containers currently shown.
func (d *MemoryDocument) VisibleIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []string
	for id, el := range d.elements {
		if el.Visible() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// HistoryEntry is one history record.
type HistoryEntry struct {
	State model.HistoryState
	URL   string
}

// MemoryHistory records history entries. It starts with one entry for the initial URL.
type MemoryHistory struct {
	mu      sync.Mutex
	hash    string
	entries []HistoryEntry
}

// NewMemoryHistory starts at hash.
func NewMemoryHistory(hash string) *MemoryHistory {
	return &MemoryHistory{hash: hash, entries: []HistoryEntry{{URL: hash}}}
}

func (h *MemoryHistory) Hash() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hash
}

func (h *MemoryHistory) PushState(state model.HistoryState, url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, HistoryEntry{State: state, URL: url})
	h.hash = url
}

func (h *MemoryHistory) ReplaceState(state model.HistoryState, url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[len(h.entries)-1] = HistoryEntry{State: state, URL: url}
	h.hash = url
}

// Entries returns every entry, oldest first.
func (h *MemoryHistory) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HistoryEntry(nil), h.entries...)
}
