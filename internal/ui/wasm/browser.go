//go:build js && wasm

package wasm

import (
	"encoding/json"
	"fmt"
	"strings"
	"syscall/js"

	"github.com/Its-donkey/storefront/internal/ui/dom"
	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/internal/ui/state"
)

// LocalStorage adapts window.localStorage.
type LocalStorage struct {
	store js.Value
}

// NewLocalStorage returns nil when localStorage is missing or blocked.
func NewLocalStorage() (st *LocalStorage) {
	defer func() {
		// Some privacy modes throw on property access.
		if recover() != nil {
			st = nil
		}
	}()
	store := js.Global().Get("localStorage")
	if !store.Truthy() {
		return nil
	}
	return &LocalStorage{store: store}
}

func (s *LocalStorage) GetItem(key string) (value string, ok bool, err error) {
	defer recoverJS(&err)
	v := s.store.Call("getItem", key)
	if v.Type() != js.TypeString {
		return "", false, nil
	}
	return v.String(), true, nil
}

func (s *LocalStorage) SetItem(key, value string) (err error) {
	defer recoverJS(&err)
	s.store.Call("setItem", key, value)
	return nil
}

func (s *LocalStorage) RemoveItem(key string) (err error) {
	defer recoverJS(&err)
	s.store.Call("removeItem", key)
	return nil
}

func recoverJS(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", state.ErrStorageUnavailable, r)
	}
}

// Element wraps a container node.
type Element struct {
	node js.Value
}

func (e Element) ID() string { return e.node.Get("id").String() }

func (e Element) SetHTML(markup string) { e.node.Set("innerHTML", markup) }

func (e Element) HTML() string { return e.node.Get("innerHTML").String() }

func (e Element) Show() { e.node.Get("classList").Call("remove", "hidden") }

func (e Element) Hide() { e.node.Get("classList").Call("add", "hidden") }

func (e Element) Visible() bool {
	return !e.node.Get("classList").Call("contains", "hidden").Bool()
}

// Document wraps window.document.
type Document struct {
	doc js.Value
}

// NewDocument binds the global document.
func NewDocument() *Document {
	return &Document{doc: js.Global().Get("document")}
}

func (d *Document) Element(id string) (dom.Element, bool) {
	node := d.doc.Call("getElementById", id)
	if !node.Truthy() {
		return nil, false
	}
	return Element{node: node}, true
}

func (d *Document) HasStylesheet(href string) bool {
	links := d.doc.Call("querySelectorAll", `link[rel="stylesheet"]`)
	for i := 0; i < links.Length(); i++ {
		if links.Index(i).Call("getAttribute", "href").String() == href {
			return true
		}
	}
	return false
}

func (d *Document) AddStylesheet(href string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("add stylesheet %s: %v", href, r)
		}
	}()
	link := d.doc.Call("createElement", "link")
	link.Set("rel", "stylesheet")
	link.Set("href", href)
	d.doc.Get("head").Call("appendChild", link)
	return nil
}

func (d *Document) SetTitle(title string) { d.doc.Set("title", title) }

// History wraps window.history. Entry state is stored as a JSON string.
type History struct {
	window js.Value
}

// NewHistory binds the global history.
func NewHistory() *History {
	return &History{window: js.Global()}
}

func (h *History) Hash() string {
	return h.window.Get("location").Get("hash").String()
}

func (h *History) PushState(st model.HistoryState, url string) {
	h.window.Get("history").Call("pushState", encodeHistoryState(st), "", url)
}

func (h *History) ReplaceState(st model.HistoryState, url string) {
	h.window.Get("history").Call("replaceState", encodeHistoryState(st), "", url)
}

func encodeHistoryState(st model.HistoryState) string {
	payload, err := json.Marshal(st)
	if err != nil {
		return ""
	}
	return string(payload)
}

// decodeHistoryState returns nil for anything the engine did not write.
func decodeHistoryState(v js.Value) *model.HistoryState {
	if v.Type() != js.TypeString {
		return nil
	}
	var st model.HistoryState
	if err := json.Unmarshal([]byte(v.String()), &st); err != nil {
		return nil
	}
	return &st
}

// ConsoleWriter forwards log lines to the browser console.
type ConsoleWriter struct{}

func (ConsoleWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	method := "log"
	switch {
	case strings.Contains(line, `"level":"ERROR"`):
		method = "error"
	case strings.Contains(line, `"level":"WARN"`):
		method = "warn"
	}
	js.Global().Get("console").Call(method, line)
	return len(p), nil
}

var (
	_ state.Storage = (*LocalStorage)(nil)
	_ dom.Document  = (*Document)(nil)
	_ dom.History   = (*History)(nil)
)
