// Package content fetches view bundles, injects them into their containers and runs
// their behavior modules.
package content

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/Its-donkey/storefront/internal/ui/dom"
	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/internal/ui/views"
	"github.com/Its-donkey/storefront/logging"
)

// ErrFullDocument rejects bundles that contain a whole HTML document instead of a fragment.
var ErrFullDocument = errors.New("content: bundle is a full document, expected a fragment")

// Slot selectors used to position shared layout fragments inside a view.
const (
	FilterBarSlot = `[data-slot="filter-bar"]`
	FooterSlot    = `[data-slot="footer"]`
)

const loadingPlaceholder = `<div class="view-loading" aria-busy="true">Loading…</div>`

// isFullDocument reports whether markup carries a doctype or an html, head or body tag.
// Tags inside comments, attribute values and raw-text elements do not count.
func isFullDocument(markup string) bool {
	z := xhtml.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			return false
		case xhtml.DoctypeToken:
			return true
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Html, atom.Head, atom.Body:
				return true
			}
		}
	}
}

// Loader injects view content into containers.
type Loader struct {
	doc       dom.Document
	fetcher   Fetcher
	behaviors *Behaviors
	shared    views.Shared
	logger    *logging.Logger

	styleMu sync.Mutex

	fragMu    sync.Mutex
	fragments map[string]string
}

// NewLoader wires a loader. behaviors may be nil when no view has a module.
func NewLoader(doc dom.Document, fetcher Fetcher, behaviors *Behaviors, shared views.Shared, logger *logging.Logger) *Loader {
	if behaviors == nil {
		behaviors = NewBehaviors()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Loader{
		doc:       doc,
		fetcher:   fetcher,
		behaviors: behaviors,
		shared:    shared,
		logger:    logger,
		fragments: make(map[string]string),
	}
}

// Load renders desc into container. Callers decide whether a descriptor needs loading.
//
// On any failure a readable error fragment replaces the container content and the error
// is returned for logging; Load never panics past the caller.
func (l *Loader) Load(ctx context.Context, container dom.Element, desc model.ViewDescriptor) error {
	log := l.logger.With(logging.CategoryContent).WithField("view", desc.Key())

	if err := l.ensureStyle(desc.StylePath); err != nil {
		return l.fail(container, desc, fmt.Errorf("link stylesheet: %w", err))
	}

	if desc.ContentPath != "" {
		container.SetHTML(loadingPlaceholder)
		markup, err := l.fetchFragment(ctx, desc.ContentPath)
		if err != nil {
			return l.fail(container, desc, err)
		}
		markup, err = l.composeLayout(ctx, desc, markup)
		if err != nil {
			return l.fail(container, desc, err)
		}
		container.SetHTML(markup)
	}

	if desc.Module != "" {
		behavior, err := l.behaviors.Load(desc.Module)
		switch {
		case errors.Is(err, ErrBehaviorNotFound):
			log.WithField("module", desc.Module).Debug("no behavior module registered")
		case err != nil:
			return l.fail(container, desc, err)
		case behavior != nil:
			if err := behavior.Init(ctx, container); err != nil {
				return l.fail(container, desc, fmt.Errorf("init behavior %s: %w", desc.Module, err))
			}
		}
	}

	log.Debug("view content loaded")
	return nil
}

// ensureStyle links href once; the check and insert happen under one lock.
func (l *Loader) ensureStyle(href string) error {
	if href == "" {
		return nil
	}
	l.styleMu.Lock()
	defer l.styleMu.Unlock()
	if l.doc.HasStylesheet(href) {
		return nil
	}
	return l.doc.AddStylesheet(href)
}

func (l *Loader) fetchFragment(ctx context.Context, path string) (string, error) {
	markup, err := l.fetcher.Fetch(ctx, path)
	if err != nil {
		return "", err
	}
	if isFullDocument(markup) {
		return "", fmt.Errorf("%s: %w", path, ErrFullDocument)
	}
	return markup, nil
}

// sharedFragment fetches a layout fragment once per loader.
func (l *Loader) sharedFragment(ctx context.Context, path string) (string, error) {
	l.fragMu.Lock()
	cached, ok := l.fragments[path]
	l.fragMu.Unlock()
	if ok {
		return cached, nil
	}
	markup, err := l.fetchFragment(ctx, path)
	if err != nil {
		return "", fmt.Errorf("shared fragment: %w", err)
	}
	l.fragMu.Lock()
	l.fragments[path] = markup
	l.fragMu.Unlock()
	return markup, nil
}

func (l *Loader) composeLayout(ctx context.Context, desc model.ViewDescriptor, markup string) (string, error) {
	if !desc.EmbedFilterBar && !desc.EmbedFooter {
		return markup, nil
	}
	var filterBar, footer string
	var err error
	if desc.EmbedFilterBar && l.shared.FilterBar != "" {
		if filterBar, err = l.sharedFragment(ctx, l.shared.FilterBar); err != nil {
			return "", err
		}
	}
	if desc.EmbedFooter && l.shared.Footer != "" {
		if footer, err = l.sharedFragment(ctx, l.shared.Footer); err != nil {
			return "", err
		}
	}
	return Splice(markup, filterBar, footer)
}

// Splice places filterBar and footer into their slots in markup, or before and after
// the view markup when the view declares no slot.
func Splice(markup, filterBar, footer string) (string, error) {
	root := &xhtml.Node{Type: xhtml.ElementNode, Data: "div", DataAtom: atom.Div}
	parent := &xhtml.Node{Type: xhtml.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := xhtml.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return "", fmt.Errorf("parse fragment: %w", err)
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	sel := goquery.NewDocumentFromNode(root).Selection

	if filterBar != "" {
		if slot := sel.Find(FilterBarSlot).First(); slot.Length() > 0 {
			slot.SetHtml(filterBar)
		} else {
			sel.PrependHtml(filterBar)
		}
	}
	if footer != "" {
		if slot := sel.Find(FooterSlot).First(); slot.Length() > 0 {
			slot.SetHtml(footer)
		} else {
			sel.AppendHtml(footer)
		}
	}
	out, err := sel.Html()
	if err != nil {
		return "", fmt.Errorf("render fragment: %w", err)
	}
	return out, nil
}

func (l *Loader) fail(container dom.Element, desc model.ViewDescriptor, err error) error {
	container.SetHTML(ErrorFragment(desc, err))
	l.logger.Error(logging.CategoryContent, "view content failed to load", err, map[string]any{
		"view":      desc.Key(),
		"container": desc.ContainerID,
	})
	return fmt.Errorf("load %s: %w", desc.Key(), err)
}

// ErrorFragment renders the inline error shown when a view cannot be loaded.
func ErrorFragment(desc model.ViewDescriptor, err error) string {
	title := desc.Title
	if strings.TrimSpace(title) == "" {
		title = string(desc.View)
	}
	var b strings.Builder
	b.WriteString(`<div class="view-error" role="alert">`)
	b.WriteString(`<p class="view-error-title">We couldn't load `)
	b.WriteString(html.EscapeString(title))
	b.WriteString(`.</p>`)
	if err != nil {
		b.WriteString(`<p class="view-error-detail">`)
		b.WriteString(html.EscapeString(err.Error()))
		b.WriteString(`</p>`)
	}
	b.WriteString(`<p>Please refresh the page or try again later.</p></div>`)
	return b.String()
}
