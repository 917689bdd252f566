package content

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Its-donkey/storefront/internal/ui/dom"
	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/internal/ui/views"
)

type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls map[string]int
}

func newStubFetcher(pages map[string]string) *stubFetcher {
	return &stubFetcher{pages: pages, calls: make(map[string]int)}
}

func (s *stubFetcher) Fetch(_ context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[path]++
	page, ok := s.pages[path]
	if !ok {
		return "", errors.New("fetch " + path + " failed: 404 Not Found")
	}
	return page, nil
}

func (s *stubFetcher) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func homeDescriptor() model.ViewDescriptor {
	return model.ViewDescriptor{
		Role:        model.RoleConsumer,
		View:        "home",
		ContainerID: "consumer-home",
		ContentPath: "/views/consumer/home.html",
		StylePath:   "/views/consumer/home.css",
		Title:       "Shop",
	}
}

func TestLoadInjectsMarkupAndLinksStyleOnce(t *testing.T) {
	doc := dom.NewMemoryDocument("consumer-home", "consumer-cart")
	fetcher := newStubFetcher(map[string]string{
		"/views/consumer/home.html": `<section id="shop">Shop</section>`,
		"/views/consumer/cart.html": `<section id="cart">Cart</section>`,
	})
	loader := NewLoader(doc, fetcher, nil, views.Shared{}, nil)

	home, _ := doc.Get("consumer-home")
	if err := loader.Load(context.Background(), home, homeDescriptor()); err != nil {
		t.Fatalf("load home: %v", err)
	}
	cartDesc := homeDescriptor()
	cartDesc.View = "cart"
	cartDesc.ContainerID = "consumer-cart"
	cartDesc.ContentPath = "/views/consumer/cart.html"
	cart, _ := doc.Get("consumer-cart")
	if err := loader.Load(context.Background(), cart, cartDesc); err != nil {
		t.Fatalf("load cart: %v", err)
	}

	if got := home.HTML(); got != `<section id="shop">Shop</section>` {
		t.Fatalf("unexpected home markup %q", got)
	}
	if sheets := doc.Stylesheets(); len(sheets) != 1 || sheets[0] != "/views/consumer/home.css" {
		t.Fatalf("expected stylesheet linked once, got %v", sheets)
	}
}

func TestLoadRejectsFullDocuments(t *testing.T) {
	cases := []string{
		"<!DOCTYPE html><html><body>oops</body></html>",
		"  <html lang=\"en\"><p>x</p></html>",
		"<div>ok</div><BODY>",
	}
	for _, page := range cases {
		doc := dom.NewMemoryDocument("consumer-home")
		fetcher := newStubFetcher(map[string]string{"/views/consumer/home.html": page})
		loader := NewLoader(doc, fetcher, nil, views.Shared{}, nil)
		el, _ := doc.Get("consumer-home")

		err := loader.Load(context.Background(), el, homeDescriptor())
		if !errors.Is(err, ErrFullDocument) {
			t.Fatalf("expected ErrFullDocument for %q, got %v", page, err)
		}
		if !strings.Contains(el.HTML(), `class="view-error"`) {
			t.Fatalf("expected error fragment, got %q", el.HTML())
		}
	}
}

func TestLoadRendersErrorFragmentOnFetchFailure(t *testing.T) {
	doc := dom.NewMemoryDocument("consumer-home")
	loader := NewLoader(doc, newStubFetcher(nil), nil, views.Shared{}, nil)
	el, _ := doc.Get("consumer-home")

	err := loader.Load(context.Background(), el, homeDescriptor())
	if err == nil {
		t.Fatalf("expected error")
	}
	html := el.HTML()
	if !strings.Contains(html, "We couldn't load Shop") || !strings.Contains(html, "404 Not Found") {
		t.Fatalf("unexpected error fragment %q", html)
	}
}

func TestLoadSplicesSharedFragments(t *testing.T) {
	shared := views.Shared{Footer: "/shared/footer.html", FilterBar: "/shared/filter.html"}
	fetcher := newStubFetcher(map[string]string{
		"/a.html":             `<main>A</main>`,
		"/b.html":             `<div data-slot="filter-bar"></div><main>B</main><div data-slot="footer"></div>`,
		"/shared/footer.html": `<footer>F</footer>`,
		"/shared/filter.html": `<nav>Filter</nav>`,
	})
	doc := dom.NewMemoryDocument("a", "b")
	loader := NewLoader(doc, fetcher, nil, shared, nil)

	a, _ := doc.Get("a")
	descA := model.ViewDescriptor{Role: model.RoleGuest, View: "a", ContainerID: "a", ContentPath: "/a.html", EmbedFooter: true, EmbedFilterBar: true}
	if err := loader.Load(context.Background(), a, descA); err != nil {
		t.Fatalf("load a: %v", err)
	}
	if got, want := a.HTML(), `<nav>Filter</nav><main>A</main><footer>F</footer>`; got != want {
		t.Fatalf("unexpected markup\n got: %s\nwant: %s", got, want)
	}

	b, _ := doc.Get("b")
	descB := model.ViewDescriptor{Role: model.RoleGuest, View: "b", ContainerID: "b", ContentPath: "/b.html", EmbedFooter: true, EmbedFilterBar: true}
	if err := loader.Load(context.Background(), b, descB); err != nil {
		t.Fatalf("load b: %v", err)
	}
	want := `<div data-slot="filter-bar"><nav>Filter</nav></div><main>B</main><div data-slot="footer"><footer>F</footer></div>`
	if got := b.HTML(); got != want {
		t.Fatalf("unexpected markup\n got: %s\nwant: %s", got, want)
	}
	if fetcher.count("/shared/footer.html") != 1 {
		t.Fatalf("expected shared footer fetched once, got %d", fetcher.count("/shared/footer.html"))
	}
}

func TestLoadBehaviorModules(t *testing.T) {
	fetcher := newStubFetcher(map[string]string{"/v.html": `<form></form>`})
	behaviors := NewBehaviors()
	var initialised []string
	behaviors.RegisterFunc("auth-form", func(_ context.Context, el dom.Element) error {
		initialised = append(initialised, el.ID())
		return nil
	})
	behaviors.Register("static", func() (Behavior, error) { return nil, nil })
	behaviors.Register("broken", func() (Behavior, error) { return nil, errors.New("syntax error") })
	behaviors.RegisterFunc("failing-init", func(context.Context, dom.Element) error { return errors.New("no api") })

	cases := []struct {
		module  string
		wantErr bool
	}{
		{module: "auth-form"},
		{module: "static"},
		{module: "missing"},
		{module: "broken", wantErr: true},
		{module: "failing-init", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.module, func(t *testing.T) {
			doc := dom.NewMemoryDocument("v")
			loader := NewLoader(doc, fetcher, behaviors, views.Shared{}, nil)
			el, _ := doc.Get("v")
			desc := model.ViewDescriptor{Role: model.RoleGuest, View: "v", ContainerID: "v", ContentPath: "/v.html", Module: tc.module}

			err := loader.Load(context.Background(), el, desc)
			if tc.wantErr {
				if err == nil || errors.Is(err, ErrBehaviorNotFound) {
					t.Fatalf("expected load failure distinct from not-found, got %v", err)
				}
				if !strings.Contains(el.HTML(), "view-error") {
					t.Fatalf("expected error fragment, got %q", el.HTML())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if el.HTML() != `<form></form>` {
				t.Fatalf("unexpected markup %q", el.HTML())
			}
		})
	}
	if len(initialised) != 1 || initialised[0] != "v" {
		t.Fatalf("expected auth-form init once, got %v", initialised)
	}
}

func TestBehaviorsLoadNotFound(t *testing.T) {
	_, err := NewBehaviors().Load("nope")
	if !errors.Is(err, ErrBehaviorNotFound) {
		t.Fatalf("expected ErrBehaviorNotFound, got %v", err)
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/views/guest/home.html" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<p>hello</p>`))
	}))
	defer srv.Close()

	f := &HTTPFetcher{Client: srv.Client(), Base: srv.URL + "/"}
	got, err := f.Fetch(context.Background(), "/views/guest/home.html")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != `<p>hello</p>` {
		t.Fatalf("unexpected body %q", got)
	}
	if _, err := f.Fetch(context.Background(), "/missing.html"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}

func TestLoadAcceptsFragmentsMentioningDocumentTags(t *testing.T) {
	cases := []string{
		"<!-- moved from <body class=\"old\"> --><p>ok</p>",
		`<p data-note="<html>">ok</p>`,
		"<script>const tpl = '<body>';</script><p>ok</p>",
		"<p>&lt;body&gt; is escaped</p>",
	}
	for _, page := range cases {
		doc := dom.NewMemoryDocument("consumer-home")
		loader := NewLoader(doc, newStubFetcher(map[string]string{"/views/consumer/home.html": page}), nil, views.Shared{}, nil)
		el, _ := doc.Get("consumer-home")

		if err := loader.Load(context.Background(), el, homeDescriptor()); err != nil {
			t.Fatalf("load %q: %v", page, err)
		}
		if el.HTML() != page {
			t.Fatalf("expected fragment injected verbatim, got %q", el.HTML())
		}
	}
}

func TestHTTPFetcherRejectsOversizedBundle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", maxBundleBytes+1)))
	}))
	defer srv.Close()

	f := &HTTPFetcher{Client: srv.Client(), Base: srv.URL}
	if _, err := f.Fetch(context.Background(), "/views/big.html"); !errors.Is(err, ErrBundleTooLarge) {
		t.Fatalf("expected ErrBundleTooLarge, got %v", err)
	}

	doc := dom.NewMemoryDocument("consumer-home")
	loader := NewLoader(doc, f, nil, views.Shared{}, nil)
	el, _ := doc.Get("consumer-home")
	if err := loader.Load(context.Background(), el, homeDescriptor()); !errors.Is(err, ErrBundleTooLarge) {
		t.Fatalf("expected load to fail with ErrBundleTooLarge, got %v", err)
	}
	if !strings.Contains(el.HTML(), `class="view-error"`) {
		t.Fatalf("expected error fragment, got %q", el.HTML())
	}
}

func TestHTTPFetcherAcceptsBundleAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", maxBundleBytes)))
	}))
	defer srv.Close()

	got, err := (&HTTPFetcher{Client: srv.Client(), Base: srv.URL}).Fetch(context.Background(), "/views/edge.html")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != maxBundleBytes {
		t.Fatalf("expected %d bytes, got %d", maxBundleBytes, len(got))
	}
}

func TestViewFetcherHasNoTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	f := NewViewFetcher(srv.URL + "/")
	if f.Client == nil || f.Client.Timeout != 0 {
		t.Fatalf("expected a client without timeout, got %+v", f.Client)
	}
	got, err := f.Fetch(context.Background(), "/views/guest/home.html")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != "/views/guest/home.html" {
		t.Fatalf("unexpected body %q", got)
	}
}
