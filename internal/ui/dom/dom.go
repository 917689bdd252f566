// Package dom describes the small slice of a browser document the view engine drives.
package dom

import "github.com/Its-donkey/storefront/internal/ui/model"

// Element is a view container.
type Element interface {
	ID() string
	SetHTML(markup string)
	HTML() string
	Show()
	Hide()
	Visible() bool
}

// Document exposes containers, stylesheets and the title.
type Document interface {
	Element(id string) (Element, bool)
	HasStylesheet(href string) bool
	AddStylesheet(href string) error
	SetTitle(title string)
}

// History is the browser history surface.
type History interface {
	// Hash returns the current location hash including the leading '#', or "".
	Hash() string
	PushState(state model.HistoryState, url string)
	ReplaceState(state model.HistoryState, url string)
}
