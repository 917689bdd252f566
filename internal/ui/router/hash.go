package router

import (
	"net/url"
	"sort"
	"strings"

	"github.com/Its-donkey/storefront/internal/ui/model"
)

// Location is a parsed hash route.
type Location struct {
	Role   model.Role
	View   model.ViewID
	Params map[string]string
}

// ParseHash reads "#/<role>/<view>[/...][?k=v]". It reports false when the hash does not
// name a known role and a non-empty view.
func ParseHash(hash string) (Location, bool) {
	raw := strings.TrimPrefix(strings.TrimSpace(hash), "#")
	raw = strings.TrimPrefix(raw, "/")
	if raw == "" {
		return Location{}, false
	}
	path, query, _ := strings.Cut(raw, "?")
	segments := strings.Split(path, "/")
	if len(segments) < 2 {
		return Location{}, false
	}
	role, ok := model.ParseRole(unescape(segments[0]))
	if !ok {
		return Location{}, false
	}
	view := strings.TrimSpace(unescape(segments[1]))
	if view == "" {
		return Location{}, false
	}
	loc := Location{Role: role, View: model.ViewID(view)}
	if query != "" {
		if values, err := url.ParseQuery(query); err == nil && len(values) > 0 {
			loc.Params = make(map[string]string, len(values))
			for k, v := range values {
				loc.Params[k] = v[0]
			}
		}
	}
	return loc, true
}

// FormatHash renders the hash for a route. Params are written in key order.
func FormatHash(role model.Role, view model.ViewID, params map[string]string) string {
	var b strings.Builder
	b.WriteString("#/")
	b.WriteString(url.PathEscape(string(role)))
	b.WriteByte('/')
	b.WriteString(url.PathEscape(string(view)))
	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		values := url.Values{}
		for _, k := range keys {
			values.Set(k, params[k])
		}
		b.WriteByte('?')
		b.WriteString(values.Encode())
	}
	return b.String()
}

func unescape(segment string) string {
	if s, err := url.PathUnescape(segment); err == nil {
		return s
	}
	return segment
}
