package router

import (
	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/internal/ui/views"
)

// Rule names the priority rule that produced a Resolution.
type Rule string

const (
	RuleURL            Rule = "url"
	RuleSessionRole    Rule = "session-role"
	RuleLastActive     Rule = "last-active"
	RuleSessionDefault Rule = "session-default"
	RuleFallback       Rule = "fallback"
)

// Inputs are the sources of truth read once the identity provider has settled.
type Inputs struct {
	// Hash is the raw location hash, "" when absent.
	Hash    string
	Session model.SessionState
}

// Resolution is the initial route.
type Resolution struct {
	Role   model.Role
	View   model.ViewID
	Params map[string]string
	Rule   Rule
}

// Resolve picks the initial (role, view). The first matching rule wins:
//
//  1. the URL, when it names a configured view and its role is the saved role, or it is
//     a guest view and no role is saved;
//  2. the saved role's default view, when the URL names a different role;
//  3. the last active view, when it belongs to the saved role, or to guest with no saved role;
//  4. the saved role's default view;
//  5. the guest default view.
func Resolve(in Inputs, cfg *views.Config) Resolution {
	saved := in.Session.Role
	if !saved.Authenticated() || !cfg.HasRole(saved) {
		saved = ""
	}

	loc, hasURL := ParseHash(in.Hash)
	if hasURL {
		_, known := cfg.Lookup(loc.Role, loc.View)
		sameRole := loc.Role == saved || (saved == "" && loc.Role == model.RoleGuest)
		if known && sameRole {
			return Resolution{Role: loc.Role, View: loc.View, Params: loc.Params, Rule: RuleURL}
		}
		if saved != "" && loc.Role != saved {
			if view, ok := cfg.DefaultView(saved); ok {
				return Resolution{Role: saved, View: view, Rule: RuleSessionRole}
			}
		}
	}

	lastRole, lastView := in.Session.LastActiveRole, in.Session.LastActiveView
	if lastRole != "" && lastView != "" {
		_, known := cfg.Lookup(lastRole, lastView)
		sameRole := lastRole == saved || (saved == "" && lastRole == model.RoleGuest)
		if known && sameRole {
			return Resolution{Role: lastRole, View: lastView, Rule: RuleLastActive}
		}
	}

	if saved != "" {
		if view, ok := cfg.DefaultView(saved); ok {
			return Resolution{Role: saved, View: view, Rule: RuleSessionDefault}
		}
	}

	guest := cfg.GuestDefault()
	return Resolution{Role: guest.Role, View: guest.View, Rule: RuleFallback}
}
