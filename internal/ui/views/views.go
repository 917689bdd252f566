// Package views loads the static view manifest that maps (role, view) pairs to descriptors.
package views

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Its-donkey/storefront/internal/ui/model"
)

//go:embed default.yaml
var defaultManifest []byte

// ErrInvalidManifest wraps every validation failure reported by Parse.
var ErrInvalidManifest = errors.New("views: invalid manifest")

// Shared lists layout fragments that views can embed.
type Shared struct {
	Footer    string `yaml:"footer" json:"footer,omitempty"`
	FilterBar string `yaml:"filterBar" json:"filterBar,omitempty"`
}

type roleFile struct {
	Default string                          `yaml:"default"`
	Views   map[string]model.ViewDescriptor `yaml:"views"`
}

type manifestFile struct {
	Shared Shared              `yaml:"shared"`
	Roles  map[string]roleFile `yaml:"roles"`
}

type roleViews struct {
	defaultView model.ViewID
	views       map[model.ViewID]model.ViewDescriptor
}

// Config is the read-only view configuration consumed by the engine.
type Config struct {
	shared Shared
	roles  map[model.Role]roleViews
}

// Default returns the manifest embedded in the binary.
func Default() *Config {
	cfg, err := Parse(defaultManifest)
	if err != nil {
		panic(fmt.Sprintf("embedded view manifest: %v", err))
	}
	return cfg
}

// DefaultManifest returns a copy of the embedded manifest bytes.
func DefaultManifest() []byte {
	return append([]byte(nil), defaultManifest...)
}

// Load reads a YAML manifest from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML manifest.
func Parse(data []byte) (*Config, error) {
	var raw manifestFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	cfg := &Config{
		shared: Shared{
			Footer:    strings.TrimSpace(raw.Shared.Footer),
			FilterBar: strings.TrimSpace(raw.Shared.FilterBar),
		},
		roles: make(map[model.Role]roleViews, len(raw.Roles)),
	}
	for rawRole, rf := range raw.Roles {
		role, ok := model.ParseRole(rawRole)
		if !ok {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidManifest, rawRole)
		}
		rv := roleViews{
			defaultView: model.ViewID(strings.TrimSpace(rf.Default)),
			views:       make(map[model.ViewID]model.ViewDescriptor, len(rf.Views)),
		}
		for rawView, desc := range rf.Views {
			view := model.ViewID(strings.TrimSpace(rawView))
			if view == "" {
				return nil, fmt.Errorf("%w: empty view id under %s", ErrInvalidManifest, role)
			}
			desc.Role = role
			desc.View = view
			desc.ContainerID = strings.TrimSpace(desc.ContainerID)
			if desc.ContainerID == "" {
				return nil, fmt.Errorf("%w: %s has no container", ErrInvalidManifest, desc.Key())
			}
			if desc.EmbedFooter && cfg.shared.Footer == "" {
				return nil, fmt.Errorf("%w: %s embeds a footer but none is configured", ErrInvalidManifest, desc.Key())
			}
			if desc.EmbedFilterBar && cfg.shared.FilterBar == "" {
				return nil, fmt.Errorf("%w: %s embeds a filter bar but none is configured", ErrInvalidManifest, desc.Key())
			}
			rv.views[view] = desc
		}
		if _, ok := rv.views[rv.defaultView]; !ok {
			return nil, fmt.Errorf("%w: role %s default view %q is not defined", ErrInvalidManifest, role, rv.defaultView)
		}
		cfg.roles[role] = rv
	}
	if _, ok := cfg.roles[model.RoleGuest]; !ok {
		return nil, fmt.Errorf("%w: guest role is required", ErrInvalidManifest)
	}
	return cfg, nil
}

// Shared returns the shared layout fragment paths.
func (c *Config) Shared() Shared {
	return c.shared
}

// Lookup resolves a (role, view) pair to its descriptor.
func (c *Config) Lookup(role model.Role, view model.ViewID) (model.ViewDescriptor, bool) {
	rv, ok := c.roles[role]
	if !ok {
		return model.ViewDescriptor{}, false
	}
	desc, ok := rv.views[view]
	return desc, ok
}

// DefaultView returns the configured default view for role.
func (c *Config) DefaultView(role model.Role) (model.ViewID, bool) {
	rv, ok := c.roles[role]
	if !ok {
		return "", false
	}
	return rv.defaultView, true
}

// GuestDefault returns the descriptor of the guest default view.
func (c *Config) GuestDefault() model.ViewDescriptor {
	rv := c.roles[model.RoleGuest]
	return rv.views[rv.defaultView]
}

// HasRole reports whether the manifest configures role.
func (c *Config) HasRole(role model.Role) bool {
	_, ok := c.roles[role]
	return ok
}

// Descriptors returns every descriptor ordered by role privilege then view id.
func (c *Config) Descriptors() []model.ViewDescriptor {
	out := make([]model.ViewDescriptor, 0)
	for _, rv := range c.roles {
		for _, d := range rv.views {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role.Privilege() < out[j].Role.Privilege()
		}
		return out[i].View < out[j].View
	})
	return out
}

// MainTabs returns the main-tab descriptors for role in view order.
func (c *Config) MainTabs(role model.Role) []model.ViewDescriptor {
	var tabs []model.ViewDescriptor
	for _, d := range c.Descriptors() {
		if d.Role == role && d.IsMainTab {
			tabs = append(tabs, d)
		}
	}
	return tabs
}
