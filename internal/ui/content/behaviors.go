package content

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Its-donkey/storefront/internal/ui/dom"
)

// ErrBehaviorNotFound reports that no behavior module is registered under a name.
// Static views legitimately have none.
var ErrBehaviorNotFound = errors.New("content: behavior module not found")

// Behavior is the entry point of a view behavior module.
type Behavior interface {
	Init(ctx context.Context, container dom.Element) error
}

// BehaviorFunc adapts a function to Behavior.
type BehaviorFunc func(ctx context.Context, container dom.Element) error

// Init calls f.
func (f BehaviorFunc) Init(ctx context.Context, container dom.Element) error {
	return f(ctx, container)
}

// Factory builds a behavior module. A nil Behavior with a nil error means the module has
// no init entry point.
type Factory func() (Behavior, error)

// Behaviors is the registry of behavior modules keyed by module name.
type Behaviors struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewBehaviors constructs an empty registry.
func NewBehaviors() *Behaviors {
	return &Behaviors{factories: make(map[string]Factory)}
}

// Register installs factory under name, replacing any previous registration.
func (b *Behaviors) Register(name string, factory Factory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.factories[name] = factory
}

// RegisterFunc installs a behavior that only needs an init function.
func (b *Behaviors) RegisterFunc(name string, init BehaviorFunc) {
	b.Register(name, func() (Behavior, error) { return init, nil })
}

// Load builds the module registered under name.
func (b *Behaviors) Load(name string) (Behavior, error) {
	b.mu.RLock()
	factory, ok := b.factories[name]
	b.mu.RUnlock()
	if !ok || factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrBehaviorNotFound, name)
	}
	behavior, err := factory()
	if err != nil {
		return nil, fmt.Errorf("load behavior %s: %w", name, err)
	}
	return behavior, nil
}

// Names lists registered modules.
func (b *Behaviors) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.factories))
	for name := range b.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
