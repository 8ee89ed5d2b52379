package arcade

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// CommandBundleFactory builds a caller-defined bundle of command wrappers or
// handlers around a built application. Game backends use bundles to hang
// their own dispatch surfaces off the arcade runtime without reaching into
// its internals.
type CommandBundleFactory func(app *App) (any, error)

// ExtensionHooks is a thread-safe registry for downstream extension points.
// Registration is write-once per name; builds iterate names in sorted order
// so composition is deterministic.
type ExtensionHooks struct {
	mu sync.RWMutex

	bundles map[string]CommandBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		bundles: map[string]CommandBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterCommandBundle(name string, factory CommandBundleFactory) error {
	if h == nil {
		return fmt.Errorf("arcade: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("arcade: command bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("arcade: command bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("arcade: command bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

func (h *ExtensionHooks) BuildCommandBundles(app *App) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if app == nil {
		return nil, fmt.Errorf("arcade: app is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](app)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
