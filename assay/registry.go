package assay

import (
	"fmt"
	"sort"
)

// -----------------------------------------------------------------------------
// Handler registry
// -----------------------------------------------------------------------------

// Registry maps spec names to handler types. The zero value is not
// usable; create one with NewRegistry.
//
// Registry performs no locking of its own. The Resolver serializes all
// access to its registry; a standalone Registry passed to GetDataFrom
// must not be mutated while a resolution is in flight.
type Registry struct {
	handlers map[string]HandlerType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerType)}
}

// Register installs a handler type for the given spec.
//
// Registering the same handler type (by name) for a spec it already
// holds is a no-op. Registering a different handler type for an
// occupied spec fails with ErrDuplicateHandler.
func (g *Registry) Register(spec string, h HandlerType) error {
	if h.New == nil {
		return fmt.Errorf("assay: register %q: handler type has nil constructor", spec)
	}
	if h.Name == "" {
		return fmt.Errorf("assay: register %q: handler type has empty name", spec)
	}
	if prev, ok := g.handlers[spec]; ok {
		if prev.Name == h.Name {
			return nil
		}
		return fmt.Errorf("assay: register %q: already held by %q: %w",
			spec, prev.Name, ErrDuplicateHandler)
	}
	g.handlers[spec] = h
	return nil
}

// Deregister removes the handler type for the given spec and returns
// it. Removing an absent spec is a no-op reported by ok=false.
func (g *Registry) Deregister(spec string) (h HandlerType, ok bool) {
	h, ok = g.handlers[spec]
	if ok {
		delete(g.handlers, spec)
	}
	return h, ok
}

// Lookup returns the handler type registered for the given spec.
// Fails with ErrUnknownSpec if absent.
func (g *Registry) Lookup(spec string) (HandlerType, error) {
	h, ok := g.handlers[spec]
	if !ok {
		return HandlerType{}, fmt.Errorf("assay: spec %q: %w", spec, ErrUnknownSpec)
	}
	return h, nil
}

// Specs returns the registered spec names in sorted order.
func (g *Registry) Specs() []string {
	out := make([]string, 0, len(g.handlers))
	for spec := range g.handlers {
		out = append(out, spec)
	}
	sort.Strings(out)
	return out
}

// replace installs h for spec unconditionally, returning the prior
// mapping if one existed. Used by the scoped override.
func (g *Registry) replace(spec string, h HandlerType) (prev HandlerType, had bool) {
	prev, had = g.handlers[spec]
	g.handlers[spec] = h
	return prev, had
}
