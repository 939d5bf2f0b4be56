package assay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// -----------------------------------------------------------------------------
// Resolver configuration
// -----------------------------------------------------------------------------

// resolverConfig holds the resolved configuration for a resolver.
type resolverConfig struct {
	datumCacheSize int
	logger         *slog.Logger
}

// Option configures resolver construction.
type Option func(*resolverConfig) error

// WithDatumCacheSize sets the maximum entry count of the datum cache.
// Default: DefaultDatumCacheSize.
func WithDatumCacheSize(n int) Option {
	return func(cfg *resolverConfig) error {
		if n <= 0 {
			return fmt.Errorf("assay: datum cache size must be positive, got %d", n)
		}
		cfg.datumCacheSize = n
		return nil
	}
}

// WithLogger sets the logger used for capacity warnings and
// invalidation diagnostics. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(cfg *resolverConfig) error {
		if l == nil {
			return fmt.Errorf("assay: logger must not be nil")
		}
		cfg.logger = l
		return nil
	}
}

// -----------------------------------------------------------------------------
// Resolver
// -----------------------------------------------------------------------------

// Resolver turns datum ids into payloads.
//
// A Resolver owns its handler registry and three caches: datum id to
// (resource id, retrieval kwargs), resource id to resource record, and
// (resource id, handler type) to live handler instance. Construct one
// per logical catalog; independent resolvers share no state.
//
// All methods are safe for concurrent use. A single mutex guards the
// registry and every cache mutation path; mutation frequency is low
// relative to reads, so the coarse lock also prevents duplicate handler
// construction races on concurrent misses.
type Resolver struct {
	docs DocumentStore
	log  *slog.Logger

	mu        sync.Mutex // guards registry and all three caches
	overrides sync.Mutex // serializes scoped overrides; see WithHandlers
	registry  *Registry
	datums    *datumCache
	resources *resourceCache
	handlers  *handlerCache
}

// New creates a Resolver backed by the given document store.
//
// Default behavior:
//   - Datum cache size: DefaultDatumCacheSize
//   - Logger: slog.Default()
//
// The registry starts empty; populate it with Register.
func New(docs DocumentStore, opts ...Option) (*Resolver, error) {
	if docs == nil {
		return nil, fmt.Errorf("assay: document store is required")
	}

	cfg := &resolverConfig{
		datumCacheSize: DefaultDatumCacheSize,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	r := &Resolver{
		docs:     docs,
		log:      cfg.logger,
		registry: NewRegistry(),
		datums:   newDatumCache(cfg.datumCacheSize),
		handlers: newHandlerCache(),
	}
	r.resources = newResourceCache(r.loadResource)
	return r, nil
}

func (r *Resolver) loadResource(ctx context.Context, id ResourceID) (*ResourceRecord, error) {
	rec, err := r.docs.Resource(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("assay: resource %q: %w", id, ErrResourceNotFound)
	}
	return rec, nil
}

// -----------------------------------------------------------------------------
// Registry mutation
// -----------------------------------------------------------------------------

// Register associates a handler type with a spec.
//
// Fails with ErrDuplicateHandler if the spec is already held by a
// different handler type; registering the identical handler type again
// is a no-op. Registrations are permanent until reversed by Deregister
// or temporarily shadowed by WithHandlers.
func (r *Resolver) Register(spec string, h HandlerType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.Register(spec, h)
}

// RegisterOverwrite associates a handler type with a spec, replacing
// any existing mapping. Cached handler instances of the replaced type
// are closed and evicted, so no stale handler is served afterwards.
func (r *Resolver) RegisterOverwrite(spec string, h HandlerType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deregisterLocked(spec)
	return r.registry.Register(spec, h)
}

// Deregister removes the handler type for a spec. No-op if the spec is
// not registered. Every cached handler instance of the removed type is
// closed and evicted before this returns.
func (r *Resolver) Deregister(spec string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deregisterLocked(spec)
}

func (r *Resolver) deregisterLocked(spec string) {
	h, ok := r.registry.Deregister(spec)
	if !ok {
		return
	}
	closed, err := r.handlers.invalidate(h.Name)
	if err != nil {
		r.log.Warn("assay: closing invalidated handlers",
			"spec", spec, "handler", h.Name, "error", err)
	}
	if closed > 0 {
		r.log.Debug("assay: invalidated cached handlers",
			"spec", spec, "handler", h.Name, "count", closed)
	}
}

// -----------------------------------------------------------------------------
// Resolution
// -----------------------------------------------------------------------------

// GetData resolves a datum id to its payload using the resolver's own
// registry.
//
// Errors distinguish the failure layer: ErrDatumNotFound and
// ErrResourceNotFound for document-store misses, ErrUnknownSpec when
// no handler is registered for the resource's spec, and
// ErrHandlerConstruction when the handler fails to open. Retrieval
// errors from the handler itself propagate verbatim.
func (r *Resolver) GetData(ctx context.Context, id DatumID) (any, error) {
	return r.GetDataFrom(ctx, id, nil)
}

// GetDataFrom resolves a datum id to its payload, looking handlers up
// in reg instead of the resolver's own registry. A nil reg means the
// resolver's registry.
func (r *Resolver) GetDataFrom(ctx context.Context, id DatumID, reg *Registry) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	datum, err := r.datumLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	handler, err := r.specHandlerLocked(ctx, datum.resource, reg)
	if err != nil {
		return nil, err
	}
	// The handler call may block on I/O, but it holds an open resource
	// that invalidation would close from under it; keep the lock.
	return handler.Retrieve(datum.kwargs)
}

// SpecHandler returns the live handler instance for a resource,
// constructing and caching one on first use. A nil reg means the
// resolver's registry.
func (r *Resolver) SpecHandler(ctx context.Context, id ResourceID, reg *Registry) (Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.specHandlerLocked(ctx, id, reg)
}

// datumLocked returns the (resource id, kwargs) pair for a datum id,
// consulting the document store on miss and batch-prefetching every
// sibling datum of the same resource.
func (r *Resolver) datumLocked(ctx context.Context, id DatumID) (datumEntry, error) {
	if entry, ok := r.datums.get(id); ok {
		return entry, nil
	}

	rec, err := r.docs.Datum(ctx, id)
	if err != nil {
		return datumEntry{}, err
	}
	if rec == nil {
		return datumEntry{}, fmt.Errorf("assay: datum %q: %w", id, ErrDatumNotFound)
	}
	entry := datumEntry{resource: rec.ResourceID, kwargs: rec.RetrievalKwargs}
	r.datums.add(id, entry)

	// Repeated lookups tend to walk a whole resource, so amortize the
	// round trips: pull every sibling datum into the cache now.
	siblings, err := r.docs.DatumsByResource(ctx, rec.ResourceID)
	if err != nil {
		// The requested datum itself resolved; prefetch is best effort.
		r.log.Warn("assay: sibling datum prefetch failed",
			"resource", rec.ResourceID, "error", err)
		return entry, nil
	}
	for _, sib := range siblings {
		if r.datums.contains(sib.DatumID) {
			continue
		}
		r.datums.add(sib.DatumID, datumEntry{
			resource: sib.ResourceID,
			kwargs:   sib.RetrievalKwargs,
		})
	}
	if len(siblings) > r.datums.maxSize {
		// Capacity overrun degrades hit rate, never correctness.
		r.log.Warn("assay: resource holds more datums than the datum cache",
			"resource", rec.ResourceID,
			"datums", len(siblings),
			"cache_size", r.datums.maxSize)
	}
	return entry, nil
}

// specHandlerLocked performs registry lookup, resource-record fetch,
// and handler construction, caching the constructed instance.
func (r *Resolver) specHandlerLocked(ctx context.Context, id ResourceID, reg *Registry) (Handler, error) {
	if reg == nil {
		reg = r.registry
	}

	rec, err := r.resources.get(ctx, id)
	if err != nil {
		return nil, err
	}
	h, err := reg.Lookup(rec.Spec)
	if err != nil {
		return nil, err
	}

	key := handlerKey{resource: id, handlerType: h.Name}
	if handler, ok := r.handlers.get(key); ok {
		return handler, nil
	}

	handler, err := h.New(rec.Path, rec.OpenKwargs)
	if err != nil {
		// Not cached: a later resolution retries construction.
		return nil, fmt.Errorf("assay: constructing %q for resource %q: %v: %w",
			h.Name, id, err, ErrHandlerConstruction)
	}
	r.handlers.put(key, handler)
	return handler, nil
}
