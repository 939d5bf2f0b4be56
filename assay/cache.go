package assay

import (
	"container/list"
	"context"
	"errors"
)

// -----------------------------------------------------------------------------
// Datum cache (bounded LRU)
// -----------------------------------------------------------------------------

// DefaultDatumCacheSize bounds the datum cache when no explicit size is
// configured. Large but finite: datum counts dwarf resource counts.
const DefaultDatumCacheSize = 1_000_000

// datumEntry is the cached resolution of one datum id.
type datumEntry struct {
	resource ResourceID
	kwargs   Kwargs
}

// lruItem is one entry in the datum cache's recency list.
type lruItem struct {
	key   DatumID
	value datumEntry
}

// datumCache is a bounded least-recently-used map from datum id to its
// (resource id, retrieval kwargs) pair. Most recently used entries sit
// at the front of the list.
type datumCache struct {
	maxSize int
	ll      *list.List
	entries map[DatumID]*list.Element
}

func newDatumCache(maxSize int) *datumCache {
	return &datumCache{
		maxSize: maxSize,
		ll:      list.New(),
		entries: make(map[DatumID]*list.Element),
	}
}

// get returns the cached entry and refreshes its recency.
func (c *datumCache) get(id DatumID) (datumEntry, bool) {
	e, ok := c.entries[id]
	if !ok {
		return datumEntry{}, false
	}
	c.ll.MoveToFront(e)
	return e.Value.(*lruItem).value, true
}

// contains reports presence without touching recency. Used by the
// batch prefetch to skip datums that are already resident.
func (c *datumCache) contains(id DatumID) bool {
	_, ok := c.entries[id]
	return ok
}

// add inserts or refreshes an entry, evicting the least recently used
// entries once the configured capacity is exceeded.
func (c *datumCache) add(id DatumID, v datumEntry) {
	if e, ok := c.entries[id]; ok {
		c.ll.MoveToFront(e)
		e.Value.(*lruItem).value = v
		return
	}
	c.entries[id] = c.ll.PushFront(&lruItem{key: id, value: v})
	for c.ll.Len() > c.maxSize {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruItem).key)
	}
}

func (c *datumCache) len() int { return c.ll.Len() }

// -----------------------------------------------------------------------------
// Resource cache (read-through, unbounded)
// -----------------------------------------------------------------------------

// resourceCache is a read-through cache of resource records. Resource
// records are immutable and resource counts are assumed small relative
// to datum counts, so entries live for the process lifetime with no
// eviction.
type resourceCache struct {
	loader  func(ctx context.Context, id ResourceID) (*ResourceRecord, error)
	records map[ResourceID]*ResourceRecord
}

func newResourceCache(loader func(ctx context.Context, id ResourceID) (*ResourceRecord, error)) *resourceCache {
	return &resourceCache{
		loader:  loader,
		records: make(map[ResourceID]*ResourceRecord),
	}
}

// get returns the cached record, calling the loader on miss and caching
// the result. Loader failures are not cached.
func (c *resourceCache) get(ctx context.Context, id ResourceID) (*ResourceRecord, error) {
	if rec, ok := c.records[id]; ok {
		return rec, nil
	}
	rec, err := c.loader(ctx, id)
	if err != nil {
		return nil, err
	}
	c.records[id] = rec
	return rec, nil
}

// -----------------------------------------------------------------------------
// Handler cache
// -----------------------------------------------------------------------------

// handlerKey identifies a live handler instance: one per (resource,
// handler type) pair at any time inside a process.
type handlerKey struct {
	resource    ResourceID
	handlerType string
}

// handlerCache holds live, opened handler instances. Entries are only
// removed by invalidation when their handler type is deregistered.
type handlerCache struct {
	handlers map[handlerKey]Handler
}

func newHandlerCache() *handlerCache {
	return &handlerCache{handlers: make(map[handlerKey]Handler)}
}

func (c *handlerCache) get(k handlerKey) (Handler, bool) {
	h, ok := c.handlers[k]
	return h, ok
}

func (c *handlerCache) put(k handlerKey, h Handler) {
	c.handlers[k] = h
}

// invalidate closes and removes every entry whose handler type matches
// the given name. Returns the number of entries removed and any close
// errors, joined.
func (c *handlerCache) invalidate(handlerType string) (int, error) {
	var (
		closed    int
		closeErrs []error
	)
	for k, h := range c.handlers {
		if k.handlerType != handlerType {
			continue
		}
		if err := h.Close(); err != nil {
			closeErrs = append(closeErrs, err)
		}
		delete(c.handlers, k)
		closed++
	}
	return closed, errors.Join(closeErrs...)
}

func (c *handlerCache) len() int { return len(c.handlers) }
