package assay

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// maxDocumentSize bounds a single serialized catalog document.
const maxDocumentSize = 10 * 1024 * 1024 // 10MB

// Catalog writer errors.
var (
	// ErrDuplicateRecord indicates an insert with an id the catalog
	// already holds.
	ErrDuplicateRecord = errors.New("duplicate record")

	// ErrResourceInUse indicates a resource delete denied because
	// datum records still reference it.
	ErrResourceInUse = errors.New("resource in use")

	// ErrInvalidRecord indicates a record that fails catalog
	// validation (missing required fields, unknown kwarg shape).
	ErrInvalidRecord = errors.New("invalid record")
)

// -----------------------------------------------------------------------------
// In-memory catalog
// -----------------------------------------------------------------------------

// Catalog is an in-process document store with the writer API the
// resolver's collaborator (the catalog writer) uses to register
// resources and datums.
//
// Records are immutable once inserted. A resource cannot be deleted
// while any datum references it. Safe for concurrent use.
type Catalog struct {
	mu         sync.RWMutex
	resources  map[ResourceID]*ResourceRecord
	datums     map[DatumID]*DatumRecord
	byResource map[ResourceID][]DatumID
}

// NewCatalog creates an empty in-memory catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		resources:  make(map[ResourceID]*ResourceRecord),
		datums:     make(map[DatumID]*DatumRecord),
		byResource: make(map[ResourceID][]DatumID),
	}
}

// InsertResource registers a new external resource.
//
// The record must carry a non-empty id, spec, and path. When the spec
// is one of the known built-in specs, the open kwargs are validated
// against its declared shape.
func (c *Catalog) InsertResource(_ context.Context, rec ResourceRecord) error {
	if err := validateResource(&rec); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertResourceLocked(rec)
}

func (c *Catalog) insertResourceLocked(rec ResourceRecord) error {
	if _, ok := c.resources[rec.ID]; ok {
		return fmt.Errorf("assay: resource %q: %w", rec.ID, ErrDuplicateRecord)
	}
	cp := rec
	cp.OpenKwargs = rec.OpenKwargs.Clone()
	c.resources[rec.ID] = &cp
	return nil
}

// InsertDatum registers a new datum within an existing resource.
//
// The datum id must be unique across the catalog and the owning
// resource must already exist.
func (c *Catalog) InsertDatum(_ context.Context, rec DatumRecord) error {
	if err := validateDatum(&rec); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertDatumLocked(rec)
}

func (c *Catalog) insertDatumLocked(rec DatumRecord) error {
	if _, ok := c.datums[rec.DatumID]; ok {
		return fmt.Errorf("assay: datum %q: %w", rec.DatumID, ErrDuplicateRecord)
	}
	owner, ok := c.resources[rec.ResourceID]
	if !ok {
		return fmt.Errorf("assay: datum %q references resource %q: %w",
			rec.DatumID, rec.ResourceID, ErrResourceNotFound)
	}
	if shape, ok := KnownSpec(owner.Spec); ok {
		if err := shape.ValidateDatumKwargs(rec.RetrievalKwargs); err != nil {
			return fmt.Errorf("assay: datum %q: %v: %w", rec.DatumID, err, ErrInvalidRecord)
		}
	}
	cp := rec
	cp.RetrievalKwargs = rec.RetrievalKwargs.Clone()
	c.datums[rec.DatumID] = &cp
	c.byResource[rec.ResourceID] = append(c.byResource[rec.ResourceID], rec.DatumID)
	return nil
}

// DeleteResource removes a resource record. Denied with
// ErrResourceInUse while any datum still references the resource.
func (c *Catalog) DeleteResource(_ context.Context, id ResourceID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.resources[id]; !ok {
		return fmt.Errorf("assay: resource %q: %w", id, ErrResourceNotFound)
	}
	if n := len(c.byResource[id]); n > 0 {
		return fmt.Errorf("assay: resource %q referenced by %d datums: %w",
			id, n, ErrResourceInUse)
	}
	delete(c.resources, id)
	delete(c.byResource, id)
	return nil
}

// Resource implements DocumentStore.
func (c *Catalog) Resource(_ context.Context, id ResourceID) (*ResourceRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.resources[id]
	if !ok {
		return nil, fmt.Errorf("assay: resource %q: %w", id, ErrResourceNotFound)
	}
	return rec, nil
}

// Datum implements DocumentStore.
func (c *Catalog) Datum(_ context.Context, id DatumID) (*DatumRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.datums[id]
	if !ok {
		return nil, fmt.Errorf("assay: datum %q: %w", id, ErrDatumNotFound)
	}
	return rec, nil
}

// DatumsByResource implements DocumentStore. Datums are returned in
// insertion order.
func (c *Catalog) DatumsByResource(_ context.Context, id ResourceID) ([]*DatumRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := c.byResource[id]
	out := make([]*DatumRecord, 0, len(ids))
	for _, did := range ids {
		out = append(out, c.datums[did])
	}
	return out, nil
}

func validateResource(rec *ResourceRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("assay: resource id must be non-empty: %w", ErrInvalidRecord)
	}
	if rec.Spec == "" {
		return fmt.Errorf("assay: resource %q: spec must be non-empty: %w", rec.ID, ErrInvalidRecord)
	}
	if rec.Path == "" {
		return fmt.Errorf("assay: resource %q: path must be non-empty: %w", rec.ID, ErrInvalidRecord)
	}
	if shape, ok := KnownSpec(rec.Spec); ok {
		if err := shape.ValidateResourceKwargs(rec.OpenKwargs); err != nil {
			return fmt.Errorf("assay: resource %q: %v: %w", rec.ID, err, ErrInvalidRecord)
		}
	}
	return nil
}

func validateDatum(rec *DatumRecord) error {
	if rec.DatumID == "" {
		return fmt.Errorf("assay: datum id must be non-empty: %w", ErrInvalidRecord)
	}
	if rec.ResourceID == "" {
		return fmt.Errorf("assay: datum %q: resource id must be non-empty: %w",
			rec.DatumID, ErrInvalidRecord)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Store-backed catalog
// -----------------------------------------------------------------------------

const (
	resourcesDoc = "catalog/resources.jsonl"
	datumsDoc    = "catalog/datums.jsonl"
)

// StoreCatalog is a Catalog persisted as JSONL documents over a blob
// Store, so the same catalog works over a local directory, memory, or
// an S3 bucket.
//
// Every insert rewrites the affected document; catalogs are written by
// a single writer per the collaborator contract in the system design.
type StoreCatalog struct {
	*Catalog
	store Store

	writeMu sync.Mutex // serializes document rewrites
}

// OpenStoreCatalog loads (or initializes) a catalog persisted in the
// given store.
func OpenStoreCatalog(ctx context.Context, store Store) (*StoreCatalog, error) {
	if store == nil {
		return nil, fmt.Errorf("assay: store is required")
	}
	sc := &StoreCatalog{Catalog: NewCatalog(), store: store}
	if err := sc.load(ctx); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *StoreCatalog) load(ctx context.Context) error {
	err := readJSONLines(ctx, sc.store, resourcesDoc, func(line []byte) error {
		var rec ResourceRecord
		if err := jsonCodec.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("assay: loading %s: %w", resourcesDoc, err)
		}
		return sc.Catalog.InsertResource(ctx, rec)
	})
	if err != nil {
		return err
	}
	return readJSONLines(ctx, sc.store, datumsDoc, func(line []byte) error {
		var rec DatumRecord
		if err := jsonCodec.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("assay: loading %s: %w", datumsDoc, err)
		}
		return sc.Catalog.InsertDatum(ctx, rec)
	})
}

// InsertResource registers a resource and persists the catalog.
func (sc *StoreCatalog) InsertResource(ctx context.Context, rec ResourceRecord) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	if err := sc.Catalog.InsertResource(ctx, rec); err != nil {
		return err
	}
	return sc.flushResources(ctx)
}

// InsertDatum registers a datum and persists the catalog.
func (sc *StoreCatalog) InsertDatum(ctx context.Context, rec DatumRecord) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	if err := sc.Catalog.InsertDatum(ctx, rec); err != nil {
		return err
	}
	return sc.flushDatums(ctx)
}

// DeleteResource removes a resource (subject to the in-use rule) and
// persists the catalog.
func (sc *StoreCatalog) DeleteResource(ctx context.Context, id ResourceID) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	if err := sc.Catalog.DeleteResource(ctx, id); err != nil {
		return err
	}
	return sc.flushResources(ctx)
}

func (sc *StoreCatalog) flushResources(ctx context.Context) error {
	sc.mu.RLock()
	ids := make([]string, 0, len(sc.resources))
	for id := range sc.resources {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	var buf bytes.Buffer
	enc := jsonCodec.NewEncoder(&buf)
	for _, id := range ids {
		if err := enc.Encode(sc.resources[ResourceID(id)]); err != nil {
			sc.mu.RUnlock()
			return err
		}
	}
	sc.mu.RUnlock()
	return sc.store.Put(ctx, resourcesDoc, &buf)
}

func (sc *StoreCatalog) flushDatums(ctx context.Context) error {
	sc.mu.RLock()
	ids := make([]string, 0, len(sc.datums))
	for id := range sc.datums {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	var buf bytes.Buffer
	enc := jsonCodec.NewEncoder(&buf)
	for _, id := range ids {
		if err := enc.Encode(sc.datums[DatumID(id)]); err != nil {
			sc.mu.RUnlock()
			return err
		}
	}
	sc.mu.RUnlock()
	return sc.store.Put(ctx, datumsDoc, &buf)
}

// readJSONLines streams a JSONL document from the store, calling fn for
// each non-empty line. A missing document is treated as empty.
func readJSONLines(ctx context.Context, store Store, path string, fn func(line []byte) error) error {
	rc, err := store.Get(ctx, path)
	if err != nil {
		if errors.Is(err, ErrPathNotFound) {
			return nil
		}
		return err
	}
	defer func() { _ = rc.Close() }()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxDocumentSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
