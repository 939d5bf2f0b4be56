// Package assay resolves opaque datum identifiers to concrete payloads
// stored in externally managed files and blobs.
//
// A metadata catalog records that a datum belongs to a resource along
// with the kwargs needed to retrieve it; format-specific handlers know
// how to open a resource and produce payloads. Assay is the indirection
// layer in between: a pluggable handler registry, a three-tier cache
// (datum, resource, open handler instance), and the dispatch that turns
// a datum id into data without callers knowing file formats or open
// lifecycles.
package assay

import (
	"context"
	"errors"
	"io"
)

// -----------------------------------------------------------------------------
// Core types
// -----------------------------------------------------------------------------

// ResourceID uniquely identifies an externally stored resource and is
// stable for its lifetime.
type ResourceID string

// DatumID uniquely identifies one retrievable unit within a resource.
type DatumID string

// Kwargs holds free-form name/value parameters passed to handlers.
type Kwargs map[string]any

// Clone returns a shallow copy of the kwargs.
func (k Kwargs) Clone() Kwargs {
	if k == nil {
		return nil
	}
	out := make(Kwargs, len(k))
	for key, v := range k {
		out[key] = v
	}
	return out
}

// ResourceRecord identifies one externally stored blob/file.
//
// Records are created once by the catalog writer and are immutable
// thereafter.
type ResourceRecord struct {
	// ID is the opaque, stable resource identifier.
	ID ResourceID `json:"id"`

	// Spec names the format/handler family required to open this
	// resource (for example, "AD_HDF5"). Must be non-empty.
	Spec string `json:"spec"`

	// Path is the location of the resource. Must be non-empty.
	Path string `json:"path"`

	// OpenKwargs are passed verbatim to the handler constructor.
	OpenKwargs Kwargs `json:"open_kwargs,omitempty"`
}

// DatumRecord identifies one retrievable unit within a resource.
//
// There is a many-to-one mapping between datums and resources.
type DatumRecord struct {
	// DatumID is globally unique across the whole catalog.
	DatumID DatumID `json:"datum_id"`

	// ResourceID references the owning ResourceRecord.
	ResourceID ResourceID `json:"resource_id"`

	// RetrievalKwargs are passed to the opened handler to fetch this
	// specific datum.
	RetrievalKwargs Kwargs `json:"retrieval_kwargs,omitempty"`
}

// -----------------------------------------------------------------------------
// Handler contract
// -----------------------------------------------------------------------------

// Handler is a format-specific reader, constructed once per resource and
// capable of producing payloads for many datums within that resource.
//
// Close releases any held resource (an open file, a network connection)
// and must be safe to call more than once.
type Handler interface {
	// Retrieve produces the payload identified by the datum's
	// retrieval kwargs.
	Retrieve(kwargs Kwargs) (any, error)

	io.Closer
}

// Constructor opens a resource and returns a live handler for it.
//
// path and kwargs come unmodified from the ResourceRecord.
type Constructor func(path string, kwargs Kwargs) (Handler, error)

// HandlerType pairs a constructor with its identity.
//
// Name is the handler-type identity used for duplicate-registration
// checks and for handler-cache invalidation: two HandlerType values
// with the same Name are treated as the same handler type.
type HandlerType struct {
	Name string
	New  Constructor
}

// Zero reports whether the HandlerType is the zero value.
func (h HandlerType) Zero() bool { return h.Name == "" && h.New == nil }

// -----------------------------------------------------------------------------
// Document store
// -----------------------------------------------------------------------------

// DocumentStore is the external catalog holding resource and datum
// records. Records are immutable after creation; assay performs no
// writes through this interface.
type DocumentStore interface {
	// Resource fetches a resource record by id.
	// Returns ErrResourceNotFound if absent.
	Resource(ctx context.Context, id ResourceID) (*ResourceRecord, error)

	// Datum fetches a single datum record by id.
	// Returns ErrDatumNotFound if absent.
	Datum(ctx context.Context, id DatumID) (*DatumRecord, error)

	// DatumsByResource fetches every datum record belonging to the
	// given resource.
	DatumsByResource(ctx context.Context, id ResourceID) ([]*DatumRecord, error)
}

// -----------------------------------------------------------------------------
// Blob store
// -----------------------------------------------------------------------------

// Store abstracts the object storage the catalog documents live in.
//
// Implementations may target filesystems, S3, or other object stores.
// The interface is intentionally minimal to avoid backend-specific
// leakage.
type Store interface {
	// Put writes data to the given path, replacing any prior content.
	Put(ctx context.Context, path string, r io.Reader) error

	// Get retrieves data from the given path.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists checks whether a path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns paths under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the path if it exists.
	Delete(ctx context.Context, path string) error
}

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// Error sentinel values for common conditions. All are wrapped with
// context; match with errors.Is.
var (
	// ErrDuplicateHandler indicates an attempt to register a second
	// handler type for a spec that already has a different one.
	ErrDuplicateHandler = errors.New("duplicate handler")

	// ErrUnknownSpec indicates no handler is registered for a
	// resource's spec.
	ErrUnknownSpec = errors.New("unknown spec")

	// ErrResourceNotFound indicates the document store has no resource
	// record with the requested id.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrDatumNotFound indicates the document store has no datum
	// record with the requested id.
	ErrDatumNotFound = errors.New("datum not found")

	// ErrHandlerConstruction indicates a handler constructor failed to
	// open its resource. Construction failures are never cached; a
	// later resolution retries construction.
	ErrHandlerConstruction = errors.New("handler construction failed")
)
