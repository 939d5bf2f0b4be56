package handlers

import (
	"io"

	"github.com/justapithecus/assay/assay"
)

// Blob handles whole-file resources: the payload is the file's entire
// (decompressed) content as []byte. Useful when the catalog tracks
// opaque artifacts rather than framed data.
//
// Open kwargs:
//   - compressor (string, optional): "gzip" or "zstd"; sniffed from
//     the path extension when omitted.
//
// Retrieval kwargs: none.
var Blob = assay.HandlerType{Name: "Blob", New: NewBlob}

// blob defers the read to the first Retrieve, then keeps the content
// resident for the handler's lifetime.
type blob struct {
	path       string
	compressor string
	content    []byte
	closed     bool
}

// NewBlob opens a whole-file resource. The path must exist; content is
// read lazily on first retrieval.
func NewBlob(path string, kwargs assay.Kwargs) (assay.Handler, error) {
	compressor, err := stringKwarg(kwargs, "compressor", "")
	if err != nil {
		return nil, err
	}
	// Open once up front so construction fails loudly on a bad path.
	rc, err := openDecompressed(path, compressor)
	if err != nil {
		return nil, err
	}
	_ = rc.Close()
	return &blob{path: path, compressor: compressor}, nil
}

func (h *blob) Retrieve(_ assay.Kwargs) (any, error) {
	if h.closed {
		return nil, ErrClosed
	}
	if h.content == nil {
		rc, err := openDecompressed(h.path, h.compressor)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rc.Close() }()
		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		h.content = content
	}
	return h.content, nil
}

func (h *blob) Close() error {
	h.content = nil
	h.closed = true
	return nil
}
