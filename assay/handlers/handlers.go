// Package handlers provides ready-made format handlers for the assay
// resolver.
//
// Handlers here are collaborator code: the resolver core treats every
// handler as opaque. They exist for common interchange formats (JSON
// Lines, Parquet, raw blobs) and double as reference implementations of
// the handler contract: constructed from (path, open kwargs), called
// with retrieval kwargs, closed exactly once per cached instance.
package handlers

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/justapithecus/assay/assay"
)

// ErrClosed indicates a Retrieve on a handler whose Close has already
// run.
var ErrClosed = errors.New("handler closed")

// intKwarg extracts an integer retrieval kwarg. JSON-decoded kwargs
// carry numbers as float64; both forms are accepted.
func intKwarg(kwargs assay.Kwargs, key string) (int, error) {
	v, ok := kwargs[key]
	if !ok {
		return 0, fmt.Errorf("handlers: missing kwarg %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("handlers: kwarg %q: %v is not an integer", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("handlers: kwarg %q: expected integer, got %T", key, v)
	}
}

// stringKwarg extracts an optional string kwarg, returning fallback
// when absent.
func stringKwarg(kwargs assay.Kwargs, key, fallback string) (string, error) {
	v, ok := kwargs[key]
	if !ok {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("handlers: kwarg %q: expected string, got %T", key, v)
	}
	return s, nil
}

// openDecompressed opens a file, transparently decompressing by the
// named compressor. An empty compressor falls back to sniffing the
// path extension (".gz", ".zst").
func openDecompressed(path, compressor string) (io.ReadCloser, error) {
	if compressor == "" {
		switch {
		case strings.HasSuffix(path, ".gz"):
			compressor = "gzip"
		case strings.HasSuffix(path, ".zst"):
			compressor = "zstd"
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch compressor {
	case "":
		return file, nil
	case "gzip":
		zr, err := gzip.NewReader(file)
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		return &chainedCloser{Reader: zr, closers: []io.Closer{zr, file}}, nil
	case "zstd":
		zr, err := zstd.NewReader(file)
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		return &chainedCloser{
			Reader:  zr,
			closers: []io.Closer{closerFunc(func() error { zr.Close(); return nil }), file},
		}, nil
	default:
		_ = file.Close()
		return nil, fmt.Errorf("handlers: unknown compressor %q", compressor)
	}
}

// chainedCloser closes wrapped decompressors before the backing file.
type chainedCloser struct {
	io.Reader
	closers []io.Closer
}

func (c *chainedCloser) Close() error {
	var errs []error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
