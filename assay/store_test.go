package assay

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"testing"
)

func storeImplementations(t *testing.T) map[string]Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "assay-store-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	fs, err := NewFSStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]Store{
		"fs":     fs,
		"memory": NewMemoryStore(),
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Put(ctx, "catalog/resources.jsonl", strings.NewReader("hello"))
			if err != nil {
				t.Fatal(err)
			}
			rc, err := store.Get(ctx, "catalog/resources.jsonl")
			if err != nil {
				t.Fatal(err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != "hello" {
				t.Errorf("expected %q, got %q", "hello", string(data))
			}
		})
	}
}

func TestStore_PutReplacesExisting(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Put(ctx, "doc", strings.NewReader("v1")); err != nil {
				t.Fatal(err)
			}
			if err := store.Put(ctx, "doc", strings.NewReader("v2")); err != nil {
				t.Fatal(err)
			}
			rc, err := store.Get(ctx, "doc")
			if err != nil {
				t.Fatal(err)
			}
			defer rc.Close()
			data, _ := io.ReadAll(rc)
			if string(data) != "v2" {
				t.Errorf("expected replacement value v2, got %q", string(data))
			}
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "nope/missing")
			if !errors.Is(err, ErrPathNotFound) {
				t.Errorf("expected ErrPathNotFound, got: %v", err)
			}
		})
	}
}

func TestStore_Exists(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := store.Exists(ctx, "doc")
			if err != nil {
				t.Fatal(err)
			}
			if ok {
				t.Error("Exists reported true before Put")
			}
			if err := store.Put(ctx, "doc", strings.NewReader("x")); err != nil {
				t.Fatal(err)
			}
			ok, err = store.Exists(ctx, "doc")
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Error("Exists reported false after Put")
			}
		})
	}
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			for _, p := range []string{"catalog/a", "catalog/b", "other/c"} {
				if err := store.Put(ctx, p, strings.NewReader("x")); err != nil {
					t.Fatal(err)
				}
			}
			paths, err := store.List(ctx, "catalog")
			if err != nil {
				t.Fatal(err)
			}
			sort.Strings(paths)
			if len(paths) != 2 {
				t.Fatalf("expected 2 paths under catalog, got %v", paths)
			}
			for _, p := range paths {
				if !strings.HasPrefix(p, "catalog/") {
					t.Errorf("listed path outside prefix: %q", p)
				}
			}
		})
	}
}

func TestStore_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Put(ctx, "doc", strings.NewReader("x")); err != nil {
				t.Fatal(err)
			}
			if err := store.Delete(ctx, "doc"); err != nil {
				t.Fatal(err)
			}
			// Deleting again is not an error.
			if err := store.Delete(ctx, "doc"); err != nil {
				t.Errorf("second delete failed: %v", err)
			}
			if _, err := store.Get(ctx, "doc"); !errors.Is(err, ErrPathNotFound) {
				t.Errorf("expected ErrPathNotFound after delete, got: %v", err)
			}
		})
	}
}

func TestStore_RejectsInvalidPaths(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			for _, p := range []string{"", "../escape", "a/../../b"} {
				if err := store.Put(ctx, p, strings.NewReader("x")); !errors.Is(err, ErrInvalidPath) {
					t.Errorf("Put(%q): expected ErrInvalidPath, got: %v", p, err)
				}
				if _, err := store.Get(ctx, p); !errors.Is(err, ErrInvalidPath) {
					t.Errorf("Get(%q): expected ErrInvalidPath, got: %v", p, err)
				}
			}
		})
	}
}
