package handlers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/justapithecus/assay/assay"
)

type eventRow struct {
	Name  string `parquet:"name"`
	Count int64  `parquet:"count"`
}

// writeParquet writes one row group per batch.
func writeParquet(t *testing.T, batches ...[]eventRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.parquet")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := parquet.NewGenericWriter[eventRow](f)
	for _, batch := range batches {
		if _, err := w.Write(batch); err != nil {
			t.Fatal(err)
		}
		if err := w.Flush(); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParquetRows_RetrieveRowGroup(t *testing.T) {
	path := writeParquet(t,
		[]eventRow{{Name: "a", Count: 1}, {Name: "b", Count: 2}},
		[]eventRow{{Name: "c", Count: 3}},
	)

	h, err := NewParquetRows(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	payload, err := h.Retrieve(assay.Kwargs{"row_group": 1})
	if err != nil {
		t.Fatal(err)
	}
	rows, ok := payload.([]map[string]any)
	if !ok {
		t.Fatalf("unexpected payload type %T", payload)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row in group 1, got %d", len(rows))
	}
	if rows[0]["name"] != "c" || rows[0]["count"] != int64(3) {
		t.Errorf("unexpected row: %v", rows[0])
	}
}

func TestParquetRows_RowGroupOutOfRange(t *testing.T) {
	path := writeParquet(t, []eventRow{{Name: "a", Count: 1}})
	h, err := NewParquetRows(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	if _, err := h.Retrieve(assay.Kwargs{"row_group": 7}); err == nil {
		t.Error("out-of-range row group did not error")
	}
	if _, err := h.Retrieve(nil); err == nil {
		t.Error("missing row_group kwarg did not error")
	}
}

func TestParquetRows_NotParquetFailsConstruction(t *testing.T) {
	path := writeFile(t, "not.parquet", "plain text")
	if _, err := NewParquetRows(path, nil); err == nil {
		t.Error("construction over a non-parquet file did not error")
	}
}

func TestParquetRows_RetrieveAfterClose(t *testing.T) {
	path := writeParquet(t, []eventRow{{Name: "a", Count: 1}})
	h, err := NewParquetRows(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Retrieve(assay.Kwargs{"row_group": 0}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got: %v", err)
	}
}
