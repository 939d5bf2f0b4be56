package handlers

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/justapithecus/assay/assay"
)

// ParquetRows handles Parquet resources with flat schemas, one row
// group per datum.
//
// Open kwargs: none.
//
// Retrieval kwargs:
//   - row_group (integer): zero-based row group index. The payload is
//     the row group's rows as []map[string]any.
var ParquetRows = assay.HandlerType{Name: "ParquetRows", New: NewParquetRows}

type parquetRows struct {
	file    *os.File
	pq      *parquet.File
	columns []string
}

// NewParquetRows opens a Parquet resource. The backing file stays open
// until Close so row groups are read on demand.
func NewParquetRows(path string, _ assay.Kwargs) (assay.Handler, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	pq, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("handlers: opening parquet %s: %w", path, err)
	}

	fields := pq.Schema().Fields()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name()
	}
	return &parquetRows{file: file, pq: pq, columns: columns}, nil
}

func (h *parquetRows) Retrieve(kwargs assay.Kwargs) (any, error) {
	if h.pq == nil {
		return nil, ErrClosed
	}
	rowGroup, err := intKwarg(kwargs, "row_group")
	if err != nil {
		return nil, err
	}
	groups := h.pq.RowGroups()
	if rowGroup < 0 || rowGroup >= len(groups) {
		return nil, fmt.Errorf("handlers: row_group %d out of range [0, %d)", rowGroup, len(groups))
	}

	rg := groups[rowGroup]
	rows := rg.Rows()
	defer func() { _ = rows.Close() }()

	out := make([]map[string]any, 0, rg.NumRows())
	buf := make([]parquet.Row, 64)
	for {
		n, err := rows.ReadRows(buf)
		for i := 0; i < n; i++ {
			out = append(out, h.rowToRecord(buf[i]))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("handlers: reading row group %d: %w", rowGroup, err)
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}

func (h *parquetRows) rowToRecord(row parquet.Row) map[string]any {
	record := make(map[string]any, len(h.columns))
	for i, col := range h.columns {
		if i >= len(row) {
			break
		}
		record[col] = valueToAny(row[i])
	}
	return record
}

func valueToAny(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return v.Int32()
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return v.Float()
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

func (h *parquetRows) Close() error {
	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	h.pq = nil
	return err
}
