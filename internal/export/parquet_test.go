package export

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/askdb/askdb/internal/query"
)

func readParquetRows(t *testing.T, data []byte, n int) []map[string]any {
	t.Helper()
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	reader := parquet.NewGenericReader[map[string]any](bytes.NewReader(data), file.Schema())
	defer func() { _ = reader.Close() }()

	rows := make([]map[string]any, n)
	for i := range rows {
		rows[i] = map[string]any{}
	}
	count, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("reader.Read() error = %v", err)
	}
	if count != n {
		t.Fatalf("read rows = %d, want %d", count, n)
	}
	return rows
}

func TestEncodeParquetRoundTrip(t *testing.T) {
	result := query.Result{
		Columns: []string{"id", "name", "score", "active", "created_at"},
		Rows: [][]any{
			{int64(1), "Ada", 91.5, true, time.Date(2026, time.January, 15, 8, 30, 0, 0, time.UTC)},
			{int64(2), "Grace", 88.0, false, time.Date(2026, time.February, 1, 12, 0, 0, 0, time.UTC)},
		},
	}

	data, err := EncodeParquet(result)
	if err != nil {
		t.Fatalf("EncodeParquet() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty parquet payload")
	}

	rows := readParquetRows(t, data, 2)
	if got := rows[0]["id"]; got != int64(1) {
		t.Fatalf("rows[0][id] = %v (%T), want 1", got, got)
	}
	if got := rows[0]["name"]; got != "Ada" {
		t.Fatalf("rows[0][name] = %v, want Ada", got)
	}
	if got := rows[0]["score"]; got != 91.5 {
		t.Fatalf("rows[0][score] = %v, want 91.5", got)
	}
	if got := rows[0]["active"]; got != true {
		t.Fatalf("rows[0][active] = %v, want true", got)
	}
	if got := rows[0]["created_at"]; got != "2026-01-15T08:30:00Z" {
		t.Fatalf("rows[0][created_at] = %v, want RFC 3339 text", got)
	}
	if got := rows[1]["name"]; got != "Grace" {
		t.Fatalf("rows[1][name] = %v, want Grace", got)
	}
}

func TestEncodeParquetNullCells(t *testing.T) {
	result := query.Result{
		Columns: []string{"id", "email"},
		Rows: [][]any{
			{int64(1), "ada@example.com"},
			{int64(2), nil},
		},
	}

	data, err := EncodeParquet(result)
	if err != nil {
		t.Fatalf("EncodeParquet() error = %v", err)
	}

	rows := readParquetRows(t, data, 2)
	if got := rows[0]["email"]; got != "ada@example.com" {
		t.Fatalf("rows[0][email] = %v, want ada@example.com", got)
	}
	if got, ok := rows[1]["email"]; ok && got != nil && got != "" {
		t.Fatalf("rows[1][email] = %v, want NULL", got)
	}
	if got := rows[1]["id"]; got != int64(2) {
		t.Fatalf("rows[1][id] = %v, want 2", got)
	}
}

func TestEncodeParquetEmptyResultKeepsSchema(t *testing.T) {
	result := query.Result{Columns: []string{"total", "total", "ghost"}}

	data, err := EncodeParquet(result)
	if err != nil {
		t.Fatalf("EncodeParquet() error = %v", err)
	}

	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	if file.NumRows() != 0 {
		t.Fatalf("NumRows() = %d, want 0", file.NumRows())
	}

	names := map[string]bool{}
	for _, field := range file.Schema().Fields() {
		names[field.Name()] = true
	}
	for _, want := range []string{"total", "total_2", "ghost"} {
		if !names[want] {
			t.Fatalf("schema missing field %q, have %v", want, names)
		}
	}
}

func TestEncodeParquetAllNullColumnFallsBackToString(t *testing.T) {
	result := query.Result{
		Columns: []string{"id", "ghost"},
		Rows:    [][]any{{int64(1), nil}, {int64(2), nil}},
	}

	data, err := EncodeParquet(result)
	if err != nil {
		t.Fatalf("EncodeParquet() error = %v", err)
	}

	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	for _, field := range file.Schema().Fields() {
		if field.Name() != "ghost" {
			continue
		}
		if kind := field.Type().Kind(); kind != parquet.ByteArray {
			t.Fatalf("ghost column kind = %v, want ByteArray", kind)
		}
		return
	}
	t.Fatal("schema missing ghost column")
}

func TestEncodeParquetRejectsMixedColumn(t *testing.T) {
	result := query.Result{
		Columns: []string{"n"},
		Rows:    [][]any{{int64(1)}, {"two"}},
	}

	if _, err := EncodeParquet(result); err == nil {
		t.Fatal("EncodeParquet() error = nil, want mixed column rejection")
	}
}

func TestEncodeParquetRejectsEmptyColumns(t *testing.T) {
	if _, err := EncodeParquet(query.Result{}); err == nil {
		t.Fatal("EncodeParquet() error = nil, want missing columns rejection")
	}
}
