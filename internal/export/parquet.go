package export

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/askdb/askdb/internal/query"
)

// columnKind is the parquet physical type chosen for a result column. The
// kind comes from the first non-NULL cell; columns that are entirely NULL
// fall back to strings.
type columnKind int

const (
	kindString columnKind = iota
	kindInt
	kindFloat
	kindBool
)

// EncodeParquet writes the result as a single-row-group parquet file. Every
// field is optional so NULL cells survive the round trip. Timestamps and
// other non-scalar values are rendered through the same text form the CSV
// encoder uses.
func EncodeParquet(result query.Result) ([]byte, error) {
	if len(result.Columns) == 0 {
		return nil, fmt.Errorf("result has no columns")
	}

	names := parquetColumnNames(result.Columns)
	kinds := inferKinds(result)

	group := parquet.Group{}
	for i, name := range names {
		group[name] = kinds[i].node()
	}
	schema := parquet.NewSchema("result", group)

	records := make([]map[string]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		if len(row) != len(names) {
			return nil, fmt.Errorf("row has %d cells, expected %d", len(row), len(names))
		}
		record := make(map[string]any, len(row))
		for i, cell := range row {
			if cell == nil {
				continue
			}
			converted, err := convertCell(kinds[i], names[i], cell)
			if err != nil {
				return nil, err
			}
			record[names[i]] = converted
		}
		records = append(records, record)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[map[string]any](buf, schema)
	if len(records) > 0 {
		if _, err := writer.Write(records); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// parquetColumnNames deduplicates column names, which SQL allows but a
// parquet schema does not. Repeats get a numeric suffix.
func parquetColumnNames(columns []string) []string {
	names := make([]string, len(columns))
	seen := make(map[string]int, len(columns))
	for i, column := range columns {
		name := column
		if n := seen[column]; n > 0 {
			name = fmt.Sprintf("%s_%d", column, n+1)
		}
		seen[column]++
		names[i] = name
	}
	return names
}

func inferKinds(result query.Result) []columnKind {
	kinds := make([]columnKind, len(result.Columns))
	decided := make([]bool, len(result.Columns))
	for _, row := range result.Rows {
		for i := range kinds {
			if decided[i] || i >= len(row) {
				continue
			}
			if kind, ok := kindOfValue(row[i]); ok {
				kinds[i] = kind
				decided[i] = true
			}
		}
	}
	return kinds
}

func kindOfValue(value any) (columnKind, bool) {
	switch value.(type) {
	case nil:
		return kindString, false
	case int64, int32, int16, int, uint64:
		return kindInt, true
	case float64, float32:
		return kindFloat, true
	case bool:
		return kindBool, true
	default:
		return kindString, true
	}
}

func (k columnKind) node() parquet.Node {
	switch k {
	case kindInt:
		return parquet.Optional(parquet.Int(64))
	case kindFloat:
		return parquet.Optional(parquet.Leaf(parquet.DoubleType))
	case kindBool:
		return parquet.Optional(parquet.Leaf(parquet.BooleanType))
	default:
		return parquet.Optional(parquet.String())
	}
}

func convertCell(kind columnKind, column string, value any) (any, error) {
	switch kind {
	case kindInt:
		switch v := value.(type) {
		case int64:
			return v, nil
		case int32:
			return int64(v), nil
		case int16:
			return int64(v), nil
		case int:
			return int64(v), nil
		case uint64:
			return int64(v), nil
		}
	case kindFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		}
	case kindBool:
		if v, ok := value.(bool); ok {
			return v, nil
		}
	default:
		return formatValue(value), nil
	}
	return nil, fmt.Errorf("column %q: cannot encode %T alongside earlier values", column, value)
}
