// Package schema describes the queryable shape of the target database for
// prompt construction and the schema API.
package schema

import (
	"context"
	"strings"
)

type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

type Inspector interface {
	Tables(ctx context.Context) ([]Table, error)
}

// FormatHint renders tables as the prompt context block, one paragraph per
// table:
//
//	Table: items
//	Columns: id (bigint), name (text)
//
// Empty input renders an empty hint.
func FormatHint(tables []Table) string {
	if len(tables) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(tables))
	for _, table := range tables {
		var b strings.Builder
		b.WriteString("Table: ")
		b.WriteString(table.Name)
		b.WriteString("\nColumns: ")
		for i, column := range table.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(column.Name)
			b.WriteString(" (")
			b.WriteString(column.DataType)
			b.WriteString(")")
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}
