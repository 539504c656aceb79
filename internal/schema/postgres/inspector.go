package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/schema"
)

const columnsQuery = `
SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = 'public'
ORDER BY table_name ASC, ordinal_position ASC`

type Options struct {
	Driver       string
	DSN          string
	PingTimeout  time.Duration
	QueryTimeout time.Duration
}

// Inspector reads table and column definitions from information_schema
// over a connection scoped to each call, same discipline as the query
// engine: open, introspect, close.
type Inspector struct {
	opts Options
}

func NewInspector(opts Options) *Inspector {
	return &Inspector{opts: opts}
}

func (i *Inspector) Tables(ctx context.Context) ([]schema.Table, error) {
	db, err := database.Open(ctx, database.Options{
		Driver:      i.opts.Driver,
		DSN:         i.opts.DSN,
		PingTimeout: i.opts.PingTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open inspection connection: %w", err)
	}
	defer func() { _ = db.Close() }()

	queryCtx := ctx
	if i.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, i.opts.QueryTimeout)
		defer cancel()
	}

	rows, err := db.QueryContext(queryCtx, columnsQuery)
	if err != nil {
		return nil, fmt.Errorf("query information_schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]schema.Table, 0)
	for rows.Next() {
		var tableName, columnName, dataType string
		if err := rows.Scan(&tableName, &columnName, &dataType); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		if len(tables) == 0 || tables[len(tables)-1].Name != tableName {
			tables = append(tables, schema.Table{Name: tableName})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, schema.Column{Name: columnName, DataType: dataType})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	return tables, nil
}
