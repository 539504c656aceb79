package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/query"
)

type Options struct {
	Driver       string
	DSN          string
	QueryTimeout time.Duration
	PingTimeout  time.Duration
	MaxRows      int
}

// Engine executes one statement per call over a connection opened for the
// duration of that call. Nothing is pooled or shared across requests.
type Engine struct {
	opts Options
}

func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	statement := stripTrailingSemicolons(request.SQL)
	if statement == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}

	start := time.Now()
	db, err := database.Open(ctx, database.Options{
		Driver:      e.opts.Driver,
		DSN:         e.opts.DSN,
		PingTimeout: e.opts.PingTimeout,
	})
	if err != nil {
		return query.Result{}, fmt.Errorf("%w: %w", query.ErrConnection, err)
	}
	defer func() { _ = db.Close() }()

	execCtx := ctx
	if e.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.opts.QueryTimeout)
		defer cancel()
	}

	maxRows := request.MaxRows
	if maxRows <= 0 {
		maxRows = e.opts.MaxRows
	}

	rows, err := db.QueryContext(execCtx, statement)
	if err != nil {
		return query.Result{}, classify(err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("%w: %w", query.ErrExecution, err)
	}

	resultRows := make([][]any, 0)
	truncated := false
	for rows.Next() {
		if maxRows > 0 && len(resultRows) >= maxRows {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("%w: %w", query.ErrExecution, err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, classify(err)
	}

	return query.Result{
		Columns:   columns,
		Rows:      resultRows,
		Truncated: truncated,
		Duration:  time.Since(start),
	}, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || isTimeoutErr(err) {
		return fmt.Errorf("%w: %w", query.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", query.ErrExecution, err)
}

func isTimeoutErr(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
