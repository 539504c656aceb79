package query

import (
	"context"
	"errors"
	"time"
)

var (
	ErrConnection = errors.New("database connection failed")
	ErrExecution  = errors.New("statement rejected by database")
	ErrTimeout    = errors.New("statement execution timed out")
)

type Request struct {
	SQL     string
	MaxRows int
}

type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

// RowCount is a convenience for callers shaping responses.
func (r Result) RowCount() int {
	return len(r.Rows)
}

type Executor interface {
	Execute(ctx context.Context, request Request) (Result, error)
}
