package query

import (
	"context"
	"fmt"

	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/config"
	"github.com/obsidianstack/clickhouse-bridge/pkg/types"
)

// Store runs one query and returns its full result set.
// Implementations must be safe for concurrent use.
type Store interface {
	Query(ctx context.Context, q string) ([]types.MetricRow, error)
}

// Error reports which query in the batch failed.
type Error struct {
	// Index is the query's position in the configured list.
	Index int
	Query string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("query %d (%s): %v", e.Index, e.Query, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Executor runs a fixed, ordered list of queries against a Store.
// It holds no per-run state and may be shared between concurrent scrapes.
type Executor struct {
	store   Store
	queries []string
}

// New returns an Executor over queries. An empty list is replaced by
// config.DefaultQuery. The slice is copied.
func New(store Store, queries []string) *Executor {
	if len(queries) == 0 {
		queries = []string{config.DefaultQuery}
	}
	qs := make([]string, len(queries))
	copy(qs, queries)
	return &Executor{store: store, queries: qs}
}

// Queries returns the queries in execution order.
func (e *Executor) Queries() []string {
	out := make([]string, len(e.queries))
	copy(out, e.queries)
	return out
}

// Run issues every query in order, one at a time, and returns one row slice
// per query. The first failure ends the run: later queries are not issued,
// nothing collected so far is returned, and the error is an *Error.
// A cancelled or expired ctx is a failure like any other.
func (e *Executor) Run(ctx context.Context) ([][]types.MetricRow, error) {
	out := make([][]types.MetricRow, 0, len(e.queries))
	for i, q := range e.queries {
		if err := ctx.Err(); err != nil {
			return nil, &Error{Index: i, Query: q, Err: err}
		}
		rows, err := e.store.Query(ctx, q)
		if err != nil {
			return nil, &Error{Index: i, Query: q, Err: err}
		}
		out = append(out, rows)
	}
	return out, nil
}
