package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"

	"github.com/obsidianstack/clickhouse-bridge/bridge/internal/config"
	"github.com/obsidianstack/clickhouse-bridge/pkg/types"
)

// ErrUnexpectedColumns is returned when a query's result set is not exactly
// the two columns metric and value.
var ErrUnexpectedColumns = errors.New("result must have exactly the columns metric, value")

// Client runs bridge queries against ClickHouse. The underlying *sql.DB is a
// connection pool, so one Client serves concurrent scrapes.
type Client struct {
	db *sqlx.DB
}

// Open builds a Client for the ClickHouse HTTP interface described by cfg.
// LZ4 compression is always on. No connection is made until the first query
// or Ping.
func Open(cfg config.ClickHouseConfig) (*Client, error) {
	tlsCfg, err := buildTLSConfig(cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("store: tls: %w", err)
	}

	db := clickhouse.OpenDB(&clickhouse.Options{
		Protocol: clickhouse.HTTP,
		Addr:     []string{cfg.Addr()},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password(),
		},
		TLS:         tlsCfg,
		DialTimeout: cfg.DialTimeout,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	return New(sqlx.NewDb(db, "clickhouse")), nil
}

// New wraps an existing handle. Tests use it with sqlmock.
func New(db *sqlx.DB) *Client {
	return &Client{db: db}
}

// Query runs q and decodes every row into a MetricRow. A result whose
// columns are not exactly metric and value fails the whole call, as does any
// row that does not decode.
func (c *Client) Query(ctx context.Context, q string) ([]types.MetricRow, error) {
	rows, err := c.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("store: columns: %w", err)
	}
	if err := checkColumns(cols); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	var out []types.MetricRow
	for rows.Next() {
		var r types.MetricRow
		if err := rows.StructScan(&r); err != nil {
			return nil, fmt.Errorf("store: decode row %d: %w", len(out), err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read rows: %w", err)
	}
	return out, nil
}

func checkColumns(cols []string) error {
	if len(cols) != 2 {
		return fmt.Errorf("%w (got %s)", ErrUnexpectedColumns, strings.Join(cols, ", "))
	}
	seen := map[string]bool{}
	for _, c := range cols {
		seen[c] = true
	}
	if !seen["metric"] || !seen["value"] {
		return fmt.Errorf("%w (got %s)", ErrUnexpectedColumns, strings.Join(cols, ", "))
	}
	return nil
}

// Ping verifies the server is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// DB exposes the pool for health checks.
func (c *Client) DB() *sql.DB {
	return c.db.DB
}

// Close releases pooled connections.
func (c *Client) Close() error {
	return c.db.Close()
}
