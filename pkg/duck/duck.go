// Package duck wraps an embedded DuckDB instance holding the Abu Dhabi
// sales transactions dataset. The raw CSV is exposed through a cleaned
// `sales` view with typed, snake_case columns.
package duck

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DB is the capability the rest of the system holds on the dataset engine.
// It is an explicit injected resource, never a package-level singleton, so
// tests can run multiple isolated instances.
type DB interface {
	Conn(ctx context.Context) (Connection, error)
	Close() error
}

// Connection is a single scoped connection to the dataset engine.
type Connection interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Close() error
}

// Dataset owns the embedded DuckDB handle and the sales view.
type Dataset struct {
	log *slog.Logger
	db  *sql.DB
}

type datasetConnection struct {
	conn *sql.Conn
}

func (c *datasetConnection) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

func (c *datasetConnection) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

func (c *datasetConnection) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.conn.QueryRowContext(ctx, query, args...)
}

func (c *datasetConnection) Close() error {
	return c.conn.Close()
}

// salesViewSQL maps the raw CSV headers to typed analytical columns.
// TRY_CAST keeps malformed source rows instead of failing the whole load.
const salesViewSQL = `
CREATE VIEW IF NOT EXISTS sales AS
SELECT
  "Asset Class"                                        AS asset_class,
  "Property Type"                                      AS property_type,
  TRY_CAST("Sale Application Date" AS DATE)            AS sale_date,
  TRY_CAST("Property Sold Area (SQM)" AS DOUBLE)       AS area_sqm,
  "Property Layout"                                    AS layout,
  "District"                                           AS district,
  "Community"                                          AS community,
  "Project Name"                                       AS project_name,
  TRY_CAST("Property Sale Price (AED)" AS DOUBLE)      AS price_aed,
  TRY_CAST("Property Sold Share" AS DOUBLE)            AS sold_share,
  TRY_CAST("Rate (AED per SQM)" AS DOUBLE)             AS rate_per_sqm,
  "Sale Application Type"                              AS sale_type,
  "Sale Sequence"                                      AS sale_sequence
FROM read_csv_auto('%s', HEADER=TRUE, IGNORE_ERRORS=TRUE)
`

// NewDataset opens an in-process DuckDB instance and creates the sales view
// over the given transactions CSV.
func NewDataset(ctx context.Context, log *slog.Logger, csvPath string) (*Dataset, error) {
	if err := validateCSVPath(csvPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	absPath, err := filepath.Abs(csvPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to get absolute path for dataset CSV: %w", err)
	}
	// DuckDB string literal, single quotes escaped by doubling.
	escaped := strings.ReplaceAll(absPath, "'", "''")

	if _, err := db.ExecContext(ctx, fmt.Sprintf(salesViewSQL, escaped)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sales view: %w", err)
	}

	var rowCount int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sales").Scan(&rowCount); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to count sales rows: %w", err)
	}
	log.Info("sales dataset loaded", "path", absPath, "rows", rowCount)

	return &Dataset{log: log, db: db}, nil
}

func (d *Dataset) Conn(ctx context.Context) (Connection, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &datasetConnection{conn: conn}, nil
}

func (d *Dataset) Close() error {
	return d.db.Close()
}

func validateCSVPath(path string) error {
	if path == "" {
		return fmt.Errorf("dataset CSV path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("dataset CSV not readable: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("dataset CSV path %q is a directory", path)
	}
	return nil
}
