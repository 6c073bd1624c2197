package duck

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LambaLab/abudhabi-sales-explorer/pkg/metrics"
)

// Row is one result row keyed by column name.
type Row = map[string]any

// Executor runs a parameterized query and returns plain rows. Binding is
// strictly positional: params[i] binds the i-th placeholder in the text.
type Executor struct {
	log *slog.Logger
	db  DB
}

// Config holds the configuration for an Executor.
type Config struct {
	Logger *slog.Logger
	DB     DB
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.DB == nil {
		return fmt.Errorf("database is required")
	}
	return nil
}

// NewExecutor creates an Executor over the given dataset handle.
func NewExecutor(cfg Config) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate executor config: %w", err)
	}
	return &Executor{log: cfg.Logger, db: cfg.DB}, nil
}

// Query executes a parameterized SQL query against the dataset and returns
// plain rows keyed by column name. []byte values are converted to strings
// so rows serialize cleanly as JSON.
func (e *Executor) Query(ctx context.Context, query string, params ...any) ([]Row, error) {
	start := time.Now()
	rows, err := e.query(ctx, query, params...)
	metrics.RecordDatasetQuery(time.Since(start), err)
	return rows, err
}

func (e *Executor) query(ctx context.Context, query string, params ...any) ([]Row, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	rs, err := conn.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rs.Close()

	columns, err := rs.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var resultRows []Row
	for rs.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rs.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(Row)
		for i, col := range columns {
			switch v := values[i].(type) {
			case nil:
				row[col] = nil
			case []byte:
				row[col] = string(v)
			default:
				row[col] = values[i]
			}
		}
		resultRows = append(resultRows, row)
	}

	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	e.log.Debug("dataset query executed", "rows", len(resultRows))
	return resultRows, nil
}
