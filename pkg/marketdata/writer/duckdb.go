package writer

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
)

// DuckDBWriter buffers candles in an in-memory DuckDB table and exports them
// to a Parquet file on Finalize. Writes happen inside one transaction with a
// prepared statement, so bulk downloads stay fast.
type DuckDBWriter struct {
	db         *sql.DB
	tx         *sql.Tx
	stmt       *sql.Stmt
	outputPath string
}

var _ MarketDataWriter = (*DuckDBWriter)(nil)

// NewDuckDBWriter creates a writer that exports to the given Parquet path.
func NewDuckDBWriter(outputPath string) *DuckDBWriter {
	return &DuckDBWriter{ //nolint:exhaustruct
		outputPath: outputPath,
	}
}

// Initialize opens the in-memory database, creates the candle table and
// starts the write transaction.
func (w *DuckDBWriter) Initialize() error {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to open duckdb", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS market_data (
			id TEXT,
			time TIMESTAMP,
			symbol TEXT,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE
		)
	`); err != nil {
		db.Close()

		return errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to create candle table", err)
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()

		return errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to begin transaction", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO market_data (id, time, symbol, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		db.Close()

		return errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to prepare insert", err)
	}

	w.db = db
	w.tx = tx
	w.stmt = stmt

	return nil
}

// Write inserts one candle. Candles without an ID get a generated one.
func (w *DuckDBWriter) Write(data types.MarketData) error {
	if w.stmt == nil {
		return errors.New(errors.ErrCodeHistoricalDataFailed, "writer is not initialized")
	}

	id := data.Id
	if id == "" {
		id = uuid.New().String()
	}

	if _, err := w.stmt.Exec(id, data.Time, data.Symbol, data.Open, data.High, data.Low, data.Close, data.Volume); err != nil {
		return errors.Wrapf(errors.ErrCodeHistoricalDataFailed, err, "failed to insert candle for %s", data.Symbol)
	}

	return nil
}

// Finalize commits the buffered candles and exports them to Parquet.
func (w *DuckDBWriter) Finalize() (string, error) {
	if w.tx == nil {
		return "", errors.New(errors.ErrCodeHistoricalDataFailed, "writer is not initialized")
	}

	if err := w.tx.Commit(); err != nil {
		_ = w.tx.Rollback()
		w.tx = nil

		return "", errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to commit candles", err)
	}

	w.tx = nil

	// Single quotes in the path would break the COPY statement.
	safePath := strings.ReplaceAll(w.outputPath, "'", "''")
	if _, err := w.db.Exec(fmt.Sprintf(`COPY market_data TO '%s' (FORMAT PARQUET)`, safePath)); err != nil {
		return "", errors.Wrapf(errors.ErrCodeHistoricalDataFailed, err, "failed to export parquet to %s", w.outputPath)
	}

	return w.outputPath, nil
}

// Close releases the statement, any open transaction and the database.
func (w *DuckDBWriter) Close() error {
	var firstErr error

	if w.stmt != nil {
		if err := w.stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}

		w.stmt = nil
	}

	if w.tx != nil {
		_ = w.tx.Rollback()
		w.tx = nil
	}

	if w.db != nil {
		if err := w.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}

		w.db = nil
	}

	if firstErr != nil {
		return errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to close writer", firstErr)
	}

	return nil
}

// OutputPath returns the Parquet path this writer exports to.
func (w *DuckDBWriter) OutputPath() string {
	return w.outputPath
}
