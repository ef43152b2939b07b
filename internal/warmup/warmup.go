// Package warmup prefetches historical candles before a trading session so
// strategies start with context instead of an empty window.
package warmup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/rxtech-lab/pulse-trading/internal/config"
	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"github.com/rxtech-lab/pulse-trading/pkg/marketdata"
	"github.com/rxtech-lab/pulse-trading/pkg/marketdata/provider"
)

// CandleDownloader fetches one instrument's candles into a Parquet file.
type CandleDownloader interface {
	Download(ctx context.Context, params marketdata.DownloadParams) (string, error)
}

// Manager downloads a trailing window of candles for each configured
// instrument. A failed instrument is logged and skipped so one bad symbol
// cannot hold up the session.
type Manager struct {
	config     config.WarmupConfig
	downloader CandleDownloader
	log        *logger.Logger
	nowFn      func() time.Time
}

// NewManager builds a warmup manager writing under dataDir. When warmup is
// disabled no downloader is constructed and Prefetch is a no-op.
func NewManager(cfg config.WarmupConfig, dataDir string, log *logger.Logger) (*Manager, error) {
	m := &Manager{
		config:     cfg,
		downloader: nil,
		log:        log.Named("warmup"),
		nowFn:      time.Now,
	}

	if !cfg.Enabled {
		return m, nil
	}

	client, err := marketdata.NewClient(marketdata.ClientConfig{
		Source:        provider.Source(cfg.Provider),
		DataDir:       dataDir,
		PolygonAPIKey: cfg.PolygonAPIKey,
	}, nil)
	if err != nil {
		return nil, err
	}

	m.downloader = client

	return m, nil
}

// Prefetch downloads the configured history window for every instrument and
// returns the paths of the written Parquet files. Instruments that fail are
// skipped; only cancellation aborts the run.
func (m *Manager) Prefetch(ctx context.Context, instruments []string) ([]string, error) {
	if !m.config.Enabled {
		m.log.Info("historical warmup disabled, skipping")

		return nil, nil
	}

	interval, err := marketdata.ParseInterval(m.config.Interval)
	if err != nil {
		return nil, err
	}

	end := m.nowFn()
	start := end.AddDate(0, 0, -m.config.Days)

	m.log.Info("starting historical warmup",
		zap.Strings("instruments", instruments),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.String("interval", string(interval)),
	)

	var paths []string

	for _, instrument := range instruments {
		if err := ctx.Err(); err != nil {
			return paths, errors.Wrap(errors.ErrCodeHistoricalDataFailed, "warmup cancelled", err)
		}

		path, err := m.downloader.Download(ctx, marketdata.DownloadParams{
			Instrument: instrument,
			Start:      start,
			End:        end,
			Interval:   interval,
		})
		if err != nil {
			m.log.Warn("failed to warm up instrument",
				zap.String("instrument", instrument),
				zap.Error(err),
			)

			continue
		}

		paths = append(paths, path)
	}

	m.log.Info("historical warmup completed",
		zap.Int("downloaded", len(paths)),
		zap.Int("requested", len(instruments)),
	)

	return paths, nil
}

// LastCandleTime reads the newest candle timestamp from a warmup file.
func LastCandleTime(parquetPath string) (time.Time, error) {
	if _, err := os.Stat(parquetPath); os.IsNotExist(err) {
		return time.Time{}, errors.Newf(errors.ErrCodeHistoricalDataFailed, "warmup file does not exist: %s", parquetPath)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return time.Time{}, errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to open duckdb", err)
	}

	defer db.Close()

	safePath := strings.ReplaceAll(parquetPath, "'", "''")

	var last sql.NullTime

	if err := db.QueryRow(fmt.Sprintf(`SELECT max(time) FROM read_parquet('%s')`, safePath)).Scan(&last); err != nil {
		return time.Time{}, errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to query warmup file", err)
	}

	if !last.Valid {
		return time.Time{}, errors.Newf(errors.ErrCodeHistoricalDataFailed, "no candles in %s", parquetPath)
	}

	return last.Time, nil
}
