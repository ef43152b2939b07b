// Package marketdata downloads historical candles from external venues and
// stores them as Parquet files for warmup and offline study.
package marketdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"github.com/rxtech-lab/pulse-trading/pkg/marketdata/provider"
	"github.com/rxtech-lab/pulse-trading/pkg/marketdata/writer"
)

// ClientConfig holds the configuration for the market data client.
type ClientConfig struct {
	Source        provider.Source `validate:"required,oneof=binance polygon"`
	DataDir       string          `validate:"required"`
	PolygonAPIKey string          `validate:"required_if=Source polygon"`
}

// DownloadParams holds the parameters for one download request.
type DownloadParams struct {
	Instrument string    `validate:"required"`
	Start      time.Time `validate:"required"`
	End        time.Time `validate:"required,gtfield=Start"`
	Interval   Interval  `validate:"required"`
}

// Client downloads candles from a configured provider and stores them
// through a Parquet writer, one file per instrument and date range.
type Client struct {
	provider   provider.Provider
	config     ClientConfig
	validate   *validator.Validate
	onProgress provider.OnProgress
}

// NewClient creates a market data client. onProgress may be nil.
func NewClient(config ClientConfig, onProgress provider.OnProgress) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid market data configuration", err)
	}

	marketProvider, err := provider.New(config.Source, config.PolygonAPIKey)
	if err != nil {
		return nil, err
	}

	return &Client{
		provider:   marketProvider,
		config:     config,
		validate:   validate,
		onProgress: onProgress,
	}, nil
}

// Download fetches candles for the given parameters and returns the path of
// the written Parquet file.
func (c *Client) Download(ctx context.Context, params DownloadParams) (string, error) {
	if err := c.validate.Struct(params); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidParameter, "invalid download parameters", err)
	}

	interval, err := ParseInterval(string(params.Interval))
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(c.config.DataDir, 0o755); err != nil {
		return "", errors.Wrapf(errors.ErrCodeHistoricalDataFailed, err, "failed to create data directory %s", c.config.DataDir)
	}

	w := writer.NewDuckDBWriter(c.outputPath(params))
	defer func() { _ = w.Close() }()

	c.provider.ConfigWriter(w)

	return c.provider.Download(
		ctx,
		params.Instrument,
		params.Start,
		params.End,
		interval.Multiplier(),
		interval.PolygonTimespan(),
		c.onProgress,
	)
}

// outputPath builds INSTRUMENT_START_END_INTERVAL.parquet under the data
// directory.
func (c *Client) outputPath(params DownloadParams) string {
	name := fmt.Sprintf("%s_%s_%s_%s.parquet",
		params.Instrument,
		params.Start.Format("2006-01-02"),
		params.End.Format("2006-01-02"),
		params.Interval)

	return filepath.Join(c.config.DataDir, name)
}
