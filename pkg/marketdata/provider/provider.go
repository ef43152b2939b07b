package provider

import (
	"context"
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"github.com/rxtech-lab/pulse-trading/pkg/marketdata/writer"
)

// Source identifies a historical candle source.
type Source string

const (
	SourceBinance Source = "binance"
	SourcePolygon Source = "polygon"
)

// OnProgress is called as a download advances. done and total are in the
// provider's own units (time range covered, candles fetched); callers should
// treat them as a fraction.
type OnProgress = func(done float64, total float64, message string)

// Provider downloads historical candles for one instrument into a configured
// writer. Implementations paginate through the venue's API and stream each
// candle to the writer as it arrives.
type Provider interface {
	// ConfigWriter sets the destination for downloaded candles. Must be
	// called before Download.
	ConfigWriter(w writer.MarketDataWriter)
	// Download fetches candles in [start, end) at the given aggregate width
	// and returns the finalized output path.
	Download(ctx context.Context, instrument string, start, end time.Time, multiplier int, timespan models.Timespan, onProgress OnProgress) (string, error)
}

// New builds the provider for a source. Binance needs no credentials;
// polygon requires an API key.
func New(source Source, apiKey string) (Provider, error) {
	switch source {
	case SourceBinance:
		return NewBinanceProvider(), nil
	case SourcePolygon:
		return NewPolygonProvider(apiKey)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data source: %s", source)
	}
}

// SupportedSources returns the known source names.
func SupportedSources() []string {
	return []string{string(SourceBinance), string(SourcePolygon)}
}

func report(onProgress OnProgress, done, total float64, message string) {
	if onProgress != nil {
		onProgress(done, total, message)
	}
}
