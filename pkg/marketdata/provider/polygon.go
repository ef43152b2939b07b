package provider

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/schollz/progressbar/v3"

	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"github.com/rxtech-lab/pulse-trading/pkg/marketdata/writer"
)

type PolygonProvider struct {
	client *polygon.Client
	writer writer.MarketDataWriter
}

var _ Provider = (*PolygonProvider)(nil)

func NewPolygonProvider(apiKey string) (*PolygonProvider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "polygon API key is required")
	}

	return &PolygonProvider{
		client: polygon.New(apiKey),
		writer: nil,
	}, nil
}

func (p *PolygonProvider) ConfigWriter(w writer.MarketDataWriter) {
	p.writer = w
}

// Download streams aggregates through the paginating iterator and writes each
// candle as it arrives. The caller owns the writer's lifecycle; on error the
// partial transaction is discarded by the writer's Close.
func (p *PolygonProvider) Download(ctx context.Context, instrument string, start, end time.Time, multiplier int, timespan models.Timespan, onProgress OnProgress) (string, error) {
	if p.writer == nil {
		return "", errors.New(errors.ErrCodeHistoricalDataFailed, "no writer configured")
	}

	if err := p.writer.Initialize(); err != nil {
		return "", errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to initialize writer", err)
	}

	totalDays := int(end.Sub(start).Hours()/24) + 1
	bar := progressbar.NewOptions(totalDays,
		progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", instrument)),
		progressbar.OptionShowCount())

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     instrument,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithLimit(50000)

	iter := p.client.ListAggs(ctx, params)
	processed := 0

	for iter.Next() {
		agg := iter.Item()
		candle := types.MarketData{
			Id:     "",
			Symbol: instrument,
			Time:   time.Time(agg.Timestamp),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		}

		if err := p.writer.Write(candle); err != nil {
			return "", errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to write candle", err)
		}

		processed++
		if processed%1000 == 0 {
			daysElapsed := int(time.Time(agg.Timestamp).Sub(start).Hours() / 24)
			bar.Set(daysElapsed)
			report(onProgress, float64(daysElapsed), float64(totalDays), fmt.Sprintf("downloading %s candles", instrument))
		}
	}

	if iter.Err() != nil {
		return "", errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to iterate aggregates", iter.Err())
	}

	bar.Finish()
	report(onProgress, float64(totalDays), float64(totalDays), fmt.Sprintf("downloaded %d candles for %s", processed, instrument))

	path, err := p.writer.Finalize()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to finalize writer", err)
	}

	return path, nil
}
