package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"github.com/rxtech-lab/pulse-trading/pkg/marketdata/writer"
)

// binancePageSize is the kline API's maximum page size.
const binancePageSize = 500

type BinanceProvider struct {
	client *binance.Client
	writer writer.MarketDataWriter
}

var _ Provider = (*BinanceProvider)(nil)

// NewBinanceProvider builds a provider against the public kline endpoint.
// Historical candles need no credentials.
func NewBinanceProvider() *BinanceProvider {
	return &BinanceProvider{
		client: binance.NewClient("", ""),
		writer: nil,
	}
}

func (p *BinanceProvider) ConfigWriter(w writer.MarketDataWriter) {
	p.writer = w
}

// Download pages through the kline API in chunks of 500 candles, advancing
// the cursor past the close time of the last candle on each page so no bar
// is fetched twice. The caller owns the writer's lifecycle; on error the
// partial transaction is discarded by the writer's Close.
func (p *BinanceProvider) Download(ctx context.Context, instrument string, start, end time.Time, multiplier int, timespan models.Timespan, onProgress OnProgress) (string, error) {
	interval, err := binanceInterval(timespan, multiplier)
	if err != nil {
		return "", err
	}

	if p.writer == nil {
		return "", errors.New(errors.ErrCodeHistoricalDataFailed, "no writer configured")
	}

	if err := p.writer.Initialize(); err != nil {
		return "", errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to initialize writer", err)
	}

	// The kline API works in millisecond timestamps.
	startMillis := start.UnixMilli()
	endMillis := end.UnixMilli()
	cursor := startMillis

	for {
		klines, err := p.client.NewKlinesService().
			Symbol(instrument).
			Interval(interval).
			StartTime(cursor).
			EndTime(endMillis).
			Limit(binancePageSize).
			Do(ctx)
		if err != nil {
			return "", errors.Wrapf(errors.ErrCodeHistoricalDataFailed, err, "failed to fetch %s klines", instrument)
		}

		if err := p.writeKlines(instrument, klines); err != nil {
			return "", err
		}

		report(onProgress,
			float64(cursor-startMillis),
			float64(endMillis-startMillis),
			fmt.Sprintf("downloading %s candles", instrument))

		// A short page means the range is exhausted.
		if len(klines) < binancePageSize {
			break
		}

		cursor = klines[len(klines)-1].CloseTime + 1
		if cursor >= endMillis {
			break
		}
	}

	path, err := p.writer.Finalize()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to finalize writer", err)
	}

	return path, nil
}

func (p *BinanceProvider) writeKlines(instrument string, klines []*binance.Kline) error {
	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		closePrice, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)

		candle := types.MarketData{
			Id:     "",
			Symbol: instrument,
			Time:   time.UnixMilli(k.OpenTime),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		}

		if err := p.writer.Write(candle); err != nil {
			return errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to write candle", err)
		}
	}

	return nil
}

// binanceInterval maps an aggregate width onto the kline interval strings
// the API accepts.
func binanceInterval(timespan models.Timespan, multiplier int) (string, error) {
	switch timespan {
	case models.Minute:
		return fmt.Sprintf("%dm", multiplier), nil
	case models.Hour:
		return fmt.Sprintf("%dh", multiplier), nil
	case models.Day:
		return fmt.Sprintf("%dd", multiplier), nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidTimespan, "unsupported timespan for binance: %s", timespan)
	}
}
