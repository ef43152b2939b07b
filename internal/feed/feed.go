package feed

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/pulse-trading/internal/connection"
	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"go.uber.org/zap"
)

// DefaultKlineInterval is the candle interval subscribed on the live stream.
// The pipeline only reads the latest close, so the shortest interval gives
// the freshest price.
const DefaultKlineInterval = "1m"

// WebSocketService abstracts the Binance websocket entry point so tests can
// inject a fake stream.
type WebSocketService interface {
	WsKlineServe(symbol, interval string, handler binance.WsKlineHandler, errHandler binance.ErrHandler) (doneC, stopC chan struct{}, err error)
}

type realWebSocketService struct{}

func (realWebSocketService) WsKlineServe(symbol, interval string, handler binance.WsKlineHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error) {
	return binance.WsKlineServe(symbol, interval, handler, errHandler)
}

type stream struct {
	symbol string
	doneC  chan struct{}
	stopC  chan struct{}
}

// Feed maintains one kline subscription per instrument and keeps the latest
// quote for each in an in-memory buffer. It implements connection.Capability
// so a Supervisor owns the stream lifecycle, and Fetch serves the buffer
// without touching the network.
type Feed struct {
	ws          WebSocketService
	instruments []string
	interval    string
	log         *logger.Logger

	mu      sync.RWMutex
	quotes  map[string]types.RawQuote
	streams []stream
}

var _ connection.Capability = (*Feed)(nil)

// NewFeed creates a feed over the given websocket service. An empty interval
// falls back to DefaultKlineInterval.
func NewFeed(instruments []string, interval string, ws WebSocketService, log *logger.Logger) *Feed {
	if interval == "" {
		interval = DefaultKlineInterval
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	//nolint:exhaustruct
	return &Feed{
		ws:          ws,
		instruments: instruments,
		interval:    interval,
		log:         log.Named("feed"),
		quotes:      make(map[string]types.RawQuote),
	}
}

// NewBinanceFeed creates a feed backed by the live Binance websocket API.
func NewBinanceFeed(instruments []string, interval string, log *logger.Logger) *Feed {
	return NewFeed(instruments, interval, realWebSocketService{}, log)
}

// Name implements connection.Capability.
func (f *Feed) Name() string {
	return "feed"
}

// DoConnect implements connection.Capability. It opens one kline stream per
// instrument; on partial failure the streams already opened are torn down so
// the supervisor retries from a clean slate. The quote buffer survives
// reconnects, stale entries are simply overwritten by the next event.
func (f *Feed) DoConnect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.streams) > 0 {
		return errors.New(errors.ErrCodeAlreadyConnected, "feed streams already open")
	}

	opened := make([]stream, 0, len(f.instruments))

	for _, instrument := range f.instruments {
		symbol := instrument

		doneC, stopC, err := f.ws.WsKlineServe(symbol, f.interval, f.onKline, func(wsErr error) {
			f.log.Warn("websocket stream error", zap.String("symbol", symbol), zap.Error(wsErr))
		})
		if err != nil {
			for _, s := range opened {
				close(s.stopC)
			}

			return errors.Wrapf(errors.ErrCodeConnectionFailed, err, "failed to open kline stream for %s", symbol)
		}

		opened = append(opened, stream{symbol: symbol, doneC: doneC, stopC: stopC})
	}

	f.streams = opened

	return nil
}

// DoDisconnect implements connection.Capability. It signals every stream to
// stop and waits for each to drain, bounded by ctx.
func (f *Feed) DoDisconnect(ctx context.Context) error {
	f.mu.Lock()
	streams := f.streams
	f.streams = nil
	f.mu.Unlock()

	for _, s := range streams {
		select {
		case <-s.stopC:
		default:
			close(s.stopC)
		}
	}

	for _, s := range streams {
		select {
		case <-s.doneC:
		case <-ctx.Done():
			return errors.Wrap(errors.ErrCodeConnectionTimeout, "timed out waiting for feed streams to close", ctx.Err())
		}
	}

	return nil
}

// ProbeAlive implements connection.Capability. A stream whose done channel
// has closed has dropped on the venue side, which the supervisor answers
// with a reconnect.
func (f *Feed) ProbeAlive(_ context.Context) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.streams) == 0 {
		return errors.New(errors.ErrCodeNotConnected, "feed has no open streams")
	}

	for _, s := range f.streams {
		select {
		case <-s.doneC:
			return errors.Newf(errors.ErrCodeProbeFailed, "kline stream for %s has closed", s.symbol)
		default:
		}
	}

	return nil
}

// Fetch returns a copy of the latest quote per instrument. An empty buffer
// means no event has arrived since startup and is reported as a fetch
// failure so the caller can publish an empty cycle.
func (f *Feed) Fetch(_ context.Context) (map[string]types.RawQuote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.quotes) == 0 {
		return nil, errors.New(errors.ErrCodeMarketDataFetchFailed, "no market data received yet")
	}

	quotes := make(map[string]types.RawQuote, len(f.quotes))
	for instrument, quote := range f.quotes {
		quotes[instrument] = quote
	}

	return quotes, nil
}

// onKline folds a kline event into the buffer. Unclosed candles are used as
// well: the buffer wants the freshest price, not finalized bars. Events with
// unparseable prices are dropped.
func (f *Feed) onKline(event *binance.WsKlineEvent) {
	if event == nil {
		return
	}

	last, err := strconv.ParseFloat(event.Kline.Close, 64)
	if err != nil {
		f.log.Warn("dropping kline with bad close price",
			zap.String("symbol", event.Symbol),
			zap.String("close", event.Kline.Close))

		return
	}

	open, _ := strconv.ParseFloat(event.Kline.Open, 64)
	high, _ := strconv.ParseFloat(event.Kline.High, 64)
	low, _ := strconv.ParseFloat(event.Kline.Low, 64)
	volume, _ := strconv.ParseFloat(event.Kline.Volume, 64)

	quote := types.RawQuote{
		Instrument: event.Symbol,
		Last:       last,
		Volume:     volume,
		Open:       open,
		High:       high,
		Low:        low,
		Close:      last,
		Bid:        0,
		Ask:        0,
		Timestamp:  time.UnixMilli(event.Time),
	}

	f.mu.Lock()
	f.quotes[event.Symbol] = quote
	f.mu.Unlock()
}
