// Package testhelper carries the pieces end-to-end tests plug into the
// engine: a websocket kline service that dials the mock venue, a scripted
// quote source, and a one-shot strategy with deterministic output.
package testhelper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/gorilla/websocket"
	"github.com/rxtech-lab/pulse-trading/internal/strategy"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/internal/version"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
)

// DialKlineService connects kline streams to an arbitrary websocket base URL
// instead of the production venue. It satisfies the feed's websocket service
// seam, so the real feed runs unmodified against the mock venue.
type DialKlineService struct {
	baseURL string
}

// NewDialKlineService creates a service dialing streams under baseURL, e.g.
// "ws://127.0.0.1:49152".
func NewDialKlineService(baseURL string) *DialKlineService {
	return &DialKlineService{baseURL: baseURL}
}

// WsKlineServe dials the stream and pumps decoded kline events into handler
// until stopC is closed or the peer disconnects.
func (d *DialKlineService) WsKlineServe(symbol, interval string, handler binance.WsKlineHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error) {
	endpoint := fmt.Sprintf("%s/ws/%s@kline_%s", d.baseURL, strings.ToLower(symbol), interval)

	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return nil, nil, errors.Wrapf(errors.ErrCodeConnectionFailed, err, "failed to dial %s", endpoint)
	}

	doneC := make(chan struct{})
	stopC := make(chan struct{})

	go func() {
		select {
		case <-stopC:
			conn.Close()
		case <-doneC:
		}
	}()

	go func() {
		defer close(doneC)

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-stopC:
				default:
					if errHandler != nil {
						errHandler(err)
					}
				}

				return
			}

			var event binance.WsKlineEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				if errHandler != nil {
					errHandler(err)
				}

				continue
			}

			handler(&event)
		}
	}()

	return doneC, stopC, nil
}

// ReplayQuoteSource replays pre-built quote sequences one step per Fetch,
// stamping each quote with the current time so staleness checks pass. It
// stands in for the live feed when a test needs full control of prices.
type ReplayQuoteSource struct {
	mu       sync.Mutex
	walks    map[string][]types.RawQuote
	index    int
	fetchErr error
}

// NewReplayQuoteSource creates a source replaying one walk per instrument.
// Walks of different lengths wrap around independently.
func NewReplayQuoteSource(walks map[string][]types.RawQuote) *ReplayQuoteSource {
	return &ReplayQuoteSource{
		mu:       sync.Mutex{},
		walks:    walks,
		index:    0,
		fetchErr: nil,
	}
}

// Name implements the connection capability.
func (r *ReplayQuoteSource) Name() string { return "replay-feed" }

// DoConnect implements the connection capability.
func (r *ReplayQuoteSource) DoConnect(_ context.Context) error { return nil }

// DoDisconnect implements the connection capability.
func (r *ReplayQuoteSource) DoDisconnect(_ context.Context) error { return nil }

// ProbeAlive implements the connection capability.
func (r *ReplayQuoteSource) ProbeAlive(_ context.Context) error { return nil }

// Fetch returns the next step of every walk, or the scripted error.
func (r *ReplayQuoteSource) Fetch(_ context.Context) (map[string]types.RawQuote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fetchErr != nil {
		return nil, r.fetchErr
	}

	now := time.Now().UTC()
	quotes := make(map[string]types.RawQuote, len(r.walks))

	for instrument, walk := range r.walks {
		if len(walk) == 0 {
			continue
		}

		quote := walk[r.index%len(walk)]
		quote.Timestamp = now
		quotes[instrument] = quote
	}

	r.index++

	return quotes, nil
}

// SetFetchError scripts Fetch to fail until cleared with nil.
func (r *ReplayQuoteSource) SetFetchError(err error) {
	r.mu.Lock()
	r.fetchErr = err
	r.mu.Unlock()
}

// RampQuotes builds a walk whose last price moves by stepFraction each step.
// A positive step trends up; each move is large enough to trip momentum
// strategies when stepFraction exceeds their threshold.
func RampQuotes(instrument string, start, stepFraction float64, count int) []types.RawQuote {
	quotes := make([]types.RawQuote, 0, count)
	price := start

	for i := 0; i < count; i++ {
		previous := price
		price *= 1 + stepFraction

		high := price
		low := previous

		if low > high {
			high, low = low, high
		}

		quotes = append(quotes, types.RawQuote{
			Instrument: instrument,
			Last:       price,
			Volume:     5000,
			Open:       previous,
			High:       high,
			Low:        low,
			Close:      price,
			Bid:        price * 0.9995,
			Ask:        price * 1.0005,
			Timestamp:  time.Time{},
		})
	}

	return quotes
}

// BuyOnceStrategy emits exactly one full-confidence buy per instrument, on
// the first snapshot that carries a tick for it. Deterministic order flow
// for end-to-end scenarios.
type BuyOnceStrategy struct {
	mu    sync.Mutex
	fired map[string]bool
}

var _ strategy.Strategy = (*BuyOnceStrategy)(nil)

// NewBuyOnceStrategy creates the strategy.
func NewBuyOnceStrategy() *BuyOnceStrategy {
	return &BuyOnceStrategy{
		mu:    sync.Mutex{},
		fired: make(map[string]bool),
	}
}

// Name implements strategy.Strategy.
func (s *BuyOnceStrategy) Name() string { return "buy-once" }

// APIVersion implements strategy.Strategy.
func (s *BuyOnceStrategy) APIVersion() string { return version.GetVersion() }

// Initialize implements strategy.Strategy.
func (s *BuyOnceStrategy) Initialize(_ string) error { return nil }

// OnTick implements strategy.Strategy.
func (s *BuyOnceStrategy) OnTick(snapshot types.Snapshot) ([]types.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	signals := make([]types.Signal, 0, 1)

	for instrument := range snapshot.Ticks {
		if s.fired[instrument] {
			continue
		}

		s.fired[instrument] = true

		//nolint:exhaustruct
		signals = append(signals, types.Signal{
			Instrument: instrument,
			Action:     types.SignalActionBuy,
			Confidence: 0.9,
		})
	}

	return signals, nil
}
