package market

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/rxtech-lab/pulse-trading/internal/cache"
	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"go.uber.org/zap"
)

// DefaultSyntheticSpreadFraction is the half-spread applied around the last
// price when the feed carries no bid/ask depth.
const DefaultSyntheticSpreadFraction = 0.0005

// Pipeline normalizes raw feed snapshots into per-cycle strategy input. It
// restricts output to the configured underlying instruments, derives volume
// deltas against the previous cycle and synthesizes a spread when the feed
// omits one. Normalized ticks are optionally published to the shared cache
// for external consumers.
type Pipeline struct {
	underlyings    []string
	spreadFraction float64
	tickCache      cache.Cache
	cacheTTL       time.Duration
	keyPrefix      string
	log            *logger.Logger

	mu         sync.Mutex
	prevVolume map[string]float64
}

// NewPipeline creates a pipeline for the given underlying instruments.
// Symbols that look like derivative contracts are excluded up front. A nil
// tickCache disables cache publication.
func NewPipeline(underlyings []string, tickCache cache.Cache, cacheTTL time.Duration, keyPrefix string, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNopLogger()
	}

	log = log.Named("pipeline")

	accepted := make([]string, 0, len(underlyings))

	for _, instrument := range underlyings {
		if isDerivativeSymbol(instrument) {
			log.Warn("excluding derivative contract from underlying set", zap.String("instrument", instrument))

			continue
		}

		accepted = append(accepted, instrument)
	}

	return &Pipeline{
		underlyings:    accepted,
		spreadFraction: DefaultSyntheticSpreadFraction,
		tickCache:      tickCache,
		cacheTTL:       cacheTTL,
		keyPrefix:      keyPrefix,
		log:            log,
		mu:             sync.Mutex{},
		prevVolume:     make(map[string]float64),
	}
}

// Underlyings returns the instruments the pipeline normalizes for.
func (p *Pipeline) Underlyings() []string {
	out := make([]string, len(p.underlyings))
	copy(out, p.underlyings)

	return out
}

// Process turns one raw snapshot into a normalized snapshot. Instruments
// with malformed or non-positive prices are dropped from the cycle; an
// empty or nil input yields an empty snapshot, never a raw passthrough.
func (p *Pipeline) Process(ctx context.Context, raw map[string]types.RawQuote) types.Snapshot {
	now := time.Now()

	snapshot := types.Snapshot{
		Ticks:     make(map[string]types.Tick, len(p.underlyings)),
		Timestamp: now,
	}

	if len(raw) == 0 {
		return snapshot
	}

	p.mu.Lock()

	for _, instrument := range p.underlyings {
		quote, ok := raw[instrument]
		if !ok {
			continue
		}

		tick, ok := p.normalize(instrument, quote, now)
		if !ok {
			p.log.Warn("dropping malformed quote",
				zap.String("instrument", instrument),
				zap.Float64("last", quote.Last),
				zap.Float64("volume", quote.Volume))

			continue
		}

		snapshot.Ticks[instrument] = tick
		p.prevVolume[instrument] = quote.Volume
	}

	p.mu.Unlock()

	p.publish(ctx, snapshot)

	return snapshot
}

// normalize validates a single quote and derives the per-cycle fields.
// Callers hold p.mu.
func (p *Pipeline) normalize(instrument string, quote types.RawQuote, now time.Time) (types.Tick, bool) {
	if !validPrice(quote.Last) || !validVolume(quote.Volume) {
		return types.Tick{}, false //nolint:exhaustruct
	}

	var volumeDelta, volumeDeltaPercent float64

	if prev, seen := p.prevVolume[instrument]; seen {
		volumeDelta = quote.Volume - prev
		if prev > 0 {
			volumeDeltaPercent = volumeDelta / prev * 100
		}
	}

	bid, ask := quote.Bid, quote.Ask
	synthetic := false

	if !validPrice(bid) || !validPrice(ask) || ask < bid {
		bid = quote.Last * (1 - p.spreadFraction)
		ask = quote.Last * (1 + p.spreadFraction)
		synthetic = true
	}

	timestamp := quote.Timestamp
	if timestamp.IsZero() {
		timestamp = now
	}

	return types.Tick{
		Instrument:         instrument,
		Last:               quote.Last,
		Open:               quote.Open,
		High:               quote.High,
		Low:                quote.Low,
		Close:              quote.Close,
		Volume:             quote.Volume,
		VolumeDelta:        volumeDelta,
		VolumeDeltaPercent: volumeDeltaPercent,
		Bid:                bid,
		Ask:                ask,
		SyntheticSpread:    synthetic,
		Timestamp:          timestamp,
	}, true
}

// publish writes each normalized tick to the shared cache under
// tick:<instrument>, with a TTL of one cycle so readers never see data
// older than one tick period. Cache errors are contained; publication is
// best-effort.
func (p *Pipeline) publish(ctx context.Context, snapshot types.Snapshot) {
	if p.tickCache == nil || snapshot.Empty() {
		return
	}

	for instrument, tick := range snapshot.Ticks {
		data, err := json.Marshal(tick)
		if err != nil {
			p.log.Warn("failed to marshal tick for cache", zap.String("instrument", instrument), zap.Error(err))

			continue
		}

		key := cache.Key(p.keyPrefix, "tick", instrument)
		if err := p.tickCache.Set(ctx, key, data, p.cacheTTL); err != nil {
			p.log.Warn("failed to publish tick to cache", zap.String("instrument", instrument), zap.Error(err))
		}
	}
}

func validPrice(value float64) bool {
	return value > 0 && !math.IsInf(value, 0)
}

func validVolume(value float64) bool {
	return value >= 0 && !math.IsNaN(value) && !math.IsInf(value, 0)
}
