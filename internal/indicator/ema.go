package indicator

import "github.com/rxtech-lab/pulse-trading/internal/types"

// EMA is an exponential moving average over last prices. The first value is
// seeded with a simple average of the first period ticks, then smoothed with
// the standard 2/(period+1) multiplier.
type EMA struct {
	period     int
	multiplier float64
	seedSum    float64
	seen       int
	value      float64
}

var _ Streaming = (*EMA)(nil)

// NewEMA creates an EMA with the given period. Periods below one are clamped
// to one.
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}

	//nolint:exhaustruct
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

// Kind implements Streaming.
func (e *EMA) Kind() Kind {
	return KindEMA
}

// Update implements Streaming.
func (e *EMA) Update(tick types.Tick) float64 {
	e.seen++

	if e.seen <= e.period {
		e.seedSum += tick.Last
		e.value = e.seedSum / float64(e.seen)

		return e.value
	}

	e.value = (tick.Last-e.value)*e.multiplier + e.value

	return e.value
}

// Value implements Streaming.
func (e *EMA) Value() float64 {
	return e.value
}

// Ready implements Streaming.
func (e *EMA) Ready() bool {
	return e.seen >= e.period
}
