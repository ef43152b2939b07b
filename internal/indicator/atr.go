package indicator

import (
	"math"

	"github.com/rxtech-lab/pulse-trading/internal/types"
)

// ATR is Wilder's Average True Range over tick OHLC data. True range uses
// the previous tick's last price as the prior close, which matches how the
// pipeline rolls candles forward intraday.
type ATR struct {
	period    int
	seen      int
	prevClose float64
	value     float64
}

var _ Streaming = (*ATR)(nil)

// NewATR creates an ATR with the given period. Periods below one are clamped
// to one.
func NewATR(period int) *ATR {
	if period < 1 {
		period = 1
	}

	//nolint:exhaustruct
	return &ATR{period: period}
}

// Kind implements Streaming.
func (a *ATR) Kind() Kind {
	return KindATR
}

// Update implements Streaming.
func (a *ATR) Update(tick types.Tick) float64 {
	high, low := tick.High, tick.Low
	if high == 0 && low == 0 {
		high, low = tick.Last, tick.Last
	}

	trueRange := high - low

	if a.seen > 0 {
		trueRange = math.Max(trueRange,
			math.Max(math.Abs(high-a.prevClose), math.Abs(low-a.prevClose)))
	}

	a.prevClose = tick.Last
	a.seen++

	if a.seen <= a.period {
		a.value += (trueRange - a.value) / float64(a.seen)

		return a.value
	}

	n := float64(a.period)
	a.value = (a.value*(n-1) + trueRange) / n

	return a.value
}

// Value implements Streaming.
func (a *ATR) Value() float64 {
	return a.value
}

// Ready implements Streaming.
func (a *ATR) Ready() bool {
	return a.seen >= a.period
}
