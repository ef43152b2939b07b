package indicator

import "github.com/rxtech-lab/pulse-trading/internal/types"

// RSI is Wilder's Relative Strength Index over last prices. Average gain and
// loss are seeded with plain averages over the first period moves, then
// updated with Wilder smoothing.
type RSI struct {
	period   int
	seen     int
	prevLast float64
	avgGain  float64
	avgLoss  float64
	value    float64
}

var _ Streaming = (*RSI)(nil)

// NewRSI creates an RSI with the given period. Periods below one are clamped
// to one.
func NewRSI(period int) *RSI {
	if period < 1 {
		period = 1
	}

	//nolint:exhaustruct
	return &RSI{
		period: period,
		value:  50,
	}
}

// Kind implements Streaming.
func (r *RSI) Kind() Kind {
	return KindRSI
}

// Update implements Streaming.
func (r *RSI) Update(tick types.Tick) float64 {
	if r.seen == 0 {
		r.seen = 1
		r.prevLast = tick.Last

		return r.value
	}

	gain, loss := 0.0, 0.0
	if change := tick.Last - r.prevLast; change > 0 {
		gain = change
	} else {
		loss = -change
	}

	r.prevLast = tick.Last
	r.seen++

	// seen counts ticks; moves = seen-1. Seed until we have period moves.
	moves := r.seen - 1
	if moves <= r.period {
		r.avgGain += (gain - r.avgGain) / float64(moves)
		r.avgLoss += (loss - r.avgLoss) / float64(moves)
	} else {
		n := float64(r.period)
		r.avgGain = (r.avgGain*(n-1) + gain) / n
		r.avgLoss = (r.avgLoss*(n-1) + loss) / n
	}

	switch {
	case r.avgLoss == 0 && r.avgGain == 0:
		r.value = 50
	case r.avgLoss == 0:
		r.value = 100
	default:
		rs := r.avgGain / r.avgLoss
		r.value = 100 - 100/(1+rs)
	}

	return r.value
}

// Value implements Streaming.
func (r *RSI) Value() float64 {
	return r.value
}

// Ready implements Streaming.
func (r *RSI) Ready() bool {
	return r.seen > r.period
}
