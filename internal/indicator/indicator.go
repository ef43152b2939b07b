// Package indicator provides incremental technical indicators computed over
// the normalized tick stream. Each indicator keeps its own rolling state and
// is fed one tick per cycle; none of them look at history beyond what they
// have accumulated, so strategies can run them warm or cold.
package indicator

import "github.com/rxtech-lab/pulse-trading/internal/types"

// Kind identifies an indicator implementation.
type Kind string

const (
	KindEMA Kind = "ema"
	KindRSI Kind = "rsi"
	KindATR Kind = "atr"
)

// Streaming is an incremental indicator fed one tick at a time. Update and
// Value are not safe for concurrent use; each consumer owns its instances.
type Streaming interface {
	// Kind returns the indicator's identifier.
	Kind() Kind
	// Update consumes one tick and returns the indicator's new value. The
	// value is meaningless until Ready reports true.
	Update(tick types.Tick) float64
	// Value returns the most recently computed value without consuming a
	// tick.
	Value() float64
	// Ready reports whether the indicator has seen enough ticks for its
	// value to be meaningful.
	Ready() bool
}
