package types

import "time"

type PositionSide string

type PositionStatus string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

const (
	PositionStatusOpen PositionStatus = "OPEN"
	// PositionStatusPartial marks a position that has been partially closed.
	PositionStatusPartial PositionStatus = "PARTIAL"
	PositionStatusClosed  PositionStatus = "CLOSED"
)

// Position is an open holding tracked by the position book. It is mutated
// only through the execution engine's fill-application path and destroyed
// (moved to history) when its quantity reaches zero.
type Position struct {
	Instrument   string       `yaml:"instrument" json:"instrument"`
	Side         PositionSide `yaml:"side" json:"side"`
	Quantity     float64      `yaml:"quantity" json:"quantity"`
	EntryPrice   float64      `yaml:"entry_price" json:"entry_price"`
	CurrentPrice float64      `yaml:"current_price" json:"current_price"`
	// StopLoss and Target are zero when the originating signal suggested none.
	StopLoss float64 `yaml:"stop_loss" json:"stop_loss"`
	Target   float64 `yaml:"target" json:"target"`
	// TrailingStop is the current trailing stop level, zero until the monitor
	// arms it. Once armed it only ever tightens.
	TrailingStop float64 `yaml:"trailing_stop" json:"trailing_stop"`
	// BestPrice is the most favorable price seen since entry, the anchor the
	// trailing stop trails behind.
	BestPrice   float64        `yaml:"best_price" json:"best_price"`
	StrategyID  string         `yaml:"strategy_id" json:"strategy_id"`
	Status      PositionStatus `yaml:"status" json:"status"`
	OpenedAt    time.Time      `yaml:"opened_at" json:"opened_at"`
	UpdatedAt   time.Time      `yaml:"updated_at" json:"updated_at"`
	ClosedAt    time.Time      `yaml:"closed_at" json:"closed_at"`
	RealizedPnL float64        `yaml:"realized_pnl" json:"realized_pnl"`
	ExitReason  string         `yaml:"exit_reason" json:"exit_reason"`
}

// UnrealizedPnL returns the open profit/loss at the current price.
func (p Position) UnrealizedPnL() float64 {
	if p.Side == PositionSideShort {
		return (p.EntryPrice - p.CurrentPrice) * p.Quantity
	}

	return (p.CurrentPrice - p.EntryPrice) * p.Quantity
}

// InProfit reports whether the position is currently profitable.
func (p Position) InProfit() bool {
	return p.UnrealizedPnL() > 0
}

// ClosingSide returns the order side that reduces this position.
func (p Position) ClosingSide() Side {
	if p.Side == PositionSideShort {
		return SideBuy
	}

	return SideSell
}

// VenuePosition is the venue's view of a holding, as returned by the broker
// gateway's position query.
type VenuePosition struct {
	Instrument   string       `yaml:"instrument" json:"instrument"`
	Side         PositionSide `yaml:"side" json:"side"`
	Quantity     float64      `yaml:"quantity" json:"quantity"`
	AveragePrice float64      `yaml:"average_price" json:"average_price"`
}
