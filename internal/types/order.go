package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
)

type Side string

type OrderKind string

type OrderStatus string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	OrderKindMarket OrderKind = "MARKET"
	OrderKindLimit  OrderKind = "LIMIT"
	OrderKindStop   OrderKind = "STOP"
)

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusFailed marks an order whose submission exhausted all retries
	// without reaching the venue.
	OrderStatusFailed OrderStatus = "FAILED"
)

// Terminal reports whether the status is final. Terminal statuses are never
// transitioned out of.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusRejected, OrderStatusCancelled, OrderStatusFailed:
		return true
	default:
		return false
	}
}

const (
	OrderReasonStrategy     string = "strategy"
	OrderReasonStopLoss     string = "stop_loss"
	OrderReasonTarget       string = "target"
	OrderReasonTrailingStop string = "trailing_stop"
	OrderReasonTimeExit     string = "time_exit"
	OrderReasonRiskExit     string = "risk_exit"
	OrderReasonForceClose   string = "force_close"
)

type Reason struct {
	Reason  string `yaml:"reason" json:"reason" validate:"required"`
	Message string `yaml:"message" json:"message" validate:"required"`
}

// Order is a single order submission tracked by the execution engine. The ID
// is a client-generated UUID so resubmissions stay idempotent; VenueOrderID
// is reconciled from the venue's response in live mode.
type Order struct {
	ID           string    `yaml:"id" json:"id" validate:"required,uuid"`
	VenueOrderID string    `yaml:"venue_order_id" json:"venue_order_id"`
	Instrument   string    `yaml:"instrument" json:"instrument" validate:"required"`
	Side         Side      `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Quantity     float64   `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	Kind         OrderKind `yaml:"kind" json:"kind" validate:"required,oneof=MARKET LIMIT STOP"`
	// LimitPrice is required for LIMIT orders, zero otherwise.
	LimitPrice float64 `yaml:"limit_price" json:"limit_price" validate:"gte=0"`
	// TriggerPrice is required for STOP orders, zero otherwise.
	TriggerPrice float64     `yaml:"trigger_price" json:"trigger_price" validate:"gte=0"`
	Status       OrderStatus `yaml:"status" json:"status"`
	Reason       Reason      `yaml:"reason" json:"reason" validate:"required"`
	StrategyID   string      `yaml:"strategy_id" json:"strategy_id" validate:"required"`
	// SignalID links the order back to the signal that produced it, keeping
	// the arbiter's audit trail accurate.
	SignalID   string    `yaml:"signal_id" json:"signal_id"`
	RetryCount int       `yaml:"retry_count" json:"retry_count" validate:"gte=0"`
	CreatedAt  time.Time `yaml:"created_at" json:"created_at" validate:"required"`
	UpdatedAt  time.Time `yaml:"updated_at" json:"updated_at"`
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	if o.Kind == OrderKindLimit && o.LimitPrice <= 0 {
		return errors.New(errors.ErrCodeInvalidPrice, "limit order requires a positive limit price")
	}

	if o.Kind == OrderKindStop && o.TriggerPrice <= 0 {
		return errors.New(errors.ErrCodeInvalidPrice, "stop order requires a positive trigger price")
	}

	return nil
}

// Transition moves the order to the next status. The only legal transitions
// are PENDING to a terminal status; anything else is a state violation.
func (o *Order) Transition(next OrderStatus, at time.Time) error {
	if o.Status.Terminal() {
		return errors.Newf(errors.ErrCodeOrderStateViolation,
			"order %s is already %s, cannot transition to %s", o.ID, o.Status, next)
	}

	if o.Status == OrderStatusPending && next.Terminal() {
		o.Status = next
		o.UpdatedAt = at

		return nil
	}

	return errors.Newf(errors.ErrCodeOrderStateViolation,
		"illegal order transition %s -> %s for order %s", o.Status, next, o.ID)
}

// Fill records an execution against an order: the venue's (or the paper
// ledger's) price, quantity, and fee.
type Fill struct {
	OrderID      string    `yaml:"order_id" json:"order_id"`
	VenueOrderID string    `yaml:"venue_order_id" json:"venue_order_id"`
	Instrument   string    `yaml:"instrument" json:"instrument"`
	Side         Side      `yaml:"side" json:"side"`
	Quantity     float64   `yaml:"quantity" json:"quantity"`
	Price        float64   `yaml:"price" json:"price"`
	Fee          float64   `yaml:"fee" json:"fee"`
	ExecutedAt   time.Time `yaml:"executed_at" json:"executed_at"`
}
