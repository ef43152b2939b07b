package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
)

type SignalAction string

const (
	// SignalActionBuy recommends opening or extending a long position.
	SignalActionBuy SignalAction = "buy"
	// SignalActionSell recommends opening or extending a short position.
	SignalActionSell SignalAction = "sell"
	// SignalActionExit recommends closing the open position on the instrument.
	SignalActionExit SignalAction = "exit"
)

// Signal is a strategy's recommendation to open or close a position. Every
// signal is consumed exactly once by the arbiter: either promoted to an order
// or discarded with a recorded reason.
type Signal struct {
	ID         string       `yaml:"id" json:"id" validate:"required,uuid"`
	Instrument string       `yaml:"instrument" json:"instrument" validate:"required"`
	StrategyID string       `yaml:"strategy_id" json:"strategy_id" validate:"required"`
	Action     SignalAction `yaml:"action" json:"action" validate:"required,oneof=buy sell exit"`
	// Confidence is the strategy's conviction in [0, 1]. The arbiter discards
	// signals below the configured minimum and ranks the rest descending.
	Confidence float64 `yaml:"confidence" json:"confidence" validate:"gte=0,lte=1"`
	// StopLoss is the suggested protective stop. None when the strategy has no opinion.
	StopLoss optional.Option[float64] `yaml:"stop_loss" json:"stop_loss"`
	// Target is the suggested profit target. None when the strategy has no opinion.
	Target      optional.Option[float64] `yaml:"target" json:"target"`
	GeneratedAt time.Time                `yaml:"generated_at" json:"generated_at" validate:"required"`
}

// Validate validates the Signal struct.
func (s *Signal) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSignal, "invalid signal", err)
	}

	return nil
}

// SignalDisposition is the terminal outcome of a signal's journey through the
// arbiter and execution engine.
type SignalDisposition string

const (
	// SignalDispositionExecuted means the signal produced a filled order.
	SignalDispositionExecuted SignalDisposition = "executed"
	// SignalDispositionFailed means submission failed after exhausting retries.
	SignalDispositionFailed SignalDisposition = "failed"
	// SignalDispositionDiscarded means the arbiter dropped the signal before execution.
	SignalDispositionDiscarded SignalDisposition = "discarded"
)

// DiscardReason explains why the arbiter or execution engine discarded a signal.
type DiscardReason string

const (
	// DiscardReasonDuplicate marks a signal deduplicated against an earlier one
	// for the same (instrument, strategy) within the cooldown window.
	DiscardReasonDuplicate DiscardReason = "duplicate"
	// DiscardReasonLowConfidence marks a signal below the minimum confidence threshold.
	DiscardReasonLowConfidence DiscardReason = "low-confidence"
	// DiscardReasonRiskBlocked marks a signal vetoed by the risk governor.
	DiscardReasonRiskBlocked DiscardReason = "risk-blocked"
	// DiscardReasonInvalid marks a signal that failed validation.
	DiscardReasonInvalid DiscardReason = "invalid"
)
