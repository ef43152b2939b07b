package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rxtech-lab/pulse-trading/internal/config"
	"github.com/rxtech-lab/pulse-trading/internal/execution"
	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/market"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"go.uber.org/zap"
)

// ExitSubmitter is the slice of the execution engine the monitor drives.
type ExitSubmitter interface {
	SubmitExit(ctx context.Context, position types.Position, reason types.Reason, referencePrice float64) (types.Order, error)
}

// RiskSentinel reports whether the kill switch demands liquidation.
type RiskSentinel interface {
	EmergencyExitRequired() bool
}

// Monitor sweeps open positions on a fixed interval and closes the ones
// whose exit conditions fire. For one position in one sweep only the most
// urgent condition is acted on; across positions, exits are issued in
// ascending priority order. An exit already in flight is never re-issued.
type Monitor struct {
	book             *execution.PositionBook
	submitter        ExitSubmitter
	schedule         *market.Schedule
	risk             RiskSentinel
	interval         time.Duration
	trailingFraction float64
	log              *logger.Logger
	nowFn            func() time.Time
}

// NewMonitor creates a position monitor.
func NewMonitor(cfg config.MonitorConfig, book *execution.PositionBook, submitter ExitSubmitter, schedule *market.Schedule, risk RiskSentinel, log *logger.Logger) *Monitor {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Monitor{
		book:             book,
		submitter:        submitter,
		schedule:         schedule,
		risk:             risk,
		interval:         cfg.CycleInterval.Std(),
		trailingFraction: cfg.TrailingFraction,
		log:              log.Named("monitor"),
		nowFn:            time.Now,
	}
}

// Run drives monitor cycles until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Info("position monitor started", zap.Duration("interval", m.interval))

	for {
		select {
		case <-ctx.Done():
			m.log.Info("position monitor stopped")

			return
		case <-ticker.C:
			m.RunCycle(ctx)
		}
	}
}

// RunCycle performs one sweep over the open positions and returns the number
// of closing orders issued. Outside market hours the sweep is skipped unless
// positions are still open, which keeps post-close liquidation running.
func (m *Monitor) RunCycle(ctx context.Context) int {
	now := m.nowFn()
	if !m.schedule.IsOpen(now) && m.book.OpenPositionCount() == 0 {
		return 0
	}

	type pendingExit struct {
		position  types.Position
		condition types.ExitCondition
	}

	pending := make([]pendingExit, 0)

	for _, position := range m.book.Positions() {
		m.updateTrailingStop(position)

		refreshed, open := m.book.Get(position.Instrument)
		if !open {
			continue
		}

		condition, fired := pickMostUrgent(m.evaluate(refreshed, now))
		if !fired {
			continue
		}

		pending = append(pending, pendingExit{position: refreshed, condition: condition})
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].condition.Priority < pending[j].condition.Priority
	})

	issued := 0

	for _, exit := range pending {
		if m.issueExit(ctx, exit.position, exit.condition) {
			issued++
		}
	}

	return issued
}

// ForceCloseAll issues an emergency close for every open position. Calling
// it again while those orders are in flight issues nothing, so repeated
// invocations are safe. Returns the number of orders issued.
func (m *Monitor) ForceCloseAll(ctx context.Context, message string) (int, error) {
	positions := m.book.Positions()
	issued := 0
	failed := 0

	for _, position := range positions {
		condition := types.ExitCondition{
			Kind:         types.ExitKindRisk,
			Instrument:   position.Instrument,
			TriggerValue: position.CurrentPrice,
			Priority:     types.ExitPriorityEmergency,
			Reason:       types.OrderReasonForceClose,
		}

		if !m.book.MarkExitIssued(position.Instrument, condition.Reason) {
			continue
		}

		reason := types.Reason{Reason: types.OrderReasonForceClose, Message: message}
		if _, err := m.submitter.SubmitExit(ctx, position, reason, position.CurrentPrice); err != nil {
			m.book.ClearExitIssued(position.Instrument)
			m.log.Error("force close failed",
				zap.String("instrument", position.Instrument),
				zap.Error(err))

			failed++

			continue
		}

		issued++
	}

	if failed > 0 {
		return issued, errors.Newf(errors.ErrCodeOrderFailed,
			"failed to close %d of %d positions", failed, len(positions))
	}

	return issued, nil
}

// updateTrailingStop arms or tightens the trailing stop once the best seen
// price has moved past entry. The book rejects any level that would loosen
// the stop, so the level only ever ratchets toward the price.
func (m *Monitor) updateTrailingStop(position types.Position) {
	if m.trailingFraction <= 0 {
		return
	}

	if position.Side == types.PositionSideLong {
		if position.BestPrice <= position.EntryPrice {
			return
		}

		m.book.SetTrailingStop(position.Instrument, position.BestPrice*(1-m.trailingFraction))

		return
	}

	if position.BestPrice >= position.EntryPrice {
		return
	}

	m.book.SetTrailingStop(position.Instrument, position.BestPrice*(1+m.trailingFraction))
}

// evaluate computes every fired exit condition for one position, most
// urgent first.
func (m *Monitor) evaluate(position types.Position, now time.Time) []types.ExitCondition {
	conditions := make([]types.ExitCondition, 0, 4)
	price := position.CurrentPrice
	long := position.Side == types.PositionSideLong

	if m.schedule.AtOrAfterClose(now) {
		conditions = append(conditions, types.ExitCondition{
			Kind:         types.ExitKindTime,
			Instrument:   position.Instrument,
			TriggerValue: price,
			Priority:     types.ExitPriorityEmergency,
			Reason:       types.OrderReasonTimeExit,
		})
	}

	if m.risk.EmergencyExitRequired() {
		conditions = append(conditions, types.ExitCondition{
			Kind:         types.ExitKindRisk,
			Instrument:   position.Instrument,
			TriggerValue: price,
			Priority:     types.ExitPriorityEmergency,
			Reason:       types.OrderReasonRiskExit,
		})
	}

	if !m.schedule.AtOrAfterClose(now) && m.schedule.AtOrAfterSquareOff(now) {
		conditions = append(conditions, types.ExitCondition{
			Kind:         types.ExitKindTime,
			Instrument:   position.Instrument,
			TriggerValue: price,
			Priority:     types.ExitPriorityUrgent,
			Reason:       types.OrderReasonTimeExit,
		})
	}

	if position.StopLoss > 0 && breached(long, price, position.StopLoss) {
		conditions = append(conditions, types.ExitCondition{
			Kind:         types.ExitKindStopLoss,
			Instrument:   position.Instrument,
			TriggerValue: position.StopLoss,
			Priority:     types.ExitPriorityUrgent,
			Reason:       types.OrderReasonStopLoss,
		})
	}

	if position.TrailingStop > 0 && breached(long, price, position.TrailingStop) {
		conditions = append(conditions, types.ExitCondition{
			Kind:         types.ExitKindTrailingStop,
			Instrument:   position.Instrument,
			TriggerValue: position.TrailingStop,
			Priority:     types.ExitPriorityUrgent,
			Reason:       types.OrderReasonTrailingStop,
		})
	}

	if position.Target > 0 && reached(long, price, position.Target) {
		conditions = append(conditions, types.ExitCondition{
			Kind:         types.ExitKindTarget,
			Instrument:   position.Instrument,
			TriggerValue: position.Target,
			Priority:     types.ExitPriorityNormal,
			Reason:       types.OrderReasonTarget,
		})
	}

	return conditions
}

// breached reports whether price has crossed a protective level against the
// position.
func breached(long bool, price, level float64) bool {
	if long {
		return price <= level
	}

	return price >= level
}

// reached reports whether price has crossed a profit level in the
// position's favor.
func reached(long bool, price, level float64) bool {
	if long {
		return price >= level
	}

	return price <= level
}

func pickMostUrgent(conditions []types.ExitCondition) (types.ExitCondition, bool) {
	if len(conditions) == 0 {
		return types.ExitCondition{}, false //nolint:exhaustruct
	}

	best := conditions[0]
	for _, condition := range conditions[1:] {
		if condition.Priority < best.Priority {
			best = condition
		}
	}

	return best, true
}

func (m *Monitor) issueExit(ctx context.Context, position types.Position, condition types.ExitCondition) bool {
	if !m.book.MarkExitIssued(position.Instrument, condition.Reason) {
		return false
	}

	reason := types.Reason{
		Reason: condition.Reason,
		Message: fmt.Sprintf("%s exit at %.2f (trigger %.2f)",
			condition.Kind, position.CurrentPrice, condition.TriggerValue),
	}

	m.log.Info("issuing exit",
		zap.String("instrument", position.Instrument),
		zap.String("kind", string(condition.Kind)),
		zap.Int("priority", condition.Priority),
		zap.Float64("trigger", condition.TriggerValue))

	if _, err := m.submitter.SubmitExit(ctx, position, reason, position.CurrentPrice); err != nil {
		m.book.ClearExitIssued(position.Instrument)
		m.log.Error("exit order failed, will retry next cycle",
			zap.String("instrument", position.Instrument),
			zap.Error(err))

		return false
	}

	return true
}
