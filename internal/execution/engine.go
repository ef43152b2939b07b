package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/pulse-trading/internal/config"
	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OrderJournal is the audit trail the engine records every order event to.
type OrderJournal interface {
	RecordOrder(order types.Order) error
	UpdateOrder(order types.Order) error
	RecordFill(fill types.Fill, realizedPnL float64) error
	FinalizeSignal(signalID string, disposition types.SignalDisposition, detail string) error
}

// PnLSink receives realized profit/loss as fills close out positions.
type PnLSink interface {
	RecordPnL(pnl decimal.Decimal)
}

// Engine turns promoted signals and monitor exits into orders. Submission is
// rate limited by a token bucket and retried with a fixed delay; an order
// that exhausts its attempts is marked failed and its signal finalized
// failed, never silently dropped. Safe for concurrent callers.
type Engine struct {
	executor   OrderExecutor
	book       *PositionBook
	journal    OrderJournal
	risk       PnLSink
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	quantity   float64
	log        *logger.Logger
}

// NewEngine creates an execution engine. The executor decides paper or live
// routing; everything above it is shared.
func NewEngine(cfg config.ExecutionConfig, executor OrderExecutor, book *PositionBook, journal OrderJournal, risk PnLSink, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Engine{
		executor:   executor,
		book:       book,
		journal:    journal,
		risk:       risk,
		limiter:    rate.NewLimiter(rate.Limit(cfg.OrdersPerSecond), cfg.Burst),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay.Std(),
		quantity:   cfg.OrderQuantity,
		log:        log.Named("execution"),
	}
}

// SubmitSignal converts a promoted signal into a market order and submits
// it. On success the fill is applied to the position book and the signal is
// finalized executed; on exhausted retries the order is marked failed and
// the signal finalized failed.
func (e *Engine) SubmitSignal(ctx context.Context, signal types.Signal, referencePrice float64) (types.Order, error) {
	side := types.SideBuy
	quantity := e.quantity

	switch signal.Action {
	case types.SignalActionSell:
		side = types.SideSell
	case types.SignalActionExit:
		position, open := e.book.Get(signal.Instrument)
		if !open {
			e.finalizeSignal(signal.ID, types.SignalDispositionFailed, "no open position to exit")

			return types.Order{}, errors.Newf(errors.ErrCodePositionNotFound, //nolint:exhaustruct
				"exit signal for %s with no open position", signal.Instrument)
		}

		side = position.ClosingSide()
		quantity = position.Quantity
	case types.SignalActionBuy:
	}

	order := types.Order{ //nolint:exhaustruct
		ID:         uuid.New().String(),
		Instrument: signal.Instrument,
		Side:       side,
		Quantity:   quantity,
		Kind:       types.OrderKindMarket,
		Status:     types.OrderStatusPending,
		Reason: types.Reason{
			Reason:  types.OrderReasonStrategy,
			Message: fmt.Sprintf("signal from %s with confidence %.2f", signal.StrategyID, signal.Confidence),
		},
		StrategyID: signal.StrategyID,
		SignalID:   signal.ID,
		CreatedAt:  time.Now(),
	}

	if err := e.journal.RecordOrder(order); err != nil {
		e.log.Error("failed to journal order", zap.String("order_id", order.ID), zap.Error(err))
	}

	fill, err := e.submit(ctx, &order, referencePrice)
	if err != nil {
		e.markFailed(&order)
		e.finalizeSignal(signal.ID, types.SignalDispositionFailed, err.Error())

		return order, err
	}

	e.applyFill(&order, fill, signal.StopLoss.TakeOr(0), signal.Target.TakeOr(0))
	e.finalizeSignal(signal.ID, types.SignalDispositionExecuted,
		fmt.Sprintf("filled at %.2f", fill.Price))

	return order, nil
}

// SubmitExit submits a market order that closes the given position. The
// caller owns the exit-issued mark on the book and clears it if this fails.
func (e *Engine) SubmitExit(ctx context.Context, position types.Position, reason types.Reason, referencePrice float64) (types.Order, error) {
	order := types.Order{ //nolint:exhaustruct
		ID:         uuid.New().String(),
		Instrument: position.Instrument,
		Side:       position.ClosingSide(),
		Quantity:   position.Quantity,
		Kind:       types.OrderKindMarket,
		Status:     types.OrderStatusPending,
		Reason:     reason,
		StrategyID: position.StrategyID,
		CreatedAt:  time.Now(),
	}

	if err := e.journal.RecordOrder(order); err != nil {
		e.log.Error("failed to journal order", zap.String("order_id", order.ID), zap.Error(err))
	}

	fill, err := e.submit(ctx, &order, referencePrice)
	if err != nil {
		e.markFailed(&order)

		return order, err
	}

	e.applyFill(&order, fill, 0, 0)

	return order, nil
}

// submit runs the rate-limited, fixed-delay retry loop around the executor.
func (e *Engine) submit(ctx context.Context, order *types.Order, referencePrice float64) (types.Fill, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return types.Fill{}, errors.Wrap(errors.ErrCodeRateLimited, "order rate limiter interrupted", err) //nolint:exhaustruct
	}

	var lastErr error

	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			order.RetryCount = attempt
			if err := e.journal.UpdateOrder(*order); err != nil {
				e.log.Error("failed to journal retry", zap.String("order_id", order.ID), zap.Error(err))
			}

			select {
			case <-ctx.Done():
				return types.Fill{}, errors.Wrap(errors.ErrCodeOrderFailed, //nolint:exhaustruct
					"order submission cancelled", ctx.Err())
			case <-time.After(e.retryDelay):
			}
		}

		fill, err := e.executor.Execute(ctx, *order, referencePrice)
		if err == nil {
			return fill, nil
		}

		lastErr = err

		e.log.Warn("order attempt failed",
			zap.String("order_id", order.ID),
			zap.String("instrument", order.Instrument),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return types.Fill{}, errors.Wrapf(errors.ErrCodeOrderFailed, lastErr, //nolint:exhaustruct
		"order %s failed after %d attempts", order.ID, e.maxRetries)
}

func (e *Engine) applyFill(order *types.Order, fill types.Fill, stopLoss, target float64) {
	order.VenueOrderID = fill.VenueOrderID

	if err := order.Transition(types.OrderStatusFilled, fill.ExecutedAt); err != nil {
		e.log.Error("order transition failed", zap.String("order_id", order.ID), zap.Error(err))
	}

	if err := e.journal.UpdateOrder(*order); err != nil {
		e.log.Error("failed to journal fill status", zap.String("order_id", order.ID), zap.Error(err))
	}

	realized, err := e.book.Apply(fill, stopLoss, target, order.StrategyID, order.Reason.Reason)
	if err != nil {
		e.log.Error("failed to apply fill to book", zap.String("order_id", order.ID), zap.Error(err))

		return
	}

	net := realized.Sub(decimal.NewFromFloat(fill.Fee))
	if !net.IsZero() {
		e.risk.RecordPnL(net)
	}

	if err := e.journal.RecordFill(fill, net.InexactFloat64()); err != nil {
		e.log.Error("failed to journal fill", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (e *Engine) markFailed(order *types.Order) {
	if err := order.Transition(types.OrderStatusFailed, time.Now()); err != nil {
		e.log.Error("order transition failed", zap.String("order_id", order.ID), zap.Error(err))
	}

	if err := e.journal.UpdateOrder(*order); err != nil {
		e.log.Error("failed to journal failed order", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (e *Engine) finalizeSignal(signalID string, disposition types.SignalDisposition, detail string) {
	if err := e.journal.FinalizeSignal(signalID, disposition, detail); err != nil {
		e.log.Error("failed to finalize signal",
			zap.String("signal_id", signalID),
			zap.String("disposition", string(disposition)),
			zap.Error(err))
	}
}
