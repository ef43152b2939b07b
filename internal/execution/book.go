package execution

import (
	"sort"
	"sync"

	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PositionBook tracks open positions and realizes profit and loss as fills
// arrive. It is the single source of truth for open exposure: the arbiter
// counts positions here, the monitor reads exit levels from here, and only
// the execution engine's fill path mutates it.
type PositionBook struct {
	log *logger.Logger

	mu        sync.RWMutex
	positions map[string]*types.Position
	history   []types.Position
	// exitIssued marks instruments with a closing order in flight so the
	// monitor does not issue a second one. Cleared when the order fails.
	exitIssued map[string]string
}

// NewPositionBook creates an empty book.
func NewPositionBook(log *logger.Logger) *PositionBook {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &PositionBook{
		log:        log.Named("book"),
		mu:         sync.RWMutex{},
		positions:  make(map[string]*types.Position),
		history:    []types.Position{},
		exitIssued: make(map[string]string),
	}
}

// Apply folds a fill into the book and returns the realized profit/loss of
// any closed quantity, gross of fees. A fill with no open position opens
// one; a same-direction fill extends at the weighted average entry; an
// opposite fill reduces, closes, or reverses the position.
func (b *PositionBook) Apply(fill types.Fill, stopLoss, target float64, strategyID, exitReason string) (decimal.Decimal, error) {
	if fill.Quantity <= 0 || fill.Price <= 0 {
		return decimal.Zero, errors.Newf(errors.ErrCodeInvalidParameter,
			"fill for %s has non-positive quantity or price", fill.Instrument)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	position, open := b.positions[fill.Instrument]
	if !open {
		b.openPosition(fill, stopLoss, target, strategyID)

		return decimal.Zero, nil
	}

	if fillExtends(position.Side, fill.Side) {
		b.extendPosition(position, fill)

		return decimal.Zero, nil
	}

	return b.reducePosition(position, fill, stopLoss, target, strategyID, exitReason), nil
}

func fillExtends(side types.PositionSide, fillSide types.Side) bool {
	if side == types.PositionSideLong {
		return fillSide == types.SideBuy
	}

	return fillSide == types.SideSell
}

func (b *PositionBook) openPosition(fill types.Fill, stopLoss, target float64, strategyID string) {
	side := types.PositionSideLong
	if fill.Side == types.SideSell {
		side = types.PositionSideShort
	}

	b.positions[fill.Instrument] = &types.Position{ //nolint:exhaustruct
		Instrument:   fill.Instrument,
		Side:         side,
		Quantity:     fill.Quantity,
		EntryPrice:   fill.Price,
		CurrentPrice: fill.Price,
		StopLoss:     stopLoss,
		Target:       target,
		BestPrice:    fill.Price,
		StrategyID:   strategyID,
		Status:       types.PositionStatusOpen,
		OpenedAt:     fill.ExecutedAt,
		UpdatedAt:    fill.ExecutedAt,
	}

	b.log.Info("position opened",
		zap.String("instrument", fill.Instrument),
		zap.String("side", string(side)),
		zap.Float64("quantity", fill.Quantity),
		zap.Float64("entry_price", fill.Price))
}

func (b *PositionBook) extendPosition(position *types.Position, fill types.Fill) {
	oldCost := decimal.NewFromFloat(position.EntryPrice).Mul(decimal.NewFromFloat(position.Quantity))
	addCost := decimal.NewFromFloat(fill.Price).Mul(decimal.NewFromFloat(fill.Quantity))
	newQuantity := decimal.NewFromFloat(position.Quantity).Add(decimal.NewFromFloat(fill.Quantity))

	position.EntryPrice = oldCost.Add(addCost).Div(newQuantity).InexactFloat64()
	position.Quantity = newQuantity.InexactFloat64()
	position.CurrentPrice = fill.Price
	position.UpdatedAt = fill.ExecutedAt

	b.log.Info("position extended",
		zap.String("instrument", position.Instrument),
		zap.Float64("quantity", position.Quantity),
		zap.Float64("entry_price", position.EntryPrice))
}

// reducePosition closes fill.Quantity against the position. A fill larger
// than the open quantity closes it entirely and reverses into a new
// position with the remainder. Callers hold b.mu.
func (b *PositionBook) reducePosition(position *types.Position, fill types.Fill, stopLoss, target float64, strategyID, exitReason string) decimal.Decimal {
	closedQuantity := fill.Quantity
	if closedQuantity > position.Quantity {
		closedQuantity = position.Quantity
	}

	perUnit := decimal.NewFromFloat(fill.Price).Sub(decimal.NewFromFloat(position.EntryPrice))
	if position.Side == types.PositionSideShort {
		perUnit = perUnit.Neg()
	}

	realized := perUnit.Mul(decimal.NewFromFloat(closedQuantity))

	remaining := decimal.NewFromFloat(position.Quantity).Sub(decimal.NewFromFloat(closedQuantity))
	if remaining.IsPositive() {
		position.Quantity = remaining.InexactFloat64()
		position.CurrentPrice = fill.Price
		position.Status = types.PositionStatusPartial
		position.RealizedPnL += realized.InexactFloat64()
		position.UpdatedAt = fill.ExecutedAt

		b.log.Info("position reduced",
			zap.String("instrument", position.Instrument),
			zap.Float64("remaining", position.Quantity),
			zap.String("realized_pnl", realized.StringFixed(2)))

		return realized
	}

	b.closePosition(position, fill, realized, exitReason)

	overfill := decimal.NewFromFloat(fill.Quantity).Sub(decimal.NewFromFloat(closedQuantity))
	if overfill.IsPositive() {
		reversal := fill
		reversal.Quantity = overfill.InexactFloat64()
		b.openPosition(reversal, stopLoss, target, strategyID)
	}

	return realized
}

func (b *PositionBook) closePosition(position *types.Position, fill types.Fill, realized decimal.Decimal, exitReason string) {
	closed := *position
	closed.Quantity = 0
	closed.CurrentPrice = fill.Price
	closed.Status = types.PositionStatusClosed
	closed.RealizedPnL += realized.InexactFloat64()
	closed.ExitReason = exitReason
	closed.ClosedAt = fill.ExecutedAt
	closed.UpdatedAt = fill.ExecutedAt

	b.history = append(b.history, closed)
	delete(b.positions, position.Instrument)
	delete(b.exitIssued, position.Instrument)

	b.log.Info("position closed",
		zap.String("instrument", closed.Instrument),
		zap.String("realized_pnl", realized.StringFixed(2)),
		zap.String("exit_reason", exitReason))
}

// OpenPositionCount returns the number of currently open positions.
func (b *PositionBook) OpenPositionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.positions)
}

// Get returns a copy of the open position for the instrument.
func (b *PositionBook) Get(instrument string) (types.Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	position, open := b.positions[instrument]
	if !open {
		return types.Position{}, false //nolint:exhaustruct
	}

	return *position, true
}

// Positions returns copies of all open positions, sorted by instrument.
func (b *PositionBook) Positions() []types.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]types.Position, 0, len(b.positions))
	for _, position := range b.positions {
		out = append(out, *position)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Instrument < out[j].Instrument
	})

	return out
}

// History returns the closed positions of this session in close order.
func (b *PositionBook) History() []types.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]types.Position, len(b.history))
	copy(out, b.history)

	return out
}

// UpdateMarks refreshes current and best prices from a market snapshot.
// Instruments without a tick in the snapshot keep their previous marks.
func (b *PositionBook) UpdateMarks(snapshot types.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for instrument, position := range b.positions {
		tick, ok := snapshot.Ticks[instrument]
		if !ok || tick.Last <= 0 {
			continue
		}

		position.CurrentPrice = tick.Last
		position.UpdatedAt = snapshot.Timestamp

		if position.Side == types.PositionSideLong && tick.Last > position.BestPrice {
			position.BestPrice = tick.Last
		}

		if position.Side == types.PositionSideShort && tick.Last < position.BestPrice {
			position.BestPrice = tick.Last
		}
	}
}

// SetTrailingStop proposes a new trailing stop level. The stop only ever
// tightens: a level that would loosen the current one is ignored. Returns
// whether the level was applied.
func (b *PositionBook) SetTrailingStop(instrument string, level float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	position, open := b.positions[instrument]
	if !open || level <= 0 {
		return false
	}

	if position.TrailingStop != 0 {
		if position.Side == types.PositionSideLong && level <= position.TrailingStop {
			return false
		}

		if position.Side == types.PositionSideShort && level >= position.TrailingStop {
			return false
		}
	}

	position.TrailingStop = level

	return true
}

// MarkExitIssued records that a closing order is in flight for the
// instrument. Returns false when a mark is already present, which makes
// repeated exit sweeps idempotent.
func (b *PositionBook) MarkExitIssued(instrument, reason string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, open := b.positions[instrument]; !open {
		return false
	}

	if _, issued := b.exitIssued[instrument]; issued {
		return false
	}

	b.exitIssued[instrument] = reason

	return true
}

// ClearExitIssued removes the in-flight mark after a closing order failed,
// so the next monitor cycle can try again.
func (b *PositionBook) ClearExitIssued(instrument string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.exitIssued, instrument)
}

// ExitIssued reports whether a closing order is in flight for the instrument.
func (b *PositionBook) ExitIssued(instrument string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, issued := b.exitIssued[instrument]

	return issued
}
