package risk

import (
	"sync"
	"time"

	"github.com/rxtech-lab/pulse-trading/internal/config"
	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Governor enforces the account-level risk policy: a daily loss limit with a
// sticky kill switch, a cap on concurrently open positions and a per-order
// size cap. The arbiter consults CheckSignal before execution and the
// monitor consults EmergencyExitRequired every cycle. Realized P&L is
// accumulated as decimal so repeated small fills cannot drift the limit
// check.
type Governor struct {
	capital         decimal.Decimal
	maxDailyLoss    decimal.Decimal
	maxOpenCount    int
	maxPositionSize float64
	log             *logger.Logger

	mu         sync.RWMutex
	dailyPnL   decimal.Decimal
	killSwitch bool
	tradingDay string
}

// NewGovernor creates a governor from the risk config section.
func NewGovernor(cfg config.RiskConfig, log *logger.Logger) *Governor {
	if log == nil {
		log = logger.NewNopLogger()
	}

	capital := decimal.NewFromFloat(cfg.Capital)
	maxDailyLoss := capital.Mul(decimal.NewFromFloat(cfg.MaxDailyLossFraction))

	//nolint:exhaustruct
	return &Governor{
		capital:         capital,
		maxDailyLoss:    maxDailyLoss,
		maxOpenCount:    cfg.MaxOpenPositions,
		maxPositionSize: cfg.MaxPositionQuantity,
		log:             log.Named("risk"),
		dailyPnL:        decimal.Zero,
		tradingDay:      time.Now().Format("2006-01-02"),
	}
}

// CheckSignal returns nil when the signal may proceed to execution, or an
// ErrCodeRiskBlocked error naming the first violated constraint. Exit
// signals always pass: the kill switch blocks new exposure, closing
// exposure must stay possible.
func (g *Governor) CheckSignal(signal types.Signal, openPositions int, quantity float64) error {
	if signal.Action == types.SignalActionExit {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.killSwitch {
		return errors.Newf(errors.ErrCodeRiskBlocked,
			"kill switch active: daily loss %s breached limit %s",
			g.dailyPnL.StringFixed(2), g.maxDailyLoss.StringFixed(2))
	}

	if g.maxOpenCount > 0 && openPositions >= g.maxOpenCount {
		return errors.Newf(errors.ErrCodeRiskBlocked,
			"open position limit reached: %d of %d", openPositions, g.maxOpenCount)
	}

	if g.maxPositionSize > 0 && quantity > g.maxPositionSize {
		return errors.Newf(errors.ErrCodeRiskBlocked,
			"order quantity %.2f exceeds per-position limit %.2f", quantity, g.maxPositionSize)
	}

	return nil
}

// RecordPnL folds a realized profit or loss into the daily total. Once the
// accumulated loss reaches the configured fraction of capital the kill
// switch trips and stays tripped until ResetDaily.
func (g *Governor) RecordPnL(pnl decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.dailyPnL = g.dailyPnL.Add(pnl)

	if g.killSwitch {
		return
	}

	loss := g.dailyPnL.Neg()
	if loss.GreaterThanOrEqual(g.maxDailyLoss) && g.maxDailyLoss.IsPositive() {
		g.killSwitch = true
		g.log.Error("daily loss limit breached, kill switch engaged",
			zap.String("daily_pnl", g.dailyPnL.StringFixed(2)),
			zap.String("limit", g.maxDailyLoss.StringFixed(2)))
	}
}

// EmergencyExitRequired reports whether the kill switch has tripped. The
// monitor translates a true answer into priority-1 exits for every open
// position.
func (g *Governor) EmergencyExitRequired() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.killSwitch
}

// ResetDaily clears the running P&L and the kill switch for a new trading
// day.
func (g *Governor) ResetDaily() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.dailyPnL = decimal.Zero
	g.killSwitch = false
	g.tradingDay = time.Now().Format("2006-01-02")

	g.log.Info("risk state reset for new trading day", zap.String("trading_day", g.tradingDay))
}

// Snapshot returns the current risk state for status reporting.
func (g *Governor) Snapshot(openPositions int) types.RiskState {
	g.mu.RLock()
	defer g.mu.RUnlock()

	pnl, _ := g.dailyPnL.Float64()

	return types.RiskState{
		TradingDay:    g.tradingDay,
		DailyPnL:      pnl,
		OpenPositions: openPositions,
		KillSwitch:    g.killSwitch,
	}
}

// DailyPnL returns the accumulated realized P&L for the day.
func (g *Governor) DailyPnL() decimal.Decimal {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.dailyPnL
}
