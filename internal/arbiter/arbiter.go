package arbiter

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"go.uber.org/zap"
)

// SignalRecorder is the audit trail the arbiter writes every decision to.
type SignalRecorder interface {
	RecordDiscard(signal types.Signal, reason types.DiscardReason, detail string) error
	RecordPromotion(signal types.Signal) error
}

// RiskChecker vetoes signals that would violate the account risk policy.
type RiskChecker interface {
	CheckSignal(signal types.Signal, openPositions int, quantity float64) error
}

// PositionCounter reports how many positions are currently open.
type PositionCounter interface {
	OpenPositionCount() int
}

type cooldownKey struct {
	instrument string
	strategyID string
}

// Arbiter filters one cycle's signals down to the ones worth executing.
// Competing signals for the same instrument within a batch collapse to the
// highest confidence, a strategy cannot re-signal an instrument inside the
// cooldown window, low-confidence and risk-blocked signals are dropped.
// Every discard is journaled with its reason; survivors are journaled as
// promoted and returned in descending confidence order.
type Arbiter struct {
	cooldown      time.Duration
	minConfidence float64
	orderQuantity float64
	recorder      SignalRecorder
	risk          RiskChecker
	positions     PositionCounter
	log           *logger.Logger

	mu           sync.Mutex
	lastPromoted map[cooldownKey]time.Time
	nowFn        func() time.Time
}

// NewArbiter creates an arbiter. The cooldown should be aligned to the tick
// cycle period when the config leaves it unset.
func NewArbiter(cooldown time.Duration, minConfidence, orderQuantity float64, recorder SignalRecorder, risk RiskChecker, positions PositionCounter, log *logger.Logger) *Arbiter {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Arbiter{
		cooldown:      cooldown,
		minConfidence: minConfidence,
		orderQuantity: orderQuantity,
		recorder:      recorder,
		risk:          risk,
		positions:     positions,
		log:           log.Named("arbiter"),
		mu:            sync.Mutex{},
		lastPromoted:  make(map[cooldownKey]time.Time),
		nowFn:         time.Now,
	}
}

// Process arbitrates one batch of signals and returns the promoted ones in
// descending confidence order. Each input signal receives exactly one
// verdict: promoted, or discarded with a journaled reason.
func (a *Arbiter) Process(signals []types.Signal) []types.Signal {
	if len(signals) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.nowFn()
	a.pruneCooldowns(now)

	candidates := make([]types.Signal, 0, len(signals))

	for _, signal := range signals {
		signal := signal

		if err := signal.Validate(); err != nil {
			a.discard(signal, types.DiscardReasonInvalid, err.Error())

			continue
		}

		candidates = append(candidates, signal)
	}

	candidates = a.resolveConflicts(candidates)

	promoted := make([]types.Signal, 0, len(candidates))

	for _, signal := range candidates {
		key := cooldownKey{instrument: signal.Instrument, strategyID: signal.StrategyID}

		if last, seen := a.lastPromoted[key]; seen && now.Sub(last) < a.cooldown {
			a.discard(signal, types.DiscardReasonDuplicate,
				fmt.Sprintf("previous signal for %s/%s still in cooldown", signal.Instrument, signal.StrategyID))

			continue
		}

		if signal.Confidence < a.minConfidence {
			a.discard(signal, types.DiscardReasonLowConfidence,
				fmt.Sprintf("confidence %.2f below minimum %.2f", signal.Confidence, a.minConfidence))

			continue
		}

		if err := a.risk.CheckSignal(signal, a.positions.OpenPositionCount(), a.orderQuantity); err != nil {
			a.discard(signal, types.DiscardReasonRiskBlocked, err.Error())

			continue
		}

		if err := a.recorder.RecordPromotion(signal); err != nil {
			a.log.Error("failed to journal promotion", zap.String("signal_id", signal.ID), zap.Error(err))
		}

		a.lastPromoted[key] = now
		promoted = append(promoted, signal)
	}

	sort.SliceStable(promoted, func(i, j int) bool {
		return promoted[i].Confidence > promoted[j].Confidence
	})

	return promoted
}

// resolveConflicts collapses competing signals for the same instrument
// within one batch to the single highest-confidence one; the losers are
// discarded as duplicates. Callers hold a.mu.
func (a *Arbiter) resolveConflicts(signals []types.Signal) []types.Signal {
	winners := make(map[string]types.Signal, len(signals))
	order := make([]string, 0, len(signals))

	for _, signal := range signals {
		current, seen := winners[signal.Instrument]
		if !seen {
			winners[signal.Instrument] = signal
			order = append(order, signal.Instrument)

			continue
		}

		if signal.Confidence > current.Confidence {
			a.discard(current, types.DiscardReasonDuplicate,
				fmt.Sprintf("outranked by %s signal with confidence %.2f", signal.StrategyID, signal.Confidence))

			winners[signal.Instrument] = signal
		} else {
			a.discard(signal, types.DiscardReasonDuplicate,
				fmt.Sprintf("outranked by %s signal with confidence %.2f", current.StrategyID, current.Confidence))
		}
	}

	resolved := make([]types.Signal, 0, len(winners))
	for _, instrument := range order {
		resolved = append(resolved, winners[instrument])
	}

	return resolved
}

func (a *Arbiter) discard(signal types.Signal, reason types.DiscardReason, detail string) {
	if err := a.recorder.RecordDiscard(signal, reason, detail); err != nil {
		a.log.Error("failed to journal discard",
			zap.String("signal_id", signal.ID),
			zap.String("reason", string(reason)),
			zap.Error(err))
	}

	a.log.Debug("signal discarded",
		zap.String("signal_id", signal.ID),
		zap.String("instrument", signal.Instrument),
		zap.String("strategy", signal.StrategyID),
		zap.String("reason", string(reason)),
		zap.String("detail", detail))
}

// pruneCooldowns drops expired cooldown entries so the map stays bounded by
// the live signal set. Callers hold a.mu.
func (a *Arbiter) pruneCooldowns(now time.Time) {
	for key, last := range a.lastPromoted {
		if now.Sub(last) >= a.cooldown {
			delete(a.lastPromoted, key)
		}
	}
}
