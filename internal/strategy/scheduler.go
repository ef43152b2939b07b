package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"go.uber.org/zap"
)

// Scheduler fans one normalized snapshot out to every active strategy and
// collects the emitted signals. Strategies run concurrently; each is
// isolated so one panicking or failing strategy never blocks the others and
// is skipped for that cycle only, never auto-disabled.
type Scheduler struct {
	registry *Registry
	log      *logger.Logger
}

// NewScheduler creates a scheduler over the given registry.
func NewScheduler(registry *Registry, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Scheduler{
		registry: registry,
		log:      log.Named("scheduler"),
	}
}

// RunCycle invokes every active strategy with the snapshot and returns all
// collected signals, stamped with strategy ID, a fresh signal ID and the
// generation timestamp. Empty snapshots are skipped entirely.
func (s *Scheduler) RunCycle(ctx context.Context, snapshot types.Snapshot) []types.Signal {
	if snapshot.Empty() || ctx.Err() != nil {
		return nil
	}

	active := s.registry.Active()
	if len(active) == 0 {
		return nil
	}

	results := make([][]types.Signal, len(active))

	var wg sync.WaitGroup

	for i, strat := range active {
		wg.Add(1)

		go func(slot int, strat Strategy) {
			defer wg.Done()

			signals, err := s.invoke(strat, snapshot)
			if err != nil {
				s.log.Error("strategy cycle failed",
					zap.String("strategy", strat.Name()),
					zap.Error(err))

				return
			}

			results[slot] = signals
		}(i, strat)
	}

	wg.Wait()

	now := time.Now()

	var collected []types.Signal

	for i, signals := range results {
		for _, signal := range signals {
			signal.ID = uuid.New().String()
			signal.StrategyID = active[i].Name()
			signal.GeneratedAt = now
			collected = append(collected, signal)
		}
	}

	return collected
}

// invoke runs one strategy with panic isolation. A recovered panic is
// reported as ErrCodeStrategyPanic so the caller logs it like any other
// strategy failure.
func (s *Scheduler) invoke(strat Strategy, snapshot types.Snapshot) (signals []types.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			signals = nil
			err = errors.Newf(errors.ErrCodeStrategyPanic, "strategy %s panicked: %v", strat.Name(), r)
		}
	}()

	return strat.OnTick(snapshot)
}
