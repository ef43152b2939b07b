package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/stretchr/testify/suite"
)

func testSnapshot(instrument string, last float64) types.Snapshot {
	return types.Snapshot{
		Ticks: map[string]types.Tick{
			//nolint:exhaustruct
			instrument: {
				Instrument: instrument,
				Last:       last,
				Timestamp:  time.Now(),
			},
		},
		Timestamp: time.Now(),
	}
}

func emitBuy(instrument string, confidence float64) func(types.Snapshot) ([]types.Signal, error) {
	return func(_ types.Snapshot) ([]types.Signal, error) {
		//nolint:exhaustruct
		return []types.Signal{{
			Instrument: instrument,
			Action:     types.SignalActionBuy,
			Confidence: confidence,
		}}, nil
	}
}

type SchedulerTestSuite struct {
	suite.Suite
	registry  *Registry
	scheduler *Scheduler
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (suite *SchedulerTestSuite) SetupTest() {
	suite.registry = NewRegistry()
	suite.scheduler = NewScheduler(suite.registry, logger.NewNopLogger())
}

func (suite *SchedulerTestSuite) TestCollectsSignalsFromAllStrategies() {
	alpha := newStubStrategy("alpha")
	alpha.onTick = emitBuy("NIFTY", 0.8)
	beta := newStubStrategy("beta")
	beta.onTick = emitBuy("BANKNIFTY", 0.6)

	suite.Require().NoError(suite.registry.Register(alpha, ""))
	suite.Require().NoError(suite.registry.Register(beta, ""))

	signals := suite.scheduler.RunCycle(context.Background(), testSnapshot("NIFTY", 22000))

	suite.Require().Len(signals, 2)
	suite.Equal("alpha", signals[0].StrategyID)
	suite.Equal("beta", signals[1].StrategyID)

	for _, signal := range signals {
		suite.NotEmpty(signal.ID)
		suite.False(signal.GeneratedAt.IsZero())
	}

	suite.NotEqual(signals[0].ID, signals[1].ID)
}

func (suite *SchedulerTestSuite) TestPanicIsolatedToOneStrategy() {
	panicky := newStubStrategy("panicky")
	panicky.onTick = func(_ types.Snapshot) ([]types.Signal, error) {
		panic("nil map write")
	}
	steady := newStubStrategy("steady")
	steady.onTick = emitBuy("NIFTY", 0.9)

	suite.Require().NoError(suite.registry.Register(panicky, ""))
	suite.Require().NoError(suite.registry.Register(steady, ""))

	signals := suite.scheduler.RunCycle(context.Background(), testSnapshot("NIFTY", 22000))

	suite.Require().Len(signals, 1)
	suite.Equal("steady", signals[0].StrategyID)

	// No auto-disable: the panicking strategy runs again next cycle.
	suite.scheduler.RunCycle(context.Background(), testSnapshot("NIFTY", 22010))
	suite.Equal(2, panicky.tickCalls)
	suite.Equal(2, suite.registry.ActiveCount())
}

func (suite *SchedulerTestSuite) TestErrorIsolatedToOneStrategy() {
	failing := newStubStrategy("failing")
	failing.onTick = func(_ types.Snapshot) ([]types.Signal, error) {
		return nil, context.DeadlineExceeded
	}
	steady := newStubStrategy("steady")
	steady.onTick = emitBuy("NIFTY", 0.9)

	suite.Require().NoError(suite.registry.Register(failing, ""))
	suite.Require().NoError(suite.registry.Register(steady, ""))

	signals := suite.scheduler.RunCycle(context.Background(), testSnapshot("NIFTY", 22000))

	suite.Require().Len(signals, 1)
	suite.Equal("steady", signals[0].StrategyID)
}

func (suite *SchedulerTestSuite) TestEmptySnapshotSkipped() {
	stub := newStubStrategy("alpha")
	suite.Require().NoError(suite.registry.Register(stub, ""))

	//nolint:exhaustruct
	signals := suite.scheduler.RunCycle(context.Background(), types.Snapshot{
		Ticks:     map[string]types.Tick{},
		Timestamp: time.Now(),
	})

	suite.Nil(signals)
	suite.Zero(stub.tickCalls, "strategies must not run on an empty cycle")
}

func (suite *SchedulerTestSuite) TestDisabledStrategySkipped() {
	stub := newStubStrategy("alpha")
	stub.onTick = emitBuy("NIFTY", 0.8)

	suite.Require().NoError(suite.registry.Register(stub, ""))
	suite.Require().NoError(suite.registry.Disable("alpha"))

	signals := suite.scheduler.RunCycle(context.Background(), testSnapshot("NIFTY", 22000))

	suite.Empty(signals)
	suite.Zero(stub.tickCalls)
}

func (suite *SchedulerTestSuite) TestCancelledContextSkipsCycle() {
	stub := newStubStrategy("alpha")
	suite.Require().NoError(suite.registry.Register(stub, ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	signals := suite.scheduler.RunCycle(ctx, testSnapshot("NIFTY", 22000))

	suite.Nil(signals)
	suite.Zero(stub.tickCalls)
}

func (suite *SchedulerTestSuite) TestNoActiveStrategies() {
	signals := suite.scheduler.RunCycle(context.Background(), testSnapshot("NIFTY", 22000))
	suite.Nil(signals)
}
