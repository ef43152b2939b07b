package risk

import (
	"testing"

	"github.com/rxtech-lab/pulse-trading/internal/config"
	"github.com/rxtech-lab/pulse-trading/internal/logger"
	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

func buySignal(confidence float64) types.Signal {
	//nolint:exhaustruct
	return types.Signal{
		Instrument: "NIFTY",
		StrategyID: "momentum",
		Action:     types.SignalActionBuy,
		Confidence: confidence,
	}
}

type GovernorTestSuite struct {
	suite.Suite
	governor *Governor
}

func TestGovernorSuite(t *testing.T) {
	suite.Run(t, new(GovernorTestSuite))
}

func (suite *GovernorTestSuite) SetupTest() {
	suite.governor = NewGovernor(config.RiskConfig{
		Capital:              1_000_000,
		MaxDailyLossFraction: 0.02,
		MaxOpenPositions:     3,
		MaxPositionQuantity:  100,
	}, logger.NewNopLogger())
}

func (suite *GovernorTestSuite) TestAllowsCompliantSignal() {
	suite.Require().NoError(suite.governor.CheckSignal(buySignal(0.8), 0, 50))
}

func (suite *GovernorTestSuite) TestBlocksOnPositionCount() {
	err := suite.governor.CheckSignal(buySignal(0.8), 3, 50)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeRiskBlocked))
}

func (suite *GovernorTestSuite) TestBlocksOnQuantity() {
	err := suite.governor.CheckSignal(buySignal(0.8), 0, 101)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeRiskBlocked))
}

func (suite *GovernorTestSuite) TestKillSwitchTripsAtLossLimit() {
	suite.False(suite.governor.EmergencyExitRequired())

	// 2% of 1,000,000 = 20,000 loss limit.
	suite.governor.RecordPnL(decimal.NewFromInt(-19_999))
	suite.False(suite.governor.EmergencyExitRequired())

	suite.governor.RecordPnL(decimal.NewFromInt(-1))
	suite.True(suite.governor.EmergencyExitRequired())

	err := suite.governor.CheckSignal(buySignal(0.9), 0, 10)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeRiskBlocked))
}

func (suite *GovernorTestSuite) TestKillSwitchIsSticky() {
	suite.governor.RecordPnL(decimal.NewFromInt(-25_000))
	suite.True(suite.governor.EmergencyExitRequired())

	// Recovering the loss does not clear the switch; only ResetDaily does.
	suite.governor.RecordPnL(decimal.NewFromInt(30_000))
	suite.True(suite.governor.EmergencyExitRequired())

	suite.governor.ResetDaily()
	suite.False(suite.governor.EmergencyExitRequired())
	suite.True(suite.governor.DailyPnL().IsZero())
}

func (suite *GovernorTestSuite) TestExitSignalsAlwaysPass() {
	suite.governor.RecordPnL(decimal.NewFromInt(-25_000))
	suite.True(suite.governor.EmergencyExitRequired())

	exit := buySignal(0.9)
	exit.Action = types.SignalActionExit

	// Kill switch and caps block new exposure, never closing it.
	suite.Require().NoError(suite.governor.CheckSignal(exit, 5, 500))
}

func (suite *GovernorTestSuite) TestDecimalAccumulationIsExact() {
	// 0.1 added ten times is exactly 1 in decimal arithmetic.
	for i := 0; i < 10; i++ {
		suite.governor.RecordPnL(decimal.NewFromFloat(0.1))
	}

	suite.True(suite.governor.DailyPnL().Equal(decimal.NewFromInt(1)))
}

func (suite *GovernorTestSuite) TestSnapshot() {
	suite.governor.RecordPnL(decimal.NewFromInt(-500))

	state := suite.governor.Snapshot(2)
	suite.InDelta(-500, state.DailyPnL, 1e-9)
	suite.Equal(2, state.OpenPositions)
	suite.False(state.KillSwitch)
	suite.NotEmpty(state.TradingDay)
}

func (suite *GovernorTestSuite) TestZeroLimitsDisableCaps() {
	governor := NewGovernor(config.RiskConfig{
		Capital:              1_000_000,
		MaxDailyLossFraction: 0.02,
		MaxOpenPositions:     0,
		MaxPositionQuantity:  0,
	}, logger.NewNopLogger())

	suite.Require().NoError(governor.CheckSignal(buySignal(0.8), 50, 10_000))
}
