package builtin

import (
	"testing"

	"github.com/rxtech-lab/pulse-trading/internal/types"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

func volumeTick(instrument string, open, last, deltaPercent float64) types.Tick {
	//nolint:exhaustruct
	return types.Tick{
		Instrument:         instrument,
		Last:               last,
		Open:               open,
		VolumeDeltaPercent: deltaPercent,
	}
}

type VolumeSpikeTestSuite struct {
	suite.Suite
	strategy *VolumeSpike
}

func TestVolumeSpikeSuite(t *testing.T) {
	suite.Run(t, new(VolumeSpikeTestSuite))
}

func (suite *VolumeSpikeTestSuite) SetupTest() {
	suite.strategy = NewVolumeSpike()
	suite.Require().NoError(suite.strategy.Initialize(""))
}

func (suite *VolumeSpikeTestSuite) TestIdentity() {
	suite.Equal("volume-spike", suite.strategy.Name())
	suite.NotEmpty(suite.strategy.APIVersion())
}

func (suite *VolumeSpikeTestSuite) TestSpikeAboveOpenEmitsBuy() {
	signals, err := suite.strategy.OnTick(snapshotWith(volumeTick("NIFTY", 22000, 22100, 300)))
	suite.Require().NoError(err)
	suite.Require().Len(signals, 1)
	suite.Equal(types.SignalActionBuy, signals[0].Action)
	suite.InDelta(0.65, signals[0].Confidence, 1e-9)
	suite.True(signals[0].StopLoss.IsSome())
}

func (suite *VolumeSpikeTestSuite) TestSpikeBelowOpenEmitsSell() {
	signals, err := suite.strategy.OnTick(snapshotWith(volumeTick("NIFTY", 22000, 21900, 300)))
	suite.Require().NoError(err)
	suite.Require().Len(signals, 1)
	suite.Equal(types.SignalActionSell, signals[0].Action)
}

func (suite *VolumeSpikeTestSuite) TestNoSpikeEmitsNothing() {
	signals, err := suite.strategy.OnTick(snapshotWith(volumeTick("NIFTY", 22000, 22100, 50)))
	suite.Require().NoError(err)
	suite.Empty(signals)
}

func (suite *VolumeSpikeTestSuite) TestFlatPriceEmitsNothing() {
	signals, err := suite.strategy.OnTick(snapshotWith(volumeTick("NIFTY", 22000, 22000, 300)))
	suite.Require().NoError(err)
	suite.Empty(signals)
}

func (suite *VolumeSpikeTestSuite) TestCustomSpikeThreshold() {
	s := NewVolumeSpike()
	suite.Require().NoError(s.Initialize("spike_percent: 40"))

	signals, err := s.OnTick(snapshotWith(volumeTick("NIFTY", 22000, 22100, 50)))
	suite.Require().NoError(err)
	suite.Len(signals, 1)
}

func (suite *VolumeSpikeTestSuite) TestInitializeRejectsBadConfig() {
	err := NewVolumeSpike().Initialize("spike_percent: -10")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyConfigError))
}

func (suite *VolumeSpikeTestSuite) TestUninitializedFails() {
	_, err := NewVolumeSpike().OnTick(snapshotWith(volumeTick("NIFTY", 22000, 22100, 300)))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyConfigError))
}
