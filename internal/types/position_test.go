package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type PositionTestSuite struct {
	suite.Suite
}

func TestPositionSuite(t *testing.T) {
	suite.Run(t, new(PositionTestSuite))
}

func (suite *PositionTestSuite) TestUnrealizedPnLLong() {
	position := Position{
		Instrument:   "NIFTY",
		Side:         PositionSideLong,
		Quantity:     50,
		EntryPrice:   100,
		CurrentPrice: 104,
		Status:       PositionStatusOpen,
		OpenedAt:     time.Now(),
	}

	suite.InDelta(200.0, position.UnrealizedPnL(), 1e-9)
	suite.True(position.InProfit())

	position.CurrentPrice = 97
	suite.InDelta(-150.0, position.UnrealizedPnL(), 1e-9)
	suite.False(position.InProfit())
}

func (suite *PositionTestSuite) TestUnrealizedPnLShort() {
	position := Position{
		Instrument:   "BANKNIFTY",
		Side:         PositionSideShort,
		Quantity:     25,
		EntryPrice:   200,
		CurrentPrice: 195,
		Status:       PositionStatusOpen,
		OpenedAt:     time.Now(),
	}

	suite.InDelta(125.0, position.UnrealizedPnL(), 1e-9)
	suite.True(position.InProfit())

	position.CurrentPrice = 205
	suite.InDelta(-125.0, position.UnrealizedPnL(), 1e-9)
	suite.False(position.InProfit())
}

func (suite *PositionTestSuite) TestClosingSide() {
	long := Position{Side: PositionSideLong}
	suite.Equal(SideSell, long.ClosingSide())

	short := Position{Side: PositionSideShort}
	suite.Equal(SideBuy, short.ClosingSide())
}
