package market

import (
	"testing"
	"time"

	"github.com/rxtech-lab/pulse-trading/internal/config"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ScheduleTestSuite struct {
	suite.Suite
	schedule *Schedule
	loc      *time.Location
}

func TestScheduleSuite(t *testing.T) {
	suite.Run(t, new(ScheduleTestSuite))
}

func (suite *ScheduleTestSuite) SetupTest() {
	loc, err := time.LoadLocation("Asia/Kolkata")
	suite.Require().NoError(err)
	suite.loc = loc

	cfg := config.DefaultConfig().Engine
	cfg.MarketOpen = "09:15"
	cfg.MarketClose = "15:30"
	cfg.Timezone = "Asia/Kolkata"

	schedule, err := NewSchedule(cfg, "15:15")
	suite.Require().NoError(err)
	suite.schedule = schedule
}

func (suite *ScheduleTestSuite) at(hour, minute int) time.Time {
	return time.Date(2024, 3, 4, hour, minute, 0, 0, suite.loc)
}

func (suite *ScheduleTestSuite) TestIsOpen() {
	suite.False(suite.schedule.IsOpen(suite.at(9, 14)))
	suite.True(suite.schedule.IsOpen(suite.at(9, 15)))
	suite.True(suite.schedule.IsOpen(suite.at(12, 0)))
	suite.True(suite.schedule.IsOpen(suite.at(15, 29)))
	suite.False(suite.schedule.IsOpen(suite.at(15, 30)))
	suite.False(suite.schedule.IsOpen(suite.at(16, 0)))
}

func (suite *ScheduleTestSuite) TestAtOrAfterClose() {
	suite.False(suite.schedule.AtOrAfterClose(suite.at(15, 29)))
	suite.True(suite.schedule.AtOrAfterClose(suite.at(15, 30)))
	suite.True(suite.schedule.AtOrAfterClose(suite.at(17, 0)))
}

func (suite *ScheduleTestSuite) TestAtOrAfterSquareOff() {
	suite.False(suite.schedule.AtOrAfterSquareOff(suite.at(15, 14)))
	suite.True(suite.schedule.AtOrAfterSquareOff(suite.at(15, 15)))
	suite.True(suite.schedule.AtOrAfterSquareOff(suite.at(15, 30)))
}

func (suite *ScheduleTestSuite) TestEvaluatesInExchangeTimezone() {
	// 04:00 UTC is 09:30 IST, inside the session.
	utc := time.Date(2024, 3, 4, 4, 0, 0, 0, time.UTC)
	suite.True(suite.schedule.IsOpen(utc))

	// 11:00 UTC is 16:30 IST, after close.
	utc = time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC)
	suite.False(suite.schedule.IsOpen(utc))
	suite.True(suite.schedule.AtOrAfterClose(utc))
}

func (suite *ScheduleTestSuite) TestEmptyCutoffFallsBackToClose() {
	cfg := config.DefaultConfig().Engine

	schedule, err := NewSchedule(cfg, "")
	suite.Require().NoError(err)

	suite.False(schedule.AtOrAfterSquareOff(suite.at(15, 29)))
	suite.True(schedule.AtOrAfterSquareOff(suite.at(15, 30)))
}

func (suite *ScheduleTestSuite) TestInvalidWallClock() {
	cfg := config.DefaultConfig().Engine
	cfg.MarketOpen = "9am"

	_, err := NewSchedule(cfg, "")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ScheduleTestSuite) TestOpenMustPrecedeClose() {
	cfg := config.DefaultConfig().Engine
	cfg.MarketOpen = "16:00"
	cfg.MarketClose = "15:30"

	_, err := NewSchedule(cfg, "")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ScheduleTestSuite) TestLocation() {
	suite.Equal("Asia/Kolkata", suite.schedule.Location().String())
}
