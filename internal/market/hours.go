package market

import (
	"time"

	"github.com/rxtech-lab/pulse-trading/internal/config"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
)

// Schedule answers wall-clock questions about the trading day in the
// configured exchange timezone. All comparisons are done at minute
// granularity, matching the HH:MM configuration format.
type Schedule struct {
	openMinute   int
	closeMinute  int
	cutoffMinute int
	loc          *time.Location
}

// NewSchedule builds a schedule from the engine config plus the monitor's
// square-off cutoff. An empty cutoff falls back to the hard close time.
func NewSchedule(cfg config.EngineConfig, squareOffCutoff string) (*Schedule, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	openMinute, err := parseWallClock(cfg.MarketOpen)
	if err != nil {
		return nil, err
	}

	closeMinute, err := parseWallClock(cfg.MarketClose)
	if err != nil {
		return nil, err
	}

	if openMinute >= closeMinute {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"market open %s must be before market close %s", cfg.MarketOpen, cfg.MarketClose)
	}

	cutoffMinute := closeMinute

	if squareOffCutoff != "" {
		cutoffMinute, err = parseWallClock(squareOffCutoff)
		if err != nil {
			return nil, err
		}
	}

	return &Schedule{
		openMinute:   openMinute,
		closeMinute:  closeMinute,
		cutoffMinute: cutoffMinute,
		loc:          loc,
	}, nil
}

func parseWallClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid wall clock time %q", value)
	}

	return t.Hour()*60 + t.Minute(), nil
}

func (s *Schedule) minuteOfDay(now time.Time) int {
	local := now.In(s.loc)

	return local.Hour()*60 + local.Minute()
}

// IsOpen reports whether now falls inside the trading session.
func (s *Schedule) IsOpen(now time.Time) bool {
	minute := s.minuteOfDay(now)

	return minute >= s.openMinute && minute < s.closeMinute
}

// AtOrAfterClose reports whether now has reached the hard market close.
func (s *Schedule) AtOrAfterClose(now time.Time) bool {
	return s.minuteOfDay(now) >= s.closeMinute
}

// AtOrAfterSquareOff reports whether now has reached the intraday square-off
// cutoff that precedes the hard close.
func (s *Schedule) AtOrAfterSquareOff(now time.Time) bool {
	return s.minuteOfDay(now) >= s.cutoffMinute
}

// Location returns the exchange timezone the schedule evaluates in.
func (s *Schedule) Location() *time.Location {
	return s.loc
}
