package marketdata

import (
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/pulse-trading/pkg/errors"
)

// Interval is a candle width accepted by every provider. The string form is
// the Binance interval notation; polygon providers derive their
// multiplier/timespan pair from it.
type Interval string

const (
	IntervalOneMinute      Interval = "1m"
	IntervalFiveMinutes    Interval = "5m"
	IntervalFifteenMinutes Interval = "15m"
	IntervalOneHour        Interval = "1h"
	IntervalOneDay         Interval = "1d"
)

// ParseInterval validates a user-supplied interval string.
func ParseInterval(value string) (Interval, error) {
	switch Interval(value) {
	case IntervalOneMinute, IntervalFiveMinutes, IntervalFifteenMinutes, IntervalOneHour, IntervalOneDay:
		return Interval(value), nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidInterval, "unsupported candle interval: %q", value)
	}
}

// Multiplier returns the polygon aggregate multiplier for the interval.
func (i Interval) Multiplier() int {
	switch i {
	case IntervalFiveMinutes:
		return 5
	case IntervalFifteenMinutes:
		return 15
	case IntervalOneMinute, IntervalOneHour, IntervalOneDay:
		return 1
	default:
		return 1
	}
}

// PolygonTimespan returns the polygon aggregate timespan for the interval.
func (i Interval) PolygonTimespan() models.Timespan {
	switch i {
	case IntervalOneMinute, IntervalFiveMinutes, IntervalFifteenMinutes:
		return models.Minute
	case IntervalOneHour:
		return models.Hour
	case IntervalOneDay:
		return models.Day
	default:
		return models.Minute
	}
}

// BinanceInterval returns the Binance kline interval string.
func (i Interval) BinanceInterval() string {
	return string(i)
}
