package syncer

import (
	"time"

	"github.com/pkg/errors"
)

// Interval is the wall-clock sync cadence.
type Interval string

const (
	IntervalHourly Interval = "hourly"
	IntervalDaily  Interval = "daily"
	// IntervalDebug ticks every ten seconds, for local runs only.
	IntervalDebug Interval = "debug"
)

// ErrUnsupportedInterval is returned for an interval selector outside the
// supported set.
var ErrUnsupportedInterval = errors.New("unsupported sync interval")

// ParseInterval validates the configured interval selector.
func ParseInterval(value string) (Interval, error) {
	switch Interval(value) {
	case IntervalHourly, IntervalDaily, IntervalDebug:
		return Interval(value), nil
	default:
		return "", errors.Wrap(ErrUnsupportedInterval, value)
	}
}

// Period is the ticker period between sync passes.
func (i Interval) Period() time.Duration {
	switch i {
	case IntervalDaily:
		return 24 * time.Hour
	case IntervalDebug:
		return 10 * time.Second
	default:
		return time.Hour
	}
}

// Boundary returns the end of the last fully elapsed interval, in epoch
// milliseconds. Hourly and daily cadences step back one full unit so a pass
// never reads a period the exchange may still be appending to; the debug
// cadence only floors to its ten second grid.
func (i Interval) Boundary(now time.Time) int64 {
	epoch := now.Unix()
	switch i {
	case IntervalDaily:
		return (epoch/86400 - 1) * 86400 * 1000
	case IntervalDebug:
		return (epoch / 10) * 10 * 1000
	default:
		return (epoch/3600 - 1) * 3600 * 1000
	}
}
