package collector

import (
	"context"

	"github.com/jonboulle/clockwork"
)

// DateTimeLayout is the timestamp format with millisecond precision.
const DateTimeLayout = "2006-01-02 15:04:05.000"

// DateTimeCollector reports the current local time.
type DateTimeCollector struct {
	clock clockwork.Clock
}

// NewDateTimeCollector creates a collector reading time from clock.
// A nil clock means the real wall clock.
func NewDateTimeCollector(clock clockwork.Clock) *DateTimeCollector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DateTimeCollector{clock: clock}
}

// Name returns the collector identifier.
func (c *DateTimeCollector) Name() string { return "datetime" }

// Sample formats the current time. It never fails.
func (c *DateTimeCollector) Sample(_ context.Context) (string, error) {
	return c.clock.Now().Format(DateTimeLayout), nil
}
