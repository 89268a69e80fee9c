// Package collector defines the Collector interface and the metric sources
// a heartbeat can report.
package collector

import (
	"context"
	"errors"
)

// ErrSampleRead marks a transient failure to read a metric. The scheduler
// logs it and skips the tick.
var ErrSampleRead = errors.New("sample read failed")

// Collector produces a one-line textual snapshot of a single system metric.
type Collector interface {
	// Name returns the unique identifier for this collector.
	Name() string

	// Sample reads the metric and formats it for output.
	// The context allows for cancellation and timeout control.
	Sample(ctx context.Context) (string, error)
}
