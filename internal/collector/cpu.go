// CPU usage collector. Uses gopsutil for cross-platform CPU metrics.
package collector

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
)

// CPUCollector reports total CPU utilization.
type CPUCollector struct {
	percent func(ctx context.Context) ([]float64, error)
}

// NewCPUCollector creates a new CPU collector.
func NewCPUCollector() *CPUCollector {
	return NewCPUCollectorFrom(overallPercent)
}

// NewCPUCollectorFrom creates a CPU collector that reads utilization from
// percent instead of the host counters. percent returns the overall busy
// percentage as its first element.
func NewCPUCollectorFrom(percent func(ctx context.Context) ([]float64, error)) *CPUCollector {
	return &CPUCollector{percent: percent}
}

// Name returns the collector identifier.
func (c *CPUCollector) Name() string { return "cpu" }

// Sample returns utilization since the previous call without blocking,
// so a slow sample never stretches the tick.
func (c *CPUCollector) Sample(ctx context.Context) (string, error) {
	overall, err := c.percent(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: cpu percent: %w", ErrSampleRead, err)
	}
	if len(overall) == 0 {
		return "", fmt.Errorf("%w: cpu percent: no data", ErrSampleRead)
	}
	return fmt.Sprintf("Total CPU Usage: %.1f%%", overall[0]), nil
}

func overallPercent(ctx context.Context) ([]float64, error) {
	return cpu.PercentWithContext(ctx, 0, false)
}
