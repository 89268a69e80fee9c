// RAM usage collector. Uses gopsutil for cross-platform memory metrics.
package collector

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

// MemoryCollector reports total virtual memory utilization.
type MemoryCollector struct {
	virtual func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewMemoryCollector creates a new memory collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{virtual: mem.VirtualMemoryWithContext}
}

// Name returns the collector identifier.
func (c *MemoryCollector) Name() string { return "memory" }

// Sample returns the used-memory percentage.
func (c *MemoryCollector) Sample(ctx context.Context) (string, error) {
	v, err := c.virtual(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: virtual memory: %w", ErrSampleRead, err)
	}
	return fmt.Sprintf("Total Memory Usage: %.1f%%", v.UsedPercent), nil
}
