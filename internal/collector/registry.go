package collector

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/FNNDSC/pl-heartbeat/internal/models"
)

// Registry maps info types to collectors. Lookups happen once at startup,
// never per tick.
type Registry struct {
	collectors map[models.InfoType]Collector
	logger     *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		collectors: make(map[models.InfoType]Collector),
		logger:     logger,
	}
}

// NewDefaultRegistry creates a registry holding every built-in collector.
func NewDefaultRegistry(clock clockwork.Clock, logger *zap.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(models.InfoTypeCPU, NewCPUCollector())
	r.Register(models.InfoTypeMemory, NewMemoryCollector())
	r.Register(models.InfoTypeDateTime, NewDateTimeCollector(clock))
	return r
}

// Register binds c to t, replacing any previous binding.
func (r *Registry) Register(t models.InfoType, c Collector) {
	r.collectors[t] = c
	r.logger.Debug("Registered collector",
		zap.String("info_type", t.String()),
		zap.String("name", c.Name()))
}

// Get returns the collector bound to t.
func (r *Registry) Get(t models.InfoType) (Collector, error) {
	c, ok := r.collectors[t]
	if !ok {
		return nil, fmt.Errorf("no collector registered for %s: %w", t, models.ErrUnknownInfoType)
	}
	return c, nil
}

// Lookup parses a selector and returns its collector.
func (r *Registry) Lookup(selector string) (Collector, error) {
	t, err := models.ParseInfoType(selector)
	if err != nil {
		return nil, err
	}
	return r.Get(t)
}
