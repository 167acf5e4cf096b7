// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Control adapter implementing api.Control interface using control package primitives.

package adapters

import (
	"github.com/momentics/gcdispatch/api"
	"github.com/momentics/gcdispatch/control"
)

// ControlAdapter bundles the configuration store, metrics, dispatch history
// and debug probes of one dispatcher.
type ControlAdapter struct {
	config  *control.ConfigStore
	metrics *control.MetricsRegistry
	history *control.DispatchHistory
	debug   *control.DebugProbes
}

var _ api.Control = (*ControlAdapter)(nil)

// NewControlAdapter builds the control plane around cfg. The history keeps
// cfg.HistorySize records.
func NewControlAdapter(cfg control.Config) *ControlAdapter {
	adapter := &ControlAdapter{
		config:  control.NewConfigStore(cfg),
		metrics: control.NewMetricsRegistry(),
		history: control.NewDispatchHistory(cfg.HistorySize),
		debug:   control.NewDebugProbes(),
	}
	control.RegisterPlatformProbes(adapter.debug)
	return adapter
}

func (c *ControlAdapter) Config() *control.ConfigStore      { return c.config }
func (c *ControlAdapter) Metrics() *control.MetricsRegistry { return c.metrics }
func (c *ControlAdapter) History() *control.DispatchHistory { return c.history }

// Stats merges metrics with the probe outputs, the latter under "debug.".
func (c *ControlAdapter) Stats() map[string]any {
	stats := c.metrics.GetSnapshot()
	debugStats := c.debug.DumpState()
	combined := make(map[string]any, len(stats)+len(debugStats))
	for k, v := range stats {
		combined[k] = v
	}
	for k, v := range debugStats {
		combined["debug."+k] = v
	}
	return combined
}

func (c *ControlAdapter) OnReload(fn func()) {
	c.config.OnReload(func(_, _ control.Config) { fn() })
}

func (c *ControlAdapter) SetMetric(key string, value any) {
	c.metrics.Set(key, value)
}

func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}
