package seqcompute

import (
	"log/slog"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/genoscope/seqcompute/backend"
)

// Defaults used when the corresponding option is zero.
const (
	DefaultAnalysisSlots   = 4
	DefaultSimulationSlots = 2
	DefaultPoolCapacity    = 32
	DefaultIdleTimeout     = 60 * time.Second
	DefaultCleanupInterval = 15 * time.Second
)

// Option configures an Orchestrator during creation.
type Option func(*config)

type config struct {
	analysisSlots   int
	simulationSlots int
	poolCapacity    int
	idleTimeout     time.Duration
	cleanupInterval time.Duration
	logger          *slog.Logger
	provider        gpucontext.DeviceProvider
	tiers           []string
	gpuDisabled     bool
}

func defaultConfig() config {
	return config{
		analysisSlots:   DefaultAnalysisSlots,
		simulationSlots: DefaultSimulationSlots,
		poolCapacity:    DefaultPoolCapacity,
		idleTimeout:     DefaultIdleTimeout,
		cleanupInterval: DefaultCleanupInterval,
	}
}

// WithAnalysisSlots sets the regular slot ceiling for analysis work.
// Demand beyond the ceiling is served by overflow slots.
func WithAnalysisSlots(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.analysisSlots = n
		}
	}
}

// WithSimulationSlots sets the regular slot ceiling for simulation
// work.
func WithSimulationSlots(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.simulationSlots = n
		}
	}
}

// WithPoolCapacity sets the sequence buffer pool capacity.
func WithPoolCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.poolCapacity = n
		}
	}
}

// WithIdleTimeout sets how long a worker slot may sit idle before it
// is torn down.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.idleTimeout = d
		}
	}
}

// WithCleanupInterval sets the idle-cleanup ticker period.
func WithCleanupInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.cleanupInterval = d
		}
	}
}

// WithLogger enables logging through the given logger. Equivalent to
// calling SetLogger before New.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithDeviceProvider shares an external GPU device with the compute
// tiers instead of opening a standalone one. The provider typically
// comes from gogpu.App.GPUContextProvider(). Sharing failure is
// non-fatal: the GPU tier falls back to its own device probe.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(c *config) { c.provider = p }
}

// WithTiers restricts execution to the named tiers. Priority order is
// unchanged.
func WithTiers(names ...string) Option {
	return func(c *config) { c.tiers = names }
}

// WithGPUDisabled excludes the GPU tier without touching the build
// tags. Operations run on the native and interpreted tiers only.
func WithGPUDisabled() Option {
	return func(c *config) { c.gpuDisabled = true }
}

// tierNames resolves the effective tier restriction, or nil for the
// full priority walk.
func (c *config) tierNames() []string {
	if c.tiers != nil {
		return c.tiers
	}
	if !c.gpuDisabled {
		return nil
	}
	var names []string
	for _, name := range backend.Priority() {
		if name != backend.TierGPU {
			names = append(names, name)
		}
	}
	return names
}
