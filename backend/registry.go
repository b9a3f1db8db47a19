package backend

import (
	"sync"
)

// Tier names in fixed dispatch priority order.
const (
	// TierGPU runs operations as compute shaders on a wgpu device.
	TierGPU = "gpu"
	// TierNative runs operations through the optimized native
	// accelerator function table.
	TierNative = "native"
	// TierInterp is the interpreted reference fallback. It is always
	// registered and supports every kind.
	TierInterp = "interp"
)

// Factory creates a new tier instance. A nil factory (or a factory
// returning nil) marks the tier as registered-but-unavailable, which
// build-tag stubs use to keep the priority list stable.
type Factory func() Tier

var (
	registryMu sync.RWMutex
	tiers      = make(map[string]Factory)
	// First available tier wins. GPU is fastest for large inputs,
	// interp is the always-present fallback.
	tierPriority = []string{TierGPU, TierNative, TierInterp}
)

// Register registers a tier factory under the given name, replacing
// any previous registration. Typically called from init() in tier
// packages.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	tiers[name] = factory
}

// Unregister removes a tier from the registry. Useful in tests.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(tiers, name)
}

// Priority returns the tier names in dispatch priority order,
// registered or not.
func Priority() []string {
	out := make([]string, len(tierPriority))
	copy(out, tierPriority)
	return out
}

// Available returns the names of registered tiers.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(tiers))
	for name := range tiers {
		names = append(names, name)
	}
	return names
}

// IsRegistered reports whether a tier with the given name exists.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := tiers[name]
	return ok
}

// Get returns a new tier instance by name, or nil if the tier is not
// registered or its factory is a stub.
func Get(name string) Tier {
	registryMu.RLock()
	factory, ok := tiers[name]
	registryMu.RUnlock()
	if !ok || factory == nil {
		return nil
	}
	return factory()
}

// Ordered instantiates every available tier in dispatch priority
// order. Tiers registered with nil factories are skipped. Callers own
// the returned tiers and must Init and Close them.
func Ordered() []Tier {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Tier, 0, len(tierPriority))
	for _, name := range tierPriority {
		factory, ok := tiers[name]
		if !ok || factory == nil {
			continue
		}
		if t := factory(); t != nil {
			out = append(out, t)
		}
	}
	return out
}
