// Package dispatch routes operation requests through the execution
// tiers in fixed priority order. A tier failure is an expected event:
// the dispatcher records the cause, falls through to the next tier
// and only surfaces an error once every tier has been tried.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/genoscope/seqcompute/backend"
)

// TierFailure records why one tier could not serve a request.
type TierFailure struct {
	Tier string
	Err  error
}

// ExhaustionError is returned when every tier failed or was
// unavailable for a request. It carries the per-tier causes.
type ExhaustionError struct {
	Kind     backend.Kind
	Failures []TierFailure
}

func (e *ExhaustionError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "dispatch: all tiers failed for %s", e.Kind)
	for _, f := range e.Failures {
		fmt.Fprintf(&sb, "; %s: %v", f.Tier, f.Err)
	}
	return sb.String()
}

// Unwrap exposes the per-tier causes to errors.Is and errors.As.
func (e *ExhaustionError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// TierStats counts outcomes for one tier.
type TierStats struct {
	Name      string
	Available bool
	Successes uint64
	Failures  uint64
}

// tierState is one tier slot in priority order. A nil tier means the
// slot is permanently unavailable (unregistered, stubbed out, or its
// Init failed).
type tierState struct {
	name      string
	tier      backend.Tier
	successes atomic.Uint64
	failures  atomic.Uint64
}

// Dispatcher walks the tier chain for each request. Construction
// initializes every tier once; a tier whose Init fails stays disabled
// for the dispatcher's lifetime.
type Dispatcher struct {
	tiers []*tierState
}

// Option configures a Dispatcher.
type Option func(*config)

type config struct {
	only map[string]bool
}

// WithTiers restricts the dispatcher to the named tiers. Priority
// order is unchanged; unnamed tiers are treated as unavailable.
func WithTiers(names ...string) Option {
	return func(c *config) {
		c.only = make(map[string]bool, len(names))
		for _, n := range names {
			c.only[n] = true
		}
	}
}

// New builds a dispatcher over the registered tiers, in priority
// order. Tiers that fail Init are logged and disabled, never
// retried.
func New(opts ...Option) *Dispatcher {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &Dispatcher{}
	for _, name := range backend.Priority() {
		st := &tierState{name: name}
		d.tiers = append(d.tiers, st)

		if cfg.only != nil && !cfg.only[name] {
			continue
		}
		tier := backend.Get(name)
		if tier == nil {
			continue
		}
		if err := tier.Init(); err != nil {
			slogger().Info("dispatch: tier disabled", "tier", name, "err", err)
			tier.Close()
			continue
		}
		st.tier = tier
		slogger().Debug("dispatch: tier ready", "tier", name)
	}
	return d
}

// Dispatch runs the request on the highest-priority tier that can
// serve it. Tier errors other than ErrInvalidRequest are swallowed
// into the fallback walk; context cancellation stops the walk
// immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, req *backend.Request) (*backend.Result, error) {
	var failures []TierFailure
	for _, st := range d.tiers {
		if st.tier == nil {
			failures = append(failures, TierFailure{Tier: st.name, Err: backend.ErrTierUnavailable})
			continue
		}
		if !st.tier.Supports(req.Kind) {
			failures = append(failures, TierFailure{Tier: st.name, Err: backend.ErrUnsupportedKind})
			continue
		}

		res, err := st.tier.Run(ctx, req)
		if err == nil {
			st.successes.Add(1)
			return res, nil
		}
		if errors.Is(err, backend.ErrInvalidRequest) || ctx.Err() != nil {
			return nil, err
		}

		st.failures.Add(1)
		slogger().Debug("dispatch: tier failed, falling through",
			"tier", st.name, "kind", req.Kind, "err", err)
		failures = append(failures, TierFailure{Tier: st.name, Err: err})
	}
	return nil, &ExhaustionError{Kind: req.Kind, Failures: failures}
}

// Available returns the names of tiers that initialized successfully,
// in priority order.
func (d *Dispatcher) Available() []string {
	var names []string
	for _, st := range d.tiers {
		if st.tier != nil {
			names = append(names, st.name)
		}
	}
	return names
}

// Stats returns per-tier outcome counters in priority order.
func (d *Dispatcher) Stats() []TierStats {
	out := make([]TierStats, len(d.tiers))
	for i, st := range d.tiers {
		out[i] = TierStats{
			Name:      st.name,
			Available: st.tier != nil,
			Successes: st.successes.Load(),
			Failures:  st.failures.Load(),
		}
	}
	return out
}

// ConfigureDevice forwards a shared GPU device provider to any tier
// that accepts one.
func (d *Dispatcher) ConfigureDevice(provider any) error {
	type deviceSink interface {
		SetDeviceProvider(provider any) error
	}
	for _, st := range d.tiers {
		if sink, ok := st.tier.(deviceSink); ok {
			if err := sink.SetDeviceProvider(provider); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close shuts down every initialized tier.
func (d *Dispatcher) Close() {
	for _, st := range d.tiers {
		if st.tier != nil {
			st.tier.Close()
			st.tier = nil
		}
	}
}
