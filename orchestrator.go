// Package seqcompute orchestrates genomic compute: it owns the
// sequence buffer pool, the worker slot registry, and the tiered
// dispatcher, and exposes one method per operation. Each operation
// acquires a slot, resolves its buffers, dispatches inside the slot
// and releases everything on every path.
package seqcompute

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/genoscope/seqcompute/backend"
	_ "github.com/genoscope/seqcompute/backend/native"
	"github.com/genoscope/seqcompute/dispatch"
	"github.com/genoscope/seqcompute/pool"
	"github.com/genoscope/seqcompute/seq"
	"github.com/genoscope/seqcompute/worker"
)

// SeqArg names one input sequence. Either Buf is a pre-resolved
// buffer, or ID/Text identify a sequence that goes through the pool
// (first writer wins; later texts for the same ID are ignored).
type SeqArg struct {
	ID   string
	Text string
	Buf  *seq.Buffer
}

func (a *SeqArg) key() string {
	if a.Buf != nil {
		return a.Buf.ID()
	}
	return a.ID
}

// OpResult pairs an operation result with its request sequence
// number. Stale means a newer request was issued for the same (kind,
// sequence id) while this one ran; callers discard stale results
// instead of cancelling in-flight work.
type OpResult struct {
	*backend.Result
	Seq   uint64
	Stale bool
}

type latestKey struct {
	kind backend.Kind
	id   string
}

// Orchestrator is the compute facade. Safe for concurrent use; slot
// acquisition is the only globally serialized step.
type Orchestrator struct {
	pool       *pool.Pool
	registry   *worker.Registry
	dispatcher *dispatch.Dispatcher

	latestMu sync.Mutex
	latest   map[latestKey]uint64

	nextSeq   atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	stale     atomic.Uint64

	disposed atomic.Bool
}

// New builds an orchestrator: buffer pool, slot registry, and a
// dispatcher over every tier that initializes. GPU unavailability is
// not an error; operations fall through to the CPU tiers.
func New(opts ...Option) *Orchestrator {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger != nil {
		SetLogger(cfg.logger)
	}

	var dispatchOpts []dispatch.Option
	if names := cfg.tierNames(); names != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithTiers(names...))
	}
	d := dispatch.New(dispatchOpts...)

	if cfg.provider != nil {
		// Non-fatal: the GPU tier keeps its own probed device.
		if err := d.ConfigureDevice(cfg.provider); err != nil {
			slogger().Warn("seqcompute: device sharing failed", "err", err)
		}
	}

	o := &Orchestrator{
		pool: pool.New(cfg.poolCapacity),
		registry: worker.NewRegistry(
			worker.WithRoleCeiling(worker.RoleAnalysis, cfg.analysisSlots),
			worker.WithRoleCeiling(worker.RoleSimulation, cfg.simulationSlots),
			worker.WithIdleTimeout(cfg.idleTimeout),
			worker.WithCleanupInterval(cfg.cleanupInterval),
		),
		dispatcher: d,
		latest:     make(map[latestKey]uint64),
	}
	slogger().Info("seqcompute: orchestrator ready", "tiers", d.Available())
	return o
}

// resolve turns a SeqArg into a pool-managed buffer plus its release
// func. Pre-resolved buffers bypass the pool and release is a no-op.
func (o *Orchestrator) resolve(a *SeqArg) (*seq.Buffer, func(), error) {
	if a.Buf != nil {
		return a.Buf, func() {}, nil
	}
	buf, err := o.pool.GetOrCreate(a.ID, a.Text)
	if err != nil {
		return nil, nil, err
	}
	return buf, func() { o.pool.Release(a.ID) }, nil
}

func (o *Orchestrator) noteIssued(kind backend.Kind, id string, seqNum uint64) {
	key := latestKey{kind: kind, id: id}
	o.latestMu.Lock()
	if seqNum > o.latest[key] {
		o.latest[key] = seqNum
	}
	o.latestMu.Unlock()
}

// Latest returns the highest request sequence number issued for a
// (kind, sequence id) pair. Zero means none.
func (o *Orchestrator) Latest(kind backend.Kind, id string) uint64 {
	o.latestMu.Lock()
	defer o.latestMu.Unlock()
	return o.latest[latestKey{kind: kind, id: id}]
}

func (o *Orchestrator) isStale(kind backend.Kind, id string, seqNum uint64) bool {
	return o.Latest(kind, id) > seqNum
}

// run executes one operation end to end: sequence number, slot,
// buffers, dispatch inside the slot, release on every path.
func (o *Orchestrator) run(ctx context.Context, role worker.Role, kind backend.Kind, a *SeqArg, b *SeqArg, opts backend.Options) (*OpResult, error) {
	if o.disposed.Load() {
		return nil, ErrDisposed
	}
	seqNum := o.nextSeq.Add(1)
	o.noteIssued(kind, a.key(), seqNum)

	slot, err := o.registry.Acquire(role)
	if err != nil {
		o.failed.Add(1)
		return nil, &OpError{Kind: kind, Seq: seqNum, Err: err}
	}

	buf, releaseA, err := o.resolve(a)
	if err != nil {
		o.registry.Release(slot, nil)
		o.failed.Add(1)
		return nil, &OpError{Kind: kind, Seq: seqNum, Err: err}
	}
	defer releaseA()

	var buf2 *seq.Buffer
	if b != nil {
		var releaseB func()
		buf2, releaseB, err = o.resolve(b)
		if err != nil {
			o.registry.Release(slot, nil)
			o.failed.Add(1)
			return nil, &OpError{Kind: kind, Seq: seqNum, Err: err}
		}
		defer releaseB()
	}

	req := &backend.Request{Kind: kind, Buf: buf, Buf2: buf2, Opts: opts}
	var res *backend.Result
	execErr := slot.Run(ctx, func() error {
		r, err := o.dispatcher.Dispatch(ctx, req)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	// Context errors reflect the caller, not the slot; the slot never
	// ran the job and stays healthy.
	relErr := execErr
	if errors.Is(execErr, context.Canceled) || errors.Is(execErr, context.DeadlineExceeded) {
		relErr = nil
	}
	o.registry.Release(slot, relErr)

	if execErr != nil {
		o.failed.Add(1)
		return nil, &OpError{Kind: kind, Seq: seqNum, Err: execErr}
	}

	out := &OpResult{Result: res, Seq: seqNum}
	if o.isStale(kind, a.key(), seqNum) {
		out.Stale = true
		o.stale.Add(1)
	}
	o.completed.Add(1)
	return out, nil
}

// KmerCount builds the dense k-mer histogram of a sequence.
func (o *Orchestrator) KmerCount(ctx context.Context, s SeqArg, k int) (*OpResult, error) {
	return o.run(ctx, worker.RoleAnalysis, backend.KindKmerCount, &s, nil, backend.Options{K: k})
}

// GCSkew computes windowed GC skew with cumulative sums and the
// predicted replication origin and terminus.
func (o *Orchestrator) GCSkew(ctx context.Context, s SeqArg, window, step int) (*OpResult, error) {
	return o.run(ctx, worker.RoleAnalysis, backend.KindGCSkew, &s, nil, backend.Options{Window: window, Step: step})
}

// Diff computes the edit distance and identity between two sequences.
func (o *Orchestrator) Diff(ctx context.Context, a, b SeqArg) (*OpResult, error) {
	return o.run(ctx, worker.RoleAnalysis, backend.KindSeqDiff, &a, &b, backend.Options{})
}

// DotPlot rasterizes k-word matches between two sequences onto a
// width x height grid.
func (o *Orchestrator) DotPlot(ctx context.Context, a, b SeqArg, k, width, height int) (*OpResult, error) {
	return o.run(ctx, worker.RoleAnalysis, backend.KindDotPlot, &a, &b, backend.Options{K: k, Width: width, Height: height})
}

// HilbertRaster maps per-chunk GC density onto a Hilbert curve of the
// given order.
func (o *Orchestrator) HilbertRaster(ctx context.Context, s SeqArg, order int) (*OpResult, error) {
	return o.run(ctx, worker.RoleAnalysis, backend.KindHilbertRaster, &s, nil, backend.Options{Order: order})
}

// SimStep advances a deterministic mutation simulation by one
// generation. Runs in a simulation slot so long-lived simulations
// never starve analysis work.
func (o *Orchestrator) SimStep(ctx context.Context, s SeqArg, seed, generation uint32, rate float64) (*OpResult, error) {
	return o.run(ctx, worker.RoleSimulation, backend.KindSimStep, &s, nil, backend.Options{Seed: seed, Generation: generation, MutationRate: rate})
}

// Stats is a combined snapshot of all orchestrator counters.
type Stats struct {
	Pool    pool.Stats
	Workers worker.Stats
	Tiers   []dispatch.TierStats

	Requests  uint64
	Completed uint64
	Failed    uint64
	Stale     uint64
}

// Stats returns current counters. Valid after Dispose (frozen at
// their final values).
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Pool:      o.pool.Stats(),
		Workers:   o.registry.Stats(),
		Tiers:     o.dispatcher.Stats(),
		Requests:  o.nextSeq.Load(),
		Completed: o.completed.Load(),
		Failed:    o.failed.Load(),
		Stale:     o.stale.Load(),
	}
}

// Report formats a diagnostics block from the current Stats.
func (o *Orchestrator) Report() string {
	st := o.Stats()
	var sb strings.Builder
	fmt.Fprintf(&sb, "requests: %d (completed %d, failed %d, stale %d)\n",
		st.Requests, st.Completed, st.Failed, st.Stale)
	fmt.Fprintf(&sb, "pool: %d/%d buffers, %d hits, %d misses, %d evictions\n",
		st.Pool.Size, st.Pool.Capacity, st.Pool.Hits, st.Pool.Misses, st.Pool.Evictions)
	fmt.Fprintf(&sb, "slots: created %d, removed %d, overflow %d\n",
		st.Workers.Created, st.Workers.Removed, st.Workers.OverflowCreated)
	for _, ts := range st.Tiers {
		state := "unavailable"
		if ts.Available {
			state = "ready"
		}
		fmt.Fprintf(&sb, "tier %s: %s, %d ok, %d failed\n",
			ts.Name, state, ts.Successes, ts.Failures)
	}
	return sb.String()
}

// Dispose shuts the orchestrator down: slot registry, tiers, buffer
// pool, in that order. Idempotent; every later operation returns
// ErrDisposed.
func (o *Orchestrator) Dispose() {
	if !o.disposed.CompareAndSwap(false, true) {
		return
	}
	o.registry.Close()
	o.dispatcher.Close()
	o.pool.Close()
	slogger().Info("seqcompute: orchestrator disposed")
}
