// Package native implements the native accelerator tier: optimized
// pure-Go kernels exposed through a function table keyed by operation
// kind. A kind missing from the table is reported as unsupported and
// the dispatcher falls through to the interpreted tier.
package native

import (
	"context"

	"github.com/genoscope/seqcompute/backend"
)

// init registers the native tier on package import.
func init() {
	backend.Register(backend.TierNative, func() backend.Tier {
		return &Tier{}
	})
}

// kernel is one accelerated operation. Kernels compute into pooled
// scratch memory and must return that scratch before returning, on
// the error path included.
type kernel func(req *backend.Request) (*backend.Result, error)

// Tier runs operations through optimized kernels. The function table
// is populated at Init, mirroring a dynamically loaded accelerator
// module: lookup failure means "tier unsupported", never an error.
type Tier struct {
	kernels [backend.KindCount]kernel
	loaded  bool
}

// NewTier creates a native tier. Most callers go through the
// registry instead.
func NewTier() *Tier { return &Tier{} }

// Name returns TierNative.
func (t *Tier) Name() string { return backend.TierNative }

// Init loads the kernel table.
func (t *Tier) Init() error {
	t.kernels[backend.KindKmerCount] = kmerCountKernel
	t.kernels[backend.KindGCSkew] = gcSkewKernel
	t.kernels[backend.KindSeqDiff] = seqDiffKernel
	t.kernels[backend.KindDotPlot] = dotPlotKernel
	t.kernels[backend.KindHilbertRaster] = hilbertKernel
	t.kernels[backend.KindSimStep] = simStepKernel
	t.loaded = true
	return nil
}

// Close drops the kernel table.
func (t *Tier) Close() {
	t.kernels = [backend.KindCount]kernel{}
	t.loaded = false
}

// Supports reports whether a kernel exists for the kind.
func (t *Tier) Supports(k backend.Kind) bool {
	return k < backend.KindCount && t.kernels[k] != nil
}

// Run executes the request through the kernel table.
func (t *Tier) Run(ctx context.Context, req *backend.Request) (*backend.Result, error) {
	if !t.loaded {
		return nil, backend.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Kind >= backend.KindCount || t.kernels[req.Kind] == nil {
		return nil, backend.ErrUnsupportedKind
	}
	res, err := t.kernels[req.Kind](req)
	if err != nil {
		return nil, err
	}
	res.Kind = req.Kind
	res.Tier = backend.TierNative
	return res, nil
}
