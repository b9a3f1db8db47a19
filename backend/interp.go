package backend

import (
	"context"
	"math"

	"github.com/genoscope/seqcompute/analysis"
)

// init registers the interpreted tier on package import. It is the
// always-present fallback: every kind is supported and Init never
// fails.
func init() {
	Register(TierInterp, func() Tier {
		return &InterpTier{}
	})
}

// InterpTier runs every operation through the reference
// implementations in the analysis package. It is the last tier in
// dispatch order and the parity oracle for the accelerated tiers.
type InterpTier struct {
	initialized bool
}

// NewInterpTier creates an interpreted tier. Most callers go through
// the registry instead.
func NewInterpTier() *InterpTier {
	return &InterpTier{}
}

// Name returns TierInterp.
func (t *InterpTier) Name() string { return TierInterp }

// Init marks the tier ready. The interpreted tier has no external
// capability to probe, so this never fails.
func (t *InterpTier) Init() error {
	t.initialized = true
	return nil
}

// Close releases nothing; the tier holds no resources.
func (t *InterpTier) Close() {
	t.initialized = false
}

// Supports reports true for every defined kind.
func (t *InterpTier) Supports(k Kind) bool {
	return k < KindCount
}

// Run executes the request with the reference implementation.
func (t *InterpTier) Run(ctx context.Context, req *Request) (*Result, error) {
	if !t.initialized {
		return nil, ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Kind: req.Kind, Tier: TierInterp}
	switch req.Kind {
	case KindKmerCount:
		counts := analysis.KmerCount(req.Buf, req.Opts.K)
		if counts == nil {
			return nil, ErrInvalidRequest
		}
		res.Counts = counts

	case KindGCSkew:
		r := analysis.GCSkew(req.Buf, req.Opts.Window, req.Opts.Step)
		if r == nil {
			return nil, ErrInvalidRequest
		}
		res.Skew = r.Skew
		res.Cumulative = r.Cumulative
		res.Origin = r.Origin
		res.Terminus = r.Terminus

	case KindSeqDiff:
		if req.Buf2 == nil {
			return nil, ErrInvalidRequest
		}
		r := analysis.Diff(req.Buf, req.Buf2)
		res.Distance = r.Distance
		res.Identity = r.Identity

	case KindDotPlot:
		if req.Buf2 == nil {
			return nil, ErrInvalidRequest
		}
		r := analysis.DotPlot(req.Buf, req.Buf2, req.Opts.K, req.Opts.Width, req.Opts.Height)
		if r == nil {
			return nil, ErrInvalidRequest
		}
		res.Counts = r.Counts
		res.Width = r.Width
		res.Height = r.Height

	case KindHilbertRaster:
		r := analysis.HilbertRaster(req.Buf, req.Opts.Order)
		if r == nil {
			return nil, ErrInvalidRequest
		}
		res.Cells = r.Cells
		res.Side = r.Side
		res.Order = r.Order

	case KindSimStep:
		rate := req.Opts.MutationRate
		if rate < 0 || rate > 1 || math.IsNaN(rate) {
			return nil, ErrInvalidRequest
		}
		thr := analysis.MutationThreshold(rate)
		r := analysis.SimStep(req.Buf, req.Opts.Seed, req.Opts.Generation, thr)
		res.Sequence = r.Sequence
		res.Mutations = r.Mutations

	default:
		return nil, ErrUnsupportedKind
	}
	return res, nil
}
