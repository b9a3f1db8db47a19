// Package backend defines the execution tier abstraction and the tier
// registry. A tier is one interchangeable execution backend (GPU
// compute, native accelerator, interpreted fallback) for genomic
// operations; all tiers implementing a given operation kind produce
// numerically equivalent output.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/genoscope/seqcompute/seq"
)

// Kind identifies one operation type.
type Kind uint8

const (
	// KindKmerCount builds a dense k-mer histogram.
	KindKmerCount Kind = iota
	// KindGCSkew computes windowed GC skew with cumulative sums.
	KindGCSkew
	// KindSeqDiff computes the edit distance between two sequences.
	KindSeqDiff
	// KindDotPlot rasterizes k-word matches between two sequences.
	KindDotPlot
	// KindHilbertRaster maps GC density onto a Hilbert curve.
	KindHilbertRaster
	// KindSimStep advances a deterministic mutation simulation.
	KindSimStep

	// KindCount is the number of operation kinds.
	KindCount
)

// String returns the kind name used in errors and diagnostics.
func (k Kind) String() string {
	switch k {
	case KindKmerCount:
		return "kmer-count"
	case KindGCSkew:
		return "gc-skew"
	case KindSeqDiff:
		return "seq-diff"
	case KindDotPlot:
		return "dot-plot"
	case KindHilbertRaster:
		return "hilbert-raster"
	case KindSimStep:
		return "sim-step"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Options carries the numeric knobs of a request. Kinds ignore the
// fields they do not read.
type Options struct {
	K      int
	Window int
	Step   int
	Width  int
	Height int
	Order  int

	Seed         uint32
	Generation   uint32
	MutationRate float64
}

// Request names an operation kind with its resolved inputs. Requests
// only read their buffers; they never touch pool state.
type Request struct {
	Kind Kind
	Buf  *seq.Buffer
	Buf2 *seq.Buffer // second sequence for diff and dot-plot
	Opts Options
}

// Result is the tagged output of one operation. Tier records which
// backend produced it, for diagnostics only: tiers are
// interchangeable and callers must not branch on it.
type Result struct {
	Kind Kind
	Tier string

	// KindKmerCount and KindDotPlot
	Counts []uint32
	Width  int
	Height int

	// KindGCSkew
	Skew       []float64
	Cumulative []float64
	Origin     int
	Terminus   int

	// KindSeqDiff
	Distance uint32
	Identity float64

	// KindHilbertRaster
	Cells []float64
	Side  int
	Order int

	// KindSimStep
	Sequence  []byte
	Mutations uint32
}

// Common tier errors.
var (
	// ErrTierUnavailable signals an expected capability gap: the
	// dispatcher advances to the next tier without surfacing it.
	ErrTierUnavailable = errors.New("backend: tier unavailable")

	// ErrUnsupportedKind means a tier has no implementation for the
	// requested kind. Treated exactly like unavailability.
	ErrUnsupportedKind = errors.New("backend: operation kind not supported")

	// ErrNotInitialized is returned when Run is called before Init.
	ErrNotInitialized = errors.New("backend: tier not initialized")

	// ErrInvalidRequest marks requests whose options are out of range
	// for every tier, where fallback cannot help.
	ErrInvalidRequest = errors.New("backend: invalid request")
)

// Tier is one execution backend. Implementations must be safe for
// concurrent Run calls from different worker slots.
type Tier interface {
	// Name returns the tier identifier (TierGPU, TierNative or
	// TierInterp).
	Name() string

	// Init prepares the tier. An error means the tier is permanently
	// unavailable for this process (no retry).
	Init() error

	// Close releases all tier resources.
	Close()

	// Supports reports whether the tier implements the kind at all.
	// Input size limits are checked in Run, not here.
	Supports(k Kind) bool

	// Run executes the request. Any error other than
	// ErrInvalidRequest is treated as tier unavailability by the
	// dispatcher, which falls through to the next tier.
	Run(ctx context.Context, req *Request) (*Result, error)
}
