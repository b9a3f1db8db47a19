//go:build !nogpu

package gpu

import (
	"context"
	"encoding/binary"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/genoscope/seqcompute/analysis"
	"github.com/genoscope/seqcompute/backend"
	"github.com/genoscope/seqcompute/seq"
)

// newTestTier opens a device or skips. CI machines without Vulkan
// exercise the registration and capability paths only.
func newTestTier(t *testing.T) *Tier {
	t.Helper()
	tier := NewTier()
	if err := tier.Init(); err != nil {
		t.Skipf("no GPU device: %v", err)
	}
	t.Cleanup(tier.Close)
	return tier
}

func randomSeq(n int, seed int64) string {
	rng := rand.New(rand.NewSource(seed))
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		sb.WriteByte("ACGT"[rng.Intn(4)])
	}
	return sb.String()
}

func packedBuffer(t *testing.T, id, text string) *seq.Buffer {
	t.Helper()
	b := seq.NewBuffer(id, text, false)
	if b.Encoding() != seq.EncodingPacked {
		t.Fatalf("expected packed encoding for %q", id)
	}
	return b
}

func TestRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.TierGPU) {
		t.Fatal("gpu tier not registered")
	}
}

func TestSupports(t *testing.T) {
	tier := NewTier()
	for _, k := range []backend.Kind{
		backend.KindKmerCount, backend.KindGCSkew, backend.KindDotPlot, backend.KindSimStep,
	} {
		if !tier.Supports(k) {
			t.Errorf("Supports(%v) = false", k)
		}
	}
	for _, k := range []backend.Kind{backend.KindSeqDiff, backend.KindHilbertRaster} {
		if tier.Supports(k) {
			t.Errorf("Supports(%v) = true", k)
		}
	}
}

func TestRunBeforeInit(t *testing.T) {
	tier := NewTier()
	b := packedBuffer(t, "uninit", randomSeq(2048, 1))
	_, err := tier.Run(context.Background(), &backend.Request{
		Kind: backend.KindKmerCount,
		Buf:  b,
		Opts: backend.Options{K: 3},
	})
	if err != backend.ErrNotInitialized {
		t.Fatalf("Run before Init: got %v, want ErrNotInitialized", err)
	}
}

func TestRawEncodingFallsThrough(t *testing.T) {
	tier := newTestTier(t)
	// Short sequences stay raw-encoded.
	b := seq.NewBuffer("raw", "ACGTN", false)
	_, err := tier.Run(context.Background(), &backend.Request{
		Kind: backend.KindKmerCount,
		Buf:  b,
		Opts: backend.Options{K: 2},
	})
	if err != backend.ErrTierUnavailable {
		t.Fatalf("raw buffer: got %v, want ErrTierUnavailable", err)
	}
}

func TestKOverCapFallsThrough(t *testing.T) {
	tier := newTestTier(t)
	b := packedBuffer(t, "bigk", randomSeq(4096, 2))
	_, err := tier.Run(context.Background(), &backend.Request{
		Kind: backend.KindKmerCount,
		Buf:  b,
		Opts: backend.Options{K: maxKmerK + 1},
	})
	if err != backend.ErrTierUnavailable {
		t.Fatalf("k over cap: got %v, want ErrTierUnavailable", err)
	}
}

// runBoth executes the same request on the GPU and interpreted tiers.
func runBoth(t *testing.T, tier *Tier, req *backend.Request) (gpuRes, refRes *backend.Result) {
	t.Helper()
	interp := backend.NewInterpTier()
	if err := interp.Init(); err != nil {
		t.Fatalf("interp init: %v", err)
	}
	defer interp.Close()

	var err error
	gpuRes, err = tier.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("gpu run: %v", err)
	}
	refRes, err = interp.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("interp run: %v", err)
	}
	return gpuRes, refRes
}

func TestKmerCountParity(t *testing.T) {
	tier := newTestTier(t)
	b := packedBuffer(t, "kmer-parity", randomSeq(50000, 3))
	for _, k := range []int{1, 4, 8} {
		req := &backend.Request{Kind: backend.KindKmerCount, Buf: b, Opts: backend.Options{K: k}}
		got, want := runBoth(t, tier, req)
		if len(got.Counts) != len(want.Counts) {
			t.Fatalf("k=%d: histogram size %d, want %d", k, len(got.Counts), len(want.Counts))
		}
		for i := range got.Counts {
			if got.Counts[i] != want.Counts[i] {
				t.Fatalf("k=%d: counts[%d] = %d, want %d", k, i, got.Counts[i], want.Counts[i])
			}
		}
		if got.Tier != backend.TierGPU {
			t.Errorf("result tier = %q, want %q", got.Tier, backend.TierGPU)
		}
	}
}

func TestGCSkewParity(t *testing.T) {
	tier := newTestTier(t)
	b := packedBuffer(t, "skew-parity", randomSeq(50000, 4))
	req := &backend.Request{
		Kind: backend.KindGCSkew,
		Buf:  b,
		Opts: backend.Options{Window: 1000, Step: 250},
	}
	got, want := runBoth(t, tier, req)
	if len(got.Skew) != len(want.Skew) {
		t.Fatalf("window count %d, want %d", len(got.Skew), len(want.Skew))
	}
	// The shader returns integer G/C counts and the float math runs
	// on the host, so values must match bit for bit.
	for i := range got.Skew {
		if got.Skew[i] != want.Skew[i] {
			t.Fatalf("skew[%d] = %v, want %v", i, got.Skew[i], want.Skew[i])
		}
		if got.Cumulative[i] != want.Cumulative[i] {
			t.Fatalf("cumulative[%d] = %v, want %v", i, got.Cumulative[i], want.Cumulative[i])
		}
	}
	if got.Origin != want.Origin || got.Terminus != want.Terminus {
		t.Fatalf("origin/terminus = %d/%d, want %d/%d",
			got.Origin, got.Terminus, want.Origin, want.Terminus)
	}
}

func TestDotPlotParity(t *testing.T) {
	tier := newTestTier(t)
	a := packedBuffer(t, "dp-a", randomSeq(3000, 5))
	b := packedBuffer(t, "dp-b", randomSeq(2000, 6))
	req := &backend.Request{
		Kind: backend.KindDotPlot,
		Buf:  a,
		Buf2: b,
		Opts: backend.Options{K: 6, Width: 128, Height: 96},
	}
	got, want := runBoth(t, tier, req)
	if got.Width != want.Width || got.Height != want.Height {
		t.Fatalf("dims %dx%d, want %dx%d", got.Width, got.Height, want.Width, want.Height)
	}
	for i := range got.Counts {
		if got.Counts[i] != want.Counts[i] {
			t.Fatalf("counts[%d] = %d, want %d", i, got.Counts[i], want.Counts[i])
		}
	}
}

// shaderWords mirrors uploadPacked: the packed bytes padded to a
// 4-byte multiple, viewed as little-endian u32 words.
func shaderWords(data []byte) []uint32 {
	padded := make([]byte, (len(data)+3)/4*4)
	copy(padded, data)
	words := make([]uint32, len(padded)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(padded[i*4:])
	}
	return words
}

// TestDotPlotBinning replays the shader's exact arithmetic on the
// host, driven by the same uniform runDotPlot uploads, and demands
// cell-for-cell equality with the reference raster. Needs no device,
// so it guards the bin denominators and the word-count thread bound
// even where TestDotPlotParity skips.
func TestDotPlotBinning(t *testing.T) {
	a := packedBuffer(t, "dp-bin-a", randomSeq(3000, 5))
	b := packedBuffer(t, "dp-bin-b", randomSeq(2000, 6))
	const k, width, height = 6, 128, 96

	cfg := dotPlotConfig(a.Len(), b.Len(), k, width, height)
	wordsA := binary.LittleEndian.Uint32(cfg[0:])
	wordsB := binary.LittleEndian.Uint32(cfg[4:])
	if wordsA != uint32(a.Len()-k+1) || wordsB != uint32(b.Len()-k+1) {
		t.Fatalf("config words = %d,%d, want %d,%d",
			wordsA, wordsB, a.Len()-k+1, b.Len()-k+1)
	}

	seqA, seqB := shaderWords(a.Bytes()), shaderWords(b.Bytes())
	code := func(w []uint32, i uint32) uint32 {
		return (w[i>>4] >> ((i & 15) * 2)) & 3
	}
	got := make([]uint32, width*height)
	for i := uint32(0); i < wordsA; i++ {
		for j := uint32(0); j < wordsB; j++ {
			same := true
			for o := uint32(0); o < k; o++ {
				if code(seqA, i+o) != code(seqB, j+o) {
					same = false
					break
				}
			}
			if same {
				x := i * width / wordsA
				y := j * height / wordsB
				got[y*width+x]++
			}
		}
	}

	want := analysis.DotPlot(a, b, k, width, height)
	var total, wantTotal uint32
	for i := range got {
		total += got[i]
		wantTotal += want.Counts[i]
		if got[i] != want.Counts[i] {
			t.Fatalf("cell %d = %d, want %d (totals %d vs %d)",
				i, got[i], want.Counts[i], total, wantTotal)
		}
	}
	if total != wantTotal {
		t.Fatalf("total matches = %d, want %d", total, wantTotal)
	}
}

func TestDotPlotPairCap(t *testing.T) {
	tier := newTestTier(t)
	a := packedBuffer(t, "dp-big-a", randomSeq(10000, 7))
	b := packedBuffer(t, "dp-big-b", randomSeq(10000, 8))
	_, err := tier.Run(context.Background(), &backend.Request{
		Kind: backend.KindDotPlot,
		Buf:  a,
		Buf2: b,
		Opts: backend.Options{K: 6, Width: 128, Height: 128},
	})
	// 10000*10000 pairs exceed the grid cap.
	if err != backend.ErrTierUnavailable {
		t.Fatalf("over pair cap: got %v, want ErrTierUnavailable", err)
	}
}

func TestSimStepParity(t *testing.T) {
	tier := newTestTier(t)
	b := packedBuffer(t, "sim-parity", randomSeq(50000, 9))
	req := &backend.Request{
		Kind: backend.KindSimStep,
		Buf:  b,
		Opts: backend.Options{Seed: 42, Generation: 3, MutationRate: 0.01},
	}
	got, want := runBoth(t, tier, req)
	if got.Mutations != want.Mutations {
		t.Fatalf("mutations = %d, want %d", got.Mutations, want.Mutations)
	}
	if string(got.Sequence) != string(want.Sequence) {
		for i := range got.Sequence {
			if got.Sequence[i] != want.Sequence[i] {
				t.Fatalf("sequence diverges at %d: %c vs %c", i, got.Sequence[i], want.Sequence[i])
			}
		}
	}
}

func TestSimStepBadRate(t *testing.T) {
	tier := newTestTier(t)
	b := packedBuffer(t, "sim-bad", randomSeq(2048, 10))
	_, err := tier.Run(context.Background(), &backend.Request{
		Kind: backend.KindSimStep,
		Buf:  b,
		Opts: backend.Options{MutationRate: math.NaN()},
	})
	if err != backend.ErrInvalidRequest {
		t.Fatalf("NaN rate: got %v, want ErrInvalidRequest", err)
	}
}

func TestPipelineCacheReuse(t *testing.T) {
	tier := newTestTier(t)
	b := packedBuffer(t, "cache", randomSeq(8192, 11))
	req := &backend.Request{Kind: backend.KindKmerCount, Buf: b, Opts: backend.Options{K: 4}}
	for i := 0; i < 3; i++ {
		if _, err := tier.Run(context.Background(), req); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	st := tier.pipelines.Stats()
	if st.Misses != 1 {
		t.Errorf("pipeline builds = %d, want 1", st.Misses)
	}
	if st.Hits < 2 {
		t.Errorf("pipeline cache hits = %d, want >= 2", st.Hits)
	}
}
