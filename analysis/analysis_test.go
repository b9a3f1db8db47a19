package analysis

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/genoscope/seqcompute/seq"
)

func buf(text string) *seq.Buffer {
	return seq.NewBuffer("test", text, true)
}

// randomSeq builds a deterministic pseudo-random ACGT sequence.
func randomSeq(n int, seed int64) string {
	rng := rand.New(rand.NewSource(seed))
	bases := []byte("ACGT")
	out := make([]byte, n)
	for i := range out {
		out[i] = bases[rng.Intn(4)]
	}
	return string(out)
}

func TestKmerCount(t *testing.T) {
	counts := KmerCount(buf("ACGTACGT"), 2)
	if len(counts) != 16 {
		t.Fatalf("len = %d, want 16", len(counts))
	}
	// AC appears at 0 and 4, CG at 1 and 5, GT at 2 and 6, TA at 3.
	ac := 0<<2 | 1
	ta := 3 << 2
	if counts[ac] != 2 {
		t.Errorf("AC count = %d, want 2", counts[ac])
	}
	if counts[ta] != 1 {
		t.Errorf("TA count = %d, want 1", counts[ta])
	}
	total := uint32(0)
	for _, c := range counts {
		total += c
	}
	if total != 7 {
		t.Errorf("total 2-mers = %d, want 7", total)
	}
}

func TestKmerCountSkipsAmbiguous(t *testing.T) {
	counts := KmerCount(buf("ACNGT"), 2)
	total := uint32(0)
	for _, c := range counts {
		total += c
	}
	// Only AC and GT are valid windows.
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
}

func TestKmerCountBounds(t *testing.T) {
	if KmerCount(buf("ACGT"), 0) != nil {
		t.Errorf("k=0 should return nil")
	}
	if KmerCount(buf("ACGT"), MaxDenseK+1) != nil {
		t.Errorf("k over cap should return nil")
	}
}

func TestGCSkewShape(t *testing.T) {
	// Scenario: 50,000 bases, window 1000, step 250.
	text := randomSeq(50000, 7)
	r := GCSkew(buf(text), 1000, 250)
	if r == nil {
		t.Fatal("nil result")
	}
	if len(r.Skew) != 197 {
		t.Errorf("skew length = %d, want 197", len(r.Skew))
	}
	if len(r.Cumulative) != len(r.Skew) {
		t.Fatalf("cumulative length mismatch")
	}
	sum := 0.0
	minI, maxI := 0, 0
	for i, s := range r.Skew {
		sum += s
		if math.Abs(r.Cumulative[i]-sum) > 1e-9 {
			t.Fatalf("cumulative[%d] = %v, want %v", i, r.Cumulative[i], sum)
		}
		if r.Cumulative[i] < r.Cumulative[minI] {
			minI = i
		}
		if r.Cumulative[i] > r.Cumulative[maxI] {
			maxI = i
		}
	}
	if r.Origin != minI*250 || r.Terminus != maxI*250 {
		t.Errorf("origin/terminus = %d/%d, want %d/%d", r.Origin, r.Terminus, minI*250, maxI*250)
	}
}

func TestGCSkewValues(t *testing.T) {
	// GGGGCCCC: window 4 step 4 gives skew +1 then -1.
	r := GCSkew(buf("GGGGCCCC"), 4, 4)
	if r == nil || len(r.Skew) != 2 {
		t.Fatalf("unexpected result %+v", r)
	}
	if r.Skew[0] != 1 || r.Skew[1] != -1 {
		t.Errorf("skew = %v, want [1 -1]", r.Skew)
	}
	if r.Cumulative[1] != 0 {
		t.Errorf("cumulative[1] = %v, want 0", r.Cumulative[1])
	}
}

func TestGCSkewTooShort(t *testing.T) {
	if GCSkew(buf("ACG"), 10, 5) != nil {
		t.Errorf("short sequence should return nil")
	}
}

func TestDiff(t *testing.T) {
	tests := []struct {
		a, b string
		want uint32
	}{
		{"ACGT", "ACGT", 0},
		{"ACGT", "ACGA", 1},
		{"ACGT", "", 4},
		{"", "", 0},
		{"KITTEN", "SITTING", 3},
		{"ACGTACGT", "CGTACGTA", 2},
	}
	for _, tt := range tests {
		got := Diff(buf(tt.a), buf(tt.b))
		if got.Distance != tt.want {
			t.Errorf("Diff(%q, %q) = %d, want %d", tt.a, tt.b, got.Distance, tt.want)
		}
	}
	if id := Diff(buf("ACGT"), buf("ACGT")).Identity; id != 1 {
		t.Errorf("identity of equal sequences = %v, want 1", id)
	}
}

func TestDotPlot(t *testing.T) {
	a := buf("ACGTACGT")
	r := DotPlot(a, a, 4, 8, 8)
	if r == nil {
		t.Fatal("nil result")
	}
	total := uint32(0)
	for _, c := range r.Counts {
		total += c
	}
	// 5 k-words each side; ACGT occurs at positions 0 and 4 giving
	// 4 pairs, the other three words self-match once each.
	if total != 7 {
		t.Errorf("total matches = %d, want 7", total)
	}
}

func TestDotPlotSelfDiagonal(t *testing.T) {
	text := randomSeq(512, 3)
	b := buf(text)
	r := DotPlot(b, b, 8, 16, 16)
	if r == nil {
		t.Fatal("nil result")
	}
	// Self-comparison puts every position on the diagonal.
	for y := 0; y < 16; y++ {
		if r.Counts[y*16+y] == 0 {
			t.Errorf("empty diagonal cell at %d", y)
		}
	}
}

func TestHilbertD2XY(t *testing.T) {
	// Order-1 curve visits (0,0) (0,1) (1,1) (1,0).
	want := [][2]int{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
	for d, w := range want {
		x, y := hilbertD2XY(1, d)
		if x != w[0] || y != w[1] {
			t.Errorf("d2xy(1, %d) = (%d,%d), want (%d,%d)", d, x, y, w[0], w[1])
		}
	}

	// Every cell of an order-4 curve is visited exactly once.
	seen := make(map[[2]int]bool)
	for d := 0; d < 256; d++ {
		x, y := hilbertD2XY(4, d)
		if x < 0 || x >= 16 || y < 0 || y >= 16 {
			t.Fatalf("d2xy(4, %d) out of range: (%d,%d)", d, x, y)
		}
		if seen[[2]int{x, y}] {
			t.Fatalf("cell (%d,%d) visited twice", x, y)
		}
		seen[[2]int{x, y}] = true
	}
}

func TestHilbertRaster(t *testing.T) {
	r := HilbertRaster(buf(strings.Repeat("G", 64)+strings.Repeat("A", 64)), 2)
	if r == nil || r.Side != 4 {
		t.Fatalf("unexpected result %+v", r)
	}
	// First half of the curve is pure GC, second half pure AT.
	ones, zeros := 0, 0
	for _, v := range r.Cells {
		switch v {
		case 1:
			ones++
		case 0:
			zeros++
		default:
			t.Errorf("unexpected cell value %v", v)
		}
	}
	if ones != 8 || zeros != 8 {
		t.Errorf("ones=%d zeros=%d, want 8/8", ones, zeros)
	}
}

func TestSimStepDeterminism(t *testing.T) {
	b := buf(randomSeq(4096, 11))
	thr := MutationThreshold(0.01)
	r1 := SimStep(b, 42, 7, thr)
	r2 := SimStep(b, 42, 7, thr)
	if string(r1.Sequence) != string(r2.Sequence) || r1.Mutations != r2.Mutations {
		t.Errorf("identical inputs produced different outputs")
	}
	r3 := SimStep(b, 43, 7, thr)
	if string(r3.Sequence) == string(r1.Sequence) {
		t.Errorf("different seeds produced identical outputs")
	}
}

func TestSimStepRate(t *testing.T) {
	b := buf(randomSeq(100000, 5))
	r := SimStep(b, 1, 1, MutationThreshold(0.01))
	// Expect roughly 1000 mutations; allow generous slack.
	if r.Mutations < 700 || r.Mutations > 1300 {
		t.Errorf("mutations = %d, want ~1000", r.Mutations)
	}
	// Changed-site count matches the reported mutation count.
	changed := uint32(0)
	for i := 0; i < b.Len(); i++ {
		if r.Sequence[i] != b.Base(i) {
			changed++
		}
	}
	if changed != r.Mutations {
		t.Errorf("changed sites = %d, reported = %d", changed, r.Mutations)
	}
	if got := SimStep(b, 1, 1, MutationThreshold(0)).Mutations; got != 0 {
		t.Errorf("zero rate produced %d mutations", got)
	}
}

func TestSimStepPreservesAmbiguous(t *testing.T) {
	r := SimStep(buf("ANCGT"), 9, 1, ^uint32(0))
	if r.Sequence[1] != 'N' {
		t.Errorf("ambiguous base mutated: %c", r.Sequence[1])
	}
	if r.Mutations != 4 {
		t.Errorf("mutations = %d, want 4", r.Mutations)
	}
}

func TestKmerSimilarity(t *testing.T) {
	a := KmerFreqs(buf("ACGTACGTACGT"), 3)
	b := KmerFreqs(buf("ACGTACGTACGT"), 3)
	if j := Jaccard(a, b); j != 1 {
		t.Errorf("self Jaccard = %v, want 1", j)
	}
	if c := Cosine(a, b); math.Abs(c-1) > 1e-12 {
		t.Errorf("self cosine = %v, want 1", c)
	}
	if bc := BrayCurtis(a, b); bc != 0 {
		t.Errorf("self Bray-Curtis = %v, want 0", bc)
	}
	d := KmerFreqs(buf("GGGGGGGGGG"), 3)
	if j := Jaccard(a, d); j != 0 {
		t.Errorf("disjoint Jaccard = %v, want 0", j)
	}
	if ct := Containment(a, b); ct != 1 {
		t.Errorf("self containment = %v, want 1", ct)
	}
}

func TestMinHashSketch(t *testing.T) {
	a := KmerFreqs(buf(randomSeq(4096, 1)), 8)
	sk := MinHash(a, 64)
	if len(sk) != 64 {
		t.Fatalf("sketch size = %d, want 64", len(sk))
	}
	for i := 1; i < len(sk); i++ {
		if sk[i-1] >= sk[i] {
			t.Fatalf("sketch not strictly ascending at %d", i)
		}
	}
	if j := SketchJaccard(sk, sk); j != 1 {
		t.Errorf("self sketch Jaccard = %v, want 1", j)
	}
}

func TestShannonWindows(t *testing.T) {
	h := ShannonWindows(buf("AAAAACGTACGT"), 4, 4)
	if len(h) != 3 {
		t.Fatalf("len = %d, want 3", len(h))
	}
	if h[0] != 0 {
		t.Errorf("entropy of AAAA = %v, want 0", h[0])
	}
	if math.Abs(h[1]-2) > 1e-9 {
		t.Errorf("entropy of ACGT = %v, want 2", h[1])
	}
}

func TestJensenShannon(t *testing.T) {
	a := KmerFreqs(buf(randomSeq(2048, 2)), 4)
	if d := JensenShannon(a, a); d > 1e-12 {
		t.Errorf("self JSD = %v, want 0", d)
	}
	b := KmerFreqs(buf(strings.Repeat("A", 2048)), 4)
	d := JensenShannon(a, b)
	if d <= 0 || d > 1 {
		t.Errorf("JSD = %v, want (0, 1]", d)
	}
}

func TestLinguisticComplexity(t *testing.T) {
	low := LinguisticComplexity(buf(strings.Repeat("A", 1000)), 4)
	high := LinguisticComplexity(buf(randomSeq(1000, 4)), 4)
	if low >= high {
		t.Errorf("homopolymer complexity %v not below random %v", low, high)
	}
	if high > 1 {
		t.Errorf("complexity %v exceeds 1", high)
	}
}

func TestDetectPalindromes(t *testing.T) {
	// GAATTC (EcoRI) is a perfect 3-arm palindrome.
	got := DetectPalindromes(buf("AAGAATTCAA"), 3, 0)
	found := false
	for _, p := range got {
		if p.Start == 2 && p.End == 8 && p.ArmLen == 3 && p.Gap == 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("GAATTC not detected in %v", got)
	}

	if got := DetectPalindromes(buf("AAAAAAAA"), 2, 0); got != nil {
		t.Errorf("homopolymer yielded palindromes: %v", got)
	}
}

func TestDetectPalindromesGapped(t *testing.T) {
	// GAA and TTC arms around a non-complementary 2-base spacer.
	got := DetectPalindromes(buf("GAAAATTC"), 3, 2)
	found := false
	for _, p := range got {
		if p.Start == 0 && p.End == 8 && p.ArmLen == 3 && p.Gap == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("gapped palindrome not detected in %v", got)
	}
}

func TestDetectTandemRepeats(t *testing.T) {
	got := DetectTandemRepeats(buf("TTACGACGACGTT"), 3, 3, 3)
	if len(got) != 1 {
		t.Fatalf("repeats = %v, want one", got)
	}
	r := got[0]
	if r.Start != 2 || r.End != 11 || r.Unit != "ACG" || r.Copies != 3 {
		t.Errorf("repeat = %+v, want ACG x3 at [2,11)", r)
	}

	if got := DetectTandemRepeats(buf("ACGACG"), 3, 3, 1); got != nil {
		t.Errorf("minCopies=1 accepted: %v", got)
	}
}

func TestWindowedComplexity(t *testing.T) {
	low := WindowedComplexity(buf(strings.Repeat("A", 40)), 16, 8, 2)
	if len(low) != 4 {
		t.Fatalf("windows = %d, want 4", len(low))
	}
	for i, c := range low {
		if math.Abs(c-1.0/15) > 1e-12 {
			t.Errorf("homopolymer window %d = %v, want 1/15", i, c)
		}
	}

	periodic := WindowedComplexity(buf(strings.Repeat("ACGT", 10)), 16, 8, 2)
	for i, c := range periodic {
		if math.Abs(c-4.0/15) > 1e-12 {
			t.Errorf("periodic window %d = %v, want 4/15", i, c)
		}
	}

	if WindowedComplexity(buf("ACGT"), 16, 8, 2) != nil {
		t.Error("short sequence accepted")
	}
	if WindowedComplexity(buf(strings.Repeat("A", 40)), 16, 0, 2) != nil {
		t.Error("zero step accepted")
	}
}

func BenchmarkKmerCount(b *testing.B) {
	sb := buf(randomSeq(1<<20, 9))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		KmerCount(sb, 8)
	}
}
