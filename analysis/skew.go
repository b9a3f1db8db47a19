package analysis

import "github.com/genoscope/seqcompute/seq"

// SkewResult holds windowed GC-skew output.
type SkewResult struct {
	Skew       []float64
	Cumulative []float64
	// Origin and Terminus are the positions (in bases) of the
	// cumulative-skew minimum and maximum, the classic replication
	// origin/terminus predictors.
	Origin   int
	Terminus int
}

// GCSkew computes (G-C)/(G+C) per window of the given size advancing
// by step, plus the cumulative running sum. A window with no G or C
// contributes zero skew. For n bases the output length is
// (n-window)/step + 1; nil when the sequence is shorter than one
// window or the parameters are not positive.
func GCSkew(b *seq.Buffer, window, step int) *SkewResult {
	n := b.Len()
	if window <= 0 || step <= 0 || n < window {
		return nil
	}
	numWindows := (n-window)/step + 1
	r := &SkewResult{
		Skew:       make([]float64, numWindows),
		Cumulative: make([]float64, numWindows),
	}

	sum := 0.0
	minIdx, maxIdx := 0, 0
	for w := 0; w < numWindows; w++ {
		start := w * step
		g, c := 0, 0
		for i := start; i < start+window; i++ {
			switch b.Code(i) {
			case 2:
				g++
			case 1:
				c++
			}
		}
		s := 0.0
		if g+c > 0 {
			s = float64(g-c) / float64(g+c)
		}
		r.Skew[w] = s
		sum += s
		r.Cumulative[w] = sum
		if sum < r.Cumulative[minIdx] {
			minIdx = w
		}
		if sum > r.Cumulative[maxIdx] {
			maxIdx = w
		}
	}
	r.Origin = minIdx * step
	r.Terminus = maxIdx * step
	return r
}
