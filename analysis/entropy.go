package analysis

import (
	"math"

	"github.com/genoscope/seqcompute/seq"
)

// ShannonWindows computes the Shannon entropy (bits) of the base
// distribution in each window of the given size advancing by step.
// Non-ACGT bases are excluded from the distribution. Returns nil for
// invalid parameters or a sequence shorter than one window.
func ShannonWindows(b *seq.Buffer, window, step int) []float64 {
	n := b.Len()
	if window <= 0 || step <= 0 || n < window {
		return nil
	}
	numWindows := (n-window)/step + 1
	out := make([]float64, numWindows)
	for w := 0; w < numWindows; w++ {
		start := w * step
		var counts [4]int
		total := 0
		for i := start; i < start+window; i++ {
			c := b.Code(i)
			if c == seq.CodeInvalid {
				continue
			}
			counts[c]++
			total++
		}
		if total == 0 {
			continue
		}
		h := 0.0
		for _, cnt := range counts {
			if cnt == 0 {
				continue
			}
			p := float64(cnt) / float64(total)
			h -= p * math.Log2(p)
		}
		out[w] = h
	}
	return out
}

// JensenShannon returns the Jensen-Shannon divergence (bits) between
// two k-mer count distributions. Symmetric, bounded [0, 1].
func JensenShannon(a, b map[uint64]uint32) float64 {
	var totalA, totalB float64
	for _, v := range a {
		totalA += float64(v)
	}
	for _, v := range b {
		totalB += float64(v)
	}
	if totalA == 0 || totalB == 0 {
		return 0
	}

	keys := make(map[uint64]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}

	div := 0.0
	for k := range keys {
		pa := float64(a[k]) / totalA
		pb := float64(b[k]) / totalB
		m := (pa + pb) / 2
		if pa > 0 {
			div += pa / 2 * math.Log2(pa/m)
		}
		if pb > 0 {
			div += pb / 2 * math.Log2(pb/m)
		}
	}
	return div
}
