package analysis

import "github.com/genoscope/seqcompute/seq"

// LinguisticComplexity returns the ratio of observed to possible
// distinct substrings over word sizes 1..maxK. A value of 1 means
// every possible word appears; low values indicate repetitive
// sequence.
func LinguisticComplexity(b *seq.Buffer, maxK int) float64 {
	n := b.Len()
	if n == 0 || maxK < 1 {
		return 0
	}
	if maxK > MaxDenseK {
		maxK = MaxDenseK
	}

	var observed, possible uint64
	for k := 1; k <= maxK; k++ {
		if n < k {
			break
		}
		freqs := KmerFreqs(b, k)
		observed += uint64(len(freqs))

		maxWords := uint64(1) << (2 * k)
		windows := uint64(n - k + 1)
		if windows < maxWords {
			possible += windows
		} else {
			possible += maxWords
		}
	}
	if possible == 0 {
		return 0
	}
	return float64(observed) / float64(possible)
}

// WindowedComplexity returns the distinct-k-mer ratio of each window
// of the given size advancing by step: distinct k-words over
// min(4^k, window-k+1). Words containing non-ACGT bases are not
// counted. Returns nil for invalid parameters or a sequence shorter
// than one window.
func WindowedComplexity(b *seq.Buffer, window, step, k int) []float64 {
	n := b.Len()
	if window <= 0 || step <= 0 || k < 1 || k > 31 || k > window || n < window {
		return nil
	}

	numWindows := (n-window)/step + 1
	out := make([]float64, numWindows)
	mask := uint64(1)<<(2*k) - 1

	maxWords := float64(window - k + 1)
	if poss := float64(uint64(1) << (2 * k)); poss < maxWords {
		maxWords = poss
	}

	for w := 0; w < numWindows; w++ {
		start := w * step
		seen := make(map[uint64]struct{})
		var idx uint64
		valid := 0
		for i := start; i < start+window; i++ {
			c := b.Code(i)
			if c == seq.CodeInvalid {
				valid = 0
				idx = 0
				continue
			}
			idx = (idx<<2 | uint64(c)) & mask
			valid++
			if valid >= k {
				seen[idx] = struct{}{}
			}
		}
		out[w] = float64(len(seen)) / maxWords
	}
	return out
}
