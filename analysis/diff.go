package analysis

import "github.com/genoscope/seqcompute/seq"

// DiffResult holds the edit distance between two sequences.
type DiffResult struct {
	Distance uint32
	// Identity is 1 - distance/max(len(a), len(b)), a quick
	// similarity fraction for display.
	Identity float64
}

// Diff computes the Levenshtein distance between two sequences with
// the classic two-row dynamic program (O(min) memory).
func Diff(a, b *seq.Buffer) *DiffResult {
	la, lb := a.Len(), b.Len()
	if la == 0 || lb == 0 {
		d := uint32(la + lb)
		return &DiffResult{Distance: d, Identity: identity(d, la, lb)}
	}

	prev := make([]uint32, lb+1)
	curr := make([]uint32, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = uint32(j)
	}
	for i := 1; i <= la; i++ {
		curr[0] = uint32(i)
		ca := a.Base(i - 1)
		for j := 1; j <= lb; j++ {
			cost := uint32(1)
			if ca == b.Base(j-1) {
				cost = 0
			}
			d := prev[j-1] + cost // substitute
			if del := prev[j] + 1; del < d {
				d = del
			}
			if ins := curr[j-1] + 1; ins < d {
				d = ins
			}
			curr[j] = d
		}
		prev, curr = curr, prev
	}
	d := prev[lb]
	return &DiffResult{Distance: d, Identity: identity(d, la, lb)}
}

func identity(d uint32, la, lb int) float64 {
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(d)/float64(longest)
}
