package analysis

import "github.com/genoscope/seqcompute/seq"

// DotPlotResult holds a width x height grid of k-word match counts
// between two sequences, row-major (y*Width + x). The x axis bins
// positions of the first sequence, y the second.
type DotPlotResult struct {
	Width  int
	Height int
	Counts []uint32
}

// MaxDotPlotK caps the word size so the position index stays dense.
const MaxDotPlotK = 10

// DotPlot counts matching k-words between a and b, binned into a
// width x height raster. Words containing non-ACGT bases do not
// match anything. Counts are exact, so all tiers agree bit for bit.
func DotPlot(a, b *seq.Buffer, k, width, height int) *DotPlotResult {
	if k < 1 || k > MaxDotPlotK || width < 1 || height < 1 {
		return nil
	}
	na, nb := a.Len()-k+1, b.Len()-k+1
	if na < 1 || nb < 1 {
		return nil
	}

	r := &DotPlotResult{
		Width:  width,
		Height: height,
		Counts: make([]uint32, width*height),
	}

	// Index every valid k-word of a by its packed code.
	buckets := make([][]int32, 1<<(2*k))
	mask := uint64(1<<(2*k)) - 1
	var idx uint64
	valid := 0
	for i := 0; i < a.Len(); i++ {
		c := a.Code(i)
		if c == seq.CodeInvalid {
			valid = 0
			idx = 0
			continue
		}
		idx = (idx<<2 | uint64(c)) & mask
		valid++
		if valid >= k {
			pos := int32(i - k + 1)
			buckets[idx] = append(buckets[idx], pos)
		}
	}

	// Walk b's k-words and accumulate matches into raster cells.
	idx, valid = 0, 0
	for j := 0; j < b.Len(); j++ {
		c := b.Code(j)
		if c == seq.CodeInvalid {
			valid = 0
			idx = 0
			continue
		}
		idx = (idx<<2 | uint64(c)) & mask
		valid++
		if valid < k {
			continue
		}
		posB := j - k + 1
		y := posB * height / nb
		row := y * width
		for _, posA := range buckets[idx] {
			x := int(posA) * width / na
			r.Counts[row+x]++
		}
	}
	return r
}
