package native

import (
	"math"
	"sync"

	"github.com/genoscope/seqcompute/analysis"
	"github.com/genoscope/seqcompute/backend"
	"github.com/genoscope/seqcompute/seq"
)

// kmerCountKernel builds the dense histogram with a fast path over
// packed buffers: packed sequences are pure ACGT, so the validity
// reset of the reference loop disappears entirely.
func kmerCountKernel(req *backend.Request) (*backend.Result, error) {
	k := req.Opts.K
	if k < 1 || k > analysis.MaxDenseK {
		return nil, backend.ErrInvalidRequest
	}
	b := req.Buf
	n := b.Len()
	counts := make([]uint32, 1<<(2*k))
	mask := uint64(1<<(2*k)) - 1

	if b.Encoding() == seq.EncodingPacked {
		data := b.Bytes()
		var idx uint64
		for i := 0; i < n; i++ {
			code := (data[i>>2] >> uint((i&3)*2)) & 3
			idx = (idx<<2 | uint64(code)) & mask
			if i >= k-1 {
				counts[idx]++
			}
		}
		return &backend.Result{Counts: counts}, nil
	}

	var idx uint64
	valid := 0
	for i := 0; i < n; i++ {
		c := b.Code(i)
		if c == seq.CodeInvalid {
			valid = 0
			idx = 0
			continue
		}
		idx = (idx<<2 | uint64(c)) & mask
		valid++
		if valid >= k {
			counts[idx]++
		}
	}
	return &backend.Result{Counts: counts}, nil
}

// basePrefix builds prefix sums of G, C and valid-base counts so any
// window reduces to two subtractions.
type basePrefix struct {
	g, c, valid []int32
}

func buildPrefix(b *seq.Buffer) *basePrefix {
	n := b.Len()
	p := &basePrefix{
		g:     make([]int32, n+1),
		c:     make([]int32, n+1),
		valid: make([]int32, n+1),
	}
	for i := 0; i < n; i++ {
		p.g[i+1] = p.g[i]
		p.c[i+1] = p.c[i]
		p.valid[i+1] = p.valid[i]
		switch b.Code(i) {
		case 2:
			p.g[i+1]++
			p.valid[i+1]++
		case 1:
			p.c[i+1]++
			p.valid[i+1]++
		case 0, 3:
			p.valid[i+1]++
		}
	}
	return p
}

// gcSkewKernel computes windowed skew in O(n + windows) using prefix
// sums. The per-window integer counts match the reference loop
// exactly, so the floating-point outputs are bit-identical.
func gcSkewKernel(req *backend.Request) (*backend.Result, error) {
	window, step := req.Opts.Window, req.Opts.Step
	b := req.Buf
	n := b.Len()
	if window <= 0 || step <= 0 || n < window {
		return nil, backend.ErrInvalidRequest
	}
	p := buildPrefix(b)

	numWindows := (n-window)/step + 1
	res := &backend.Result{
		Skew:       make([]float64, numWindows),
		Cumulative: make([]float64, numWindows),
	}
	sum := 0.0
	minIdx, maxIdx := 0, 0
	for w := 0; w < numWindows; w++ {
		start := w * step
		g := p.g[start+window] - p.g[start]
		c := p.c[start+window] - p.c[start]
		s := 0.0
		if g+c > 0 {
			s = float64(g-c) / float64(g+c)
		}
		res.Skew[w] = s
		sum += s
		res.Cumulative[w] = sum
		if sum < res.Cumulative[minIdx] {
			minIdx = w
		}
		if sum > res.Cumulative[maxIdx] {
			maxIdx = w
		}
	}
	res.Origin = minIdx * step
	res.Terminus = maxIdx * step
	return res, nil
}

// diffScratch pools the DP rows and materialized sequences. Kernels
// return scratch before Run returns so nothing foreign outlives the
// call.
var diffScratch = sync.Pool{
	New: func() any { return &diffBuffers{} },
}

type diffBuffers struct {
	prev, curr []uint32
	sa, sb     []byte
}

// seqDiffKernel is the two-row Levenshtein over materialized raw
// bytes so the inner loop avoids per-base decode calls.
func seqDiffKernel(req *backend.Request) (*backend.Result, error) {
	if req.Buf2 == nil {
		return nil, backend.ErrInvalidRequest
	}
	a, b := req.Buf, req.Buf2
	la, lb := a.Len(), b.Len()

	scratch := diffScratch.Get().(*diffBuffers)
	defer diffScratch.Put(scratch)

	if la == 0 || lb == 0 {
		d := uint32(la + lb)
		return &backend.Result{Distance: d, Identity: identityFrac(d, la, lb)}, nil
	}

	scratch.sa = a.AppendBases(scratch.sa[:0], 0, la)
	scratch.sb = b.AppendBases(scratch.sb[:0], 0, lb)
	if cap(scratch.prev) < lb+1 {
		scratch.prev = make([]uint32, lb+1)
		scratch.curr = make([]uint32, lb+1)
	}
	prev := scratch.prev[:lb+1]
	curr := scratch.curr[:lb+1]

	for j := 0; j <= lb; j++ {
		prev[j] = uint32(j)
	}
	sa, sb := scratch.sa, scratch.sb
	for i := 1; i <= la; i++ {
		curr[0] = uint32(i)
		ca := sa[i-1]
		for j := 1; j <= lb; j++ {
			cost := uint32(1)
			if ca == sb[j-1] {
				cost = 0
			}
			d := prev[j-1] + cost
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
	return &backend.Result{Distance: d, Identity: identityFrac(d, la, lb)}, nil
}

func identityFrac(d uint32, la, lb int) float64 {
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(d)/float64(longest)
}

// dotPlotKernel bins k-word matches with a CSR position index
// (count, offset, fill) instead of per-kmer slices, trading two
// passes over the first sequence for zero slice growth.
func dotPlotKernel(req *backend.Request) (*backend.Result, error) {
	k, width, height := req.Opts.K, req.Opts.Width, req.Opts.Height
	if k < 1 || k > analysis.MaxDotPlotK || width < 1 || height < 1 {
		return nil, backend.ErrInvalidRequest
	}
	a, b := req.Buf, req.Buf2
	if b == nil {
		return nil, backend.ErrInvalidRequest
	}
	na, nb := a.Len()-k+1, b.Len()-k+1
	if na < 1 || nb < 1 {
		return nil, backend.ErrInvalidRequest
	}

	words := 1 << (2 * k)
	mask := uint64(words) - 1

	// Pass 1: count k-words of a.
	occ := make([]int32, words+1)
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
			occ[idx+1]++
		}
	}
	for w := 0; w < words; w++ {
		occ[w+1] += occ[w]
	}

	// Pass 2: fill positions.
	positions := make([]int32, occ[words])
	fill := make([]int32, words)
	idx, valid = 0, 0
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
			positions[occ[idx]+fill[idx]] = int32(i - k + 1)
			fill[idx]++
		}
	}

	res := &backend.Result{
		Width:  width,
		Height: height,
		Counts: make([]uint32, width*height),
	}

	// Pass 3: walk b and accumulate into raster cells.
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
		row := (posB * height / nb) * width
		for _, posA := range positions[occ[idx]:occ[idx+1]] {
			res.Counts[row+int(posA)*width/na]++
		}
	}
	return res, nil
}

// hilbertKernel maps GC density onto the Hilbert curve using the
// prefix sums, making each cell O(1).
func hilbertKernel(req *backend.Request) (*backend.Result, error) {
	order := req.Opts.Order
	b := req.Buf
	n := b.Len()
	if order < 1 || order > analysis.MaxHilbertOrder || n == 0 {
		return nil, backend.ErrInvalidRequest
	}
	p := buildPrefix(b)

	side := 1 << order
	cells := side * side
	chunk := (n + cells - 1) / cells

	res := &backend.Result{
		Order: order,
		Side:  side,
		Cells: make([]float64, cells),
	}
	for d := 0; d < cells; d++ {
		start := d * chunk
		if start >= n {
			break
		}
		end := start + chunk
		if end > n {
			end = n
		}
		gc := p.g[end] - p.g[start] + p.c[end] - p.c[start]
		total := p.valid[end] - p.valid[start]
		x, y := hilbertD2XY(order, d)
		if total > 0 {
			res.Cells[y*side+x] = float64(gc) / float64(total)
		}
	}
	return res, nil
}

func hilbertD2XY(order, d int) (x, y int) {
	t := d
	for s := 1; s < 1<<order; s <<= 1 {
		rx := 1 & (t / 2)
		ry := 1 & (t ^ rx)
		if ry == 0 {
			if rx == 1 {
				x = s - 1 - x
				y = s - 1 - y
			}
			x, y = y, x
		}
		x += s * rx
		y += s * ry
		t /= 4
	}
	return
}

// simStepKernel advances the mutation simulation. The site hash is
// the same lowbias32 mix every tier implements, so outputs are
// byte-identical across tiers.
func simStepKernel(req *backend.Request) (*backend.Result, error) {
	b := req.Buf
	n := b.Len()
	seed, gen := req.Opts.Seed, req.Opts.Generation
	rate := req.Opts.MutationRate
	if rate < 0 || rate > 1 || math.IsNaN(rate) {
		return nil, backend.ErrInvalidRequest
	}
	threshold := analysis.MutationThreshold(rate)

	out := make([]byte, n)
	codeBase := [4]byte{'A', 'C', 'G', 'T'}
	mutations := uint32(0)
	for i := 0; i < n; i++ {
		c := b.Code(i)
		if c == seq.CodeInvalid {
			out[i] = b.Base(i)
			continue
		}
		h := lowbias32(seed ^ gen*0x9E3779B9 ^ uint32(i)*0x85EBCA6B)
		if threshold > 0 && h < threshold {
			off := 1 + (h>>8)%3
			out[i] = codeBase[(uint32(c)+off)%4]
			mutations++
		} else {
			out[i] = codeBase[c]
		}
	}
	return &backend.Result{Sequence: out, Mutations: mutations}, nil
}

func lowbias32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7FEB352D
	x ^= x >> 15
	x *= 0x846CA68B
	x ^= x >> 16
	return x
}
