// Package analysis holds the reference implementations of every
// genomic operation kind. These run on the interpreted tier and serve
// as the parity oracle for the accelerated tiers.
package analysis

import (
	"math"
	"sort"

	"github.com/genoscope/seqcompute/seq"
)

// MaxDenseK is the largest k for which a dense histogram is built.
const MaxDenseK = 12

// KmerCount builds a dense k-mer histogram of length 4^k. Windows
// containing a non-ACGT base are skipped: the rolling index resets
// and resumes after the offending base. k must be in [1, MaxDenseK].
func KmerCount(b *seq.Buffer, k int) []uint32 {
	if k < 1 || k > MaxDenseK {
		return nil
	}
	counts := make([]uint32, 1<<(2*k))
	mask := uint64(1<<(2*k)) - 1

	var idx uint64
	valid := 0
	n := b.Len()
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
	return counts
}

// KmerFreqs builds a sparse k-mer count map for arbitrary k up to 31,
// skipping windows containing non-ACGT bases.
func KmerFreqs(b *seq.Buffer, k int) map[uint64]uint32 {
	freqs := make(map[uint64]uint32)
	if k < 1 || k > 31 {
		return freqs
	}
	mask := uint64(1)<<(2*k) - 1
	var idx uint64
	valid := 0
	n := b.Len()
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
			freqs[idx]++
		}
	}
	return freqs
}

// Jaccard returns the Jaccard similarity of the two k-mer key sets.
func Jaccard(a, b map[uint64]uint32) float64 {
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Containment returns the intersection size over |A| for the k-mer key sets.
func Containment(a, b map[uint64]uint32) float64 {
	if len(a) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a))
}

// Cosine returns the cosine similarity of the two k-mer count
// vectors.
func Cosine(a, b map[uint64]uint32) float64 {
	var dot, na, nb float64
	for k, va := range a {
		na += float64(va) * float64(va)
		if vb, ok := b[k]; ok {
			dot += float64(va) * float64(vb)
		}
	}
	for _, vb := range b {
		nb += float64(vb) * float64(vb)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// BrayCurtis returns the Bray-Curtis dissimilarity of the two k-mer
// count vectors (0 identical, 1 disjoint).
func BrayCurtis(a, b map[uint64]uint32) float64 {
	var shared, totalA, totalB uint64
	for k, va := range a {
		totalA += uint64(va)
		if vb, ok := b[k]; ok {
			if va < vb {
				shared += uint64(va)
			} else {
				shared += uint64(vb)
			}
		}
	}
	for _, vb := range b {
		totalB += uint64(vb)
	}
	if totalA+totalB == 0 {
		return 0
	}
	return 1 - 2*float64(shared)/float64(totalA+totalB)
}

const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// fnvHashKmer hashes a packed k-mer index with FNV-1a so MinHash
// sketches are stable across runs.
func fnvHashKmer(idx uint64) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < 8; i++ {
		h ^= (idx >> (8 * i)) & 0xFF
		h *= fnvPrime64
	}
	return h
}

// MinHash returns the size smallest FNV-1a hashes of the k-mer set,
// sorted ascending. The sketch may be shorter than size for small
// inputs.
func MinHash(freqs map[uint64]uint32, size int) []uint64 {
	if size <= 0 {
		return nil
	}
	hashes := make([]uint64, 0, len(freqs))
	for k := range freqs {
		hashes = append(hashes, fnvHashKmer(k))
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	if len(hashes) > size {
		hashes = hashes[:size]
	}
	return hashes
}

// SketchJaccard estimates Jaccard similarity from two MinHash
// sketches produced with the same size.
func SketchJaccard(a, b []uint64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	limit := len(a)
	if len(b) < limit {
		limit = len(b)
	}
	merged := make([]uint64, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) && len(merged) < limit {
		switch {
		case a[i] == b[j]:
			merged = append(merged, a[i])
			i++
			j++
		case a[i] < b[j]:
			merged = append(merged, a[i])
			i++
		default:
			merged = append(merged, b[j])
			j++
		}
	}
	for i < len(a) && len(merged) < limit {
		merged = append(merged, a[i])
		i++
	}
	for j < len(b) && len(merged) < limit {
		merged = append(merged, b[j])
		j++
	}

	shared := 0
	for _, h := range merged {
		if contains(a, h) && contains(b, h) {
			shared++
		}
	}
	return float64(shared) / float64(len(merged))
}

func contains(sorted []uint64, h uint64) bool {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= h })
	return i < len(sorted) && sorted[i] == h
}
