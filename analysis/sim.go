package analysis

import "github.com/genoscope/seqcompute/seq"

// SimResult holds one mutation-accumulation step: the mutated
// sequence as uppercase ASCII and the number of sites changed.
type SimResult struct {
	Sequence  []byte
	Mutations uint32
}

// MutationThreshold converts a per-site mutation rate in [0, 1] to
// the 32-bit hash threshold used by every tier. Computing it once on
// the CPU keeps tiers bit-identical (no per-tier float rounding).
func MutationThreshold(rate float64) uint32 {
	if rate <= 0 {
		return 0
	}
	v := rate * 4294967296.0
	if v >= 4294967295.0 {
		return ^uint32(0)
	}
	return uint32(v)
}

// SimStep runs one deterministic mutation step: a site mutates when
// its hash falls below the threshold, and the replacement base is
// chosen from the hash so the transformation is a pure function of
// (seed, generation, position, base). Non-ACGT sites never mutate.
func SimStep(b *seq.Buffer, seed, generation uint32, threshold uint32) *SimResult {
	n := b.Len()
	r := &SimResult{Sequence: make([]byte, n)}
	codeBase := [4]byte{'A', 'C', 'G', 'T'}
	for i := 0; i < n; i++ {
		c := b.Code(i)
		if c == seq.CodeInvalid {
			r.Sequence[i] = b.Base(i)
			continue
		}
		h := siteHash(seed, generation, uint32(i))
		if threshold > 0 && h < threshold {
			off := 1 + (h>>8)%3
			r.Sequence[i] = codeBase[(uint32(c)+off)%4]
			r.Mutations++
		} else {
			r.Sequence[i] = codeBase[c]
		}
	}
	return r
}

// siteHash mixes seed, generation and site index through lowbias32.
// The accelerated tiers implement the identical function, so outputs
// are byte-for-byte comparable.
func siteHash(seed, generation, index uint32) uint32 {
	return lowbias32(seed ^ generation*0x9E3779B9 ^ index*0x85EBCA6B)
}

// lowbias32 is a 32-bit avalanche hash with low bias.
func lowbias32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7FEB352D
	x ^= x >> 15
	x *= 0x846CA68B
	x ^= x >> 16
	return x
}
