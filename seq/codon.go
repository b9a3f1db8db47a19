package seq

// codonTable is the standard genetic code indexed by
// c0<<4 | c1<<2 | c2 where c is the 2-bit base code.
const codonTable = "KNKNTTTTRSRSIIMIQHQHPPPPRRRRLLLLEDEDAAAAGGGGVVVV*Y*YSSSS*CWCLFLF"

// complement maps an uppercase base to its complement. Ambiguity
// codes map to N.
func complement(c byte) byte {
	switch c {
	case 'A':
		return 'T'
	case 'T':
		return 'A'
	case 'C':
		return 'G'
	case 'G':
		return 'C'
	default:
		return 'N'
	}
}

// ReverseComplement returns the reverse complement of the buffer as
// uppercase ASCII.
func ReverseComplement(b *Buffer) []byte {
	n := b.Len()
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = complement(b.Base(n - 1 - i))
	}
	return out
}

// Translate translates the buffer in the given reading frame (0, 1 or
// 2) using the standard genetic code. Codons containing a non-ACGT
// base translate to 'X'; stops are '*'.
func Translate(b *Buffer, frame int) []byte {
	n := b.Len()
	if frame < 0 || frame > 2 || n < frame+3 {
		return nil
	}
	out := make([]byte, 0, (n-frame)/3)
	for i := frame; i+3 <= n; i += 3 {
		c0, c1, c2 := b.Code(i), b.Code(i+1), b.Code(i+2)
		if c0 == CodeInvalid || c1 == CodeInvalid || c2 == CodeInvalid {
			out = append(out, 'X')
			continue
		}
		out = append(out, codonTable[c0<<4|c1<<2|c2])
	}
	return out
}

// CodonUsage counts codon occurrences in the given frame. The result
// is indexed by c0<<4|c1<<2|c2; codons containing non-ACGT bases are
// skipped.
func CodonUsage(b *Buffer, frame int) [64]uint32 {
	var counts [64]uint32
	n := b.Len()
	if frame < 0 || frame > 2 {
		return counts
	}
	for i := frame; i+3 <= n; i += 3 {
		c0, c1, c2 := b.Code(i), b.Code(i+1), b.Code(i+2)
		if c0 == CodeInvalid || c1 == CodeInvalid || c2 == CodeInvalid {
			continue
		}
		counts[c0<<4|c1<<2|c2]++
	}
	return counts
}

// GCContent returns the fraction of G and C bases over all ACGT bases
// in [start, start+n). Returns 0 for an empty or all-ambiguous range.
func GCContent(b *Buffer, start, n int) float64 {
	gc, total := 0, 0
	for i := start; i < start+n; i++ {
		switch b.Code(i) {
		case 1, 2:
			gc++
			total++
		case 0, 3:
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(gc) / float64(total)
}
