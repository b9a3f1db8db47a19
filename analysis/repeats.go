package analysis

import "github.com/genoscope/seqcompute/seq"

// Palindrome is one reverse-complement palindrome: arms of ArmLen
// bases on either side of a Gap-base spacer, spanning [Start, End).
type Palindrome struct {
	Start  int
	End    int
	ArmLen int
	Gap    int
}

// DetectPalindromes finds sequences that read the same on the
// complementary strand in reverse, such as restriction sites
// (GAATTC). minArm is the smallest reported arm length, maxGap the
// largest spacer between arms (0 for perfect palindromes). Each
// center reports its maximal arm per gap width; arms stop at any
// non-ACGT base.
func DetectPalindromes(b *seq.Buffer, minArm, maxGap int) []Palindrome {
	n := b.Len()
	if minArm < 1 || maxGap < 0 || n < minArm*2 {
		return nil
	}

	var out []Palindrome
	for center := minArm; center <= n-minArm; center++ {
		for gap := 0; gap <= maxGap; gap++ {
			half := gap / 2
			arm := 0
			for off := 0; ; off++ {
				left := center - half - off - 1
				right := center + half + off
				if left < 0 || right >= n {
					break
				}
				cl, cr := b.Code(left), b.Code(right)
				// Complementary 2-bit codes sum to 3 (A+T, C+G).
				if cl == seq.CodeInvalid || cr == seq.CodeInvalid || cl+cr != 3 {
					break
				}
				arm = off + 1
			}
			if arm >= minArm {
				out = append(out, Palindrome{
					Start:  center - half - arm,
					End:    center + half + arm,
					ArmLen: arm,
					Gap:    gap,
				})
			}
		}
	}
	return out
}

// TandemRepeat is a run of Copies consecutive identical Unit copies
// spanning [Start, End).
type TandemRepeat struct {
	Start  int
	End    int
	Unit   string
	Copies int
}

// DetectTandemRepeats finds consecutive copies of repeat units with
// lengths in [minUnit, maxUnit], reporting every (start, unit) pair
// reaching minCopies. minCopies below 2 returns nil; single copies
// are not repeats.
func DetectTandemRepeats(b *seq.Buffer, minUnit, maxUnit, minCopies int) []TandemRepeat {
	n := b.Len()
	if minUnit < 1 || maxUnit < minUnit || minCopies < 2 || n < minUnit*minCopies {
		return nil
	}

	var out []TandemRepeat
	for start := 0; start < n; start++ {
		for unitLen := minUnit; unitLen <= maxUnit && start+unitLen <= n; unitLen++ {
			copies := 1
			pos := start + unitLen
			for pos+unitLen <= n && spansEqual(b, start, pos, unitLen) {
				copies++
				pos += unitLen
			}
			if copies >= minCopies {
				out = append(out, TandemRepeat{
					Start:  start,
					End:    start + copies*unitLen,
					Unit:   string(b.AppendBases(nil, start, unitLen)),
					Copies: copies,
				})
			}
		}
	}
	return out
}

func spansEqual(b *seq.Buffer, i, j, n int) bool {
	for t := 0; t < n; t++ {
		if b.Base(i+t) != b.Base(j+t) {
			return false
		}
	}
	return true
}
