package seq

import (
	"strings"
	"testing"
)

func TestEncodingSelection(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Encoding
	}{
		{"short pure", "ACGTACGT", EncodingRaw},
		{"long pure", strings.Repeat("ACGT", 512), EncodingPacked},
		{"long with N", strings.Repeat("ACGT", 511) + "ACGN", EncodingRaw},
		{"lowercase pure", strings.Repeat("acgt", 512), EncodingPacked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer("t", tt.text, true)
			if b.Encoding() != tt.want {
				t.Errorf("encoding = %v, want %v", b.Encoding(), tt.want)
			}
			if b.Len() != len(tt.text) {
				t.Errorf("Len() = %d, want %d", b.Len(), len(tt.text))
			}
		})
	}
}

func TestPackedRoundTrip(t *testing.T) {
	text := strings.Repeat("GATTACAGATTACAGA", 128)
	b := NewBuffer("rt", text, true)
	if b.Encoding() != EncodingPacked {
		t.Fatalf("expected packed encoding")
	}
	if b.ByteLen() != (len(text)+3)/4 {
		t.Errorf("ByteLen() = %d, want %d", b.ByteLen(), (len(text)+3)/4)
	}
	if got := b.String(); got != text {
		t.Errorf("round trip mismatch: first divergence at %d", firstDiff(got, text))
	}
	for i := 0; i < len(text); i++ {
		if b.Base(i) != text[i] {
			t.Fatalf("Base(%d) = %c, want %c", i, b.Base(i), text[i])
		}
	}
}

func firstDiff(a, b string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return -1
}

func TestCodeInvalid(t *testing.T) {
	b := NewBuffer("n", "ACGNT", false)
	want := []byte{0, 1, 2, CodeInvalid, 3}
	for i, w := range want {
		if got := b.Code(i); got != w {
			t.Errorf("Code(%d) = %d, want %d", i, got, w)
		}
	}
}

func TestAppendBases(t *testing.T) {
	text := strings.Repeat("ACGTTGCA", 256)
	b := NewBuffer("ab", text, true)
	got := b.AppendBases(nil, 5, 100)
	if string(got) != text[5:105] {
		t.Errorf("AppendBases mismatch")
	}
}

func TestReverseComplement(t *testing.T) {
	b := NewBuffer("rc", "ACGTN", false)
	if got := string(ReverseComplement(b)); got != "NACGT" {
		t.Errorf("ReverseComplement = %q, want %q", got, "NACGT")
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		frame int
		want  string
	}{
		{"start codon", "ATGAAATAG", 0, "MK*"},
		{"frame 1", "GATGAAATAG", 1, "MK*"},
		{"ambiguous codon", "ATGNNNTAG", 0, "MX*"},
		{"too short", "AT", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(Translate(NewBuffer("tr", tt.text, false), tt.frame))
			if got != tt.want {
				t.Errorf("Translate = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCodonUsage(t *testing.T) {
	b := NewBuffer("cu", "ATGATGAAA", false)
	counts := CodonUsage(b, 0)
	atg := 0<<4 | 3<<2 | 2
	aaa := 0
	if counts[atg] != 2 {
		t.Errorf("ATG count = %d, want 2", counts[atg])
	}
	if counts[aaa] != 1 {
		t.Errorf("AAA count = %d, want 1", counts[aaa])
	}
}

func TestGCContent(t *testing.T) {
	b := NewBuffer("gc", "GGCCAATT", false)
	if got := GCContent(b, 0, 8); got != 0.5 {
		t.Errorf("GCContent = %v, want 0.5", got)
	}
	if got := GCContent(b, 0, 4); got != 1.0 {
		t.Errorf("GCContent[0:4] = %v, want 1.0", got)
	}
	n := NewBuffer("nn", "NNNN", false)
	if got := GCContent(n, 0, 4); got != 0 {
		t.Errorf("GCContent of Ns = %v, want 0", got)
	}
}
