package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadSequencePlain(t *testing.T) {
	path := writeTemp(t, "plain.txt", "acgt\nACGT\n")
	id, text, err := readSequence(path)
	if err != nil {
		t.Fatal(err)
	}
	if id != "plain" {
		t.Errorf("id = %q, want %q", id, "plain")
	}
	if text != "ACGTACGT" {
		t.Errorf("text = %q, want %q", text, "ACGTACGT")
	}
}

func TestReadSequenceFasta(t *testing.T) {
	path := writeTemp(t, "multi.fa", ">phage-1 circular genome\nACGTACGT\nGGCC\n>phage-2\nTTTT\n")
	id, text, err := readSequence(path)
	if err != nil {
		t.Fatal(err)
	}
	if id != "phage-1" {
		t.Errorf("id = %q, want %q", id, "phage-1")
	}
	// Only the first record is read.
	if text != "ACGTACGTGGCC" {
		t.Errorf("text = %q, want %q", text, "ACGTACGTGGCC")
	}
}

func TestReadSequenceEmpty(t *testing.T) {
	path := writeTemp(t, "empty.fa", ">header only\n")
	if _, _, err := readSequence(path); err == nil {
		t.Fatal("empty sequence accepted")
	}
}

func TestKmerString(t *testing.T) {
	cases := []struct {
		idx  int
		k    int
		want string
	}{
		{0, 3, "AAA"},
		{1, 3, "AAC"},
		{0b11_10_01_00, 4, "TGCA"},
		{0b01, 1, "C"},
	}
	for _, tc := range cases {
		if got := kmerString(tc.idx, tc.k); got != tc.want {
			t.Errorf("kmerString(%d, %d) = %q, want %q", tc.idx, tc.k, got, tc.want)
		}
	}
}

func TestSkewCommand(t *testing.T) {
	seq := strings.Repeat("GGGGCCCC", 400)
	path := writeTemp(t, "skew.fa", ">test-skew\n"+seq+"\n")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"skew", path, "--window", "800", "--step", "200", "--no-gpu"})

	if err := root.Execute(); err != nil {
		t.Fatalf("skew command: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "test-skew") {
		t.Errorf("output missing sequence id:\n%s", got)
	}
	if !strings.Contains(got, "predicted origin") {
		t.Errorf("output missing origin line:\n%s", got)
	}
}

func TestRevcompCommand(t *testing.T) {
	path := writeTemp(t, "rc.fa", ">rc-test\nACGTT\n")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"revcomp", path})

	if err := root.Execute(); err != nil {
		t.Fatalf("revcomp command: %v", err)
	}
	if !strings.Contains(out.String(), "AACGT") {
		t.Errorf("output missing reverse complement:\n%s", out.String())
	}
}

func TestCompareCommand(t *testing.T) {
	a := writeTemp(t, "a.fa", ">a\n"+strings.Repeat("ACGTACGTGG", 50)+"\n")
	b := writeTemp(t, "b.fa", ">b\n"+strings.Repeat("ACGTACGTGG", 50)+"\n")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"compare", a, b, "--k", "4", "--sketch", "32"})

	if err := root.Execute(); err != nil {
		t.Fatalf("compare command: %v", err)
	}
	got := out.String()
	// Identical sequences score 1 on every set metric.
	for _, metric := range []string{"jaccard:\t1.0000", "cosine:\t1.0000", "sketch jaccard:\t1.0000"} {
		if !strings.Contains(got, metric) {
			t.Errorf("output missing %q:\n%s", metric, got)
		}
	}
}

func TestRepeatsCommand(t *testing.T) {
	path := writeTemp(t, "rep.fa", ">rep-test\nTTACGACGACGTT\n")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"repeats", path, "--min-unit", "3", "--max-unit", "3", "--min-copies", "3"})

	if err := root.Execute(); err != nil {
		t.Fatalf("repeats command: %v", err)
	}
	if !strings.Contains(out.String(), "ACG x3") {
		t.Errorf("output missing tandem repeat:\n%s", out.String())
	}
}

func TestPalindromesCommand(t *testing.T) {
	path := writeTemp(t, "pal.fa", ">pal-test\nAAGAATTCAA\n")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"palindromes", path, "--min-arm", "3"})

	if err := root.Execute(); err != nil {
		t.Fatalf("palindromes command: %v", err)
	}
	if !strings.Contains(out.String(), "GAATTC") {
		t.Errorf("output missing palindrome sequence:\n%s", out.String())
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version command: %v", err)
	}
	if !strings.Contains(out.String(), "seqcompute") {
		t.Errorf("unexpected version output: %q", out.String())
	}
}
