package backend

import (
	"context"
	"strings"
	"testing"

	"github.com/genoscope/seqcompute/seq"
)

func TestInterpAlwaysRegistered(t *testing.T) {
	if !IsRegistered(TierInterp) {
		t.Fatal("interp tier not registered")
	}
	tier := Get(TierInterp)
	if tier == nil {
		t.Fatal("Get(interp) returned nil")
	}
	if err := tier.Init(); err != nil {
		t.Fatalf("interp Init: %v", err)
	}
	defer tier.Close()
	for k := Kind(0); k < KindCount; k++ {
		if !tier.Supports(k) {
			t.Errorf("interp does not support %s", k)
		}
	}
}

func TestOrderedEndsWithInterp(t *testing.T) {
	ordered := Ordered()
	if len(ordered) == 0 {
		t.Fatal("no tiers available")
	}
	last := ordered[len(ordered)-1]
	if last.Name() != TierInterp {
		t.Errorf("last tier = %s, want interp", last.Name())
	}
	for _, tier := range ordered {
		tier.Close()
	}
}

func TestNilFactoryUnavailable(t *testing.T) {
	Register("phantom", nil)
	defer Unregister("phantom")
	if Get("phantom") != nil {
		t.Errorf("nil factory produced a tier")
	}
	if !IsRegistered("phantom") {
		t.Errorf("phantom not listed as registered")
	}
}

func TestInterpRunKinds(t *testing.T) {
	tier := NewInterpTier()
	if err := tier.Init(); err != nil {
		t.Fatal(err)
	}
	defer tier.Close()

	text := strings.Repeat("ACGTTGCAGGCCAATT", 256)
	b := seq.NewBuffer("a", text, true)
	b2 := seq.NewBuffer("b", strings.Repeat("ACGT", 1024), true)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *Request
	}{
		{"kmer", &Request{Kind: KindKmerCount, Buf: b, Opts: Options{K: 4}}},
		{"skew", &Request{Kind: KindGCSkew, Buf: b, Opts: Options{Window: 256, Step: 64}}},
		{"diff", &Request{Kind: KindSeqDiff, Buf: b, Buf2: b2}},
		{"dotplot", &Request{Kind: KindDotPlot, Buf: b, Buf2: b2, Opts: Options{K: 6, Width: 32, Height: 32}}},
		{"hilbert", &Request{Kind: KindHilbertRaster, Buf: b, Opts: Options{Order: 4}}},
		{"sim", &Request{Kind: KindSimStep, Buf: b, Opts: Options{Seed: 1, Generation: 1, MutationRate: 0.01}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tier.Run(ctx, tt.req)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res.Kind != tt.req.Kind || res.Tier != TierInterp {
				t.Errorf("result tagged %s/%s", res.Kind, res.Tier)
			}
		})
	}
}

func TestInterpInvalidRequest(t *testing.T) {
	tier := NewInterpTier()
	tier.Init()
	defer tier.Close()

	b := seq.NewBuffer("a", "ACGT", true)
	_, err := tier.Run(context.Background(), &Request{Kind: KindKmerCount, Buf: b, Opts: Options{K: 0}})
	if err != ErrInvalidRequest {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
	_, err = tier.Run(context.Background(), &Request{Kind: KindSeqDiff, Buf: b})
	if err != ErrInvalidRequest {
		t.Errorf("missing second buffer: err = %v, want ErrInvalidRequest", err)
	}
}

func TestInterpNotInitialized(t *testing.T) {
	tier := NewInterpTier()
	b := seq.NewBuffer("a", "ACGT", true)
	if _, err := tier.Run(context.Background(), &Request{Kind: KindKmerCount, Buf: b, Opts: Options{K: 2}}); err != ErrNotInitialized {
		t.Errorf("err = %v, want ErrNotInitialized", err)
	}
}
