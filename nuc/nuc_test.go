package nuc_test

import (
	"testing"

	"github.com/andrew-torda/aybgo/nuc"
)

func TestQualityFromProbClamps(t *testing.T) {
	if q := nuc.QualityFromProb(0); q != nuc.MinQuality {
		t.Errorf("post=0: got %d, want %d", q, nuc.MinQuality)
	}
	if q := nuc.QualityFromProb(1); q != nuc.MaxQuality {
		t.Errorf("post=1: got %d, want %d", q, nuc.MaxQuality)
	}
	if q := nuc.QualityFromProb(1 - 1e-30); q != nuc.MaxQuality {
		t.Errorf("post~1: got %d, want %d", q, nuc.MaxQuality)
	}
}

func TestQualityFromProbMonotone(t *testing.T) {
	prev := nuc.QualityFromProb(0.01)
	for _, p := range []float64{0.1, 0.5, 0.9, 0.99, 0.999} {
		q := nuc.QualityFromProb(p)
		if q < prev {
			t.Fatalf("quality not monotone: post=%v gave %d after earlier %d", p, q, prev)
		}
		prev = q
	}
}

func TestFASTQChar(t *testing.T) {
	if got, want := nuc.MinQuality.FASTQChar(), byte('!'); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestByteAndString(t *testing.T) {
	cases := []struct {
		n    nuc.NUC
		b    byte
		want string
	}{
		{nuc.A, 'A', "A"},
		{nuc.C, 'C', "C"},
		{nuc.G, 'G', "G"},
		{nuc.T, 'T', "T"},
		{nuc.AMBIG, 'N', "N"},
	}
	for _, c := range cases {
		if got := c.n.Byte(); got != c.b {
			t.Errorf("%v.Byte() = %q, want %q", c.n, got, c.b)
		}
		if got := c.n.String(); got != c.want {
			t.Errorf("%v.String() = %q, want %q", c.n, got, c.want)
		}
	}
}
