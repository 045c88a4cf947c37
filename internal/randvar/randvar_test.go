package randvar

import (
	"math"
	"testing"
)

func TestSamplerValidatesParameters(t *testing.T) {
	cases := []struct {
		name string
		spec Spec
	}{
		{"unknown family", Spec{Family: "weibull", Params: []float64{1, 2}}},
		{"constant arity", Spec{Family: FamilyConstant, Params: []float64{1, 2}}},
		{"lognormal arity", Spec{Family: FamilyLogNormal, Params: []float64{0}}},
		{"lognormal zero sdlog", Spec{Family: FamilyLogNormal, Params: []float64{0, 0}}},
		{"normal negative sigma", Spec{Family: FamilyNormal, Params: []float64{0, -1}}},
		{"poisson zero lambda", Spec{Family: FamilyPoisson, Params: []float64{0}}},
		{"binomial fractional n", Spec{Family: FamilyBinomial, Params: []float64{2.5, 0.5}}},
		{"binomial p above 1", Spec{Family: FamilyBinomial, Params: []float64{10, 1.5}}},
		{"nan parameter", Spec{Family: FamilyNormal, Params: []float64{math.NaN(), 1}}},
		{"infinite parameter", Spec{Family: FamilyPoisson, Params: []float64{math.Inf(1)}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.spec.Sampler(Stream(1, 0)); err == nil {
				t.Fatalf("expected error for %+v", tc.spec)
			}
		})
	}
}

func TestConstantSamplerReturnsItsValue(t *testing.T) {
	sampler, err := Spec{Family: FamilyConstant, Params: []float64{2.5}}.Sampler(Stream(1, 0))
	if err != nil {
		t.Fatalf("sampler: %v", err)
	}
	for i := 0; i < 5; i++ {
		if got := sampler.Rand(); got != 2.5 {
			t.Fatalf("draw %d: got %v, want 2.5", i, got)
		}
	}
}

func TestLogNormalSamplerIsPositive(t *testing.T) {
	sampler, err := Spec{Family: FamilyLogNormal, Params: []float64{0, 0.5}}.Sampler(Stream(7, 0))
	if err != nil {
		t.Fatalf("sampler: %v", err)
	}
	for i := 0; i < 1000; i++ {
		if v := sampler.Rand(); v <= 0 {
			t.Fatalf("draw %d: log-normal sample %v is not positive", i, v)
		}
	}
}

func TestBinomialHelperEdgeCases(t *testing.T) {
	src := Stream(3, 0)
	if got := Binomial(src, 0, 0.5); got != 0 {
		t.Fatalf("n=0: got %d, want 0", got)
	}
	if got := Binomial(src, 10, 0); got != 0 {
		t.Fatalf("p=0: got %d, want 0", got)
	}
	if got := Binomial(src, 10, 1); got != 10 {
		t.Fatalf("p=1: got %d, want 10", got)
	}
	for i := 0; i < 1000; i++ {
		got := Binomial(src, 20, 0.3)
		if got < 0 || got > 20 {
			t.Fatalf("draw %d: sample %d outside [0,20]", i, got)
		}
	}
}

func TestStreamIsDeterministic(t *testing.T) {
	a := Stream(42, 3)
	b := Stream(42, 3)
	for i := 0; i < 100; i++ {
		if x, y := a.Uint64(), b.Uint64(); x != y {
			t.Fatalf("draw %d: streams diverged, %d != %d", i, x, y)
		}
	}
}

func TestStreamsWithDifferentIndicesDiffer(t *testing.T) {
	a := Stream(42, 0)
	b := Stream(42, 1)
	same := 0
	for i := 0; i < 100; i++ {
		if a.Uint64() == b.Uint64() {
			same++
		}
	}
	if same > 2 {
		t.Fatalf("streams for distinct indices coincide on %d of 100 draws", same)
	}
}

func TestSubSeedPartitionsSeedSpace(t *testing.T) {
	seen := map[uint64]int{}
	for idx := 0; idx < 1000; idx++ {
		s := SubSeed(99, idx)
		if prev, ok := seen[s]; ok {
			t.Fatalf("indices %d and %d map to the same subseed %d", prev, idx, s)
		}
		seen[s] = idx
	}
	if SubSeed(1, 0) == SubSeed(2, 0) {
		t.Fatal("distinct roots produced the same subseed")
	}
}
