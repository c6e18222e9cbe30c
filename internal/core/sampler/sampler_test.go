package sampler

import (
	"math"
	"math/rand/v2"
	"testing"
)

func mustNew(t *testing.T, o Options) *Sampler {
	t.Helper()
	s, err := New(o)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestDecide_SignalAlwaysKept(t *testing.T) {
	s := mustNew(t, Options{Threshold: 20, Rate: 0, Seed: 1})
	for stars := 21; stars < 5000; stars += 7 {
		keep, tier := s.Decide(stars)
		if !keep || tier != TierSignal {
			t.Fatalf("stars=%d: keep=%v tier=%s", stars, keep, tier)
		}
	}
}

func TestDecide_BoundaryIsSilent(t *testing.T) {
	s := mustNew(t, Options{Threshold: 20, Rate: 1, Seed: 1})
	if keep, tier := s.Decide(20); !keep || tier != TierSilent {
		t.Fatalf("stars=20 should be silent and kept at rate 1, got %v %s", keep, tier)
	}
	s = mustNew(t, Options{Threshold: 20, Rate: 0, Seed: 1})
	if keep, tier := s.Decide(0); keep || tier != TierSilent {
		t.Fatalf("rate 0 must drop silent, got %v %s", keep, tier)
	}
}

func TestDecide_MatchesSeededStream(t *testing.T) {
	const seed = 42
	s := mustNew(t, Options{Threshold: 20, Rate: 0.2, Seed: seed})
	ref := rand.New(rand.NewPCG(seed, seedStream))
	for i := range 500 {
		// interleave signal decisions; they must not consume draws
		if i%3 == 0 {
			s.Decide(100)
		}
		want := ref.Float64() < 0.2
		if got, _ := s.Decide(i % 21); got != want {
			t.Fatalf("decision %d = %v, want %v", i, got, want)
		}
	}
}

func TestDecide_FixedSeedExactOutcomes(t *testing.T) {
	// popularity 5 under threshold 20 at rate 0.2, seed 2024: draws run
	// 0.313 0.950 0.915 ... 0.227 0.861 0.394 0.042, so only the 16th is kept
	want := []bool{
		false, false, false, false, false, false, false, false,
		false, false, false, false, false, false, false, true,
	}
	s := mustNew(t, Options{Threshold: 20, Rate: 0.2, Seed: 2024})
	for i, w := range want {
		keep, tier := s.Decide(5)
		if tier != TierSilent || keep != w {
			t.Fatalf("draw %d: keep=%v tier=%s, want keep=%v", i, keep, tier, w)
		}
	}
}

func TestDecide_SameSeedSameDecisions(t *testing.T) {
	a := mustNew(t, Options{Threshold: 20, Rate: 0.5, Seed: 7})
	b := mustNew(t, Options{Threshold: 20, Rate: 0.5, Seed: 7})
	for i := range 200 {
		ka, _ := a.Decide(i % 10)
		kb, _ := b.Decide(i % 10)
		if ka != kb {
			t.Fatalf("decision %d diverged", i)
		}
	}
}

func TestDecide_KeepFractionNearRate(t *testing.T) {
	const n, rate = 20000, 0.2
	s := mustNew(t, Options{Threshold: 20, Rate: rate, Seed: 2024})
	kept := 0
	for range n {
		if k, _ := s.Decide(3); k {
			kept++
		}
	}
	// binomial sd ~ 57; allow ~5 sd
	if got := float64(kept) / n; math.Abs(got-rate) > 0.015 {
		t.Fatalf("keep fraction = %.4f, want ~%.2f", got, rate)
	}
}

func TestNew_Validation(t *testing.T) {
	for _, o := range []Options{{Rate: -0.1}, {Rate: 1.1}, {Threshold: -1, Rate: 0.2}} {
		if _, err := New(o); err == nil {
			t.Fatalf("options %+v should be rejected", o)
		}
	}
	s := mustNew(t, Options{Threshold: DefaultThreshold, Rate: DefaultRate})
	if s.Threshold() != 20 || s.Rate() != 0.2 {
		t.Fatalf("accessors: %d %v", s.Threshold(), s.Rate())
	}
}
