// Package sampler keeps every high-popularity repository and a fixed random
// fraction of the low-popularity majority.
package sampler

import (
	"math/rand/v2"

	perr "repoharvest/internal/platform/errors"
)

// Tier labels the stratum a repository was sampled from
type Tier string

const (
	// TierSilent is the popularity-at-or-below-threshold majority, sampled at Rate
	TierSilent Tier = "silent"
	// TierSignal is everything above the threshold, always kept
	TierSignal Tier = "signal"
)

// Defaults used when options leave them unset
const (
	DefaultThreshold = 20
	DefaultRate      = 0.2
)

// Options configures a Sampler
type Options struct {
	Threshold int
	Rate      float64
	Seed      uint64
}

// Sampler draws one independent Bernoulli trial per silent-tier decision.
// Not safe for concurrent use; acquisition is single-goroutine.
type Sampler struct {
	threshold int
	rate      float64
	rng       *rand.Rand
}

// New validates o and builds a Sampler whose draws are reproducible for a given Seed
func New(o Options) (*Sampler, error) {
	if o.Rate < 0 || o.Rate > 1 {
		return nil, perr.InvalidArgf("sample rate %v outside [0,1]", o.Rate)
	}
	if o.Threshold < 0 {
		return nil, perr.InvalidArgf("sample threshold %d is negative", o.Threshold)
	}
	return &Sampler{
		threshold: o.Threshold,
		rate:      o.Rate,
		rng:       rand.New(rand.NewPCG(o.Seed, seedStream)),
	}, nil
}

// seedStream fixes the PCG stream so Seed alone determines the sequence
const seedStream = 0x9e3779b97f4a7c15

// Decide reports whether to keep a repository with the given popularity and its tier.
// Signal-tier decisions never consume a draw.
func (s *Sampler) Decide(stars int) (bool, Tier) {
	if stars > s.threshold {
		return true, TierSignal
	}
	return s.rng.Float64() < s.rate, TierSilent
}

// Threshold returns the tier boundary
func (s *Sampler) Threshold() int { return s.threshold }

// Rate returns the silent-tier keep probability
func (s *Sampler) Rate() float64 { return s.rate }
