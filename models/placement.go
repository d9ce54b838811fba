package models

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Sampler supplies values in [0, 1) for initial node placement
type Sampler interface {
	Float64() float64
}

// UniformSampler draws independent uniform values from a seeded source
type UniformSampler struct {
	rng *rand.Rand
}

// NewUniformSampler creates a uniform sampler with the given seed
func NewUniformSampler(seed int64) *UniformSampler {
	return &UniformSampler{rng: rand.New(rand.NewSource(seed))}
}

// Float64 returns the next uniform value
func (s *UniformSampler) Float64() float64 {
	return s.rng.Float64()
}

// NoiseSampler walks an OpenSimplex noise field. Consecutive values are
// correlated, so nodes placed in index order land along smooth curves
// instead of scattering independently.
type NoiseSampler struct {
	noise opensimplex.Noise
	t     float64
	step  float64
	row   float64
}

// NewNoiseSampler creates a noise sampler with the given seed
func NewNoiseSampler(seed int64) *NoiseSampler {
	return &NoiseSampler{
		noise: opensimplex.NewNormalized(seed),
		step:  0.37,
	}
}

// Float64 returns the next noise value, alternating between two rows of the
// field so x and y coordinates are decorrelated.
func (s *NoiseSampler) Float64() float64 {
	v := s.noise.Eval2(s.t, s.row)
	if s.row == 0 {
		s.row = 100
	} else {
		s.row = 0
		s.t += s.step
	}
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v >= 1 {
		return math.Nextafter(1, 0)
	}
	return v
}

// NewSampler returns the sampler for a placement strategy name.
// Unknown names fall back to uniform placement.
func NewSampler(strategy string, seed int64) Sampler {
	switch strategy {
	case "noise":
		return NewNoiseSampler(seed)
	default:
		return NewUniformSampler(seed)
	}
}
