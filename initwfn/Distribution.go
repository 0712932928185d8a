package initwfn

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
)

// UniformConfig implements a configuration of a weight initializer
// that draws weights from a uniform distribution
type UniformConfig struct {
	Low, High float64
	Seed      uint64
}

// NewUniform returns a new uniform weight initializer
func NewUniform(low, high float64, seed uint64) (*InitWFn, error) {
	config := UniformConfig{
		Low:  low,
		High: high,
		Seed: seed,
	}

	return newInitWFn(config)
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (u UniformConfig) Type() Type {
	return Uniform
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (u UniformConfig) Create() G.InitWFn {
	return seeded(u.Seed, func(rng *rand.Rand, _, _ int) float64 {
		return distuv.Uniform{Min: u.Low, Max: u.High, Src: rng}.Rand()
	})
}

// GaussianConfig implements a configuration of a weight initializer
// that draws weights from a Gaussian distribution
type GaussianConfig struct {
	Mean, StdDev float64
	Seed         uint64
}

// NewGaussian returns a new Gaussian weight initializer
func NewGaussian(mean, stddev float64, seed uint64) (*InitWFn, error) {
	config := GaussianConfig{
		Mean:   mean,
		StdDev: stddev,
		Seed:   seed,
	}

	return newInitWFn(config)
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (g GaussianConfig) Type() Type {
	return Gaussian
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (g GaussianConfig) Create() G.InitWFn {
	return seeded(g.Seed, func(rng *rand.Rand, _, _ int) float64 {
		return distuv.Normal{Mu: g.Mean, Sigma: g.StdDev, Src: rng}.Rand()
	})
}
