package initwfn

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
)

// HeUConfig implements a configuration of the He Uniform
// initialization algorithm.
type HeUConfig struct {
	Gain float64
	Seed uint64
}

// NewHeU returns a new He Uniform weight initializer
func NewHeU(gain float64, seed uint64) (*InitWFn, error) {
	config := HeUConfig{
		Gain: gain,
		Seed: seed,
	}

	return newInitWFn(config)
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (h HeUConfig) Type() Type {
	return HeU
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (h HeUConfig) Create() G.InitWFn {
	return seeded(h.Seed, func(rng *rand.Rand, fanIn, _ int) float64 {
		limit := h.Gain * math.Sqrt(6.0/float64(fanIn))
		return distuv.Uniform{Min: -limit, Max: limit, Src: rng}.Rand()
	})
}

// HeNConfig implements a configuration of the He Normal
// initialization algorithm.
type HeNConfig struct {
	Gain float64
	Seed uint64
}

// NewHeN returns a new He Normal weight initializer
func NewHeN(gain float64, seed uint64) (*InitWFn, error) {
	config := HeNConfig{
		Gain: gain,
		Seed: seed,
	}

	return newInitWFn(config)
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (h HeNConfig) Type() Type {
	return HeN
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (h HeNConfig) Create() G.InitWFn {
	return seeded(h.Seed, func(rng *rand.Rand, fanIn, _ int) float64 {
		std := h.Gain * math.Sqrt(2.0/float64(fanIn))
		return distuv.Normal{Mu: 0, Sigma: std, Src: rng}.Rand()
	})
}
