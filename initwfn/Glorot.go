package initwfn

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
)

// GlorotUConfig implements a configuration of the Glorot Uniform
// initialization algorithm.
type GlorotUConfig struct {
	Gain float64
	Seed uint64
}

// NewGlorotU returns a new Glorot Uniform weight initializer
func NewGlorotU(gain float64, seed uint64) (*InitWFn, error) {
	config := GlorotUConfig{
		Gain: gain,
		Seed: seed,
	}

	return newInitWFn(config)
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (g GlorotUConfig) Type() Type {
	return GlorotU
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (g GlorotUConfig) Create() G.InitWFn {
	return seeded(g.Seed, func(rng *rand.Rand, fanIn, fanOut int) float64 {
		limit := g.Gain * math.Sqrt(6.0/float64(fanIn+fanOut))
		return distuv.Uniform{Min: -limit, Max: limit, Src: rng}.Rand()
	})
}

// GlorotNConfig implements a configuration of the Glorot Normal
// initialization algorithm.
type GlorotNConfig struct {
	Gain float64
	Seed uint64
}

// NewGlorotN returns a new Glorot Normal weight initializer.
func NewGlorotN(gain float64, seed uint64) (*InitWFn, error) {
	config := GlorotNConfig{
		Gain: gain,
		Seed: seed,
	}

	return newInitWFn(config)
}

// Type returns the type of initialization algorithm described by the
// configuration.
func (g GlorotNConfig) Type() Type {
	return GlorotN
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (g GlorotNConfig) Create() G.InitWFn {
	return seeded(g.Seed, func(rng *rand.Rand, fanIn, fanOut int) float64 {
		std := g.Gain * math.Sqrt(2.0/float64(fanIn+fanOut))
		return distuv.Normal{Mu: 0, Sigma: std, Src: rng}.Rand()
	})
}
