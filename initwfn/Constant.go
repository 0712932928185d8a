package initwfn

import G "gorgonia.org/gorgonia"

// ZeroesConfig implements a configuration of a weight initializer
// that sets all weights to 0.
type ZeroesConfig struct{}

// NewZeroes returns a new weight initializer that sets all weights to 0
func NewZeroes() (*InitWFn, error) {
	return newInitWFn(ZeroesConfig{})
}

// Type returns the type of the weight initializer created using this
// configuration.
func (z ZeroesConfig) Type() Type {
	return Zeroes
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (z ZeroesConfig) Create() G.InitWFn {
	return G.Zeroes()
}

// ConstantConfig implements a configuration of a weight initializer
// that sets all weights to a constant value.
type ConstantConfig struct {
	Value float64
}

// NewConstant returns a new weight initializer that sets all weights
// to value
func NewConstant(value float64) (*InitWFn, error) {
	return newInitWFn(ConstantConfig{Value: value})
}

// Type returns the type of the weight initializer created using this
// configuration.
func (c ConstantConfig) Type() Type {
	return Constant
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (c ConstantConfig) Create() G.InitWFn {
	return G.ValuesOf(c.Value)
}
