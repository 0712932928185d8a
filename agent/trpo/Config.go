package trpo

import "fmt"

// Config implements a configuration of a TRPO update
type Config struct {
	Gamma float64 // Discount factor
	Tau   float64 // λ for GAE(λ)

	MaxKL   float64 // Trust region radius in mean KL divergence
	Damping float64 // Damping added to Fisher-vector products

	CGIterations int     // Maximum conjugate gradient iterations
	CGTolerance  float64 // Conjugate gradient residual tolerance

	MaxBacktracks  int     // Maximum line search step sizes tried
	BacktrackDecay float64 // Line search step fraction decay

	// NormalizeAdvantages determines whether advantages are
	// standardized before computing the policy gradient
	NormalizeAdvantages bool
}

// DefaultConfig returns the default TRPO configuration
func DefaultConfig() Config {
	return Config{
		Gamma:               0.99,
		Tau:                 0.95,
		MaxKL:               1e-2,
		Damping:             1e-2,
		CGIterations:        10,
		CGTolerance:         1e-10,
		MaxBacktracks:       10,
		BacktrackDecay:      0.5,
		NormalizeAdvantages: true,
	}
}

// Validate returns an error if the configuration is invalid
func (c Config) Validate() error {
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: gamma must be in [0, 1]")
	}
	if c.Tau < 0 || c.Tau > 1 {
		return fmt.Errorf("validate: tau must be in [0, 1]")
	}
	if c.Damping < 0 {
		return fmt.Errorf("validate: damping must be non-negative")
	}
	if c.CGIterations <= 0 {
		return fmt.Errorf("validate: conjugate gradient iterations must be " +
			"positive")
	}
	if c.CGTolerance < 0 {
		return fmt.Errorf("validate: conjugate gradient tolerance must be " +
			"non-negative")
	}
	return c.lineSearch().Validate()
}

func (c Config) lineSearch() LineSearchConfig {
	return LineSearchConfig{
		MaxBacktracks: c.MaxBacktracks,
		Decay:         c.BacktrackDecay,
		MaxKL:         c.MaxKL,
	}
}
