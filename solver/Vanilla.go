package solver

import G "gorgonia.org/gorgonia"

// VanillaConfig describes a configuration of stochastic gradient
// descent with optional gradient clipping
type VanillaConfig struct {
	StepSize float64
	Batch    int
	Clip     float64 // <= 0 if no clipping
}

// NewVanilla returns a new Vanilla Solver
func NewVanilla(stepSize float64, batchSize int,
	clip float64) (*Solver, error) {
	return newSolver(Vanilla, VanillaConfig{
		StepSize: stepSize,
		Batch:    batchSize,
		Clip:     clip,
	})
}

// Create returns a Gorgonia Vanilla Solver as described by the
// VanillaConfig
func (v VanillaConfig) Create() G.Solver {
	opts := []G.SolverOpt{
		G.WithLearnRate(v.StepSize),
		G.WithBatchSize(float64(v.Batch)),
	}
	if v.Clip > 0 {
		opts = append(opts, G.WithClip(v.Clip))
	}
	return G.NewVanillaSolver(opts...)
}

// Validate returns an error if the configuration is invalid
func (v VanillaConfig) Validate() error {
	return validateStep(v.StepSize, v.Batch)
}

// ValidType returns whether t is Vanilla
func (v VanillaConfig) ValidType(t Type) bool {
	return t == Vanilla
}
