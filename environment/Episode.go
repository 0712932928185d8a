package environment

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
)

// Starter determines the starting state of an episode
type Starter interface {
	Start() mat.Vector
}

// Ender determines when an episode ends
type Ender interface {
	// End returns whether the episode should end after the timestep
	// with number step
	End(step int) bool
}

// UniformStarter samples starting states uniformly randomly within
// bounds
type UniformStarter struct {
	features int
	rand     *distmv.Uniform
}

// NewUniformStarter returns a new UniformStarter. Starting states have
// one feature per interval in bounds.
func NewUniformStarter(bounds []r1.Interval, seed uint64) UniformStarter {
	source := rand.NewSource(seed)
	return UniformStarter{len(bounds), distmv.NewUniform(bounds, source)}
}

// Start returns a new starting state
func (u UniformStarter) Start() mat.Vector {
	return mat.NewVecDense(u.features, u.rand.Rand(nil))
}

// StepLimit implements the Ender interface to end episodes at specific
// timestep limits
type StepLimit struct {
	episodeSteps int
}

// NewStepLimit creates and returns a new step limit
func NewStepLimit(episodeSteps int) StepLimit {
	return StepLimit{episodeSteps}
}

// End returns whether an episode has reached the step limit
func (s StepLimit) End(step int) bool {
	return step >= s.episodeSteps
}
