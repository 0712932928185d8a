// Package environment outlines the interfaces that environments must
// satisfy to be used by agents. Concrete environments live outside
// this module.
package environment

import (
	"github.com/samuelfneumann/gotrpo/timestep"
	"gonum.org/v1/gonum/mat"
)

// Environment implements an environment that an agent interacts with
type Environment interface {
	// Reset resets the environment between episodes and returns the
	// first timestep of the new episode
	Reset() (timestep.TimeStep, error)

	// Step takes an action in the environment, returning the next
	// timestep and whether the episode has ended
	Step(action *mat.VecDense) (timestep.TimeStep, bool, error)

	ObservationSpec() Spec
	ActionSpec() Spec
}
