package timestep

import "gonum.org/v1/gonum/mat"

// Transition packages together a single SARSA transition
type Transition struct {
	State      *mat.VecDense
	Action     *mat.VecDense
	Reward     float64
	Discount   float64 // 0 if NextState is terminal
	NextState  *mat.VecDense
	NextAction *mat.VecDense // nil if not yet selected
}

// NewTransition returns the Transition from step to nextStep. The
// discount of the returned Transition is 0 if nextStep ends the
// episode.
func NewTransition(step TimeStep, action *mat.VecDense, nextStep TimeStep,
	nextAction *mat.VecDense) Transition {
	discount := nextStep.Discount
	if nextStep.Last() {
		discount = 0
	}

	return Transition{
		State:      toVecDense(step.Observation),
		Action:     action,
		Reward:     nextStep.Reward,
		Discount:   discount,
		NextState:  toVecDense(nextStep.Observation),
		NextAction: nextAction,
	}
}

func toVecDense(v mat.Vector) *mat.VecDense {
	out := mat.NewVecDense(v.Len(), nil)
	out.CopyVec(v)
	return out
}
