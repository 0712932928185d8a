package trpo

import (
	"fmt"

	"github.com/samuelfneumann/gotrpo/params"
	"github.com/samuelfneumann/gotrpo/utils/floatutils"
	"gonum.org/v1/gonum/mat"
)

// Objective evaluates a candidate set of policy parameters, which the
// line search writes into the policy's parameter Store before calling
// either method.
type Objective interface {
	// Surrogate returns the surrogate objective at the current
	// parameters
	Surrogate() (float64, error)

	// KL returns the mean KL divergence from the policy before the
	// update to the policy at the current parameters
	KL() (float64, error)
}

// LineSearchConfig configures a backtracking line search
type LineSearchConfig struct {
	MaxBacktracks int     // Maximum number of step sizes tried
	Decay         float64 // Step fraction decay on each backtrack
	MaxKL         float64 // Largest accepted mean KL divergence
}

// Validate returns an error if the configuration is invalid
func (c LineSearchConfig) Validate() error {
	if c.MaxBacktracks <= 0 {
		return fmt.Errorf("validate: max backtracks must be positive")
	}
	if c.Decay <= 0 || c.Decay >= 1 {
		return fmt.Errorf("validate: decay must be in (0, 1)")
	}
	if c.MaxKL <= 0 {
		return fmt.Errorf("validate: max KL must be positive")
	}
	return nil
}

// LineSearchResult describes the outcome of a line search
type LineSearchResult struct {
	Accepted bool

	// StepFraction is the fraction of the full step taken, 0 if the
	// step was rejected
	StepFraction float64

	// Steps is the number of step sizes evaluated
	Steps int

	// Surrogate, Improvement, and KL are measured at the accepted
	// parameters, or at the original parameters if the step was
	// rejected
	Surrogate   float64
	Improvement float64
	KL          float64
}

// LineSearch performs an exponential backtracking line search along
// fullStep starting from the parameters in store. Step fractions
// 1, decay, decay², ... are tried in turn and the first candidate that
// both improves the surrogate objective over baseline and has a mean
// KL divergence of at most MaxKL is accepted and left in store.
//
// If no candidate is accepted, store is restored to its original
// parameters exactly. Any error also restores the original parameters.
func LineSearch(store *params.Store, fullStep mat.Vector, obj Objective,
	baseline float64, c LineSearchConfig) (LineSearchResult, error) {
	if err := c.Validate(); err != nil {
		return LineSearchResult{}, fmt.Errorf("lineSearch: %v", err)
	}
	if fullStep.Len() != store.Len() {
		return LineSearchResult{}, fmt.Errorf("lineSearch: illegal step "+
			"length \n\twant(%v)\n\thave(%v)", store.Len(), fullStep.Len())
	}

	old := store.Snapshot()
	restore := func() {
		// Lengths already checked
		_ = store.Set(old)
	}

	candidate := mat.NewVecDense(store.Len(), nil)
	fraction := 1.0
	result := LineSearchResult{Surrogate: baseline}

	for i := 0; i < c.MaxBacktracks; i++ {
		candidate.AddScaledVec(old, fraction, fullStep)
		if err := store.Set(candidate); err != nil {
			restore()
			return result, fmt.Errorf("lineSearch: %v", err)
		}
		result.Steps++

		surrogate, err := obj.Surrogate()
		if err != nil {
			restore()
			return result, fmt.Errorf("lineSearch: %w", err)
		}
		kl, err := obj.KL()
		if err != nil {
			restore()
			return result, fmt.Errorf("lineSearch: %w", err)
		}
		if !floatutils.IsFinite(surrogate) || !floatutils.IsFinite(kl) {
			restore()
			return result, instability("lineSearch", "step fraction %v "+
				"gives surrogate %v and KL %v", fraction, surrogate, kl)
		}

		improvement := surrogate - baseline
		if improvement > 0 && kl <= c.MaxKL {
			result.Accepted = true
			result.StepFraction = fraction
			result.Surrogate = surrogate
			result.Improvement = improvement
			result.KL = kl
			return result, nil
		}

		fraction *= c.Decay
	}

	restore()
	return result, nil
}
