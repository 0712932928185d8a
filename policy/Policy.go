// Package policy implements stochastic policies whose action
// distributions are parameterized by neural networks over a flat
// parameter vector.
package policy

import (
	"fmt"

	"github.com/samuelfneumann/gotrpo/params"
	"gonum.org/v1/gonum/mat"
)

// Policy is a parameterized distribution over actions given states.
// States are batch × Features() matrices and actions are
// batch × ActionDims() matrices, one row per state. For discrete
// policies ActionDims() is 1 and each action is an action index.
//
// All methods evaluate the policy at the parameters currently held in
// Params(), so that changing the Store changes the distribution.
type Policy interface {
	Params() *params.Store
	Features() int
	ActionDims() int
	Discrete() bool

	// SampleWithLogProb draws a single action for each state and
	// returns the actions along with their joint log probabilities
	SampleWithLogProb(states mat.Matrix) (*mat.Dense, []float64, error)

	// Mode returns the most probable action in each state
	Mode(states mat.Matrix) (*mat.Dense, error)

	// LogProb returns the log probability of each action in its
	// corresponding state. For multi-dimensional actions, the log
	// probability is summed over action dimensions.
	LogProb(states, actions mat.Matrix) ([]float64, error)

	// Entropy returns the entropy of the action distribution in each
	// state, summed over action dimensions
	Entropy(states mat.Matrix) ([]float64, error)

	// Snapshot returns a frozen copy of the action distributions in
	// each state at the current parameters
	Snapshot(states mat.Matrix) (*Snapshot, error)

	// KL returns KL(old ‖ π) in each state, where π is the
	// distribution at the current parameters
	KL(states mat.Matrix, old *Snapshot) ([]float64, error)

	// LogProbGrad returns ∇θ Σᵢ weights[i] * log π(actions[i] | states[i])
	LogProbGrad(states, actions mat.Matrix, weights []float64) (*mat.VecDense,
		error)

	// KLHessianVector returns the product of v with the Hessian of the
	// mean KL divergence between the policy at the current parameters
	// and the policy at displaced parameters, evaluated at zero
	// displacement.
	KLHessianVector(states mat.Matrix, v mat.Vector) (*mat.VecDense, error)

	Close() error
}

// Snapshot is a frozen copy of a policy's action distributions on a
// batch of states. It holds plain numbers only, so the distributions
// it describes do not change when the policy's parameters change.
type Snapshot struct {
	// Outputs holds one row per state: the action means for Gaussian
	// policies, or the action log probabilities for Categorical
	// policies.
	Outputs *mat.Dense

	// LogStd holds the per-dimension log standard deviation for
	// Gaussian policies and is nil otherwise
	LogStd []float64
}

// Len returns the number of states in the Snapshot
func (s *Snapshot) Len() int {
	r, _ := s.Outputs.Dims()
	return r
}

// checkStates ensures the states have the correct number of features
// and returns the number of states
func checkStates(p Policy, states mat.Matrix) (int, error) {
	r, c := states.Dims()
	if c != p.Features() {
		return 0, fmt.Errorf("illegal number of state features "+
			"\n\twant(%v)\n\thave(%v)", p.Features(), c)
	}
	if r == 0 {
		return 0, fmt.Errorf("no states given")
	}
	return r, nil
}

// checkActions ensures there is one action per state with the correct
// number of dimensions
func checkActions(p Policy, n int, actions mat.Matrix) error {
	r, c := actions.Dims()
	if r != n || c != p.ActionDims() {
		return fmt.Errorf("illegal actions shape "+
			"\n\twant(%v, %v)\n\thave(%v, %v)", n, p.ActionDims(), r, c)
	}
	return nil
}

// checkSnapshot ensures a snapshot was taken on n states
func checkSnapshot(n int, old *Snapshot) error {
	if old == nil || old.Outputs == nil {
		return fmt.Errorf("empty snapshot")
	}
	if old.Len() != n {
		return fmt.Errorf("snapshot taken on %v states but %v given",
			old.Len(), n)
	}
	return nil
}
