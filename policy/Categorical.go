package policy

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gotrpo/network"
	"github.com/samuelfneumann/gotrpo/params"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
)

// Categorical implements a softmax policy over a finite set of
// actions. A neural network predicts the logits of each action in
// each state. Actions are represented as a single column holding the
// action index.
type Categorical struct {
	net    network.NeuralNet
	params *params.Store
	rng    *rand.Rand
}

// NewCategorical returns a new Categorical policy with one action per
// output of net. Network weights are initialized with init and the
// seed determines the sequence of sampled actions.
func NewCategorical(net network.NeuralNet, init G.InitWFn,
	seed uint64) (*Categorical, error) {
	if net.Outputs() < 2 {
		return nil, fmt.Errorf("newCategorical: need at least 2 actions, "+
			"have %v", net.Outputs())
	}

	return &Categorical{
		net:    net,
		params: params.New("policy", net.InitParams(init)),
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

// Params returns the policy's parameter Store
func (c *Categorical) Params() *params.Store {
	return c.params
}

// Features returns the number of state features
func (c *Categorical) Features() int {
	return c.net.Features()
}

// ActionDims returns 1, actions are action indices
func (c *Categorical) ActionDims() int {
	return 1
}

// NumActions returns the number of actions
func (c *Categorical) NumActions() int {
	return c.net.Outputs()
}

// Discrete returns true, Categorical policies have discrete actions
func (c *Categorical) Discrete() bool {
	return true
}

// Close closes the policy's network
func (c *Categorical) Close() error {
	return c.net.Close()
}

// LogProbs returns the log probability of each action in each state,
// one row per state
func (c *Categorical) LogProbs(states mat.Matrix) (*mat.Dense, error) {
	if _, err := checkStates(c, states); err != nil {
		return nil, fmt.Errorf("logProbs: %v", err)
	}
	logits, err := c.net.Forward(c.params.Vector(), states)
	if err != nil {
		return nil, fmt.Errorf("logProbs: %v", err)
	}

	n, _ := logits.Dims()
	for i := 0; i < n; i++ {
		row := logits.RawRowView(i)
		floats.AddConst(-floats.LogSumExp(row), row)
	}
	return logits, nil
}

// SampleWithLogProb samples an action in each state and returns the
// actions with their log probabilities
func (c *Categorical) SampleWithLogProb(states mat.Matrix) (*mat.Dense,
	[]float64, error) {
	logProbs, err := c.LogProbs(states)
	if err != nil {
		return nil, nil, fmt.Errorf("sampleWithLogProb: %v", err)
	}
	n, numActions := logProbs.Dims()

	actions := mat.NewDense(n, 1, nil)
	out := make([]float64, n)
	probs := make([]float64, numActions)
	for i := 0; i < n; i++ {
		for a := range probs {
			probs[a] = math.Exp(logProbs.At(i, a))
		}
		action := int(distuv.NewCategorical(probs, c.rng).Rand())
		actions.Set(i, 0, float64(action))
		out[i] = logProbs.At(i, action)
	}
	return actions, out, nil
}

// Mode returns the most probable action in each state
func (c *Categorical) Mode(states mat.Matrix) (*mat.Dense, error) {
	logProbs, err := c.LogProbs(states)
	if err != nil {
		return nil, fmt.Errorf("mode: %v", err)
	}
	n, _ := logProbs.Dims()

	actions := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		actions.Set(i, 0, float64(floats.MaxIdx(logProbs.RawRowView(i))))
	}
	return actions, nil
}

// LogProb returns the log probability of each action in its state
func (c *Categorical) LogProb(states, actions mat.Matrix) ([]float64,
	error) {
	logProbs, err := c.LogProbs(states)
	if err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}
	n, _ := logProbs.Dims()
	indices, err := c.actionIndices(n, actions)
	if err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}

	out := make([]float64, n)
	for i, a := range indices {
		out[i] = logProbs.At(i, a)
	}
	return out, nil
}

// Entropy returns the entropy of the action distribution in each state
func (c *Categorical) Entropy(states mat.Matrix) ([]float64, error) {
	logProbs, err := c.LogProbs(states)
	if err != nil {
		return nil, fmt.Errorf("entropy: %v", err)
	}
	n, numActions := logProbs.Dims()

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		for a := 0; a < numActions; a++ {
			lp := logProbs.At(i, a)
			out[i] -= math.Exp(lp) * lp
		}
	}
	return out, nil
}

// Snapshot returns a frozen copy of the policy's action log
// probabilities on states
func (c *Categorical) Snapshot(states mat.Matrix) (*Snapshot, error) {
	logProbs, err := c.LogProbs(states)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %v", err)
	}
	return &Snapshot{Outputs: logProbs}, nil
}

// KL returns KL(old ‖ π) = Σₐ p_old(a) (log p_old(a) - log p(a)) in
// each state
func (c *Categorical) KL(states mat.Matrix, old *Snapshot) ([]float64,
	error) {
	logProbs, err := c.LogProbs(states)
	if err != nil {
		return nil, fmt.Errorf("kl: %v", err)
	}
	n, numActions := logProbs.Dims()
	if err := checkSnapshot(n, old); err != nil {
		return nil, fmt.Errorf("kl: %v", err)
	}
	if _, cols := old.Outputs.Dims(); cols != numActions {
		return nil, fmt.Errorf("kl: snapshot is not of a Categorical "+
			"policy with %v actions", numActions)
	}

	kl := make([]float64, n)
	for i := 0; i < n; i++ {
		for a := 0; a < numActions; a++ {
			oldLP := old.Outputs.At(i, a)
			kl[i] += math.Exp(oldLP) * (oldLP - logProbs.At(i, a))
		}
	}
	return kl, nil
}

// LogProbGrad returns ∇θ Σᵢ weights[i] * log π(actions[i] | states[i])
func (c *Categorical) LogProbGrad(states, actions mat.Matrix,
	weights []float64) (*mat.VecDense, error) {
	logProbs, err := c.LogProbs(states)
	if err != nil {
		return nil, fmt.Errorf("logProbGrad: %v", err)
	}
	n, numActions := logProbs.Dims()
	indices, err := c.actionIndices(n, actions)
	if err != nil {
		return nil, fmt.Errorf("logProbGrad: %v", err)
	}
	if len(weights) != n {
		return nil, fmt.Errorf("logProbGrad: illegal number of weights "+
			"\n\twant(%v)\n\thave(%v)", n, len(weights))
	}

	// ∂ log p(a) / ∂ logits = onehot(a) - p
	upstream := mat.NewDense(n, numActions, nil)
	for i, action := range indices {
		for a := 0; a < numActions; a++ {
			indicator := 0.0
			if a == action {
				indicator = 1.0
			}
			upstream.Set(i, a, weights[i]*(indicator-math.Exp(logProbs.At(i, a))))
		}
	}

	grad, _, err := c.net.Backward(c.params.Vector(), states, upstream)
	if err != nil {
		return nil, fmt.Errorf("logProbGrad: %v", err)
	}
	return grad, nil
}

// KLHessianVector returns H·v, where H is the Hessian of the mean KL
// divergence from the current policy to a displaced one, taken at zero
// displacement. With J the Jacobian of the logits with respect to the
// parameters, H = Jᵀ (diag(p) - ppᵀ) J / N.
func (c *Categorical) KLHessianVector(states mat.Matrix,
	v mat.Vector) (*mat.VecDense, error) {
	n, err := checkStates(c, states)
	if err != nil {
		return nil, fmt.Errorf("klHessianVector: %v", err)
	}
	if v.Len() != c.params.Len() {
		return nil, fmt.Errorf("klHessianVector: illegal vector length "+
			"\n\twant(%v)\n\thave(%v)", c.params.Len(), v.Len())
	}

	logits, tangent, err := c.net.JVP(c.params.Vector(), v, states)
	if err != nil {
		return nil, fmt.Errorf("klHessianVector: %v", err)
	}

	_, numActions := logits.Dims()
	upstream := mat.NewDense(n, numActions, nil)
	probs := make([]float64, numActions)
	for i := 0; i < n; i++ {
		row := logits.RawRowView(i)
		lse := floats.LogSumExp(row)
		for a := range probs {
			probs[a] = math.Exp(row[a] - lse)
		}

		dot := floats.Dot(probs, tangent.RawRowView(i))
		for a := range probs {
			hv := probs[a] * (tangent.At(i, a) - dot)
			upstream.Set(i, a, hv/float64(n))
		}
	}

	hv, _, err := c.net.Backward(c.params.Vector(), states, upstream)
	if err != nil {
		return nil, fmt.Errorf("klHessianVector: %v", err)
	}
	return hv, nil
}

// actionIndices converts a column of actions to action indices
func (c *Categorical) actionIndices(n int, actions mat.Matrix) ([]int,
	error) {
	if err := checkActions(c, n, actions); err != nil {
		return nil, err
	}

	indices := make([]int, n)
	for i := range indices {
		a := actions.At(i, 0)
		if a != math.Trunc(a) || a < 0 || int(a) >= c.NumActions() {
			return nil, fmt.Errorf("illegal action %v", a)
		}
		indices[i] = int(a)
	}
	return indices, nil
}
