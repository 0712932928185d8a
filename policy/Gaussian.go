package policy

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gotrpo/network"
	"github.com/samuelfneumann/gotrpo/params"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
)

var (
	logSqrt2Pi    = 0.5 * math.Log(2*math.Pi)
	gaussEntConst = 0.5 * math.Log(2*math.Pi*math.E)
)

// Gaussian implements a diagonal Gaussian policy. The mean of the
// distribution in each state is predicted by a neural network, while
// the log standard deviation is a learned, state-independent vector
// with one entry per action dimension.
//
// The parameter vector is laid out as the network's parameters
// followed by the log standard deviations.
type Gaussian struct {
	net    network.NeuralNet
	params *params.Store
	rng    *rand.Rand
	normal distuv.Normal
}

// NewGaussian returns a new Gaussian policy whose means are predicted
// by net. Network weights are initialized with init and all log
// standard deviations are initialized to initLogStd. The seed
// determines the sequence of sampled actions.
func NewGaussian(net network.NeuralNet, init G.InitWFn, initLogStd float64,
	seed uint64) (*Gaussian, error) {
	netParams := net.InitParams(init)
	actionDims := net.Outputs()

	theta := mat.NewVecDense(net.NumParams()+actionDims, nil)
	theta.SliceVec(0, net.NumParams()).(*mat.VecDense).CopyVec(netParams)
	for i := 0; i < actionDims; i++ {
		theta.SetVec(net.NumParams()+i, initLogStd)
	}

	rng := rand.New(rand.NewSource(seed))
	return &Gaussian{
		net:    net,
		params: params.New("policy", theta),
		rng:    rng,
		normal: distuv.Normal{Mu: 0, Sigma: 1, Src: rng},
	}, nil
}

// Params returns the policy's parameter Store
func (g *Gaussian) Params() *params.Store {
	return g.params
}

// Features returns the number of state features
func (g *Gaussian) Features() int {
	return g.net.Features()
}

// ActionDims returns the number of action dimensions
func (g *Gaussian) ActionDims() int {
	return g.net.Outputs()
}

// Discrete returns false, Gaussian policies have continuous actions
func (g *Gaussian) Discrete() bool {
	return false
}

// Close closes the policy's network
func (g *Gaussian) Close() error {
	return g.net.Close()
}

// netParams returns a view of the network parameters
func (g *Gaussian) netParams() *mat.VecDense {
	return g.params.Slice(0, g.net.NumParams())
}

// LogStd returns a copy of the log standard deviations
func (g *Gaussian) LogStd() []float64 {
	logStd := g.params.Slice(g.net.NumParams(), g.params.Len())
	out := make([]float64, logStd.Len())
	for i := range out {
		out[i] = logStd.AtVec(i)
	}
	return out
}

// Mean returns the mean action in each state
func (g *Gaussian) Mean(states mat.Matrix) (*mat.Dense, error) {
	if _, err := checkStates(g, states); err != nil {
		return nil, fmt.Errorf("mean: %v", err)
	}
	mean, err := g.net.Forward(g.netParams(), states)
	if err != nil {
		return nil, fmt.Errorf("mean: %v", err)
	}
	return mean, nil
}

// Mode returns the mean action in each state
func (g *Gaussian) Mode(states mat.Matrix) (*mat.Dense, error) {
	return g.Mean(states)
}

// SampleWithLogProb samples an action in each state and returns the
// actions with their log probabilities
func (g *Gaussian) SampleWithLogProb(states mat.Matrix) (*mat.Dense,
	[]float64, error) {
	mean, err := g.Mean(states)
	if err != nil {
		return nil, nil, fmt.Errorf("sampleWithLogProb: %v", err)
	}
	logStd := g.LogStd()
	n, dims := mean.Dims()

	actions := mat.NewDense(n, dims, nil)
	logProbs := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < dims; j++ {
			eps := g.normal.Rand()
			actions.Set(i, j, mean.At(i, j)+math.Exp(logStd[j])*eps)
			logProbs[i] += -0.5*eps*eps - logStd[j] - logSqrt2Pi
		}
	}
	return actions, logProbs, nil
}

// LogProb returns the log probability of each action in its state
func (g *Gaussian) LogProb(states, actions mat.Matrix) ([]float64, error) {
	mean, err := g.Mean(states)
	if err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}
	n, dims := mean.Dims()
	if err := checkActions(g, n, actions); err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}
	logStd := g.LogStd()

	logProbs := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < dims; j++ {
			z := (actions.At(i, j) - mean.At(i, j)) / math.Exp(logStd[j])
			logProbs[i] += -0.5*z*z - logStd[j] - logSqrt2Pi
		}
	}
	return logProbs, nil
}

// Entropy returns the differential entropy of the policy in each
// state. Since the standard deviation is state-independent, so is the
// entropy.
func (g *Gaussian) Entropy(states mat.Matrix) ([]float64, error) {
	n, err := checkStates(g, states)
	if err != nil {
		return nil, fmt.Errorf("entropy: %v", err)
	}

	var entropy float64
	for _, ls := range g.LogStd() {
		entropy += ls + gaussEntConst
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = entropy
	}
	return out, nil
}

// Snapshot returns a frozen copy of the policy's means and log
// standard deviations on states
func (g *Gaussian) Snapshot(states mat.Matrix) (*Snapshot, error) {
	mean, err := g.Mean(states)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %v", err)
	}
	return &Snapshot{Outputs: mean, LogStd: g.LogStd()}, nil
}

// KL returns KL(old ‖ π) in each state:
//
//	Σⱼ log(σⱼ/σ_oldⱼ) + (σ_oldⱼ² + (μ_oldⱼ - μⱼ)²) / (2σⱼ²) - 1/2
func (g *Gaussian) KL(states mat.Matrix, old *Snapshot) ([]float64, error) {
	mean, err := g.Mean(states)
	if err != nil {
		return nil, fmt.Errorf("kl: %v", err)
	}
	n, dims := mean.Dims()
	if err := checkSnapshot(n, old); err != nil {
		return nil, fmt.Errorf("kl: %v", err)
	}
	if len(old.LogStd) != dims {
		return nil, fmt.Errorf("kl: snapshot is not of a Gaussian policy "+
			"with %v action dimensions", dims)
	}
	logStd := g.LogStd()

	kl := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < dims; j++ {
			varNew := math.Exp(2 * logStd[j])
			varOld := math.Exp(2 * old.LogStd[j])
			diff := old.Outputs.At(i, j) - mean.At(i, j)
			kl[i] += logStd[j] - old.LogStd[j] +
				(varOld+diff*diff)/(2*varNew) - 0.5
		}
	}
	return kl, nil
}

// LogProbGrad returns ∇θ Σᵢ weights[i] * log π(actions[i] | states[i])
func (g *Gaussian) LogProbGrad(states, actions mat.Matrix,
	weights []float64) (*mat.VecDense, error) {
	mean, err := g.Mean(states)
	if err != nil {
		return nil, fmt.Errorf("logProbGrad: %v", err)
	}
	n, dims := mean.Dims()
	if err := checkActions(g, n, actions); err != nil {
		return nil, fmt.Errorf("logProbGrad: %v", err)
	}
	if len(weights) != n {
		return nil, fmt.Errorf("logProbGrad: illegal number of weights "+
			"\n\twant(%v)\n\thave(%v)", n, len(weights))
	}
	logStd := g.LogStd()

	// ∂/∂μ = w (a - μ) / σ², ∂/∂logσ = w ((a - μ)² / σ² - 1)
	upstream := mat.NewDense(n, dims, nil)
	logStdGrad := make([]float64, dims)
	for i := 0; i < n; i++ {
		for j := 0; j < dims; j++ {
			variance := math.Exp(2 * logStd[j])
			diff := actions.At(i, j) - mean.At(i, j)
			upstream.Set(i, j, weights[i]*diff/variance)
			logStdGrad[j] += weights[i] * (diff*diff/variance - 1)
		}
	}

	netGrad, _, err := g.net.Backward(g.netParams(), states, upstream)
	if err != nil {
		return nil, fmt.Errorf("logProbGrad: %v", err)
	}
	return g.concat(netGrad, logStdGrad), nil
}

// KLHessianVector returns H·v, where H is the Hessian of the mean KL
// divergence from the current policy to a displaced one, taken at zero
// displacement. With J the Jacobian of the means with respect to the
// network parameters, H is block diagonal with a Jᵀ diag(1/σ²) J / N
// block for the network and 2I for the log standard deviations.
func (g *Gaussian) KLHessianVector(states mat.Matrix,
	v mat.Vector) (*mat.VecDense, error) {
	n, err := checkStates(g, states)
	if err != nil {
		return nil, fmt.Errorf("klHessianVector: %v", err)
	}
	if v.Len() != g.params.Len() {
		return nil, fmt.Errorf("klHessianVector: illegal vector length "+
			"\n\twant(%v)\n\thave(%v)", g.params.Len(), v.Len())
	}
	numNet := g.net.NumParams()
	vNet := mat.NewVecDense(numNet, nil)
	for i := 0; i < numNet; i++ {
		vNet.SetVec(i, v.AtVec(i))
	}

	_, tangent, err := g.net.JVP(g.netParams(), vNet, states)
	if err != nil {
		return nil, fmt.Errorf("klHessianVector: %v", err)
	}

	logStd := g.LogStd()
	_, dims := tangent.Dims()
	upstream := mat.NewDense(n, dims, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < dims; j++ {
			variance := math.Exp(2 * logStd[j])
			upstream.Set(i, j, tangent.At(i, j)/variance/float64(n))
		}
	}

	netHv, _, err := g.net.Backward(g.netParams(), states, upstream)
	if err != nil {
		return nil, fmt.Errorf("klHessianVector: %v", err)
	}

	logStdHv := make([]float64, dims)
	for j := range logStdHv {
		logStdHv[j] = 2 * v.AtVec(numNet+j)
	}
	return g.concat(netHv, logStdHv), nil
}

// concat concatenates network and log standard deviation components
// into a vector laid out like the policy's parameters
func (g *Gaussian) concat(netPart *mat.VecDense,
	logStdPart []float64) *mat.VecDense {
	out := mat.NewVecDense(g.params.Len(), nil)
	numNet := g.net.NumParams()
	out.SliceVec(0, numNet).(*mat.VecDense).CopyVec(netPart)
	for j, val := range logStdPart {
		out.SetVec(numNet+j, val)
	}
	return out
}
