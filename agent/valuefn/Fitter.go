// Package valuefn implements state-value functions fit by regression
// toward return targets.
package valuefn

import (
	"errors"
	"fmt"

	"github.com/samuelfneumann/gotrpo/network"
	"github.com/samuelfneumann/gotrpo/params"
	"github.com/samuelfneumann/gotrpo/solver"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
)

// ErrNotFinite reports a NaN or infinite regression gradient. Fit
// returns it before stepping the value parameters with that gradient.
var ErrNotFinite = errors.New("gradient is not finite")

// Fitter implements a state-value function v(s) predicted by a neural
// network with a single output. The value function is fit by taking a
// fixed number of full-batch gradient steps on the loss
//
//	mean((v(s) - target)²) + l2 * ‖φ‖²
//
// where φ are the value function's parameters.
type Fitter struct {
	net        network.NeuralNet
	params     *params.Store
	solver     *solver.Solver
	l2         float64
	iterations int
}

// New returns a new Fitter predicting values with net, whose weights
// are initialized with init and fit with s.
func New(net network.NeuralNet, init G.InitWFn, s *solver.Solver, l2 float64,
	iterations int) (*Fitter, error) {
	if net.Outputs() != 1 {
		return nil, fmt.Errorf("new: value network must have a single "+
			"output, have %v", net.Outputs())
	}
	if l2 < 0 {
		return nil, fmt.Errorf("new: l2 coefficient must be non-negative")
	}
	if iterations <= 0 {
		return nil, fmt.Errorf("new: iterations must be positive")
	}
	if s == nil {
		return nil, fmt.Errorf("new: value function needs a solver")
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return &Fitter{
		net:        net,
		params:     params.New("value", net.InitParams(init)),
		solver:     s,
		l2:         l2,
		iterations: iterations,
	}, nil
}

// Params returns the value function's parameter Store
func (f *Fitter) Params() *params.Store {
	return f.params
}

// Restore sets the value parameters to phi and discards the solver
// state accumulated while fitting, so that a failed Fit can be undone
func (f *Fitter) Restore(phi mat.Vector) error {
	if err := f.params.Set(phi); err != nil {
		return fmt.Errorf("restore: %v", err)
	}
	f.solver.Reset()
	return nil
}

// Close closes the value function's network
func (f *Fitter) Close() error {
	return f.net.Close()
}

// Predict returns the predicted value of each state
func (f *Fitter) Predict(states mat.Matrix) ([]float64, error) {
	pred, err := f.net.Forward(f.params.Vector(), states)
	if err != nil {
		return nil, fmt.Errorf("predict: %v", err)
	}
	r, _ := pred.Dims()
	values := make([]float64, r)
	copy(values, pred.RawMatrix().Data)
	return values, nil
}

// Loss returns the regularized regression loss on states and targets
func (f *Fitter) Loss(states mat.Matrix, targets []float64) (float64, error) {
	values, err := f.Predict(states)
	if err != nil {
		return 0, fmt.Errorf("loss: %v", err)
	}
	if len(values) != len(targets) {
		return 0, fmt.Errorf("loss: have %v targets for %v states",
			len(targets), len(values))
	}
	return f.loss(values, targets), nil
}

func (f *Fitter) loss(values, targets []float64) float64 {
	var mse float64
	for i := range values {
		diff := values[i] - targets[i]
		mse += diff * diff
	}
	mse /= float64(len(values))

	phi := f.params.Vector()
	return mse + f.l2*mat.Dot(phi, phi)
}

// Fit takes the configured number of gradient steps on the regression
// loss toward targets, mutating the value parameters in place. The
// loss after fitting is returned.
func (f *Fitter) Fit(states mat.Matrix, targets []float64) (float64, error) {
	n, _ := states.Dims()
	if len(targets) != n {
		return 0, fmt.Errorf("fit: have %v targets for %v states",
			len(targets), n)
	}

	upstream := mat.NewDense(n, 1, nil)
	for i := 0; i < f.iterations; i++ {
		values, err := f.Predict(states)
		if err != nil {
			return 0, fmt.Errorf("fit: %v", err)
		}

		for j := range values {
			upstream.Set(j, 0, 2*(values[j]-targets[j])/float64(n))
		}
		grad, _, err := f.net.Backward(f.params.Vector(), states, upstream)
		if err != nil {
			return 0, fmt.Errorf("fit: %v", err)
		}
		grad.AddScaledVec(grad, 2*f.l2, f.params.Vector())
		if !params.IsFinite(grad) {
			return 0, fmt.Errorf("fit: step %v: %w", i, ErrNotFinite)
		}

		if err := f.solver.StepFlat(f.params, grad); err != nil {
			return 0, fmt.Errorf("fit: %v", err)
		}
	}

	return f.Loss(states, targets)
}
