// Package trpo implements Trust Region Policy Optimization following
// https://arxiv.org/abs/1502.05477. Each update computes a natural
// gradient direction by solving F·x = g with conjugate gradient over
// Fisher-vector products, then searches along that direction for a
// step that improves the surrogate objective while keeping the mean KL
// divergence from the previous policy within a trust region.
package trpo

import (
	"errors"
	"fmt"
	"math"

	"github.com/samuelfneumann/gotrpo/agent/valuefn"
	"github.com/samuelfneumann/gotrpo/buffer/gae"
	"github.com/samuelfneumann/gotrpo/params"
	"github.com/samuelfneumann/gotrpo/policy"
	"github.com/samuelfneumann/gotrpo/trajectory"
	"github.com/samuelfneumann/gotrpo/utils/floatutils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Outcome is the result of a single TRPO update
type Outcome int

const (
	// Accepted means a line search step was taken
	Accepted Outcome = iota

	// LineSearchExhausted means no step size both improved the
	// surrogate objective and satisfied the KL constraint
	LineSearchExhausted

	// DegenerateDirection means conjugate gradient produced a
	// direction with no positive curvature to scale a step by
	DegenerateDirection
)

// Accepted returns whether the policy parameters were updated
func (o Outcome) Accepted() bool {
	return o == Accepted
}

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "Accepted"
	case LineSearchExhausted:
		return "LineSearchExhausted"
	case DegenerateDirection:
		return "DegenerateDirection"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Stats holds the statistics of a single TRPO update
type Stats struct {
	Iteration int
	Outcome   Outcome

	Surrogate           float64 // Surrogate objective after the update
	Improvement         float64 // Surrogate improvement, 0 if rejected
	ExpectedImprovement float64 // First order improvement of a full step
	KL                  float64 // Mean KL to the old policy, 0 if rejected
	ValueLoss           float64
	Entropy             float64 // Mean policy entropy after the update

	CGIterations    int
	CGResidual      float64
	LineSearchSteps int
	StepFraction    float64 // Fraction of the full step taken, 0 if rejected
}

// Map returns the Stats as named scalars
func (s Stats) Map() map[string]float64 {
	accepted := 0.0
	if s.Outcome.Accepted() {
		accepted = 1.0
	}

	return map[string]float64{
		"accepted":             accepted,
		"outcome":              float64(s.Outcome),
		"surrogate":            s.Surrogate,
		"improvement":          s.Improvement,
		"expected_improvement": s.ExpectedImprovement,
		"kl":                   s.KL,
		"value_loss":           s.ValueLoss,
		"entropy":              s.Entropy,
		"cg_iterations":        float64(s.CGIterations),
		"cg_residual":          s.CGResidual,
		"line_search_steps":    float64(s.LineSearchSteps),
		"step_fraction":        s.StepFraction,
	}
}

// TRPO performs TRPO updates of a policy from batches of experience,
// fitting a value function used for advantage estimation along the
// way. TRPO is the only mutator of the policy's and value function's
// parameters.
type TRPO struct {
	policy policy.Policy
	value  *valuefn.Fitter
	config Config

	iteration int
}

// New returns a new TRPO
func New(p policy.Policy, v *valuefn.Fitter, c Config) (*TRPO, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	return &TRPO{policy: p, value: v, config: c}, nil
}

// Policy returns the policy being updated
func (t *TRPO) Policy() policy.Policy {
	return t.policy
}

// ValueFn returns the value function being fit
func (t *TRPO) ValueFn() *valuefn.Fitter {
	return t.value
}

// Iteration returns the number of updates performed
func (t *TRPO) Iteration() int {
	return t.iteration
}

// Update performs a single TRPO iteration on a batch of experience
// generated by the current policy. A rejected update is not an error:
// it is reported through the returned Stats and leaves the policy
// parameters exactly as they were. Errors abort the update and leave
// both the policy and value parameters exactly as they were.
func (t *TRPO) Update(b *trajectory.Batch) (Stats, error) {
	if err := b.Validate(); err != nil {
		return Stats{}, fmt.Errorf("update: %v", err)
	}
	stats := Stats{Iteration: t.iteration}

	// Advantage estimation
	values, err := t.value.Predict(b.States)
	if err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}
	if !floatutils.AllFinite(values) {
		return stats, instability("update", "value predictions are not "+
			"finite")
	}
	advantages, returns, err := gae.Estimate(b.Rewards, b.Masks, values,
		t.config.Gamma, t.config.Tau)
	if err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}
	if !floatutils.AllFinite(advantages) || !floatutils.AllFinite(returns) {
		return stats, instability("update", "advantages or returns are "+
			"not finite")
	}
	if t.config.NormalizeAdvantages {
		advantages = gae.Normalize(advantages)
		if !floatutils.AllFinite(advantages) {
			return stats, instability("update", "normalized advantages "+
				"are not finite")
		}
	}

	// From here on, any error restores θ and φ so that an aborted
	// update leaves both as they were
	theta := t.policy.Params().Snapshot()
	phi := t.value.Params().Snapshot()
	stats, err = t.update(b, advantages, returns, stats)
	if err != nil {
		if restoreErr := t.policy.Params().Set(theta); restoreErr != nil {
			return stats, fmt.Errorf("%v (restoring policy parameters: %v)",
				err, restoreErr)
		}
		if restoreErr := t.value.Restore(phi); restoreErr != nil {
			return stats, fmt.Errorf("%v (restoring value parameters: %v)",
				err, restoreErr)
		}
	}
	return stats, err
}

// update fits the value function to returns and takes a trust region
// step on the policy
func (t *TRPO) update(b *trajectory.Batch, advantages, returns []float64,
	stats Stats) (Stats, error) {
	var err error
	stats.ValueLoss, err = t.value.Fit(b.States, returns)
	if errors.Is(err, valuefn.ErrNotFinite) {
		return stats, instability("update", "%v", err)
	} else if err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}
	if !floatutils.IsFinite(stats.ValueLoss) {
		return stats, instability("update", "value loss is not finite")
	}

	// Policy gradient and natural gradient direction
	obj, err := newSurrogate(t.policy, b, advantages)
	if err != nil {
		return stats, fmt.Errorf("update: %w", err)
	}
	baseline, err := obj.Surrogate()
	if err != nil {
		return stats, fmt.Errorf("update: %w", err)
	}
	grad, err := obj.Gradient()
	if err != nil {
		return stats, fmt.Errorf("update: %w", err)
	}

	fvp, err := NewFisherVectorProduct(t.policy, b.States, t.config.Damping)
	if err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}
	direction, info, err := ConjugateGradient(fvp.Apply, grad,
		t.config.CGIterations, t.config.CGTolerance)
	stats.CGIterations = info.Iterations
	stats.CGResidual = info.Residual
	if err != nil {
		return stats, fmt.Errorf("update: %w", err)
	}

	// Scale the direction so a full step has KL ≈ MaxKL under the
	// quadratic approximation: ½ sᵀFs = MaxKL
	fDirection, err := fvp.Apply(direction)
	if err != nil {
		return stats, fmt.Errorf("update: %w", err)
	}
	curvature := mat.Dot(direction, fDirection)

	stats.Surrogate = baseline
	if curvature <= 0 {
		stats.Outcome = DegenerateDirection
		return t.finish(b, stats)
	}
	fullStep := mat.NewVecDense(direction.Len(), nil)
	fullStep.ScaleVec(math.Sqrt(2*t.config.MaxKL/curvature), direction)
	stats.ExpectedImprovement = mat.Dot(grad, fullStep)

	// Trust region line search
	result, err := LineSearch(t.policy.Params(), fullStep, obj, baseline,
		t.config.lineSearch())
	stats.LineSearchSteps = result.Steps
	if err != nil {
		return stats, fmt.Errorf("update: %w", err)
	}

	if result.Accepted {
		stats.Outcome = Accepted
		stats.StepFraction = result.StepFraction
		stats.Surrogate = result.Surrogate
		stats.Improvement = result.Improvement
		stats.KL = result.KL
	} else {
		stats.Outcome = LineSearchExhausted
	}
	return t.finish(b, stats)
}

// finish records the policy entropy and ends the iteration
func (t *TRPO) finish(b *trajectory.Batch, stats Stats) (Stats, error) {
	entropy, err := t.policy.Entropy(b.States)
	if err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}
	stats.Entropy = stat.Mean(entropy, nil)

	t.iteration++
	return stats, nil
}

// surrogate implements the importance sampled surrogate objective
//
//	L(θ) = mean(exp(log π_θ(a|s) - log π_old(a|s)) * A)
//
// along with the mean KL divergence from the policy that was current
// when the surrogate was created.
type surrogate struct {
	policy     policy.Policy
	batch      *trajectory.Batch
	advantages []float64
	old        *policy.Snapshot
}

func newSurrogate(p policy.Policy, b *trajectory.Batch,
	advantages []float64) (*surrogate, error) {
	old, err := p.Snapshot(b.States)
	if err != nil {
		return nil, fmt.Errorf("newSurrogate: %v", err)
	}
	return &surrogate{policy: p, batch: b, advantages: advantages, old: old}, nil
}

// ratios returns the importance sampling ratios at the current policy
// parameters
func (s *surrogate) ratios() ([]float64, error) {
	logProbs, err := s.policy.LogProb(s.batch.States, s.batch.Actions)
	if err != nil {
		return nil, err
	}

	ratios := make([]float64, len(logProbs))
	for i, lp := range logProbs {
		ratios[i] = math.Exp(lp - s.batch.OldLogProbs[i])
	}
	if !floatutils.AllFinite(ratios) {
		return nil, instability("surrogate", "importance sampling ratios "+
			"are not finite")
	}
	return ratios, nil
}

// Surrogate returns the surrogate objective at the current parameters
func (s *surrogate) Surrogate() (float64, error) {
	ratios, err := s.ratios()
	if err != nil {
		return 0, err
	}
	return floats.Dot(ratios, s.advantages) / float64(len(ratios)), nil
}

// Gradient returns the gradient of the surrogate objective with
// respect to the policy parameters at the current parameters
func (s *surrogate) Gradient() (*mat.VecDense, error) {
	ratios, err := s.ratios()
	if err != nil {
		return nil, err
	}

	n := float64(len(ratios))
	weights := make([]float64, len(ratios))
	for i := range weights {
		weights[i] = ratios[i] * s.advantages[i] / n
	}

	grad, err := s.policy.LogProbGrad(s.batch.States, s.batch.Actions,
		weights)
	if err != nil {
		return nil, err
	}
	if !params.IsFinite(grad) {
		return nil, instability("surrogate", "policy gradient is not finite")
	}
	return grad, nil
}

// KL returns the mean KL divergence from the policy at creation to the
// policy at the current parameters
func (s *surrogate) KL() (float64, error) {
	kl, err := s.policy.KL(s.batch.States, s.old)
	if err != nil {
		return 0, err
	}
	return stat.Mean(kl, nil), nil
}
