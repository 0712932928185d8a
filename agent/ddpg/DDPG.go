// Package ddpg implements the Deep Deterministic Policy Gradient
// algorithm (https://arxiv.org/abs/1509.02971) with Polyak averaged
// target networks.
package ddpg

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gotrpo/expreplay"
	"github.com/samuelfneumann/gotrpo/network"
	"github.com/samuelfneumann/gotrpo/params"
	"github.com/samuelfneumann/gotrpo/solver"
	"github.com/samuelfneumann/gotrpo/utils/matutils"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	G "gorgonia.org/gorgonia"
)

// Stats holds the losses of a single DDPG update
type Stats struct {
	CriticLoss float64
	ActorLoss  float64
}

// Map returns the Stats as named scalars
func (s Stats) Map() map[string]float64 {
	return map[string]float64{
		"critic_loss": s.CriticLoss,
		"actor_loss":  s.ActorLoss,
	}
}

// DDPG implements the DDPG update. The actor μ(s) is a network squashed
// into the action bounds with tanh, and the critic Q(s, a) is a network
// with a single output whose input is the state and action
// concatenated.
type DDPG struct {
	actor  network.NeuralNet
	critic network.NeuralNet

	actorParams  *params.Store
	criticParams *params.Store
	actorTarget  *params.Store
	criticTarget *params.Store

	actorSolver  *solver.Solver
	criticSolver *solver.Solver

	// Actions are mid + half * tanh(actor(s))
	mid  []float64
	half []float64

	gamma  float64
	polyak float64

	updates int
}

// New returns a new DDPG. Weights of both networks are initialized
// with init, and target parameters start as copies of them. Actions
// are bounded in [low, high] along each dimension.
func New(actor, critic network.NeuralNet, init G.InitWFn, actorSolver,
	criticSolver *solver.Solver, low, high []float64, gamma,
	polyak float64) (*DDPG, error) {
	if critic.Outputs() != 1 {
		return nil, fmt.Errorf("new: critic must have a single output, "+
			"have %v", critic.Outputs())
	}
	if len(low) != actor.Outputs() || len(high) != actor.Outputs() {
		return nil, fmt.Errorf("new: action bounds must have length %v",
			actor.Outputs())
	}
	if critic.Features() != actor.Features()+actor.Outputs() {
		return nil, fmt.Errorf("new: critic must have %v features, have %v",
			actor.Features()+actor.Outputs(), critic.Features())
	}
	if gamma < 0 || gamma > 1 {
		return nil, fmt.Errorf("new: gamma must be in [0, 1]")
	}
	if polyak < 0 || polyak > 1 {
		return nil, fmt.Errorf("new: polyak must be in [0, 1]")
	}

	mid := make([]float64, len(low))
	half := make([]float64, len(low))
	for i := range low {
		if high[i] < low[i] {
			return nil, fmt.Errorf("new: action dimension %v has upper "+
				"bound %v below lower bound %v", i, high[i], low[i])
		}
		mid[i] = (high[i] + low[i]) / 2
		half[i] = (high[i] - low[i]) / 2
	}

	actorParams := params.New("actor", actor.InitParams(init))
	criticParams := params.New("critic", critic.InitParams(init))

	return &DDPG{
		actor:        actor,
		critic:       critic,
		actorParams:  actorParams,
		criticParams: criticParams,
		actorTarget:  params.New("actor_target", actorParams.Vector()),
		criticTarget: params.New("critic_target", criticParams.Vector()),
		actorSolver:  actorSolver,
		criticSolver: criticSolver,
		mid:          mid,
		half:         half,
		gamma:        gamma,
		polyak:       polyak,
	}, nil
}

// Params returns the actor, critic, and target parameter Stores
func (d *DDPG) Params() []*params.Store {
	return []*params.Store{d.actorParams, d.criticParams, d.actorTarget,
		d.criticTarget}
}

// Updates returns the number of updates performed
func (d *DDPG) Updates() int {
	return d.updates
}

// Close closes the actor and critic networks
func (d *DDPG) Close() error {
	if err := d.actor.Close(); err != nil {
		return fmt.Errorf("close: %v", err)
	}
	return d.critic.Close()
}

// Act returns the deterministic action μ(s) of the current actor in
// each state
func (d *DDPG) Act(states mat.Matrix) (*mat.Dense, error) {
	actions, _, err := d.act(d.actorParams, states)
	return actions, err
}

// Value returns Q(s, a) of the current critic for each state-action
// pair
func (d *DDPG) Value(states, actions mat.Matrix) ([]float64, error) {
	values, _, err := d.value(d.criticParams, states, actions)
	return values, err
}

// act returns the actions of the actor at p along with tanh of the
// actor network's outputs
func (d *DDPG) act(p *params.Store, states mat.Matrix) (*mat.Dense,
	*mat.Dense, error) {
	out, err := d.actor.Forward(p.Vector(), states)
	if err != nil {
		return nil, nil, fmt.Errorf("act: %v", err)
	}

	r, c := out.Dims()
	squashed := mat.NewDense(r, c, nil)
	actions := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			t := math.Tanh(out.At(i, j))
			squashed.Set(i, j, t)
			actions.Set(i, j, d.mid[j]+d.half[j]*t)
		}
	}
	return actions, squashed, nil
}

// value returns the critic's predictions at p along with the critic's
// inputs
func (d *DDPG) value(p *params.Store, states,
	actions mat.Matrix) ([]float64, *mat.Dense, error) {
	inputs := matutils.HStack(states, actions)
	out, err := d.critic.Forward(p.Vector(), inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("value: %v", err)
	}
	values := make([]float64, len(out.RawMatrix().Data))
	copy(values, out.RawMatrix().Data)
	return values, inputs, nil
}

// Update performs a single DDPG update on a batch of transitions. The
// critic takes a step on mean((Q(s, a) - y)²) with targets
//
//	y = r + γ * d * Q'(s', μ'(s'))
//
// where d is the transition's discount (0 at episode ends) and primes
// denote target networks. The actor then takes a step on
// -mean(Q(s, μ(s))), after which both targets are Polyak averaged
// toward the current parameters.
func (d *DDPG) Update(b *expreplay.Batch) (Stats, error) {
	n, _ := b.States.Dims()
	var stats Stats

	// Critic targets
	nextActions, _, err := d.act(d.actorTarget, b.NextStates)
	if err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}
	nextValues, _, err := d.value(d.criticTarget, b.NextStates, nextActions)
	if err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}
	targets := make([]float64, n)
	for i := range targets {
		targets[i] = b.Rewards[i] + d.gamma*b.Discounts[i]*nextValues[i]
	}

	// Critic step
	values, inputs, err := d.value(d.criticParams, b.States, b.Actions)
	if err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}
	upstream := mat.NewDense(n, 1, nil)
	for i := range values {
		diff := values[i] - targets[i]
		stats.CriticLoss += diff * diff / float64(n)
		upstream.Set(i, 0, 2*diff/float64(n))
	}
	criticGrad, _, err := d.critic.Backward(d.criticParams.Vector(), inputs,
		upstream)
	if err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}
	if !params.IsFinite(criticGrad) {
		return stats, fmt.Errorf("update: critic gradient is not finite")
	}
	if err := d.criticSolver.StepFlat(d.criticParams, criticGrad); err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}

	// Actor step through the critic's gradient with respect to actions
	actions, squashed, err := d.act(d.actorParams, b.States)
	if err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}
	values, inputs, err = d.value(d.criticParams, b.States, actions)
	if err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}
	stats.ActorLoss = -stat.Mean(values, nil)

	for i := 0; i < n; i++ {
		upstream.Set(i, 0, -1/float64(n))
	}
	_, inputGrad, err := d.critic.Backward(d.criticParams.Vector(), inputs,
		upstream)
	if err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}

	features := d.actor.Features()
	_, actionDims := squashed.Dims()
	actorUpstream := mat.NewDense(n, actionDims, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < actionDims; j++ {
			t := squashed.At(i, j)
			grad := inputGrad.At(i, features+j) * d.half[j] * (1 - t*t)
			actorUpstream.Set(i, j, grad)
		}
	}
	actorGrad, _, err := d.actor.Backward(d.actorParams.Vector(), b.States,
		actorUpstream)
	if err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}
	if !params.IsFinite(actorGrad) {
		return stats, fmt.Errorf("update: actor gradient is not finite")
	}
	if err := d.actorSolver.StepFlat(d.actorParams, actorGrad); err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}

	// Target networks
	if err := d.actorTarget.Polyak(d.actorParams, d.polyak); err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}
	if err := d.criticTarget.Polyak(d.criticParams, d.polyak); err != nil {
		return stats, fmt.Errorf("update: %v", err)
	}

	d.updates++
	return stats, nil
}
