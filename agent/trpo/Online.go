package trpo

import (
	"fmt"
	"os"

	"github.com/samuelfneumann/gotrpo/agent"
	"github.com/samuelfneumann/gotrpo/agent/valuefn"
	"github.com/samuelfneumann/gotrpo/environment"
	"github.com/samuelfneumann/gotrpo/initwfn"
	"github.com/samuelfneumann/gotrpo/metrics"
	"github.com/samuelfneumann/gotrpo/network"
	"github.com/samuelfneumann/gotrpo/policy"
	"github.com/samuelfneumann/gotrpo/solver"
	ts "github.com/samuelfneumann/gotrpo/timestep"
	"github.com/samuelfneumann/gotrpo/trajectory"
	"github.com/samuelfneumann/gotrpo/utils/matutils"
	"gonum.org/v1/gonum/mat"
)

// OnlineConfig implements a configuration of an online TRPO agent
type OnlineConfig struct {
	Policy            agent.PolicyType
	PolicyLayers      []int
	PolicyActivations []string
	InitLogStd        float64 // Gaussian policies only

	// Init is the weight initializer of both networks
	Init initwfn.Type

	ValueLayers      []int
	ValueActivations []string
	ValueSolver      solver.Type
	ValueStepSize    float64
	ValueIterations  int
	ValueL2          float64

	// EpochLength is the number of transitions collected per update
	EpochLength int

	TRPO Config
}

// DefaultOnlineConfig returns a default configuration of an online
// TRPO agent with a Gaussian policy
func DefaultOnlineConfig() OnlineConfig {
	return OnlineConfig{
		Policy:            agent.Gaussian,
		PolicyLayers:      []int{64, 64},
		PolicyActivations: []string{"tanh", "tanh"},
		InitLogStd:        0,
		Init:              initwfn.GlorotU,
		ValueLayers:       []int{64, 64},
		ValueActivations:  []string{"tanh", "tanh"},
		ValueSolver:       solver.Adam,
		ValueStepSize:     3e-4,
		ValueIterations:   10,
		ValueL2:           1e-3,
		EpochLength:       2048,
		TRPO:              DefaultConfig(),
	}
}

// Validate returns an error if the configuration is invalid
func (c OnlineConfig) Validate() error {
	if c.Policy != agent.Gaussian && c.Policy != agent.Categorical {
		return fmt.Errorf("validate: unknown policy type %v", c.Policy)
	}
	if len(c.PolicyLayers) != len(c.PolicyActivations) {
		return fmt.Errorf("validate: need one activation per policy layer")
	}
	if len(c.ValueLayers) != len(c.ValueActivations) {
		return fmt.Errorf("validate: need one activation per value layer")
	}
	if _, err := initwfn.New(c.Init, 1.0, 0); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if _, err := solver.New(c.ValueSolver, c.ValueStepSize, 1); err != nil {
		return fmt.Errorf("validate: value solver: %v", err)
	}
	if c.EpochLength <= 0 {
		return fmt.Errorf("validate: epoch length must be positive")
	}
	return c.TRPO.Validate()
}

// Build creates the policy, value function, and TRPO update that the
// configuration describes for states with the given number of
// features. For Gaussian policies, actions is the number of action
// dimensions; for Categorical policies it is the number of actions.
func (c OnlineConfig) Build(features, actions int, seed uint64) (*TRPO,
	error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}

	policyActs, err := activations(c.PolicyActivations)
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}
	policyNet, err := network.NewMLP(features, actions, c.PolicyLayers,
		policyActs)
	if err != nil {
		return nil, fmt.Errorf("build: could not create policy network: %v",
			err)
	}
	policyInit, err := initwfn.New(c.Init, 1.0, seed)
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}

	var p policy.Policy
	switch c.Policy {
	case agent.Gaussian:
		p, err = policy.NewGaussian(policyNet, policyInit.InitWFn(),
			c.InitLogStd, seed+2)
	case agent.Categorical:
		p, err = policy.NewCategorical(policyNet, policyInit.InitWFn(),
			seed+2)
	}
	if err != nil {
		return nil, fmt.Errorf("build: could not create policy: %v", err)
	}

	valueActs, err := activations(c.ValueActivations)
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}
	valueNet, err := network.NewMLP(features, 1, c.ValueLayers, valueActs)
	if err != nil {
		return nil, fmt.Errorf("build: could not create value network: %v",
			err)
	}
	valueInit, err := initwfn.New(c.Init, 1.0, seed+1)
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}
	valueSolver, err := solver.New(c.ValueSolver, c.ValueStepSize, 1)
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}
	value, err := valuefn.New(valueNet, valueInit.InitWFn(), valueSolver,
		c.ValueL2, c.ValueIterations)
	if err != nil {
		return nil, fmt.Errorf("build: could not create value function: %v",
			err)
	}

	return New(p, value, c.TRPO)
}

// CreateAgent creates an online TRPO agent on env
func (c OnlineConfig) CreateAgent(env environment.Environment,
	seed uint64) (agent.Agent, error) {
	features := env.ObservationSpec().Shape.Len()
	actions := env.ActionSpec().Shape.Len()
	if c.Policy == agent.Categorical {
		actions = int(env.ActionSpec().UpperBound.AtVec(0)) + 1
	}

	t, err := c.Build(features, actions, seed)
	if err != nil {
		return nil, fmt.Errorf("createAgent: %v", err)
	}
	o, err := NewOnline(t, c.EpochLength, nil)
	if err != nil {
		return nil, fmt.Errorf("createAgent: %v", err)
	}
	return o, nil
}

func activations(names []string) ([]*network.Activation, error) {
	acts := make([]*network.Activation, len(names))
	for i, name := range names {
		act, err := network.ActivationByName(name)
		if err != nil {
			return nil, err
		}
		acts[i] = act
	}
	return acts, nil
}

// Online implements an online TRPO agent. The agent collects a fixed
// number of transitions with its current policy, then performs a
// single TRPO update on them.
type Online struct {
	trpo     *TRPO
	recorder *trajectory.Recorder
	sink     metrics.Sink

	prevStep    ts.TimeStep
	lastLogProb float64
	lastStats   Stats
	eval        bool
}

// NewOnline returns a new online TRPO agent that updates t every
// epochLength transitions. If sink is not nil, the statistics of each
// update are recorded to it.
func NewOnline(t *TRPO, epochLength int, sink metrics.Sink) (*Online, error) {
	p := t.Policy()
	recorder, err := trajectory.NewRecorder(p.Features(), p.ActionDims(),
		epochLength)
	if err != nil {
		return nil, fmt.Errorf("newOnline: %v", err)
	}

	return &Online{trpo: t, recorder: recorder, sink: sink}, nil
}

// SelectAction selects an action at the timestep t. In training mode
// actions are sampled from the policy, and in evaluation mode the most
// probable action is selected.
func (o *Online) SelectAction(t ts.TimeStep) *mat.VecDense {
	obs := matutils.RowOf(t.Observation)

	p := o.trpo.Policy()
	if o.eval {
		action, err := p.Mode(obs)
		if err != nil {
			panic(fmt.Sprintf("selectAction: %v", err))
		}
		return mat.NewVecDense(p.ActionDims(), action.RawRowView(0))
	}

	action, logProb, err := p.SampleWithLogProb(obs)
	if err != nil {
		panic(fmt.Sprintf("selectAction: %v", err))
	}
	o.lastLogProb = logProb[0]
	return mat.NewVecDense(p.ActionDims(), action.RawRowView(0))
}

// ObserveFirst observes and records information about the first
// timestep in an episode.
func (o *Online) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		fmt.Fprintf(os.Stderr, "Warning: ObserveFirst() should only be "+
			"called on the first timestep (current timestep = %d)\n",
			t.Number)
	}
	o.prevStep = t
	return nil
}

// Observe observes and records any timestep other than the first
// timestep
func (o *Online) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	if o.eval {
		o.prevStep = nextStep
		return nil
	}

	obs := mat.Col(nil, 0, o.prevStep.Observation)
	act := mat.Col(nil, 0, action)
	err := o.recorder.Store(obs, act, nextStep.Reward, nextStep.Last(),
		o.lastLogProb)
	if err != nil {
		return fmt.Errorf("observe: %v", err)
	}

	o.prevStep = nextStep
	return nil
}

// Step performs a TRPO update once an epoch of transitions has been
// collected
func (o *Online) Step() error {
	if o.eval || !o.recorder.Full() {
		return nil
	}

	batch, err := o.recorder.Batch()
	if err != nil {
		return fmt.Errorf("step: %v", err)
	}
	stats, err := o.trpo.Update(batch)
	if err != nil {
		return fmt.Errorf("step: %w", err)
	}
	o.lastStats = stats

	if o.sink != nil {
		if err := o.sink.Record(stats.Iteration, stats.Map()); err != nil {
			return fmt.Errorf("step: %v", err)
		}
	}
	return nil
}

// LastStats returns the statistics of the most recent update
func (o *Online) LastStats() Stats {
	return o.lastStats
}

// EndEpisode performs cleanup at the end of an episode.
func (o *Online) EndEpisode() {}

// Eval sets the agent into evaluation mode
func (o *Online) Eval() { o.eval = true }

// Train sets the agent into training mode
func (o *Online) Train() { o.eval = false }

// IsEval returns whether the agent is in evaluation mode
func (o *Online) IsEval() bool { return o.eval }

// Close closes the policy and value function
func (o *Online) Close() error {
	if err := o.trpo.Policy().Close(); err != nil {
		return fmt.Errorf("close: %v", err)
	}
	return o.trpo.ValueFn().Close()
}
