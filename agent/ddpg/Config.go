package ddpg

import (
	"fmt"

	"github.com/samuelfneumann/gotrpo/agent"
	"github.com/samuelfneumann/gotrpo/environment"
	"github.com/samuelfneumann/gotrpo/expreplay"
	"github.com/samuelfneumann/gotrpo/initwfn"
	"github.com/samuelfneumann/gotrpo/network"
	"github.com/samuelfneumann/gotrpo/solver"
	"gonum.org/v1/gonum/mat"
)

// Config implements a configuration of an online DDPG agent
type Config struct {
	ActorLayers       []int    // Layer sizes in the actor network
	ActorActivations  []string // Activation of each actor layer
	CriticLayers      []int    // Layer sizes in the critic network
	CriticActivations []string // Activation of each critic layer

	Init   initwfn.Type // Weight initializer of both networks
	Solver solver.Type  // Solver of both networks

	ActorStepSize  float64
	CriticStepSize float64

	Gamma  float64 // Discount factor
	Polyak float64 // Target network averaging constant

	// ActionNoise is the standard deviation of the exploration noise
	// as a fraction of each action dimension's half range
	ActionNoise float64

	// ExploreSteps is the number of initial steps on which actions are
	// sampled uniformly randomly
	ExploreSteps int

	// MinUpdateSteps is the number of steps taken before updates start
	MinUpdateSteps int

	// UpdateEvery is the number of steps between updates and the
	// number of gradient steps taken per update
	UpdateEvery int

	ExpReplay expreplay.Config
}

// DefaultConfig returns the default DDPG configuration
func DefaultConfig() Config {
	return Config{
		ActorLayers:       []int{400, 300},
		ActorActivations:  []string{"relu", "relu"},
		CriticLayers:      []int{400, 300},
		CriticActivations: []string{"relu", "relu"},
		Init:              initwfn.GlorotU,
		Solver:            solver.Adam,
		ActorStepSize:     1e-3,
		CriticStepSize:    1e-3,
		Gamma:             0.99,
		Polyak:            0.995,
		ActionNoise:       0.1,
		ExploreSteps:      10000,
		MinUpdateSteps:    1000,
		UpdateEvery:       50,
		ExpReplay: expreplay.Config{
			SampleSize:        100,
			MaxReplayCapacity: 1000000,
			MinReplayCapacity: 100,
		},
	}
}

// BatchSize returns the batch size of the agent constructed using this
// Config
func (c Config) BatchSize() int {
	return c.ExpReplay.SampleSize
}

// Validate checks a Config to ensure it is a valid configuration of a
// DDPG agent.
func (c Config) Validate() error {
	if len(c.ActorLayers) != len(c.ActorActivations) {
		return fmt.Errorf("validate: invalid number of actor activations"+
			"\n\twant(%v)\n\thave(%v)", len(c.ActorLayers),
			len(c.ActorActivations))
	}
	if len(c.CriticLayers) != len(c.CriticActivations) {
		return fmt.Errorf("validate: invalid number of critic activations"+
			"\n\twant(%v)\n\thave(%v)", len(c.CriticLayers),
			len(c.CriticActivations))
	}
	if c.ActorStepSize <= 0 || c.CriticStepSize <= 0 {
		return fmt.Errorf("validate: step sizes must be positive")
	}
	if _, err := initwfn.New(c.Init, 1.0, 0); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if _, err := solver.New(c.Solver, c.ActorStepSize, 1); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: gamma must be in [0, 1]")
	}
	if c.Polyak < 0 || c.Polyak > 1 {
		return fmt.Errorf("validate: polyak must be in [0, 1]")
	}
	if c.ActionNoise < 0 {
		return fmt.Errorf("validate: action noise must be non-negative")
	}
	if c.ExploreSteps < 0 || c.MinUpdateSteps < 0 {
		return fmt.Errorf("validate: step counts must be non-negative")
	}
	if c.UpdateEvery < 1 {
		return fmt.Errorf("validate: updates must happen at positive "+
			"timestep intervals \n\twant(>0) \n\thave(%v)", c.UpdateEvery)
	}
	if c.BatchSize() < 1 {
		return fmt.Errorf("validate: batch size must be positive")
	}
	return nil
}

// Build creates the DDPG update the configuration describes for states
// with features features and actions bounded in [low, high].
func (c Config) Build(features int, low, high []float64,
	seed uint64) (*DDPG, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}

	actorActs, err := activations(c.ActorActivations)
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}
	actor, err := network.NewMLP(features, len(low), c.ActorLayers, actorActs)
	if err != nil {
		return nil, fmt.Errorf("build: could not create actor: %v", err)
	}

	criticActs, err := activations(c.CriticActivations)
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}
	critic, err := network.NewMLP(features+len(low), 1, c.CriticLayers,
		criticActs)
	if err != nil {
		return nil, fmt.Errorf("build: could not create critic: %v", err)
	}

	init, err := initwfn.New(c.Init, 1.0, seed)
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}
	actorSolver, err := solver.New(c.Solver, c.ActorStepSize, 1)
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}
	criticSolver, err := solver.New(c.Solver, c.CriticStepSize, 1)
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}

	return New(actor, critic, init.InitWFn(), actorSolver, criticSolver, low,
		high, c.Gamma, c.Polyak)
}

// CreateAgent creates a new online DDPG agent on env
func (c Config) CreateAgent(env environment.Environment,
	seed uint64) (agent.Agent, error) {
	spec := env.ActionSpec()
	if spec.Cardinality != environment.Continuous {
		return nil, fmt.Errorf("createAgent: cannot use non-continuous " +
			"actions")
	}

	features := env.ObservationSpec().Shape.Len()
	low := mat.Col(nil, 0, spec.LowerBound)
	high := mat.Col(nil, 0, spec.UpperBound)

	d, err := c.Build(features, low, high, seed)
	if err != nil {
		return nil, fmt.Errorf("createAgent: %v", err)
	}
	replay, err := c.ExpReplay.Create(features, len(low), seed+1)
	if err != nil {
		return nil, fmt.Errorf("createAgent: could not create experience "+
			"replay buffer: %v", err)
	}
	o, err := NewOnline(d, replay, c, low, high, seed+2, nil)
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
