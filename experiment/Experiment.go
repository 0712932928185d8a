// Package experiment implements functionality for running an experiment
package experiment

import (
	"fmt"

	"github.com/samuelfneumann/gotrpo/agent"
	"github.com/samuelfneumann/gotrpo/environment"
	"github.com/samuelfneumann/gotrpo/experiment/checkpointer"
	"github.com/samuelfneumann/gotrpo/experiment/tracker"
)

// Experiment outlines structs that can run experiments. Experiments
// send each environment TimeStep to their Trackers, which cache the
// data they track until Save() is called, usually after the experiment
// has been run. Run() runs all episodes until the maximum timestep
// limit is reached, while RunEpisode() runs a single episode.
type Experiment interface {
	Run() error

	// RunEpisode returns whether the step limit has been reached
	RunEpisode() (bool, error)

	// Save all tracked data to disk
	Save() error

	// Register adds a new tracker.Tracker to the (possibly already
	// running) experiment. Useful if you want to track data only after
	// a specified event.
	Register(t tracker.Tracker)
}

// Config represents a configuration of an online experiment
type Config struct {
	MaxSteps uint
	Agent    agent.Config
}

// CreateExp creates the experiment the configuration describes on env
func (c Config) CreateExp(env environment.Environment, seed uint64,
	t []tracker.Tracker, check []checkpointer.Checkpointer) (Experiment,
	error) {
	if err := c.Agent.Validate(); err != nil {
		return nil, fmt.Errorf("createExp: %v", err)
	}
	a, err := c.Agent.CreateAgent(env, seed)
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create agent: %v", err)
	}
	return NewOnline(env, a, c.MaxSteps, t, check), nil
}
