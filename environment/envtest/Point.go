// Package envtest implements a small deterministic environment for
// testing agents and experiments.
package envtest

import (
	"fmt"

	"github.com/samuelfneumann/gotrpo/environment"
	ts "github.com/samuelfneumann/gotrpo/timestep"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// StepSize is the distance moved per unit action
const StepSize = 0.1

// Point is an environment in which the agent moves a point around R^d
// and is rewarded for staying close to the origin. Continuous actions
// in [-1, 1]^d move the point by StepSize * a. Discrete actions 0 and
// 1 move the first coordinate by -StepSize and StepSize.
type Point struct {
	discrete bool
	dims     int
	starter  environment.Starter
	ender    environment.Ender

	position []float64
	step     int
}

// NewPoint returns a new Point environment with dims dimensions whose
// episodes last episodeSteps steps. Starting positions are uniform in
// [-1, 1]^dims.
func NewPoint(dims, episodeSteps int, discrete bool, seed uint64) *Point {
	bounds := make([]r1.Interval, dims)
	for i := range bounds {
		bounds[i] = r1.Interval{Min: -1, Max: 1}
	}

	return &Point{
		discrete: discrete,
		dims:     dims,
		starter:  environment.NewUniformStarter(bounds, seed),
		ender:    environment.NewStepLimit(episodeSteps),
	}
}

// Reset starts a new episode
func (p *Point) Reset() (ts.TimeStep, error) {
	p.position = mat.Col(nil, 0, p.starter.Start())
	p.step = 0
	return ts.New(ts.First, 0, 1, p.observation(), 0), nil
}

// Step moves the point by action
func (p *Point) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	if p.position == nil {
		return ts.TimeStep{}, false, fmt.Errorf("step: environment not reset")
	}

	if p.discrete {
		switch action.AtVec(0) {
		case 0:
			p.position[0] -= StepSize
		case 1:
			p.position[0] += StepSize
		default:
			return ts.TimeStep{}, false, fmt.Errorf("step: illegal action %v",
				action.AtVec(0))
		}
	} else {
		if action.Len() != p.dims {
			return ts.TimeStep{}, false, fmt.Errorf("step: illegal action "+
				"length \n\twant(%v)\n\thave(%v)", p.dims, action.Len())
		}
		for i := range p.position {
			p.position[i] += StepSize * action.AtVec(i)
		}
	}
	p.step++

	reward := -floats.Dot(p.position, p.position)
	stepType := ts.Mid
	done := p.ender.End(p.step)
	if done {
		stepType = ts.Last
	}
	return ts.New(stepType, reward, 1, p.observation(), p.step), done, nil
}

// ObservationSpec returns the observation specification
func (p *Point) ObservationSpec() environment.Spec {
	shape := mat.NewVecDense(p.dims, nil)
	low := mat.NewVecDense(p.dims, nil)
	high := mat.NewVecDense(p.dims, nil)
	for i := 0; i < p.dims; i++ {
		low.SetVec(i, -1)
		high.SetVec(i, 1)
	}
	return environment.NewSpec(shape, environment.Observation, low, high,
		environment.Continuous)
}

// ActionSpec returns the action specification
func (p *Point) ActionSpec() environment.Spec {
	if p.discrete {
		one := mat.NewVecDense(1, nil)
		return environment.NewSpec(one, environment.Action, mat.NewVecDense(1,
			[]float64{0}), mat.NewVecDense(1, []float64{1}),
			environment.Discrete)
	}

	shape := mat.NewVecDense(p.dims, nil)
	low := mat.NewVecDense(p.dims, nil)
	high := mat.NewVecDense(p.dims, nil)
	for i := 0; i < p.dims; i++ {
		low.SetVec(i, -1)
		high.SetVec(i, 1)
	}
	return environment.NewSpec(shape, environment.Action, low, high,
		environment.Continuous)
}

func (p *Point) observation() *mat.VecDense {
	obs := make([]float64, p.dims)
	copy(obs, p.position)
	return mat.NewVecDense(p.dims, obs)
}
