package ddpg

import (
	"fmt"
	"os"

	"github.com/samuelfneumann/gotrpo/expreplay"
	"github.com/samuelfneumann/gotrpo/metrics"
	ts "github.com/samuelfneumann/gotrpo/timestep"
	"github.com/samuelfneumann/gotrpo/utils/floatutils"
	"github.com/samuelfneumann/gotrpo/utils/matutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Online implements an online DDPG agent. The agent acts uniformly
// randomly for a number of exploration steps, then acts with the actor
// plus Gaussian noise. Once enough transitions have been stored, it
// performs a batch of updates at regular timestep intervals.
type Online struct {
	ddpg   *DDPG
	replay expreplay.ExperienceReplayer
	sink   metrics.Sink

	low, high []float64
	uniform   []distuv.Uniform
	noise     []distuv.Normal

	exploreSteps   int
	minUpdateSteps int
	updateEvery    int

	steps     int
	prevStep  ts.TimeStep
	lastStats Stats
	eval      bool
}

// NewOnline returns a new online DDPG agent updating d with samples
// from replay. If sink is not nil, the statistics of each update are
// recorded to it.
func NewOnline(d *DDPG, replay expreplay.ExperienceReplayer, c Config, low,
	high []float64, seed uint64, sink metrics.Sink) (*Online, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newOnline: %v", err)
	}
	if len(low) != len(high) {
		return nil, fmt.Errorf("newOnline: action bounds have different " +
			"lengths")
	}

	src := rand.NewSource(seed)
	uniform := make([]distuv.Uniform, len(low))
	noise := make([]distuv.Normal, len(low))
	for i := range low {
		uniform[i] = distuv.Uniform{Min: low[i], Max: high[i], Src: src}
		noise[i] = distuv.Normal{
			Mu:    0,
			Sigma: c.ActionNoise * (high[i] - low[i]) / 2,
			Src:   src,
		}
	}

	return &Online{
		ddpg:           d,
		replay:         replay,
		sink:           sink,
		low:            low,
		high:           high,
		uniform:        uniform,
		noise:          noise,
		exploreSteps:   c.ExploreSteps,
		minUpdateSteps: c.MinUpdateSteps,
		updateEvery:    c.UpdateEvery,
	}, nil
}

// DDPG returns the DDPG update used by the agent
func (o *Online) DDPG() *DDPG {
	return o.ddpg
}

// SelectAction selects an action at timestep t
func (o *Online) SelectAction(t ts.TimeStep) *mat.VecDense {
	action := mat.NewVecDense(len(o.low), nil)
	if !o.eval && o.steps < o.exploreSteps {
		for i := range o.uniform {
			action.SetVec(i, o.uniform[i].Rand())
		}
		return action
	}

	obs := matutils.RowOf(t.Observation)
	mu, err := o.ddpg.Act(obs)
	if err != nil {
		panic(fmt.Sprintf("selectAction: %v", err))
	}

	for i := range o.noise {
		a := mu.At(0, i)
		if !o.eval {
			a = floatutils.Clip(a+o.noise[i].Rand(), o.low[i], o.high[i])
		}
		action.SetVec(i, a)
	}
	return action
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

	a := mat.NewVecDense(action.Len(), nil)
	a.CopyVec(action)
	transition := ts.NewTransition(o.prevStep, a, nextStep, nil)
	if err := o.replay.Add(transition); err != nil {
		return fmt.Errorf("observe: %v", err)
	}

	o.steps++
	o.prevStep = nextStep
	return nil
}

// Step performs UpdateEvery updates every UpdateEvery timesteps once
// enough transitions have been stored
func (o *Online) Step() error {
	if o.eval || o.steps < o.minUpdateSteps || o.steps%o.updateEvery != 0 {
		return nil
	}

	for i := 0; i < o.updateEvery; i++ {
		batch, err := o.replay.Sample()
		if expreplay.IsEmptyBuffer(err) ||
			expreplay.IsInsufficientSamples(err) {
			return nil
		} else if err != nil {
			return fmt.Errorf("step: %v", err)
		}

		stats, err := o.ddpg.Update(batch)
		if err != nil {
			return fmt.Errorf("step: %v", err)
		}
		o.lastStats = stats

		if o.sink != nil {
			if err := o.sink.Record(o.ddpg.Updates(), stats.Map()); err != nil {
				return fmt.Errorf("step: %v", err)
			}
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

// Close closes the actor and critic networks
func (o *Online) Close() error {
	return o.ddpg.Close()
}
