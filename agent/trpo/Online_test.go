package trpo

import (
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/gotrpo/agent"
	"github.com/samuelfneumann/gotrpo/environment/envtest"
	"github.com/samuelfneumann/gotrpo/metrics"
)

// runSteps runs a for n steps on env
func runSteps(t *testing.T, env *envtest.Point, a agent.Agent, n int) {
	step, err := env.Reset()
	if err != nil {
		t.Fatal(err)
	}
	if err := a.ObserveFirst(step); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < n; i++ {
		action := a.SelectAction(step)
		step, _, err = env.Step(action)
		if err != nil {
			t.Fatal(err)
		}
		if err := a.Observe(action, step); err != nil {
			t.Fatal(err)
		}
		if err := a.Step(); err != nil {
			t.Fatal(err)
		}

		if step.Last() {
			a.EndEpisode()
			step, err = env.Reset()
			if err != nil {
				t.Fatal(err)
			}
			if err := a.ObserveFirst(step); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestOnline(t *testing.T) {
	for _, discrete := range []bool{false, true} {
		pt := agent.Gaussian
		if discrete {
			pt = agent.Categorical
		}

		t.Run(string(pt), func(t *testing.T) {
			env := envtest.NewPoint(3, 10, discrete, 1)
			c := testConfig(pt)

			a, err := c.CreateAgent(env, 2)
			if err != nil {
				t.Fatal(err)
			}
			o := a.(*Online)
			defer o.Close()

			runSteps(t, env, o, 2*c.EpochLength+5)
			if o.trpo.Iteration() != 2 {
				t.Errorf("have %v updates, want 2", o.trpo.Iteration())
			}
			if o.LastStats().CGIterations == 0 {
				t.Error("last update did not run conjugate gradient")
			}

			// No updates happen in evaluation mode
			before := o.trpo.Policy().Params().Snapshot()
			o.Eval()
			runSteps(t, env, o, 2*c.EpochLength)
			if o.trpo.Iteration() != 2 {
				t.Errorf("updated in evaluation mode")
			}
			if !o.IsEval() {
				t.Error("agent should be in evaluation mode")
			}
			o.Train()
			if o.IsEval() {
				t.Error("agent should be in training mode")
			}
			if before.Len() != o.trpo.Policy().Params().Len() {
				t.Error("policy changed size")
			}
		})
	}
}

func TestOnlineSink(t *testing.T) {
	env := envtest.NewPoint(3, 10, false, 3)
	c := testConfig(agent.Gaussian)
	tr, err := c.Build(3, 3, 4)
	if err != nil {
		t.Fatal(err)
	}

	filename := filepath.Join(t.TempDir(), "stats.bin")
	sink := metrics.NewGob(filename)
	o, err := NewOnline(tr, c.EpochLength, sink)
	if err != nil {
		t.Fatal(err)
	}
	defer o.Close()

	runSteps(t, env, o, c.EpochLength)
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	records, err := metrics.LoadGob(filename)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("have %v records, want 1", len(records))
	}
	if _, ok := records[0].Stats["kl"]; !ok {
		t.Errorf("record is missing the KL: %v", records[0].Stats)
	}
}
