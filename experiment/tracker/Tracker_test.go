package tracker

import (
	"path/filepath"
	"testing"

	ts "github.com/samuelfneumann/gotrpo/timestep"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// episode returns the timesteps of an episode with the given rewards
func episode(rewards ...float64) []ts.TimeStep {
	obs := mat.NewVecDense(1, nil)
	steps := []ts.TimeStep{ts.New(ts.First, 0, 1, obs, 0)}
	for i, r := range rewards {
		stepType := ts.Mid
		if i == len(rewards)-1 {
			stepType = ts.Last
		}
		steps = append(steps, ts.New(stepType, r, 1, obs, i+1))
	}
	return steps
}

func TestReturn(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "returns.bin")
	r := NewReturn(filename)

	for _, ep := range [][]float64{{1, 2, 3}, {-1}, {0.5, 0.5}} {
		for _, step := range episode(ep...) {
			r.Track(step)
		}
	}
	want := []float64{6, -1, 1}
	if !floats.Equal(r.Returns(), want) {
		t.Errorf("have returns %v, want %v", r.Returns(), want)
	}

	if err := r.Save(); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadData(filename)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(loaded, want) {
		t.Errorf("have saved returns %v, want %v", loaded, want)
	}
}

func TestReturnNonSequential(t *testing.T) {
	r := NewReturn("")
	steps := episode(1, 2, 3)
	r.Track(steps[0])

	defer func() {
		if recover() == nil {
			t.Error("expected a panic for non-sequential timesteps")
		}
	}()
	r.Track(steps[2])
}

func TestEpisodeLength(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "lengths.bin")
	e := NewEpisodeLength(filename)

	for _, ep := range [][]float64{{1, 2, 3}, {-1}} {
		for _, step := range episode(ep...) {
			e.Track(step)
		}
	}
	if err := e.Save(); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadData(filename)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{3, 1}; !floats.Equal(loaded, want) {
		t.Errorf("have episode lengths %v, want %v", loaded, want)
	}
}
