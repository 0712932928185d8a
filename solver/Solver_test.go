package solver

import (
	"encoding/json"
	"testing"

	"github.com/samuelfneumann/gotrpo/params"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestVanillaStepFlat(t *testing.T) {
	s, err := NewVanilla(0.1, 1, -1)
	if err != nil {
		t.Fatal(err)
	}
	store := params.New("value", mat.NewVecDense(2, []float64{1, 2}))

	grad := mat.NewVecDense(2, []float64{1, -1})
	if err := s.StepFlat(store, grad); err != nil {
		t.Fatal(err)
	}

	want := []float64{0.9, 2.1}
	if !floats.EqualApprox(store.Vector().RawVector().Data, want, 1e-12) {
		t.Errorf("have parameters %v, want %v",
			store.Vector().RawVector().Data, want)
	}
	if grad.AtVec(0) != 1 {
		t.Error("gradient modified by the step")
	}

	if err := s.StepFlat(store, mat.NewVecDense(3, nil)); err == nil {
		t.Error("expected an error for a gradient of the wrong length")
	}
}

func TestAdamMinimizes(t *testing.T) {
	s, err := NewDefaultAdam(0.05, 1)
	if err != nil {
		t.Fatal(err)
	}
	target := []float64{3, -1, 0.5}
	store := params.Zeroes("value", 3)

	// Minimize ½‖θ - target‖²
	loss := func() float64 {
		diff := make([]float64, 3)
		floats.SubTo(diff, store.Vector().RawVector().Data, target)
		return 0.5 * floats.Dot(diff, diff)
	}
	initial := loss()
	for i := 0; i < 500; i++ {
		grad := mat.NewVecDense(3, nil)
		grad.SubVec(store.Vector(), mat.NewVecDense(3, target))
		if err := s.StepFlat(store, grad); err != nil {
			t.Fatal(err)
		}
	}

	if final := loss(); final > 1e-2*initial {
		t.Errorf("loss only decreased from %v to %v", initial, final)
	}
}

func TestJSON(t *testing.T) {
	for _, create := range []func() (*Solver, error){
		func() (*Solver, error) { return NewDefaultAdam(1e-3, 1) },
		func() (*Solver, error) { return NewVanilla(0.1, 4, 2) },
		func() (*Solver, error) { return NewDefaultRMSProp(1e-2, 1) },
	} {
		s, err := create()
		if err != nil {
			t.Fatal(err)
		}

		data, err := json.Marshal(s)
		if err != nil {
			t.Fatal(err)
		}
		var decoded Solver
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatal(err)
		}
		if decoded.Type != s.Type || decoded.Config != s.Config {
			t.Errorf("have %v %+v, want %v %+v", decoded.Type, decoded.Config,
				s.Type, s.Config)
		}
		if decoded.Solver == nil {
			t.Errorf("%v: decoded solver cannot step", s.Type)
		}
	}

	var s Solver
	if err := json.Unmarshal([]byte(`{"Type": "SGD", "Config": {}}`),
		&s); err == nil {
		t.Error("expected an error for an unknown solver type")
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]func() (*Solver, error){
		"zero step size":   func() (*Solver, error) { return New(Adam, 0, 1) },
		"zero batch":       func() (*Solver, error) { return NewVanilla(0.1, 0, -1) },
		"adam epsilon":     func() (*Solver, error) { return NewAdam(0.1, 0, 0.9, 0.999, 1) },
		"adam beta":        func() (*Solver, error) { return NewAdam(0.1, 1e-8, 1, 0.999, 1) },
		"rmsprop eta":      func() (*Solver, error) { return NewRMSProp(0.1, 1e-8, 0.1, 0.9, 1, -1) },
		"rmsprop rho":      func() (*Solver, error) { return NewRMSProp(0.1, 1e-8, 0.001, 1.5, 1, -1) },
		"unknown type":     func() (*Solver, error) { return New("SGD", 0.1, 1) },
		"negative vanilla": func() (*Solver, error) { return New(Vanilla, -1, 1) },
	}
	for name, create := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := create(); err == nil {
				t.Error("expected an error")
			}
		})
	}

	for _, typ := range []Type{Adam, RMSProp, Vanilla} {
		s, err := New(typ, 0.1, 1)
		if err != nil {
			t.Fatalf("%v: %v", typ, err)
		}
		if err := s.Validate(); err != nil {
			t.Errorf("%v: %v", typ, err)
		}
	}
	if (&Solver{}).Validate() == nil {
		t.Error("expected an error for an unconfigured solver")
	}

	var s Solver
	data := []byte(`{"Type": "Adam", "Config": {"StepSize": -1}}`)
	if err := json.Unmarshal(data, &s); err == nil {
		t.Error("expected an error for an invalid decoded configuration")
	}
}

func TestReset(t *testing.T) {
	s, err := NewDefaultAdam(0.1, 1)
	if err != nil {
		t.Fatal(err)
	}
	grad := mat.NewVecDense(2, []float64{1, -3})

	first := params.New("value", mat.NewVecDense(2, []float64{1, 2}))
	if err := s.StepFlat(first, grad); err != nil {
		t.Fatal(err)
	}
	afterOne := first.Snapshot()
	if err := s.StepFlat(first, grad); err != nil {
		t.Fatal(err)
	}

	s.Reset()
	second := params.New("value", mat.NewVecDense(2, []float64{1, 2}))
	if err := s.StepFlat(second, grad); err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(afterOne, second.Vector()) {
		t.Errorf("have %v after reset, want %v",
			second.Vector().RawVector().Data, afterOne.RawVector().Data)
	}
}
