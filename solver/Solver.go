// Package solver implements functionality to wrap Gorgonia Solvers
// so that they can be JSON serialized into configuraiton files and
// used to step flat parameter vectors.
package solver

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/samuelfneumann/gotrpo/params"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Type describes different types of solvers that are available
type Type string

// Available solver types
const (
	Adam    Type = "Adam"
	Vanilla Type = "Vanilla"
	RMSProp Type = "RMSProp"
)

// Solver wraps Gorgonia Solvers so that they can be JSON marshalled and
// unmarshalled.
type Solver struct {
	G.Solver `json:"-"`
	Type
	Config
}

// newSolver returns a new solver with the given type and configuration.
func newSolver(t Type, c Config) (*Solver, error) {
	if !c.ValidType(t) {
		return nil, fmt.Errorf("newSolver: invalid solver type %v for "+
			"configuration %T", t, c)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newSolver: %v", err)
	}
	solver := Solver{Type: t, Config: c}
	solver.Solver = solver.Config.Create()

	return &solver, nil
}

// New returns a new Solver of type t with default hyperparameters
func New(t Type, stepSize float64, batchSize int) (*Solver, error) {
	switch t {
	case Adam:
		return NewDefaultAdam(stepSize, batchSize)
	case RMSProp:
		return NewDefaultRMSProp(stepSize, batchSize)
	case Vanilla:
		return NewVanilla(stepSize, batchSize, -1)
	}
	return nil, fmt.Errorf("new: unknown solver type %q", t)
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (s *Solver) UnmarshalJSON(data []byte) error {
	config, typeName, err := unmarshalConfig(
		data,
		"Type",
		"Config",
		map[string]reflect.Type{
			string(Vanilla): reflect.TypeOf(VanillaConfig{}),
			string(Adam):    reflect.TypeOf(AdamConfig{}),
			string(RMSProp): reflect.TypeOf(RMSPropConfig{}),
		})
	if err != nil {
		return err
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}
	s.Type = typeName
	s.Config = config
	s.Solver = s.Config.Create()

	return nil
}

// Validate returns an error if the Solver is not ready to step
// parameters
func (s *Solver) Validate() error {
	if s.Solver == nil || s.Config == nil {
		return fmt.Errorf("validate: solver was not created from a " +
			"configuration")
	}
	if !s.Config.ValidType(s.Type) {
		return fmt.Errorf("validate: invalid solver type %v for "+
			"configuration %T", s.Type, s.Config)
	}
	return s.Config.Validate()
}

// Reset discards any state accumulated by previous steps, such as
// Adam moment estimates, by recreating the underlying Gorgonia Solver
func (s *Solver) Reset() {
	s.Solver = s.Config.Create()
}

func validateStep(stepSize float64, batch int) error {
	if stepSize <= 0 {
		return fmt.Errorf("validate: step size must be positive")
	}
	if batch <= 0 {
		return fmt.Errorf("validate: batch size must be positive")
	}
	return nil
}

// unmarshalConfig uses reflection to unmarshall a Config into its
// concrete type. Both the Config and its Type are returned.
func unmarshalConfig(data []byte, typeJsonField, valueJsonField string,
	customTypes map[string]reflect.Type) (Config, Type, error) {
	m := map[string]interface{}{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", err
	}

	typeName, ok := m[typeJsonField].(string)
	if !ok {
		return nil, "", fmt.Errorf("unmarshalConfig: missing field %v",
			typeJsonField)
	}
	ty, found := customTypes[typeName]
	if !found {
		return nil, "", fmt.Errorf("unmarshalConfig: unknown solver type %v",
			typeName)
	}
	value := reflect.New(ty).Interface().(Config)

	valueBytes, err := json.Marshal(m[valueJsonField])
	if err != nil {
		return nil, "", err
	}

	if err = json.Unmarshal(valueBytes, &value); err != nil {
		return nil, "", err
	}
	concreteValue := reflect.ValueOf(value).Elem().Interface().(Config)

	return concreteValue, Type(typeName), nil
}

// StepFlat performs a single descent step on the parameters held by
// store using the gradient grad. The Solver keeps its state (e.g. Adam
// moments) between calls, so a Solver should only ever be used to step
// a single Store.
func (s *Solver) StepFlat(store *params.Store, grad mat.Vector) error {
	if grad.Len() != store.Len() {
		return fmt.Errorf("stepFlat: illegal gradient length "+
			"\n\twant(%v)\n\thave(%v)", store.Len(), grad.Len())
	}

	raw := store.Vector().RawVector()
	if raw.Inc != 1 {
		return fmt.Errorf("stepFlat: parameters must be contiguous")
	}
	gradData := make([]float64, grad.Len())
	for i := range gradData {
		gradData[i] = grad.AtVec(i)
	}

	model := []G.ValueGrad{flatValueGrad{
		value: tensor.New(tensor.WithShape(store.Len()),
			tensor.WithBacking(raw.Data)),
		grad: tensor.New(tensor.WithShape(grad.Len()),
			tensor.WithBacking(gradData)),
	}}
	if err := s.Solver.Step(model); err != nil {
		return fmt.Errorf("stepFlat: %v", err)
	}
	return nil
}

// flatValueGrad exposes a flat parameter vector and its gradient to
// Gorgonia Solvers, which update the value in place.
type flatValueGrad struct {
	value *tensor.Dense
	grad  *tensor.Dense
}

func (f flatValueGrad) Value() G.Value {
	return f.value
}

func (f flatValueGrad) Grad() (G.Value, error) {
	return f.grad, nil
}

// Config implements a Gorgonia Solver configuration and can be used to
// create Gorgonia Solvers they describe.
type Config interface {
	Create() G.Solver

	// Validate returns an error if the hyperparameters are invalid
	Validate() error

	// ValidType returns whether a specific Solver type can be created
	// with the Config
	ValidType(Type) bool
}
