// Package initwfn implements seeded weight initializers that satisfy
// the Gorgonia InitWFn signature and wraps them so that they can be
// JSON serialized into configuration files.
package initwfn

import (
	"encoding/json"
	"fmt"
	"reflect"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Type describes different types of InitWFn that are available.
// Type is used to implement a basic type system of InitWFn's.
type Type string

// Available InitWFn types
const (
	GlorotU  Type = "GlorotU"
	GlorotN  Type = "GlorotN"
	HeU      Type = "HeU"
	HeN      Type = "HeN"
	Uniform  Type = "Uniform"
	Gaussian Type = "Gaussian"
	Zeroes   Type = "Zeroes"
	Constant Type = "Constant"
)

// InitWFn wraps a Gorgonia InitWFn so that it can be JSON marshalled
// and unmarshalled.
type InitWFn struct {
	initWFn G.InitWFn
	Type
	Config
}

// newInitWFn returns a new InitWFn
func newInitWFn(c Config) (*InitWFn, error) {
	init := InitWFn{Type: c.Type(), Config: c}
	init.initWFn = init.Config.Create()

	return &init, nil
}

// New returns a new InitWFn of type t. Gain scales the Glorot and He
// initializers and is otherwise ignored. Only types that need no
// further hyperparameters can be created this way.
func New(t Type, gain float64, seed uint64) (*InitWFn, error) {
	switch t {
	case GlorotU:
		return NewGlorotU(gain, seed)
	case GlorotN:
		return NewGlorotN(gain, seed)
	case HeU:
		return NewHeU(gain, seed)
	case HeN:
		return NewHeN(gain, seed)
	case Zeroes:
		return NewZeroes()
	}
	return nil, fmt.Errorf("new: cannot create InitWFn of type %q by name", t)
}

// InitWFn returns the wrapped Gorgonia InitWFn
func (i *InitWFn) InitWFn() G.InitWFn {
	return i.initWFn
}

// String implements the fmt.Stringer interface
func (i *InitWFn) String() string {
	return fmt.Sprintf("{%v InitWFn: %v}", i.Type, i.Config)
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (i *InitWFn) UnmarshalJSON(data []byte) error {
	config, typeName, err := unmarshalConfig(
		data,
		"Type",
		"Config",
		map[string]reflect.Type{
			string(GlorotU):  reflect.TypeOf(GlorotUConfig{}),
			string(GlorotN):  reflect.TypeOf(GlorotNConfig{}),
			string(HeU):      reflect.TypeOf(HeUConfig{}),
			string(HeN):      reflect.TypeOf(HeNConfig{}),
			string(Uniform):  reflect.TypeOf(UniformConfig{}),
			string(Gaussian): reflect.TypeOf(GaussianConfig{}),
			string(Zeroes):   reflect.TypeOf(ZeroesConfig{}),
			string(Constant): reflect.TypeOf(ConstantConfig{}),
		})
	if err != nil {
		return err
	}

	i.Type = typeName
	i.Config = config
	i.initWFn = i.Config.Create()

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
		return nil, "", fmt.Errorf("unmarshalConfig: unknown InitWFn "+
			"type %v", typeName)
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

// Config implements a Gorgonia InitWFn configuration and can be used to
// create the described Gorgonia InitWFn's.
type Config interface {
	// Create returns the Gorgonia InitWFn that the Config describes
	Create() G.InitWFn

	// Type returns the type of Gorgonia InitWFn that is returned
	Type() Type
}

// sampler draws a single weight given the fan in and fan out of the
// weight matrix being initialized
type sampler func(rng *rand.Rand, fanIn, fanOut int) float64

// seeded returns a Gorgonia InitWFn that fills weights using draw.
// Successive calls to the returned InitWFn continue the same random
// stream, so a fixed seed always produces the same sequence of
// weight matrices.
func seeded(seed uint64, draw sampler) G.InitWFn {
	rng := rand.New(rand.NewSource(seed))

	return func(dt tensor.Dtype, s ...int) interface{} {
		fanIn, fanOut := fans(s...)
		size := tensor.Shape(s).TotalSize()

		switch dt {
		case tensor.Float32:
			weights := make([]float32, size)
			for i := range weights {
				weights[i] = float32(draw(rng, fanIn, fanOut))
			}
			return weights

		case tensor.Float64:
			weights := make([]float64, size)
			for i := range weights {
				weights[i] = draw(rng, fanIn, fanOut)
			}
			return weights
		}
		panic(fmt.Sprintf("initwfn: dtype %v not supported", dt))
	}
}

// fans returns the fan in and fan out of a weight tensor of shape s
func fans(s ...int) (int, int) {
	switch len(s) {
	case 0:
		return 1, 1
	case 1:
		return s[0], s[0]
	}
	return s[0], s[len(s)-1]
}
