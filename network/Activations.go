package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

type activationType string

const (
	relu     activationType = "relu"
	identity activationType = "identity"
	tanh     activationType = "tanh"
)

// Activation represents an activation function type. Along with the
// function itself, an Activation knows how to push a tangent through
// the function given the function's output, which is what allows
// networks to compute Jacobian-vector products in a single forward
// pass.
type Activation struct {
	activationType
	f func(x *G.Node) (*G.Node, error)

	// tangent returns act'(z) ⊙ dz, where y = act(z)
	tangent func(y, dz *G.Node) (*G.Node, error)
}

// fwd performs the forward pass of an Activation
func (a *Activation) fwd(x *G.Node) (*G.Node, error) {
	return a.f(x)
}

// jvp pushes the tangent dz through the Activation whose output is y
func (a *Activation) jvp(y, dz *G.Node) (*G.Node, error) {
	return a.tangent(y, dz)
}

// String implements the Stringer interface
func (a *Activation) String() string {
	return string(a.activationType)
}

// IsIdentity returns whether or not the Activation is the identity
// function.
func (a *Activation) IsIdentity() bool {
	return a.activationType == identity
}

// MarshalText implements the encoding.TextMarshaler interface
func (a *Activation) MarshalText() ([]byte, error) {
	return []byte(a.activationType), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface
func (a *Activation) UnmarshalText(text []byte) error {
	act, err := ActivationByName(string(text))
	if err != nil {
		return fmt.Errorf("unmarshalText: %v", err)
	}
	*a = *act
	return nil
}

// ActivationByName returns the Activation with the given name. Valid
// names are "relu", "tanh", and "identity".
func ActivationByName(name string) (*Activation, error) {
	switch activationType(name) {
	case relu:
		return ReLU(), nil
	case identity:
		return Identity(), nil
	case tanh:
		return TanH(), nil
	}
	return nil, fmt.Errorf("illegal Activation type %q", name)
}

// Identity returns an identity *Activation
func Identity() *Activation {
	return &Activation{
		activationType: identity,
		f: func(x *G.Node) (*G.Node, error) {
			return x, nil
		},
		tangent: func(_, dz *G.Node) (*G.Node, error) {
			return dz, nil
		},
	}
}

// ReLU returns a ReLU *Activation
func ReLU() *Activation {
	return &Activation{
		activationType: relu,
		f:              G.Rectify,
		tangent: func(y, dz *G.Node) (*G.Node, error) {
			// y >= 0, so sign(y) is the step function of the input
			mask, err := G.Sign(y)
			if err != nil {
				return nil, err
			}
			return G.HadamardProd(mask, dz)
		},
	}
}

// TanH returns a tanh *Activation
func TanH() *Activation {
	return &Activation{
		activationType: tanh,
		f:              G.Tanh,
		tangent: func(y, dz *G.Node) (*G.Node, error) {
			// (1 - y²) ⊙ dz
			ySq, err := G.Square(y)
			if err != nil {
				return nil, err
			}
			scaled, err := G.HadamardProd(ySq, dz)
			if err != nil {
				return nil, err
			}
			return G.Sub(dz, scaled)
		},
	}
}
