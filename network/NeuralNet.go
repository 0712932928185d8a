// Package network implements neural networks as differentiable
// functions of a flat parameter vector and a batch of inputs.
package network

import (
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
)

// NeuralNet is a differentiable function f(θ, X) → Y. Parameters are
// not owned by the NeuralNet: each call receives the parameter vector
// to use, so that callers can evaluate the same network at old,
// candidate, and target parameters without cloning graphs.
//
// Inputs X are batch × Features() and outputs Y are batch × Outputs().
type NeuralNet interface {
	Features() int
	Outputs() int
	NumParams() int

	// InitParams returns a new parameter vector with weights
	// initialized by init and biases set to 0.
	InitParams(init G.InitWFn) *mat.VecDense

	// Forward returns f(θ, X)
	Forward(params mat.Vector, inputs mat.Matrix) (*mat.Dense, error)

	// JVP returns f(θ, X) along with the Jacobian-vector product
	// ∂f(θ, X)/∂θ · tangent.
	JVP(params, tangent mat.Vector, inputs mat.Matrix) (*mat.Dense,
		*mat.Dense, error)

	// Backward returns the vector-Jacobian products of upstream with
	// respect to both θ and X, that is the gradients of
	// Σᵢⱼ upstream[i, j] * f(θ, X)[i, j].
	Backward(params mat.Vector, inputs, upstream mat.Matrix) (*mat.VecDense,
		*mat.Dense, error)

	// Close releases the resources held by the NeuralNet's VMs
	Close() error
}
