package trpo

import (
	"fmt"

	"github.com/samuelfneumann/gotrpo/params"
	"github.com/samuelfneumann/gotrpo/policy"
	"gonum.org/v1/gonum/mat"
)

// FisherVectorProduct computes products of a damped Fisher information
// matrix with vectors. The Fisher information matrix of the policy is
// the Hessian of the mean KL divergence between the policy and a
// frozen copy of itself, taken at the policy's current parameters:
//
//	F·v + damping * v
type FisherVectorProduct struct {
	policy  policy.Policy
	states  mat.Matrix
	damping float64
}

// NewFisherVectorProduct returns a new FisherVectorProduct for p over
// the batch of states
func NewFisherVectorProduct(p policy.Policy, states mat.Matrix,
	damping float64) (*FisherVectorProduct, error) {
	if damping < 0 {
		return nil, fmt.Errorf("newFisherVectorProduct: damping must be " +
			"non-negative")
	}
	return &FisherVectorProduct{policy: p, states: states, damping: damping}, nil
}

// Apply returns F·v + damping * v
func (f *FisherVectorProduct) Apply(v *mat.VecDense) (*mat.VecDense, error) {
	fv, err := f.policy.KLHessianVector(f.states, v)
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}
	fv.AddScaledVec(fv, f.damping, v)

	if !params.IsFinite(fv) {
		return nil, instability("apply", "fisher-vector product is not "+
			"finite")
	}
	return fv, nil
}
