package trpo

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gotrpo/params"
	"gonum.org/v1/gonum/mat"
)

// degenerateCurvature is the smallest relative curvature pᵀAp / pᵀp
// along a search direction that conjugate gradient will step along
const degenerateCurvature = 1e-12

// LinearOperator computes a matrix-vector product A·v without A
// being formed explicitly
type LinearOperator func(v *mat.VecDense) (*mat.VecDense, error)

// CGInfo describes how a conjugate gradient solve terminated
type CGInfo struct {
	Iterations int     // Number of operator applications
	Residual   float64 // Norm of the final residual
	Converged  bool    // Residual fell below tolerance

	// Degenerate is true if the solve stopped early because of a
	// direction with near-zero or negative curvature
	Degenerate bool
}

// ConjugateGradient approximately solves A·x = b for symmetric
// positive definite A given only the operator avp computing A·v. At
// most iters iterations are performed and the solve stops early once
// the residual norm falls below tol.
//
// If a search direction with near-zero curvature is encountered, the
// solve stops and returns the current iterate. This is not an error.
func ConjugateGradient(avp LinearOperator, b mat.Vector, iters int,
	tol float64) (*mat.VecDense, CGInfo, error) {
	n := b.Len()
	x := mat.NewVecDense(n, nil)

	r := mat.NewVecDense(n, nil)
	r.CopyVec(b)
	p := mat.NewVecDense(n, nil)
	p.CopyVec(r)
	rr := mat.Dot(r, r)

	info := CGInfo{Residual: math.Sqrt(rr)}
	if math.IsNaN(rr) || math.IsInf(rr, 0) {
		return nil, info, instability("conjugateGradient",
			"right hand side is not finite")
	}
	if info.Residual < tol {
		info.Converged = true
		return x, info, nil
	}

	for i := 0; i < iters; i++ {
		ap, err := avp(p)
		if err != nil {
			return nil, info, fmt.Errorf("conjugateGradient: %w", err)
		}
		if !params.IsFinite(ap) {
			return nil, info, instability("conjugateGradient",
				"operator returned non-finite product at iteration %v", i)
		}
		info.Iterations++

		pAp := mat.Dot(p, ap)
		if pAp <= degenerateCurvature*mat.Dot(p, p) {
			info.Degenerate = true
			return x, info, nil
		}

		alpha := rr / pAp
		x.AddScaledVec(x, alpha, p)
		r.AddScaledVec(r, -alpha, ap)

		newRR := mat.Dot(r, r)
		info.Residual = math.Sqrt(newRR)
		if info.Residual < tol {
			info.Converged = true
			return x, info, nil
		}

		beta := newRR / rr
		p.AddScaledVec(r, beta, p)
		rr = newRR
	}

	return x, info, nil
}
