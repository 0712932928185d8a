// Package gae implements generalized advantage estimation, GAE(λ),
// following https://arxiv.org/abs/1506.02438.
package gae

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Estimate computes GAE(λ) advantages and return targets for a batch
// of transitions ordered in time. Multiple episodes may be stored
// back to back: masks[t] is 0 if transition t ends an episode and 1
// otherwise. The value after the final transition is taken to be 0.
//
// With V[T] = 0, the TD error and advantage of transition t are:
//
//	δ[t] = r[t] + γ V[t+1] m[t] - V[t]
//	A[t] = δ[t] + γ τ m[t] A[t+1]
//
// and the return target is A[t] + V[t]. Advantages are not normalized.
func Estimate(rewards, masks, values []float64, gamma,
	tau float64) (advantages, returns []float64, err error) {
	n := len(rewards)
	if len(masks) != n || len(values) != n {
		return nil, nil, fmt.Errorf("estimate: rewards, masks, and values "+
			"must have the same length, have (%v, %v, %v)", n, len(masks),
			len(values))
	}

	advantages = make([]float64, n)
	returns = make([]float64, n)

	// Must be computed back to front
	var nextValue, nextAdv float64
	for t := n - 1; t >= 0; t-- {
		delta := rewards[t] + gamma*nextValue*masks[t] - values[t]
		advantages[t] = delta + gamma*tau*masks[t]*nextAdv
		returns[t] = advantages[t] + values[t]

		nextValue = values[t]
		nextAdv = advantages[t]
	}

	return advantages, returns, nil
}

// Normalize returns a copy of advantages standardized to mean 0 and
// standard deviation 1.
func Normalize(advantages []float64) []float64 {
	out := make([]float64, len(advantages))
	copy(out, advantages)
	if len(out) == 0 {
		return out
	}

	mean := stat.Mean(out, nil)
	std := 1e-8
	if len(out) > 1 {
		std += stat.StdDev(out, nil)
	}

	floats.AddConst(-mean, out)
	floats.Scale(1/std, out)
	return out
}
