package gae

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func TestEstimateSingleStep(t *testing.T) {
	adv, ret, err := Estimate([]float64{1}, []float64{0}, []float64{0.5},
		0.99, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if adv[0] != 0.5 || ret[0] != 1 {
		t.Errorf("have adv %v, ret %v, want adv 0.5, ret 1", adv, ret)
	}
}

func TestEstimateGeometric(t *testing.T) {
	const n = 10
	gamma, tau := 0.9, 0.8

	rewards := make([]float64, n)
	masks := make([]float64, n)
	values := make([]float64, n)
	for i := range rewards {
		rewards[i] = 1
		masks[i] = 1
	}
	masks[n-1] = 0

	adv, ret, err := Estimate(rewards, masks, values, gamma, tau)
	if err != nil {
		t.Fatal(err)
	}

	// With zero values, every TD error is 1 and the advantage is a
	// truncated geometric series in γτ
	want := make([]float64, n)
	for i := range want {
		k := float64(n - i)
		want[i] = (1 - math.Pow(gamma*tau, k)) / (1 - gamma*tau)
	}
	if !floats.EqualApprox(adv, want, 1e-12) {
		t.Errorf("advantages\n\thave(%v)\n\twant(%v)", adv, want)
	}
	if !floats.EqualApprox(ret, want, 1e-12) {
		t.Errorf("returns\n\thave(%v)\n\twant(%v)", ret, want)
	}
}

func TestEstimateEpisodeBoundary(t *testing.T) {
	rewards := []float64{1, 2, 3, 4}
	masks := []float64{1, 0, 1, 0}
	values := []float64{0.1, 0.2, 0.3, 0.4}
	gamma, tau := 0.99, 0.95

	adv, ret, err := Estimate(rewards, masks, values, gamma, tau)
	if err != nil {
		t.Fatal(err)
	}

	// The first episode must not depend on the second
	first, _, err := Estimate(rewards[:2], masks[:2], values[:2], gamma, tau)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(adv[:2], first, 1e-12) {
		t.Errorf("advantages leak across episodes\n\thave(%v)\n\twant(%v)",
			adv[:2], first)
	}

	for i := range adv {
		if math.Abs(ret[i]-(adv[i]+values[i])) > 1e-12 {
			t.Errorf("return %v: have %v, want %v", i, ret[i],
				adv[i]+values[i])
		}
	}
}

func TestEstimateLengthMismatch(t *testing.T) {
	_, _, err := Estimate([]float64{1, 2}, []float64{1}, []float64{0, 0},
		0.99, 0.95)
	if err == nil {
		t.Error("expected an error for mismatched lengths")
	}
}

func TestEstimateEmpty(t *testing.T) {
	adv, ret, err := Estimate(nil, nil, nil, 0.99, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if len(adv) != 0 || len(ret) != 0 {
		t.Errorf("expected empty outputs, have %v and %v", adv, ret)
	}
}

func TestNormalize(t *testing.T) {
	adv := []float64{1, 2, 3, 4, 5}
	norm := Normalize(adv)

	if math.Abs(stat.Mean(norm, nil)) > 1e-12 {
		t.Errorf("mean: have %v, want 0", stat.Mean(norm, nil))
	}
	if math.Abs(stat.StdDev(norm, nil)-1) > 1e-6 {
		t.Errorf("std: have %v, want 1", stat.StdDev(norm, nil))
	}
	if adv[0] != 1 {
		t.Error("normalize modified its input")
	}

	single := Normalize([]float64{3})
	if single[0] != 0 {
		t.Errorf("single element: have %v, want 0", single[0])
	}
}

func BenchmarkEstimate(b *testing.B) {
	const n = 2048
	rewards := make([]float64, n)
	masks := make([]float64, n)
	values := make([]float64, n)
	for i := range masks {
		masks[i] = 1
	}

	for i := 0; i < b.N; i++ {
		Estimate(rewards, masks, values, 0.99, 0.95)
	}
}
