package policy

import (
	"math"
	"testing"

	"github.com/samuelfneumann/gotrpo/initwfn"
	"github.com/samuelfneumann/gotrpo/network"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	features = 3
	batch    = 8
)

// newPolicies returns a Gaussian policy with two action dimensions and
// a Categorical policy with three actions
func newPolicies(t *testing.T) []Policy {
	newNet := func(outputs int) network.NeuralNet {
		net, err := network.NewMLP(features, outputs, []int{4},
			[]*network.Activation{network.TanH()})
		if err != nil {
			t.Fatal(err)
		}
		return net
	}
	init, err := initwfn.NewGlorotU(1.0, 1)
	if err != nil {
		t.Fatal(err)
	}

	gaussian, err := NewGaussian(newNet(2), init.InitWFn(), -0.5, 1)
	if err != nil {
		t.Fatal(err)
	}
	categorical, err := NewCategorical(newNet(3), init.InitWFn(), 1)
	if err != nil {
		t.Fatal(err)
	}

	policies := []Policy{gaussian, categorical}
	t.Cleanup(func() {
		for _, p := range policies {
			p.Close()
		}
	})
	return policies
}

func name(p Policy) string {
	if p.Discrete() {
		return "Categorical"
	}
	return "Gaussian"
}

func randomStates(seed uint64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	states := mat.NewDense(batch, features, nil)
	for i := 0; i < batch; i++ {
		for j := 0; j < features; j++ {
			states.Set(i, j, rng.NormFloat64())
		}
	}
	return states
}

func randomVector(n int, seed uint64) *mat.VecDense {
	rng := rand.New(rand.NewSource(seed))
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, rng.NormFloat64())
	}
	return v
}

func TestSampleLogProb(t *testing.T) {
	states := randomStates(1)
	for _, p := range newPolicies(t) {
		actions, sampled, err := p.SampleWithLogProb(states)
		if err != nil {
			t.Fatal(err)
		}
		if r, c := actions.Dims(); r != batch || c != p.ActionDims() {
			t.Errorf("%v: have actions shape (%v, %v)", name(p), r, c)
		}

		logProbs, err := p.LogProb(states, actions)
		if err != nil {
			t.Fatal(err)
		}
		if !floats.EqualApprox(sampled, logProbs, 1e-10) {
			t.Errorf("%v: sampled log probabilities differ from LogProb"+
				"\n\thave(%v)\n\twant(%v)", name(p), sampled, logProbs)
		}
	}
}

func TestKLAtSelf(t *testing.T) {
	states := randomStates(2)
	for _, p := range newPolicies(t) {
		snap, err := p.Snapshot(states)
		if err != nil {
			t.Fatal(err)
		}
		kl, err := p.KL(states, snap)
		if err != nil {
			t.Fatal(err)
		}
		for i, k := range kl {
			if math.Abs(k) > 1e-12 {
				t.Errorf("%v: state %v has KL %v to itself", name(p), i, k)
			}
		}

		// Moving the parameters changes the KL but not the snapshot
		before := mat.DenseCopyOf(snap.Outputs)
		p.Params().AddScaled(0.1, randomVector(p.Params().Len(), 3))
		kl, err = p.KL(states, snap)
		if err != nil {
			t.Fatal(err)
		}
		if stat.Mean(kl, nil) <= 0 {
			t.Errorf("%v: have KL %v after moving parameters", name(p),
				stat.Mean(kl, nil))
		}
		if !mat.Equal(before, snap.Outputs) {
			t.Errorf("%v: snapshot changed with the parameters", name(p))
		}
	}
}

func TestLogProbGrad(t *testing.T) {
	const eps = 1e-6
	states := randomStates(4)
	weights := randomVector(batch, 5).RawVector().Data

	for _, p := range newPolicies(t) {
		actions, _, err := p.SampleWithLogProb(states)
		if err != nil {
			t.Fatal(err)
		}

		objective := func() float64 {
			lp, err := p.LogProb(states, actions)
			if err != nil {
				t.Fatal(err)
			}
			return floats.Dot(lp, weights)
		}

		grad, err := p.LogProbGrad(states, actions, weights)
		if err != nil {
			t.Fatal(err)
		}

		theta := p.Params().Vector()
		for i := 0; i < theta.Len(); i++ {
			x := theta.AtVec(i)
			theta.SetVec(i, x+eps)
			plus := objective()
			theta.SetVec(i, x-eps)
			minus := objective()
			theta.SetVec(i, x)

			want := (plus - minus) / (2 * eps)
			if math.Abs(grad.AtVec(i)-want) > 1e-5 {
				t.Errorf("%v: parameter %v has gradient %v, want %v",
					name(p), i, grad.AtVec(i), want)
			}
		}
	}
}

func TestKLHessianVector(t *testing.T) {
	const eps = 1e-3
	states := randomStates(6)

	for _, p := range newPolicies(t) {
		store := p.Params()
		v := randomVector(store.Len(), 7)

		hv, err := p.KLHessianVector(states, v)
		if err != nil {
			t.Fatal(err)
		}
		vHv := mat.Dot(v, hv)

		// mean KL(π_θ ‖ π_θ+εv) = ½ ε² vᵀHv + O(ε³)
		old, err := p.Snapshot(states)
		if err != nil {
			t.Fatal(err)
		}
		theta := store.Snapshot()
		store.AddScaled(eps, v)
		kl, err := p.KL(states, old)
		if err != nil {
			t.Fatal(err)
		}
		store.Set(theta)

		want := 2 * stat.Mean(kl, nil) / (eps * eps)
		if math.Abs(vHv-want) > 1e-2*math.Abs(want) {
			t.Errorf("%v: have vᵀHv %v, want %v", name(p), vHv, want)
		}

		// The Hessian is symmetric
		u := randomVector(store.Len(), 8)
		hu, err := p.KLHessianVector(states, u)
		if err != nil {
			t.Fatal(err)
		}
		if uHv, vHu := mat.Dot(u, hv), mat.Dot(v, hu); math.Abs(uHv-vHu) >
			1e-8*math.Max(1, math.Abs(uHv)) {
			t.Errorf("%v: uᵀHv = %v but vᵀHu = %v", name(p), uHv, vHu)
		}
	}
}

func TestEntropy(t *testing.T) {
	states := randomStates(9)
	for _, p := range newPolicies(t) {
		entropy, err := p.Entropy(states)
		if err != nil {
			t.Fatal(err)
		}
		if len(entropy) != batch {
			t.Fatalf("%v: have %v entropies, want %v", name(p), len(entropy),
				batch)
		}

		switch p := p.(type) {
		case *Gaussian:
			want := 0.0
			for _, ls := range p.LogStd() {
				want += ls + 0.5*math.Log(2*math.Pi*math.E)
			}
			if math.Abs(entropy[0]-want) > 1e-12 {
				t.Errorf("Gaussian: have entropy %v, want %v", entropy[0], want)
			}
		case *Categorical:
			for i, e := range entropy {
				if e < 0 || e > math.Log(3)+1e-12 {
					t.Errorf("Categorical: state %v has entropy %v outside "+
						"[0, log 3]", i, e)
				}
			}
		}
	}
}

func TestCategoricalMode(t *testing.T) {
	states := randomStates(10)
	p := newPolicies(t)[1].(*Categorical)

	mode, err := p.Mode(states)
	if err != nil {
		t.Fatal(err)
	}
	logProbs, err := p.LogProbs(states)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < batch; i++ {
		row := logProbs.RawRowView(i)
		if int(mode.At(i, 0)) != floats.MaxIdx(row) {
			t.Errorf("state %v: mode %v is not the most probable action",
				i, mode.At(i, 0))
		}
		if s := floats.LogSumExp(row); math.Abs(s) > 1e-12 {
			t.Errorf("state %v: probabilities sum to %v", i, math.Exp(s))
		}
	}
}

func TestValidation(t *testing.T) {
	net, err := network.NewMLP(features, 1, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	init, _ := initwfn.NewZeroes()
	if _, err := NewCategorical(net, init.InitWFn(), 1); err == nil {
		t.Error("expected an error for a Categorical policy with 1 action")
	}

	states := randomStates(11)
	policies := newPolicies(t)
	for _, p := range policies {
		if _, err := p.LogProb(states, mat.NewDense(batch-1,
			p.ActionDims(), nil)); err == nil {
			t.Errorf("%v: expected an error for too few actions", name(p))
		}
		if _, err := p.Mode(mat.NewDense(2, features+1, nil)); err == nil {
			t.Errorf("%v: expected an error for the wrong features", name(p))
		}
		if _, err := p.KLHessianVector(states, mat.NewVecDense(2,
			nil)); err == nil {
			t.Errorf("%v: expected an error for the wrong vector length",
				name(p))
		}
	}

	// Snapshots of one policy type cannot be compared against another
	gaussSnap, _ := policies[0].Snapshot(states)
	if _, err := policies[1].KL(states, gaussSnap); err == nil {
		t.Error("expected an error for a mismatched snapshot")
	}

	bad := mat.NewDense(batch, 1, nil)
	bad.Set(0, 0, 3)
	if _, err := policies[1].LogProb(states, bad); err == nil {
		t.Error("expected an error for an out of range action")
	}
}
