package network

import (
	"math"
	"testing"

	"github.com/samuelfneumann/gotrpo/initwfn"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	eps = 1e-6
	tol = 1e-5
)

// newTestMLP returns an MLP with random weights and biases along with
// a random batch of inputs
func newTestMLP(t *testing.T, act *Activation) (*MLP, *mat.VecDense,
	*mat.Dense) {
	net, err := NewMLP(3, 2, []int{5, 4}, []*Activation{act, act})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { net.Close() })

	init, err := initwfn.NewGlorotU(1.0, 1)
	if err != nil {
		t.Fatal(err)
	}
	theta := net.InitParams(init.InitWFn())

	// Randomize biases too, so their gradients are not trivially checked
	// at zero
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < theta.Len(); i++ {
		if theta.AtVec(i) == 0 {
			theta.SetVec(i, 0.1*rng.NormFloat64())
		}
	}

	inputs := mat.NewDense(6, 3, nil)
	for i := 0; i < 6; i++ {
		for j := 0; j < 3; j++ {
			inputs.Set(i, j, rng.NormFloat64())
		}
	}
	return net, theta, inputs
}

// reference computes the MLP output with gonum only
func reference(m *MLP, theta *mat.VecDense, inputs mat.Matrix) *mat.Dense {
	var x mat.Dense
	x.CloneFrom(inputs)
	for i, layer := range m.layers {
		wFlat, b := m.layerParams(theta, i)
		w := mat.NewDense(layer.in, layer.out, wFlat.RawVector().Data)
		var z mat.Dense
		z.Mul(&x, w)
		r, c := z.Dims()
		for row := 0; row < r; row++ {
			for col := 0; col < c; col++ {
				v := z.At(row, col) + b.AtVec(col)
				switch layer.act.activationType {
				case relu:
					v = math.Max(v, 0)
				case tanh:
					v = math.Tanh(v)
				}
				z.Set(row, col, v)
			}
		}
		x = z
	}
	return &x
}

func TestForward(t *testing.T) {
	for _, act := range []*Activation{TanH(), ReLU(), Identity()} {
		net, theta, inputs := newTestMLP(t, act)

		out, err := net.Forward(theta, inputs)
		if err != nil {
			t.Fatal(err)
		}
		want := reference(net, theta, inputs)
		if !mat.EqualApprox(out, want, 1e-10) {
			t.Errorf("%v: forward pass differs from reference\n\thave(%v)"+
				"\n\twant(%v)", act, mat.Formatted(out), mat.Formatted(want))
		}

		// Repeated calls reuse the cached tape
		again, err := net.Forward(theta, inputs)
		if err != nil {
			t.Fatal(err)
		}
		if !mat.Equal(out, again) {
			t.Errorf("%v: repeated forward pass differs", act)
		}
	}
}

func TestJVP(t *testing.T) {
	for _, act := range []*Activation{TanH(), Identity()} {
		net, theta, inputs := newTestMLP(t, act)

		rng := rand.New(rand.NewSource(3))
		tangent := mat.NewVecDense(net.NumParams(), nil)
		for i := 0; i < tangent.Len(); i++ {
			tangent.SetVec(i, rng.NormFloat64())
		}

		out, jvp, err := net.JVP(theta, tangent, inputs)
		if err != nil {
			t.Fatal(err)
		}

		// Central differences along the tangent
		plus := mat.NewVecDense(theta.Len(), nil)
		plus.AddScaledVec(theta, eps, tangent)
		minus := mat.NewVecDense(theta.Len(), nil)
		minus.AddScaledVec(theta, -eps, tangent)

		fPlus := reference(net, plus, inputs)
		fMinus := reference(net, minus, inputs)
		var fd mat.Dense
		fd.Sub(fPlus, fMinus)
		fd.Scale(1/(2*eps), &fd)

		if !mat.EqualApprox(jvp, &fd, tol) {
			t.Errorf("%v: JVP differs from finite differences\n\thave(%v)"+
				"\n\twant(%v)", act, mat.Formatted(jvp), mat.Formatted(&fd))
		}
		if !mat.EqualApprox(out, reference(net, theta, inputs), 1e-10) {
			t.Errorf("%v: JVP output differs from forward pass", act)
		}
	}
}

func TestBackward(t *testing.T) {
	net, theta, inputs := newTestMLP(t, TanH())

	rng := rand.New(rand.NewSource(4))
	upstream := mat.NewDense(6, 2, nil)
	for i := 0; i < 6; i++ {
		for j := 0; j < 2; j++ {
			upstream.Set(i, j, rng.NormFloat64())
		}
	}

	// objective returns Σᵢⱼ upstream[i, j] * f(θ, X)[i, j]
	objective := func(theta *mat.VecDense, inputs mat.Matrix) float64 {
		out := reference(net, theta, inputs)
		var prod mat.Dense
		prod.MulElem(out, upstream)
		return mat.Sum(&prod)
	}

	paramGrad, inputGrad, err := net.Backward(theta, inputs, upstream)
	if err != nil {
		t.Fatal(err)
	}

	fd := make([]float64, theta.Len())
	perturbed := mat.VecDenseCopyOf(theta)
	for i := range fd {
		x := theta.AtVec(i)
		perturbed.SetVec(i, x+eps)
		plus := objective(perturbed, inputs)
		perturbed.SetVec(i, x-eps)
		minus := objective(perturbed, inputs)
		perturbed.SetVec(i, x)
		fd[i] = (plus - minus) / (2 * eps)
	}
	if !floats.EqualApprox(paramGrad.RawVector().Data, fd, tol) {
		t.Errorf("parameter gradient differs from finite differences"+
			"\n\thave(%v)\n\twant(%v)", paramGrad.RawVector().Data, fd)
	}

	perturbedInputs := mat.DenseCopyOf(inputs)
	for i := 0; i < 6; i++ {
		for j := 0; j < 3; j++ {
			x := inputs.At(i, j)
			perturbedInputs.Set(i, j, x+eps)
			plus := objective(theta, perturbedInputs)
			perturbedInputs.Set(i, j, x-eps)
			minus := objective(theta, perturbedInputs)
			perturbedInputs.Set(i, j, x)

			want := (plus - minus) / (2 * eps)
			if math.Abs(inputGrad.At(i, j)-want) > tol {
				t.Errorf("input gradient (%v, %v): have %v, want %v", i, j,
					inputGrad.At(i, j), want)
			}
		}
	}
}

func TestShapeErrors(t *testing.T) {
	net, theta, inputs := newTestMLP(t, TanH())

	if _, err := net.Forward(mat.NewVecDense(3, nil), inputs); err == nil {
		t.Error("expected an error for the wrong number of parameters")
	}
	if _, err := net.Forward(theta, mat.NewDense(2, 4, nil)); err == nil {
		t.Error("expected an error for the wrong number of features")
	}
	if _, _, err := net.Backward(theta, inputs, mat.NewDense(6, 3, nil)); err == nil {
		t.Error("expected an error for the wrong upstream shape")
	}
}

func TestNewMLPValidation(t *testing.T) {
	if _, err := NewMLP(3, 2, []int{4}, nil); err == nil {
		t.Error("expected an error for missing activations")
	}
	if _, err := NewMLP(3, 0, nil, nil); err == nil {
		t.Error("expected an error for zero outputs")
	}
	if _, err := NewMLP(3, 2, []int{0}, []*Activation{ReLU()}); err == nil {
		t.Error("expected an error for an empty hidden layer")
	}

	net, err := NewMLP(3, 2, []int{4}, []*Activation{ReLU()})
	if err != nil {
		t.Fatal(err)
	}
	if want := 3*4 + 4 + 4*2 + 2; net.NumParams() != want {
		t.Errorf("have %v parameters, want %v", net.NumParams(), want)
	}
}

func TestActivationByName(t *testing.T) {
	for _, name := range []string{"relu", "tanh", "identity"} {
		act, err := ActivationByName(name)
		if err != nil {
			t.Fatal(err)
		}
		if act.String() != name {
			t.Errorf("have activation %v, want %v", act, name)
		}

		var decoded Activation
		text, _ := act.MarshalText()
		if err := decoded.UnmarshalText(text); err != nil {
			t.Fatal(err)
		}
		if decoded.String() != name {
			t.Errorf("have decoded activation %v, want %v", &decoded, name)
		}
	}

	if _, err := ActivationByName("sigmoid"); err == nil {
		t.Error("expected an error for an unknown activation")
	}
}

func BenchmarkBackward(b *testing.B) {
	net, _ := NewMLP(10, 4, []int{64, 64}, []*Activation{TanH(), TanH()})
	defer net.Close()
	init, _ := initwfn.NewGlorotU(1.0, 1)
	theta := net.InitParams(init.InitWFn())
	inputs := mat.NewDense(256, 10, nil)
	upstream := mat.NewDense(256, 4, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		net.Backward(theta, inputs, upstream)
	}
}
