package network

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// tape is an MLP compiled for a single batch size. A forward tape
// computes the MLP's output together with the tangent of the output
// with respect to the parameters. A backward tape computes the
// gradient of Σ upstream ⊙ output with respect to the parameters and
// the input.
type tape struct {
	mlp      *MLP
	batch    int
	backward bool

	g  *G.ExprGraph
	vm G.VM

	input    *G.Node
	upstream *G.Node
	weights  []*G.Node
	biases   []*G.Node

	// Tangents of the weights and biases, only used by forward tapes
	tanWeights []*G.Node
	tanBiases  []*G.Node

	predVal      G.Value
	jvpVal       G.Value
	weightGrads  []G.Value
	biasGrads    []G.Value
	inputGradVal G.Value

	// Outputs of the last run
	out       *mat.Dense
	jvpOut    *mat.Dense
	paramGrad *mat.VecDense
	inputGrad *mat.Dense
}

func newTape(m *MLP, batch int, backward bool) (*tape, error) {
	g := G.NewGraph()
	t := &tape{
		mlp:         m,
		batch:       batch,
		backward:    backward,
		g:           g,
		weights:     make([]*G.Node, len(m.layers)),
		biases:      make([]*G.Node, len(m.layers)),
		weightGrads: make([]G.Value, len(m.layers)),
		biasGrads:   make([]G.Value, len(m.layers)),
	}

	t.input = G.NewMatrix(g, tensor.Float64, G.WithShape(batch, m.features),
		G.WithName("input"), G.WithInit(G.Zeroes()))

	for i, l := range m.layers {
		t.weights[i] = G.NewMatrix(g, tensor.Float64, G.WithShape(l.in, l.out),
			G.WithName(fmt.Sprintf("L%dW", i)), G.WithInit(G.Zeroes()))
		t.biases[i] = G.NewMatrix(g, tensor.Float64, G.WithShape(1, l.out),
			G.WithName(fmt.Sprintf("L%dB", i)), G.WithInit(G.Zeroes()))
	}

	var err error
	if backward {
		err = t.buildBackward()
	} else {
		err = t.buildForward()
	}
	if err != nil {
		return nil, fmt.Errorf("newTape: %v", err)
	}

	t.vm = G.NewTapeMachine(g)
	return t, nil
}

// buildForward adds the forward pass and its tangent to the graph.
// For a layer y = act(xW + b), the tangent is
// ẏ = act'(xW + b) ⊙ (ẋW + xẆ + ḃ), with ẋ = 0 for the input.
func (t *tape) buildForward() error {
	m := t.mlp
	t.tanWeights = make([]*G.Node, len(m.layers))
	t.tanBiases = make([]*G.Node, len(m.layers))

	x := t.input
	var dx *G.Node
	for i, l := range m.layers {
		t.tanWeights[i] = G.NewMatrix(t.g, tensor.Float64,
			G.WithShape(l.in, l.out), G.WithName(fmt.Sprintf("L%ddW", i)),
			G.WithInit(G.Zeroes()))
		t.tanBiases[i] = G.NewMatrix(t.g, tensor.Float64,
			G.WithShape(1, l.out), G.WithName(fmt.Sprintf("L%ddB", i)),
			G.WithInit(G.Zeroes()))

		z, err := affine(x, t.weights[i], t.biases[i])
		if err != nil {
			return fmt.Errorf("layer %v: %v", i, err)
		}
		dz, err := affine(x, t.tanWeights[i], t.tanBiases[i])
		if err != nil {
			return fmt.Errorf("layer %v tangent: %v", i, err)
		}
		if dx != nil {
			dxW, err := G.Mul(dx, t.weights[i])
			if err != nil {
				return fmt.Errorf("layer %v tangent: %v", i, err)
			}
			if dz, err = G.Add(dz, dxW); err != nil {
				return fmt.Errorf("layer %v tangent: %v", i, err)
			}
		}

		y, err := l.act.fwd(z)
		if err != nil {
			return fmt.Errorf("layer %v activation: %v", i, err)
		}
		dy, err := l.act.jvp(y, dz)
		if err != nil {
			return fmt.Errorf("layer %v activation tangent: %v", i, err)
		}
		x, dx = y, dy
	}

	G.Read(x, &t.predVal)
	G.Read(dx, &t.jvpVal)
	return nil
}

// buildBackward adds the forward pass and the symbolic gradient of
// Σ upstream ⊙ prediction to the graph
func (t *tape) buildBackward() error {
	m := t.mlp
	t.upstream = G.NewMatrix(t.g, tensor.Float64,
		G.WithShape(t.batch, m.outputs), G.WithName("upstream"),
		G.WithInit(G.Zeroes()))

	x := t.input
	for i, l := range m.layers {
		z, err := affine(x, t.weights[i], t.biases[i])
		if err != nil {
			return fmt.Errorf("layer %v: %v", i, err)
		}
		if x, err = l.act.fwd(z); err != nil {
			return fmt.Errorf("layer %v activation: %v", i, err)
		}
	}

	weighted, err := G.HadamardProd(x, t.upstream)
	if err != nil {
		return fmt.Errorf("could not weight prediction: %v", err)
	}
	cost, err := G.Sum(weighted)
	if err != nil {
		return fmt.Errorf("could not reduce prediction: %v", err)
	}

	wrt := make(G.Nodes, 0, 2*len(m.layers)+1)
	wrt = append(wrt, t.weights...)
	wrt = append(wrt, t.biases...)
	wrt = append(wrt, t.input)
	grads, err := G.Grad(cost, wrt...)
	if err != nil {
		return fmt.Errorf("could not compute gradient: %v", err)
	}

	n := len(m.layers)
	for i := 0; i < n; i++ {
		G.Read(grads[i], &t.weightGrads[i])
		G.Read(grads[n+i], &t.biasGrads[i])
	}
	G.Read(grads[2*n], &t.inputGradVal)
	return nil
}

// affine returns xW + b, broadcasting b along the batch dimension
func affine(x, w, b *G.Node) (*G.Node, error) {
	xW, err := G.Mul(x, w)
	if err != nil {
		return nil, err
	}
	return G.BroadcastAdd(xW, b, nil, []byte{0})
}

// run binds the arguments to the graph, runs the VM, and copies the
// results out of the graph
func (t *tape) run(params, tangent, inputs, upstream []float64) error {
	m := t.mlp
	defer t.vm.Reset()

	if err := let(t.input, inputs, t.batch, m.features); err != nil {
		return err
	}
	for i, l := range m.layers {
		wStart, wEnd := l.weightRange()
		bStart, bEnd := l.biasRange()
		if err := let(t.weights[i], params[wStart:wEnd], l.in,
			l.out); err != nil {
			return err
		}
		if err := let(t.biases[i], params[bStart:bEnd], 1, l.out); err != nil {
			return err
		}

		if !t.backward {
			if err := let(t.tanWeights[i], tangent[wStart:wEnd], l.in,
				l.out); err != nil {
				return err
			}
			if err := let(t.tanBiases[i], tangent[bStart:bEnd], 1,
				l.out); err != nil {
				return err
			}
		}
	}
	if t.backward {
		if err := let(t.upstream, upstream, t.batch, m.outputs); err != nil {
			return err
		}
	}

	if err := t.vm.RunAll(); err != nil {
		return fmt.Errorf("could not run vm: %v", err)
	}

	if !t.backward {
		t.out = mat.NewDense(t.batch, m.outputs, valueData(t.predVal))
		t.jvpOut = mat.NewDense(t.batch, m.outputs, valueData(t.jvpVal))
		return nil
	}

	grad := make([]float64, m.numParams)
	for i, l := range m.layers {
		wStart, wEnd := l.weightRange()
		bStart, bEnd := l.biasRange()
		copy(grad[wStart:wEnd], valueData(t.weightGrads[i]))
		copy(grad[bStart:bEnd], valueData(t.biasGrads[i]))
	}
	t.paramGrad = mat.NewVecDense(m.numParams, grad)
	t.inputGrad = mat.NewDense(t.batch, m.features,
		valueData(t.inputGradVal))
	return nil
}

// let binds a copy of data, shaped r × c, to node
func let(node *G.Node, data []float64, r, c int) error {
	backing := make([]float64, len(data))
	copy(backing, data)

	value := tensor.New(tensor.WithShape(r, c), tensor.WithBacking(backing))
	if err := G.Let(node, value); err != nil {
		return fmt.Errorf("could not set %v: %v", node.Name(), err)
	}
	return nil
}

// valueData returns a copy of the data held by a Gorgonia Value
func valueData(v G.Value) []float64 {
	data := v.Data().([]float64)
	out := make([]float64, len(data))
	copy(out, data)
	return out
}
