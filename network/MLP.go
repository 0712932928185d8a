package network

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fcLayer describes the shape of a fully connected layer. The layer's
// weights live in a flat parameter vector starting at offset, laid
// out as the in × out weight matrix in row major order followed by
// the out biases.
type fcLayer struct {
	in, out int
	offset  int
	act     *Activation
}

func (f fcLayer) numParams() int {
	return f.in*f.out + f.out
}

func (f fcLayer) weightRange() (int, int) {
	return f.offset, f.offset + f.in*f.out
}

func (f fcLayer) biasRange() (int, int) {
	start := f.offset + f.in*f.out
	return start, start + f.out
}

// MLP implements a multi-layered perceptron. Computational graphs are
// built lazily, one per batch size, and reused on subsequent calls
// with the same batch size.
//
// An MLP is not safe for concurrent use.
type MLP struct {
	features    int
	outputs     int
	hiddenSizes []int
	activations []*Activation

	layers    []fcLayer
	numParams int

	fwdTapes map[int]*tape
	bwdTapes map[int]*tape
}

// NewMLP returns a new MLP. The MLP has len(hiddenSizes) + 1 layers:
// for index i, hiddenSizes[i] is the number of nodes in hidden layer i
// and activations[i] is that layer's activation. A final linear layer
// with outputs nodes and a bias is always added.
func NewMLP(features, outputs int, hiddenSizes []int,
	activations []*Activation) (*MLP, error) {
	if len(hiddenSizes) != len(activations) {
		msg := "newMLP: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}
	if features <= 0 || outputs <= 0 {
		return nil, fmt.Errorf("newMLP: features and outputs must be "+
			"positive, have features(%v) and outputs(%v)", features, outputs)
	}

	sizes := append(append([]int{}, hiddenSizes...), outputs)
	acts := append(append([]*Activation{}, activations...), Identity())

	layers := make([]fcLayer, len(sizes))
	in, offset := features, 0
	for i := range sizes {
		if sizes[i] <= 0 {
			return nil, fmt.Errorf("newMLP: layer %v has illegal size %v", i,
				sizes[i])
		}
		layers[i] = fcLayer{in: in, out: sizes[i], offset: offset, act: acts[i]}
		offset += layers[i].numParams()
		in = sizes[i]
	}

	return &MLP{
		features:    features,
		outputs:     outputs,
		hiddenSizes: hiddenSizes,
		activations: activations,
		layers:      layers,
		numParams:   offset,
		fwdTapes:    make(map[int]*tape),
		bwdTapes:    make(map[int]*tape),
	}, nil
}

// Features returns the number of input features
func (m *MLP) Features() int {
	return m.features
}

// Outputs returns the number of outputs
func (m *MLP) Outputs() int {
	return m.outputs
}

// NumParams returns the length of the MLP's parameter vector
func (m *MLP) NumParams() int {
	return m.numParams
}

// layerParams returns views of the weights and biases of layer i in
// params
func (m *MLP) layerParams(params *mat.VecDense, i int) (weights,
	bias *mat.VecDense) {
	wStart, wEnd := m.layers[i].weightRange()
	bStart, bEnd := m.layers[i].biasRange()
	weights = params.SliceVec(wStart, wEnd).(*mat.VecDense)
	bias = params.SliceVec(bStart, bEnd).(*mat.VecDense)
	return
}

// InitParams returns a new parameter vector with weights initialized
// using init and biases set to 0.
func (m *MLP) InitParams(init G.InitWFn) *mat.VecDense {
	params := mat.NewVecDense(m.numParams, nil)

	for i, l := range m.layers {
		weights, _ := m.layerParams(params, i)
		copy(weights.RawVector().Data,
			init(tensor.Float64, l.in, l.out).([]float64))
	}
	return params
}

// Forward returns the output of the MLP at params on inputs
func (m *MLP) Forward(params mat.Vector, inputs mat.Matrix) (*mat.Dense,
	error) {
	out, _, err := m.JVP(params, nil, inputs)
	if err != nil {
		return nil, fmt.Errorf("forward: %v", err)
	}
	return out, nil
}

// JVP returns the output of the MLP at params on inputs and the
// Jacobian-vector product of the output with respect to the
// parameters and tangent. If tangent is nil, the returned product is
// 0.
func (m *MLP) JVP(params, tangent mat.Vector, inputs mat.Matrix) (*mat.Dense,
	*mat.Dense, error) {
	if err := m.checkParams(params); err != nil {
		return nil, nil, fmt.Errorf("jvp: %v", err)
	}
	if tangent != nil && tangent.Len() != m.numParams {
		return nil, nil, fmt.Errorf("jvp: illegal tangent length "+
			"\n\twant(%v)\n\thave(%v)", m.numParams, tangent.Len())
	}
	batch, err := m.checkInputs(inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("jvp: %v", err)
	}

	t, err := m.tape(batch, false)
	if err != nil {
		return nil, nil, fmt.Errorf("jvp: %v", err)
	}

	var tan []float64
	if tangent != nil {
		tan = vecData(tangent)
	} else {
		tan = make([]float64, m.numParams)
	}
	if err := t.run(vecData(params), tan, matData(inputs), nil); err != nil {
		return nil, nil, fmt.Errorf("jvp: %v", err)
	}
	return t.out, t.jvpOut, nil
}

// Backward returns the gradients of Σᵢⱼ upstream[i, j] * Y[i, j] with
// respect to the parameters and the inputs, where Y is the output of
// the MLP at params on inputs.
func (m *MLP) Backward(params mat.Vector, inputs,
	upstream mat.Matrix) (*mat.VecDense, *mat.Dense, error) {
	if err := m.checkParams(params); err != nil {
		return nil, nil, fmt.Errorf("backward: %v", err)
	}
	batch, err := m.checkInputs(inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("backward: %v", err)
	}
	if r, c := upstream.Dims(); r != batch || c != m.outputs {
		return nil, nil, fmt.Errorf("backward: illegal upstream shape "+
			"\n\twant(%v, %v)\n\thave(%v, %v)", batch, m.outputs, r, c)
	}

	t, err := m.tape(batch, true)
	if err != nil {
		return nil, nil, fmt.Errorf("backward: %v", err)
	}
	if err := t.run(vecData(params), nil, matData(inputs),
		matData(upstream)); err != nil {
		return nil, nil, fmt.Errorf("backward: %v", err)
	}
	return t.paramGrad, t.inputGrad, nil
}

// Close closes all VMs used by the MLP
func (m *MLP) Close() error {
	var firstErr error
	for _, tapes := range []map[int]*tape{m.fwdTapes, m.bwdTapes} {
		for batch, t := range tapes {
			if err := t.vm.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("close: %v", err)
			}
			delete(tapes, batch)
		}
	}
	return firstErr
}

// tape returns the compiled graph for the given batch size, building
// it if needed
func (m *MLP) tape(batch int, backward bool) (*tape, error) {
	tapes := m.fwdTapes
	if backward {
		tapes = m.bwdTapes
	}
	if t, ok := tapes[batch]; ok {
		return t, nil
	}

	t, err := newTape(m, batch, backward)
	if err != nil {
		return nil, err
	}
	tapes[batch] = t
	return t, nil
}

func (m *MLP) checkParams(params mat.Vector) error {
	if params.Len() != m.numParams {
		return fmt.Errorf("illegal parameter vector length "+
			"\n\twant(%v)\n\thave(%v)", m.numParams, params.Len())
	}
	return nil
}

func (m *MLP) checkInputs(inputs mat.Matrix) (int, error) {
	r, c := inputs.Dims()
	if c != m.features {
		return 0, fmt.Errorf("illegal number of input features "+
			"\n\twant(%v)\n\thave(%v)", m.features, c)
	}
	return r, nil
}

// vecData returns a copy of the elements of v
func vecData(v mat.Vector) []float64 {
	data := make([]float64, v.Len())
	for i := range data {
		data[i] = v.AtVec(i)
	}
	return data
}

// matData returns a copy of the elements of x in row major order
func matData(x mat.Matrix) []float64 {
	r, c := x.Dims()
	data := make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data[i*c+j] = x.At(i, j)
		}
	}
	return data
}
