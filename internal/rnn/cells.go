package rnn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/esrnn/pkg/constants"
	"github.com/inferloop/esrnn/pkg/errors"
)

// cell advances one recurrent step. c is nil for cells without a memory cell.
type cell interface {
	step(x, h, c *mat.Dense) (*mat.Dense, *mat.Dense)
	hasCell() bool
	parameters(prefix string) []*Parameter
}

// gate is one input/hidden/bias weight triple.
type gate struct {
	input  *mat.Dense    // hidden x input
	hidden *mat.Dense    // hidden x hidden
	bias   *mat.VecDense // hidden
}

func newGate(inputSize, hiddenSize int, rng *rand.Rand) gate {
	return gate{
		input:  xavier(hiddenSize, inputSize, inputSize, hiddenSize, rng),
		hidden: xavier(hiddenSize, hiddenSize, inputSize, hiddenSize, rng),
		bias:   mat.NewVecDense(hiddenSize, nil),
	}
}

// preActivation returns x*Wx^T + h*Wh^T + b.
func (g gate) preActivation(x, h *mat.Dense) *mat.Dense {
	out := affine(x, g.input, g.bias)
	var rec mat.Dense
	rec.Mul(h, g.hidden.T())
	out.Add(out, &rec)
	return out
}

func (g gate) parameters(prefix string) []*Parameter {
	return []*Parameter{
		matrixParameter(prefix+".weight_input", g.input),
		matrixParameter(prefix+".weight_hidden", g.hidden),
		vectorParameter(prefix+".bias", g.bias),
	}
}

func newCell(cellType string, inputSize, hiddenSize int, rng *rand.Rand) (cell, error) {
	switch cellType {
	case constants.CellTypeRNN:
		return &rnnCell{g: newGate(inputSize, hiddenSize, rng)}, nil
	case constants.CellTypeGRU:
		return &gruCell{
			reset:     newGate(inputSize, hiddenSize, rng),
			update:    newGate(inputSize, hiddenSize, rng),
			candidate: newGate(inputSize, hiddenSize, rng),
		}, nil
	case constants.CellTypeLSTM:
		return &lstmCell{
			input:  newGate(inputSize, hiddenSize, rng),
			forget: newGate(inputSize, hiddenSize, rng),
			cell:   newGate(inputSize, hiddenSize, rng),
			output: newGate(inputSize, hiddenSize, rng),
		}, nil
	default:
		return nil, errors.NewConfigurationError(errors.CodeInvalidCellType,
			fmt.Sprintf("unsupported cell type %q", cellType))
	}
}

// rnnCell: h_t = tanh(W x_t + U h_{t-d} + b)
type rnnCell struct {
	g gate
}

func (c *rnnCell) step(x, h, _ *mat.Dense) (*mat.Dense, *mat.Dense) {
	next := c.g.preActivation(x, h)
	applyTanh(next)
	return next, nil
}

func (c *rnnCell) hasCell() bool { return false }

func (c *rnnCell) parameters(prefix string) []*Parameter {
	return c.g.parameters(prefix)
}

// gruCell follows the usual reset/update/candidate formulation:
//
//	r = sigmoid(W_r x + U_r h + b_r)
//	z = sigmoid(W_z x + U_z h + b_z)
//	n = tanh(W_n x + U_n (r * h) + b_n)
//	h' = (1 - z) * h + z * n
type gruCell struct {
	reset     gate
	update    gate
	candidate gate
}

func (c *gruCell) step(x, h, _ *mat.Dense) (*mat.Dense, *mat.Dense) {
	r := c.reset.preActivation(x, h)
	applySigmoid(r)
	z := c.update.preActivation(x, h)
	applySigmoid(z)

	var gated mat.Dense
	gated.MulElem(r, h)
	n := c.candidate.preActivation(x, &gated)
	applyTanh(n)

	batch, hidden := h.Dims()
	next := mat.NewDense(batch, hidden, nil)
	next.Apply(func(i, j int, _ float64) float64 {
		zv := z.At(i, j)
		return (1-zv)*h.At(i, j) + zv*n.At(i, j)
	}, next)
	return next, nil
}

func (c *gruCell) hasCell() bool { return false }

func (c *gruCell) parameters(prefix string) []*Parameter {
	var ps []*Parameter
	ps = append(ps, c.reset.parameters(prefix+".reset")...)
	ps = append(ps, c.update.parameters(prefix+".update")...)
	ps = append(ps, c.candidate.parameters(prefix+".candidate")...)
	return ps
}

// lstmCell:
//
//	i, f, o = sigmoid(...), g = tanh(...)
//	c' = f * c + i * g
//	h' = o * tanh(c')
type lstmCell struct {
	input  gate
	forget gate
	cell   gate
	output gate
}

func (l *lstmCell) step(x, h, c *mat.Dense) (*mat.Dense, *mat.Dense) {
	i := l.input.preActivation(x, h)
	applySigmoid(i)
	f := l.forget.preActivation(x, h)
	applySigmoid(f)
	g := l.cell.preActivation(x, h)
	applyTanh(g)
	o := l.output.preActivation(x, h)
	applySigmoid(o)

	batch, hidden := h.Dims()
	nextC := mat.NewDense(batch, hidden, nil)
	nextC.Apply(func(r, k int, _ float64) float64 {
		return f.At(r, k)*c.At(r, k) + i.At(r, k)*g.At(r, k)
	}, nextC)

	nextH := mat.NewDense(batch, hidden, nil)
	nextH.Apply(func(r, k int, _ float64) float64 {
		return o.At(r, k) * math.Tanh(nextC.At(r, k))
	}, nextH)
	return nextH, nextC
}

func (l *lstmCell) hasCell() bool { return true }

func (l *lstmCell) parameters(prefix string) []*Parameter {
	var ps []*Parameter
	ps = append(ps, l.input.parameters(prefix+".input")...)
	ps = append(ps, l.forget.parameters(prefix+".forget")...)
	ps = append(ps, l.cell.parameters(prefix+".cell")...)
	ps = append(ps, l.output.parameters(prefix+".output")...)
	return ps
}
