// Package rnn provides dilated recurrent layers and dense layers operating on
// batch x features matrices.
package rnn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/esrnn/pkg/errors"
)

// Layer maps a sequence of batch x InputSize matrices to a sequence of
// batch x HiddenSize matrices of the same length.
type Layer interface {
	Forward(seq []*mat.Dense) ([]*mat.Dense, *State, error)
	InputSize() int
	HiddenSize() int
	Parameters() []*Parameter
}

// State is the final recurrent state of every sub-layer after a Forward call.
type State struct {
	Hidden []*mat.Dense // batch x hidden per sub-layer
	Cell   []*mat.Dense // batch x hidden per sub-layer, LSTM only
}

// Parameter exposes trainable weights to an external optimizer. Data aliases
// the layer's storage in row-major order; writes to it take effect immediately.
type Parameter struct {
	Name string
	Rows int
	Cols int
	Data []float64
}

func matrixParameter(name string, m *mat.Dense) *Parameter {
	raw := m.RawMatrix()
	return &Parameter{Name: name, Rows: raw.Rows, Cols: raw.Cols, Data: raw.Data}
}

func vectorParameter(name string, v *mat.VecDense) *Parameter {
	raw := v.RawVector()
	return &Parameter{Name: name, Rows: raw.N, Cols: 1, Data: raw.Data}
}

// xavier draws a rows x cols matrix with N(0, 2/(fanIn+fanOut)) entries.
func xavier(rows, cols, fanIn, fanOut int, rng *rand.Rand) *mat.Dense {
	scale := math.Sqrt(2.0 / float64(fanIn+fanOut))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64() * scale
	}
	return mat.NewDense(rows, cols, data)
}

// affine returns x * w^T + b for every row of x.
func affine(x, w *mat.Dense, b *mat.VecDense) *mat.Dense {
	batch, _ := x.Dims()
	out, _ := w.Dims()
	res := mat.NewDense(batch, out, nil)
	res.Mul(x, w.T())
	if b != nil {
		res.Apply(func(_, j int, v float64) float64 { return v + b.AtVec(j) }, res)
	}
	return res
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func applySigmoid(m *mat.Dense) {
	m.Apply(func(_, _ int, v float64) float64 { return sigmoid(v) }, m)
}

func applyTanh(m *mat.Dense) {
	m.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, m)
}

// checkSequence validates that seq is non-empty and every step is batch x width.
func checkSequence(seq []*mat.Dense, width int) (int, error) {
	if len(seq) == 0 {
		return 0, errors.NewShapeError(errors.CodeSequenceShape, "empty input sequence")
	}
	batch, _ := seq[0].Dims()
	for t, x := range seq {
		r, c := x.Dims()
		if r != batch || c != width {
			return 0, errors.NewShapeError(errors.CodeSequenceShape,
				fmt.Sprintf("step %d is %dx%d, want %dx%d", t, r, c, batch, width))
		}
	}
	return batch, nil
}
