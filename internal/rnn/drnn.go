package rnn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/esrnn/pkg/errors"
)

// DRNN is a stack of dilated recurrent sub-layers. Sub-layer k connects each
// step t to its own output at step t-dilations[k]; steps before the first
// dilation start from a zero state.
type DRNN struct {
	inputSize  int
	hiddenSize int
	cellType   string
	dilations  []int
	cells      []cell
}

// NewDRNN builds nLayers sub-layers using the first nLayers dilations. The first
// sub-layer reads inputSize features, the others read hiddenSize.
func NewDRNN(inputSize, hiddenSize, nLayers int, dilations []int, cellType string, rng *rand.Rand) (*DRNN, error) {
	if inputSize <= 0 || hiddenSize <= 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidSize,
			fmt.Sprintf("invalid layer size %dx%d", inputSize, hiddenSize))
	}
	if nLayers <= 0 || nLayers > len(dilations) {
		return nil, errors.NewConfigurationError(errors.CodeInvalidDilations,
			fmt.Sprintf("%d layers need as many dilations, got %v", nLayers, dilations))
	}
	for _, d := range dilations[:nLayers] {
		if d <= 0 {
			return nil, errors.NewConfigurationError(errors.CodeInvalidDilations,
				fmt.Sprintf("dilation factors must be positive, got %v", dilations))
		}
	}

	l := &DRNN{
		inputSize:  inputSize,
		hiddenSize: hiddenSize,
		cellType:   cellType,
		dilations:  append([]int(nil), dilations[:nLayers]...),
		cells:      make([]cell, nLayers),
	}

	in := inputSize
	for k := range l.cells {
		c, err := newCell(cellType, in, hiddenSize, rng)
		if err != nil {
			return nil, err
		}
		l.cells[k] = c
		in = hiddenSize
	}
	return l, nil
}

func (l *DRNN) InputSize() int  { return l.inputSize }
func (l *DRNN) HiddenSize() int { return l.hiddenSize }

// Dilations returns the dilation of every sub-layer.
func (l *DRNN) Dilations() []int {
	return append([]int(nil), l.dilations...)
}

// Forward runs the sequence through every sub-layer in turn.
func (l *DRNN) Forward(seq []*mat.Dense) ([]*mat.Dense, *State, error) {
	batch, err := checkSequence(seq, l.inputSize)
	if err != nil {
		return nil, nil, err
	}

	state := &State{Hidden: make([]*mat.Dense, len(l.cells))}
	if l.cells[0].hasCell() {
		state.Cell = make([]*mat.Dense, len(l.cells))
	}

	cur := seq
	for k, c := range l.cells {
		out, hLast, cLast := l.runDilated(c, cur, l.dilations[k], batch)
		state.Hidden[k] = hLast
		if state.Cell != nil {
			state.Cell[k] = cLast
		}
		cur = out
	}
	return cur, state, nil
}

// runDilated applies one sub-layer. The recurrent input at step t is the
// output at step t-d.
func (l *DRNN) runDilated(c cell, seq []*mat.Dense, d, batch int) ([]*mat.Dense, *mat.Dense, *mat.Dense) {
	zero := mat.NewDense(batch, l.hiddenSize, nil)
	hs := make([]*mat.Dense, len(seq))
	var cs []*mat.Dense
	if c.hasCell() {
		cs = make([]*mat.Dense, len(seq))
	}

	for t, x := range seq {
		hPrev, cPrev := zero, zero
		if t >= d {
			hPrev = hs[t-d]
			if cs != nil {
				cPrev = cs[t-d]
			}
		}
		h, cNext := c.step(x, hPrev, cPrev)
		hs[t] = h
		if cs != nil {
			cs[t] = cNext
		}
	}

	last := len(seq) - 1
	if cs != nil {
		return hs, hs[last], cs[last]
	}
	return hs, hs[last], nil
}

// Parameters returns every sub-layer's weights, prefixed by its position.
func (l *DRNN) Parameters() []*Parameter {
	var ps []*Parameter
	for k, c := range l.cells {
		ps = append(ps, c.parameters(fmt.Sprintf("layer%d", k))...)
	}
	return ps
}
