package rnn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/esrnn/pkg/errors"
)

// DenseLayer represents a fully connected layer
type DenseLayer struct {
	inputSize  int
	outputSize int
	weights    *mat.Dense    // output x input
	bias       *mat.VecDense // output
}

// NewDenseLayer creates a Xavier-initialised layer with zero bias.
func NewDenseLayer(inputSize, outputSize int, rng *rand.Rand) *DenseLayer {
	return &DenseLayer{
		inputSize:  inputSize,
		outputSize: outputSize,
		weights:    xavier(outputSize, inputSize, inputSize, outputSize, rng),
		bias:       mat.NewVecDense(outputSize, nil),
	}
}

func (l *DenseLayer) InputSize() int  { return l.inputSize }
func (l *DenseLayer) OutputSize() int { return l.outputSize }

// Weights returns the live output x input weight matrix.
func (l *DenseLayer) Weights() *mat.Dense { return l.weights }

// Bias returns the live bias vector.
func (l *DenseLayer) Bias() *mat.VecDense { return l.bias }

// Forward maps a batch x input matrix to batch x output.
func (l *DenseLayer) Forward(x *mat.Dense) (*mat.Dense, error) {
	if _, c := x.Dims(); c != l.inputSize {
		return nil, errors.NewShapeError(errors.CodeSequenceShape,
			fmt.Sprintf("dense layer expects %d features, got %d", l.inputSize, c))
	}
	return affine(x, l.weights, l.bias), nil
}

// Parameters returns the layer weights under the given name.
func (l *DenseLayer) Parameters(name string) []*Parameter {
	return []*Parameter{
		matrixParameter(name+".weight", l.weights),
		vectorParameter(name+".bias", l.bias),
	}
}
