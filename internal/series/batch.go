// Package series holds the raw observation batches fed to the model.
package series

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/esrnn/pkg/errors"
)

// Batch is a set of equally long series together with their global ids.
type Batch struct {
	Idxs       []int      // Global series ids, one per row of Y
	Y          *mat.Dense // batch x n_time raw observations
	Categories *mat.Dense // batch x exogenous_size static features, may be nil
}

// NewBatch builds a batch from row slices. categories may be nil.
func NewBatch(idxs []int, y [][]float64, categories [][]float64) (*Batch, error) {
	if len(y) == 0 {
		return nil, errors.NewPreconditionError(errors.CodeEmptyBatch, "batch has no series")
	}
	if len(idxs) != len(y) {
		return nil, errors.NewShapeError(errors.CodeBatchShape,
			fmt.Sprintf("got %d ids for %d series", len(idxs), len(y)))
	}

	yMat, err := fromRows(y, "observations")
	if err != nil {
		return nil, err
	}

	b := &Batch{
		Idxs: append([]int(nil), idxs...),
		Y:    yMat,
	}

	if categories != nil {
		if len(categories) != len(y) {
			return nil, errors.NewShapeError(errors.CodeExogenousMismatch,
				fmt.Sprintf("got %d category rows for %d series", len(categories), len(y)))
		}
		width := 0
		for _, row := range categories {
			width = max(width, len(row))
		}
		if width > 0 {
			b.Categories, err = fromRows(categories, "categories")
			if err != nil {
				return nil, errors.WrapError(err, errors.ErrorTypeShape, errors.CodeExogenousMismatch,
					"category rows differ in length")
			}
		}
	}

	return b, nil
}

// Size returns the number of series in the batch.
func (b *Batch) Size() int {
	r, _ := b.Y.Dims()
	return r
}

// NTime returns the number of observations per series.
func (b *Batch) NTime() int {
	_, c := b.Y.Dims()
	return c
}

// ExogenousSize returns the width of the category matrix, zero when absent.
func (b *Batch) ExogenousSize() int {
	if b.Categories == nil {
		return 0
	}
	_, c := b.Categories.Dims()
	return c
}

// Validate checks the batch against the model's table size and exogenous width.
// Observations must be finite and strictly positive.
func (b *Batch) Validate(exogenousSize, nSeries int) error {
	if b.Y == nil || b.Size() == 0 {
		return errors.NewPreconditionError(errors.CodeEmptyBatch, "batch has no series")
	}
	if len(b.Idxs) != b.Size() {
		return errors.NewShapeError(errors.CodeBatchShape,
			fmt.Sprintf("got %d ids for %d series", len(b.Idxs), b.Size()))
	}
	for _, idx := range b.Idxs {
		if idx < 0 || idx >= nSeries {
			return errors.NewPreconditionError(errors.CodeUnknownSeries,
				fmt.Sprintf("series id %d outside [0, %d)", idx, nSeries)).
				WithContext("series", idx)
		}
	}

	if got := b.ExogenousSize(); got != exogenousSize {
		return errors.NewShapeError(errors.CodeExogenousMismatch,
			fmt.Sprintf("exogenous width %d does not match configured %d", got, exogenousSize))
	}
	if b.Categories != nil {
		if r, _ := b.Categories.Dims(); r != b.Size() {
			return errors.NewShapeError(errors.CodeExogenousMismatch,
				fmt.Sprintf("got %d category rows for %d series", r, b.Size()))
		}
	}

	for i := 0; i < b.Size(); i++ {
		for t := 0; t < b.NTime(); t++ {
			v := b.Y.At(i, t)
			if math.IsInf(v, 0) {
				return errors.NewPreconditionError(errors.CodeNonFiniteValue,
					fmt.Sprintf("observation %g is not finite", v)).
					WithContext("series", b.Idxs[i]).
					WithContext("time", t)
			}
			if !(v > 0) {
				return errors.NewPreconditionError(errors.CodeNonPositiveValue,
					fmt.Sprintf("observation %g is not strictly positive", v)).
					WithContext("series", b.Idxs[i]).
					WithContext("time", t)
			}
		}
	}

	return nil
}

func fromRows(rows [][]float64, what string) (*mat.Dense, error) {
	width := len(rows[0])
	if width == 0 {
		return nil, errors.NewShapeError(errors.CodeBatchShape, what+" rows are empty")
	}
	data := make([]float64, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return nil, errors.NewShapeError(errors.CodeBatchShape,
				fmt.Sprintf("%s row %d has length %d, want %d", what, i, len(row), width))
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), width, data), nil
}
