package smoothing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/esrnn/pkg/errors"
)

// normalize computes log(y / seasonal / level[anchor]) over [start, end).
// seasonal may be nil.
func normalize(y *mat.Dense, state *State, seasonal *mat.Dense, start, end, anchor int) (*mat.Dense, error) {
	batch, nTime := y.Dims()
	if batch != state.BatchSize() {
		return nil, errors.NewShapeError(errors.CodeBatchShape,
			fmt.Sprintf("observations have %d series, state has %d", batch, state.BatchSize()))
	}
	if err := checkWindow(state, start, end, anchor, nTime); err != nil {
		return nil, err
	}
	if seasonal != nil {
		if _, c := seasonal.Dims(); end > c {
			return nil, errors.NewShapeError(errors.CodeSequenceShape,
				fmt.Sprintf("seasonal sequence of length %d does not cover index %d", c, end-1))
		}
	}

	out := mat.NewDense(batch, end-start, nil)
	for i := 0; i < batch; i++ {
		series := state.Idxs[i]
		level := state.Levels.At(i, anchor)
		if err := checkPositive("level", level, series, anchor); err != nil {
			return nil, err
		}
		for t := start; t < end; t++ {
			v := y.At(i, t)
			if err := checkPositive("observation", v, series, t); err != nil {
				return nil, err
			}
			if seasonal != nil {
				s := seasonal.At(i, t)
				if err := checkPositive("seasonal value", s, series, t); err != nil {
					return nil, err
				}
				v /= s
			}
			out.Set(i, t-start, math.Log(v/level))
		}
	}
	return out, nil
}

// denormalize computes exp(z) * seasonal * level[anchor] for a window starting
// at absolute position start. seasonal may be nil.
func denormalize(z *mat.Dense, state *State, seasonal *mat.Dense, start, anchor int) (*mat.Dense, error) {
	batch, width := z.Dims()
	if batch != state.BatchSize() {
		return nil, errors.NewShapeError(errors.CodeBatchShape,
			fmt.Sprintf("trend has %d series, state has %d", batch, state.BatchSize()))
	}
	if anchor < 0 || anchor >= state.NTime() || start < 0 {
		return nil, errors.NewPreconditionError(errors.CodeSeriesTooShort,
			fmt.Sprintf("level anchor %d outside [0, %d)", anchor, state.NTime()))
	}
	if seasonal != nil {
		if _, c := seasonal.Dims(); start+width > c {
			return nil, errors.NewShapeError(errors.CodeSequenceShape,
				fmt.Sprintf("seasonal sequence of length %d does not cover [%d, %d)", c, start, start+width))
		}
	}

	out := mat.NewDense(batch, width, nil)
	out.Apply(func(i, j int, v float64) float64 {
		r := math.Exp(v) * state.Levels.At(i, anchor)
		if seasonal != nil {
			r *= seasonal.At(i, start+j)
		}
		return r
	}, z)
	return out, nil
}

// ExtendSeasonality appends ceil(horizon/period)-1 copies of the last period
// columns of seas when horizon exceeds period. Otherwise seas is returned as is.
func ExtendSeasonality(seas *mat.Dense, period, horizon int) *mat.Dense {
	if horizon <= period {
		return seas
	}
	reps := (horizon+period-1)/period - 1

	batch, n := seas.Dims()
	out := mat.NewDense(batch, n+reps*period, nil)
	out.Slice(0, batch, 0, n).(*mat.Dense).Copy(seas)

	last := seas.Slice(0, batch, n-period, n)
	for r := 0; r < reps; r++ {
		from := n + r*period
		out.Slice(0, batch, from, from+period).(*mat.Dense).Copy(last)
	}
	return out
}
