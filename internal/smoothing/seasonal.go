package smoothing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/esrnn/internal/params"
	"github.com/inferloop/esrnn/pkg/errors"
)

// seasonalEngine smooths a level and one multiplicative seasonal component.
type seasonalEngine struct {
	period int
}

func (e *seasonalEngine) Seasonality() []int {
	return []int{e.period}
}

// ComputeState runs the single-seasonality recursion. The first period
// seasonal values come from the snapshot and seasonal[P] repeats seasonal[0].
// For t >= 1:
//
//	level[t]      = a*y[t]/s[t] + (1-a)*level[t-1]
//	s[t+P]        = g*y[t]/level[t] + (1-g)*s[t]
func (e *seasonalEngine) ComputeState(y *mat.Dense, snap *params.Snapshot) (*State, error) {
	periods := []int{e.period}
	if err := checkSnapshot(y, snap, periods); err != nil {
		return nil, err
	}

	batch, nTime := y.Dims()
	p := e.period
	levels := mat.NewDense(batch, nTime, nil)
	seasonal := mat.NewDense(batch, nTime+p, nil)
	init := snap.InitialSeasonal[0]

	for i := 0; i < batch; i++ {
		alpha := snap.LevelSmoothing.AtVec(i)
		gamma := snap.SeasonalSmoothing[0].AtVec(i)

		for j := 0; j < p; j++ {
			s := init.At(i, j)
			if err := checkPositive("initial seasonal value", s, snap.Idxs[i], j); err != nil {
				return nil, err
			}
			seasonal.Set(i, j, s)
		}
		seasonal.Set(i, p, seasonal.At(i, 0))

		first := y.At(i, 0)
		if err := checkPositive("observation", first, snap.Idxs[i], 0); err != nil {
			return nil, err
		}
		prev := first / seasonal.At(i, 0)
		levels.Set(i, 0, prev)
		for t := 1; t < nTime; t++ {
			obs := y.At(i, t)
			if err := checkPositive("observation", obs, snap.Idxs[i], t); err != nil {
				return nil, err
			}
			s := seasonal.At(i, t)
			prev = alpha*(obs/s) + (1-alpha)*prev
			levels.Set(i, t, prev)
			seasonal.Set(i, t+p, gamma*(obs/prev)+(1-gamma)*s)
		}
	}

	return &State{
		Idxs:          append([]int(nil), snap.Idxs...),
		Levels:        levels,
		Seasonalities: []*mat.Dense{seasonal},
	}, nil
}

func (e *seasonalEngine) Normalize(y *mat.Dense, state *State, start, end, anchor int) (*mat.Dense, error) {
	seasonal, err := e.seasonal(state)
	if err != nil {
		return nil, err
	}
	return normalize(y, state, seasonal, start, end, anchor)
}

func (e *seasonalEngine) Denormalize(z *mat.Dense, state *State, start, anchor int) (*mat.Dense, error) {
	seasonal, err := e.seasonal(state)
	if err != nil {
		return nil, err
	}
	return denormalize(z, state, seasonal, start, anchor)
}

// Predict scales exp(trend) by the last level and the seasonal values of the
// forecast region, repeating the last cycle when the horizon exceeds the period.
func (e *seasonalEngine) Predict(trend *mat.Dense, state *State) (*mat.Dense, error) {
	seasonal, err := e.seasonal(state)
	if err != nil {
		return nil, err
	}
	_, horizon := trend.Dims()
	extended := ExtendSeasonality(seasonal, e.period, horizon)

	nTime := state.NTime()
	return denormalize(trend, state, extended, nTime, nTime-1)
}

func (e *seasonalEngine) seasonal(state *State) (*mat.Dense, error) {
	if len(state.Seasonalities) != 1 {
		return nil, errors.NewShapeError(errors.CodeSequenceShape,
			fmt.Sprintf("state carries %d seasonal sequences, want 1", len(state.Seasonalities)))
	}
	return state.Seasonalities[0], nil
}
