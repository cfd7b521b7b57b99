package smoothing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/esrnn/internal/params"
)

// levelEngine smooths the level only.
type levelEngine struct{}

func (e *levelEngine) Seasonality() []int {
	return nil
}

// ComputeState runs level[0] = y[0], level[t] = a*y[t] + (1-a)*level[t-1].
func (e *levelEngine) ComputeState(y *mat.Dense, snap *params.Snapshot) (*State, error) {
	if err := checkSnapshot(y, snap, nil); err != nil {
		return nil, err
	}

	batch, nTime := y.Dims()
	levels := mat.NewDense(batch, nTime, nil)
	for i := 0; i < batch; i++ {
		alpha := snap.LevelSmoothing.AtVec(i)
		prev := y.At(i, 0)
		if err := checkPositive("observation", prev, snap.Idxs[i], 0); err != nil {
			return nil, err
		}
		levels.Set(i, 0, prev)
		for t := 1; t < nTime; t++ {
			obs := y.At(i, t)
			if err := checkPositive("observation", obs, snap.Idxs[i], t); err != nil {
				return nil, err
			}
			prev = alpha*obs + (1-alpha)*prev
			levels.Set(i, t, prev)
		}
	}

	return &State{
		Idxs:   append([]int(nil), snap.Idxs...),
		Levels: levels,
	}, nil
}

func (e *levelEngine) Normalize(y *mat.Dense, state *State, start, end, anchor int) (*mat.Dense, error) {
	return normalize(y, state, nil, start, end, anchor)
}

func (e *levelEngine) Denormalize(z *mat.Dense, state *State, start, anchor int) (*mat.Dense, error) {
	return denormalize(z, state, nil, start, anchor)
}

// Predict scales exp(trend) by the last level.
func (e *levelEngine) Predict(trend *mat.Dense, state *State) (*mat.Dense, error) {
	nTime := state.NTime()
	return denormalize(trend, state, nil, nTime, nTime-1)
}
