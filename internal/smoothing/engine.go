// Package smoothing implements the per-series exponential smoothing recursion
// and the window normalisation built on top of it.
//
// The engine variant is chosen once from the number of seasonal periods:
// none (level only), one (level and a multiplicative seasonal component) or
// two, which is recognised but not implemented.
package smoothing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/esrnn/internal/params"
	"github.com/inferloop/esrnn/pkg/constants"
	"github.com/inferloop/esrnn/pkg/errors"
)

// State holds the level and seasonal sequences computed for one batch.
type State struct {
	Idxs []int

	// Levels is batch x n_time.
	Levels *mat.Dense

	// Seasonalities holds one batch x (n_time+period) matrix per seasonal
	// period. The sequence runs one period ahead of the levels so the values
	// for the forecast region [n_time, n_time+period) are available.
	Seasonalities []*mat.Dense
}

// NTime returns the number of level steps in the state.
func (s *State) NTime() int {
	_, c := s.Levels.Dims()
	return c
}

// BatchSize returns the number of series in the state.
func (s *State) BatchSize() int {
	r, _ := s.Levels.Dims()
	return r
}

// Engine computes smoothing states and maps windows to and from the
// normalised log domain.
type Engine interface {
	// Seasonality returns the configured seasonal periods.
	Seasonality() []int

	// ComputeState runs the recursion over y (batch x n_time) with the
	// per-series coefficients of snap.
	ComputeState(y *mat.Dense, snap *params.Snapshot) (*State, error)

	// Normalize returns log(y / seasonal / level[anchor]) for the columns
	// [start, end) of y. anchor is the absolute time index of the level used.
	Normalize(y *mat.Dense, state *State, start, end, anchor int) (*mat.Dense, error)

	// Denormalize inverts Normalize for a window placed at absolute position
	// start, using the level at anchor.
	Denormalize(z *mat.Dense, state *State, start, anchor int) (*mat.Dense, error)

	// Predict maps the network output (batch x horizon) back to the raw scale
	// for the horizon immediately following the observed series.
	Predict(trend *mat.Dense, state *State) (*mat.Dense, error)
}

// NewEngine selects the engine variant for the given seasonal periods.
func NewEngine(seasonality []int) (Engine, error) {
	for _, p := range seasonality {
		if p <= 0 {
			return nil, errors.NewConfigurationError(errors.CodeInvalidSeasonality, "seasonal periods must be positive").
				WithContext("seasonality", seasonality)
		}
	}

	switch n := len(seasonality); {
	case n > constants.MaxSeasonalities:
		return nil, errors.NewConfigurationError(errors.CodeUnsupportedSeasonality,
			fmt.Sprintf("at most %d seasonal periods are supported, got %d", constants.MaxSeasonalities, n)).
			WithContext("seasonality", seasonality)
	case n > constants.MaxImplementedSeasonalities:
		return nil, errors.NewNotImplementedError(errors.CodeSeasonalityNotImplemented,
			fmt.Sprintf("%d seasonal periods are not implemented", n)).
			WithContext("seasonality", seasonality)
	case n == 1:
		return &seasonalEngine{period: seasonality[0]}, nil
	default:
		return &levelEngine{}, nil
	}
}

func checkSnapshot(y *mat.Dense, snap *params.Snapshot, periods []int) error {
	batch, nTime := y.Dims()
	if nTime == 0 {
		return errors.NewPreconditionError(errors.CodeSeriesTooShort, "series have no observations")
	}
	if len(snap.Idxs) != batch || snap.LevelSmoothing.Len() != batch {
		return errors.NewShapeError(errors.CodeBatchShape,
			fmt.Sprintf("parameter snapshot covers %d series, batch has %d", len(snap.Idxs), batch))
	}
	if len(snap.SeasonalSmoothing) < len(periods) || len(snap.InitialSeasonal) < len(periods) {
		return errors.NewShapeError(errors.CodeTableShape, "parameter snapshot is missing seasonal tables")
	}
	for k, p := range periods {
		if snap.SeasonalSmoothing[k].Len() != batch {
			return errors.NewShapeError(errors.CodeTableShape, "seasonal smoothing snapshot has wrong length").
				WithContext("period", k)
		}
		if r, c := snap.InitialSeasonal[k].Dims(); r != batch || c != p {
			return errors.NewShapeError(errors.CodeTableShape,
				fmt.Sprintf("initial seasonal snapshot is %dx%d, want %dx%d", r, c, batch, p)).
				WithContext("period", k)
		}
	}
	return nil
}

// checkWindow validates the column range [start, end) and the level anchor.
func checkWindow(state *State, start, end, anchor, width int) error {
	if start < 0 || end > width || start >= end {
		return errors.NewPreconditionError(errors.CodeSeriesTooShort,
			fmt.Sprintf("window [%d, %d) outside series of length %d", start, end, width))
	}
	if anchor < 0 || anchor >= state.NTime() {
		return errors.NewPreconditionError(errors.CodeSeriesTooShort,
			fmt.Sprintf("level anchor %d outside [0, %d)", anchor, state.NTime()))
	}
	return nil
}

// checkPositive rejects values that are not strictly positive and finite.
func checkPositive(what string, v float64, series, t int) error {
	switch {
	case math.IsInf(v, 0):
		return errors.NewPreconditionError(errors.CodeNonFiniteValue,
			fmt.Sprintf("%s %g is not finite", what, v)).
			WithContext("series", series).
			WithContext("time", t)
	case !(v > 0):
		return errors.NewPreconditionError(errors.CodeNonPositiveValue,
			fmt.Sprintf("%s %g is not strictly positive", what, v)).
			WithContext("series", series).
			WithContext("time", t)
	}
	return nil
}
