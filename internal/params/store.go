// Package params owns the per-series learnable smoothing tables.
//
// Values are stored raw (pre-activation). Smoothing coefficients are squashed
// through the logistic function and initial seasonal vectors exponentiated
// when a snapshot is taken, so every coefficient a forward pass sees lies in
// [0, 1]. The bounds are reached only when the logistic saturates in float64,
// for raw values beyond about ±37. Initial seasonal values are positive but
// may overflow to +Inf, which the smoothing engines reject.
package params

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/esrnn/pkg/constants"
	"github.com/inferloop/esrnn/pkg/errors"
)

// Tables are the raw parameter tables, indexed by global series id.
type Tables struct {
	LevelSmoothing    *mat.VecDense   // n_series
	SeasonalSmoothing []*mat.VecDense // one n_series vector per seasonal period
	InitialSeasonal   []*mat.Dense    // one n_series x period matrix per seasonal period
}

// Snapshot is a consistent, activated view of the tables for one batch.
type Snapshot struct {
	Idxs              []int
	LevelSmoothing    *mat.VecDense   // batch, in (0, 1)
	SeasonalSmoothing []*mat.VecDense // batch, in (0, 1)
	InitialSeasonal   []*mat.Dense    // batch x period, strictly positive
}

// Store guards the tables. Readers take snapshots, the external optimizer
// mutates through Update.
type Store struct {
	mu      sync.RWMutex
	nSeries int
	periods []int
	tables  *Tables
}

// Option customises the initial table values.
type Option func(*storeOptions) error

type storeOptions struct {
	levelSmoothing    float64
	seasonalSmoothing float64
	initialSeasonal   map[int][]float64
}

// WithInitialLevelSmoothing sets the raw initial level coefficient for every series.
func WithInitialLevelSmoothing(raw float64) Option {
	return func(o *storeOptions) error {
		if math.IsNaN(raw) || math.IsInf(raw, 0) {
			return errors.NewConfigurationError(errors.CodeInvalidSmoothing, "initial level smoothing must be finite")
		}
		o.levelSmoothing = raw
		return nil
	}
}

// WithInitialSeasonalSmoothing sets the raw initial seasonal coefficient for every series and period.
func WithInitialSeasonalSmoothing(raw float64) Option {
	return func(o *storeOptions) error {
		if math.IsNaN(raw) || math.IsInf(raw, 0) {
			return errors.NewConfigurationError(errors.CodeInvalidSmoothing, "initial seasonal smoothing must be finite")
		}
		o.seasonalSmoothing = raw
		return nil
	}
}

// WithInitialSeasonal seeds the k-th seasonal period of every series with the given
// positive factors. They are stored as logarithms.
func WithInitialSeasonal(k int, values []float64) Option {
	return func(o *storeOptions) error {
		for i, v := range values {
			if !(v > 0) || math.IsInf(v, 0) {
				return errors.NewConfigurationError(errors.CodeNonPositiveSeasonal,
					fmt.Sprintf("initial seasonal value %g must be strictly positive", v)).
					WithContext("period", k).
					WithContext("phase", i)
			}
		}
		o.initialSeasonal[k] = append([]float64(nil), values...)
		return nil
	}
}

// NewStore allocates the tables for nSeries series and the given seasonal periods.
func NewStore(nSeries int, periods []int, opts ...Option) (*Store, error) {
	if nSeries <= 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidSize, "n_series must be positive").
			WithContext("n_series", nSeries)
	}
	for _, p := range periods {
		if p <= 0 {
			return nil, errors.NewConfigurationError(errors.CodeInvalidSeasonality, "seasonal periods must be positive").
				WithContext("seasonality", periods)
		}
	}

	o := &storeOptions{
		levelSmoothing:    constants.DefaultRawLevelSmoothing,
		seasonalSmoothing: constants.DefaultRawSeasonalSmoothing,
		initialSeasonal:   make(map[int][]float64),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	for k := range o.initialSeasonal {
		if k < 0 || k >= len(periods) {
			return nil, errors.NewConfigurationError(errors.CodeInvalidSeasonality,
				fmt.Sprintf("no seasonal period with index %d", k))
		}
	}

	tables := &Tables{
		LevelSmoothing:    filledVec(nSeries, o.levelSmoothing),
		SeasonalSmoothing: make([]*mat.VecDense, len(periods)),
		InitialSeasonal:   make([]*mat.Dense, len(periods)),
	}

	for k, p := range periods {
		tables.SeasonalSmoothing[k] = filledVec(nSeries, o.seasonalSmoothing)

		init := mat.NewDense(nSeries, p, nil)
		values, ok := o.initialSeasonal[k]
		if ok && len(values) != p {
			return nil, errors.NewConfigurationError(errors.CodeInvalidSeasonality,
				fmt.Sprintf("initial seasonal vector for period %d has length %d", p, len(values))).
				WithContext("period", k)
		}
		for i := 0; i < nSeries; i++ {
			for j := 0; j < p; j++ {
				if ok {
					init.Set(i, j, math.Log(values[j]))
				} else {
					init.Set(i, j, constants.DefaultRawInitialSeasonal)
				}
			}
		}
		tables.InitialSeasonal[k] = init
	}

	return &Store{
		nSeries: nSeries,
		periods: append([]int(nil), periods...),
		tables:  tables,
	}, nil
}

// NSeries returns the number of rows in each table.
func (s *Store) NSeries() int {
	return s.nSeries
}

// Periods returns the seasonal periods the store was built for.
func (s *Store) Periods() []int {
	return append([]int(nil), s.periods...)
}

// Snapshot copies the activated parameters of the given series under a read lock.
func (s *Store) Snapshot(idxs []int) (*Snapshot, error) {
	if len(idxs) == 0 {
		return nil, errors.NewPreconditionError(errors.CodeEmptyBatch, "snapshot of an empty batch")
	}
	for _, idx := range idxs {
		if idx < 0 || idx >= s.nSeries {
			return nil, errors.NewPreconditionError(errors.CodeUnknownSeries,
				fmt.Sprintf("series id %d outside [0, %d)", idx, s.nSeries)).
				WithContext("series", idx)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Idxs:              append([]int(nil), idxs...),
		LevelSmoothing:    mat.NewVecDense(len(idxs), nil),
		SeasonalSmoothing: make([]*mat.VecDense, len(s.periods)),
		InitialSeasonal:   make([]*mat.Dense, len(s.periods)),
	}

	for b, idx := range idxs {
		snap.LevelSmoothing.SetVec(b, Logistic(s.tables.LevelSmoothing.AtVec(idx)))
	}

	for k, p := range s.periods {
		coeff := mat.NewVecDense(len(idxs), nil)
		init := mat.NewDense(len(idxs), p, nil)
		for b, idx := range idxs {
			coeff.SetVec(b, Logistic(s.tables.SeasonalSmoothing[k].AtVec(idx)))
			for j := 0; j < p; j++ {
				init.Set(b, j, math.Exp(s.tables.InitialSeasonal[k].At(idx, j)))
			}
		}
		snap.SeasonalSmoothing[k] = coeff
		snap.InitialSeasonal[k] = init
	}

	return snap, nil
}

// Update applies fn to a copy of the raw tables under the write lock. The copy
// replaces the live tables only if fn succeeds and the shapes are unchanged, so
// readers never observe a partial update.
func (s *Store) Update(fn func(*Tables) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.tables.clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := s.checkShapes(next); err != nil {
		return err
	}

	s.tables = next
	return nil
}

// Raw returns a copy of the raw tables.
func (s *Store) Raw() *Tables {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables.clone()
}

// SetLevelSmoothing sets the raw level coefficient of one series.
func (s *Store) SetLevelSmoothing(idx int, raw float64) error {
	if err := s.checkIdx(idx); err != nil {
		return err
	}
	return s.Update(func(t *Tables) error {
		t.LevelSmoothing.SetVec(idx, raw)
		return nil
	})
}

// SetSeasonalSmoothing sets the raw seasonal coefficient of one series for period k.
func (s *Store) SetSeasonalSmoothing(k, idx int, raw float64) error {
	if err := s.checkIdx(idx); err != nil {
		return err
	}
	if k < 0 || k >= len(s.periods) {
		return errors.NewPreconditionError(errors.CodeInvalidSeasonality,
			fmt.Sprintf("no seasonal period with index %d", k))
	}
	return s.Update(func(t *Tables) error {
		t.SeasonalSmoothing[k].SetVec(idx, raw)
		return nil
	})
}

func (s *Store) checkIdx(idx int) error {
	if idx < 0 || idx >= s.nSeries {
		return errors.NewPreconditionError(errors.CodeUnknownSeries,
			fmt.Sprintf("series id %d outside [0, %d)", idx, s.nSeries)).
			WithContext("series", idx)
	}
	return nil
}

func (s *Store) checkShapes(t *Tables) error {
	if t.LevelSmoothing == nil || t.LevelSmoothing.Len() != s.nSeries {
		return errors.NewShapeError(errors.CodeTableShape, "level smoothing table resized")
	}
	if len(t.SeasonalSmoothing) != len(s.periods) || len(t.InitialSeasonal) != len(s.periods) {
		return errors.NewShapeError(errors.CodeTableShape, "seasonal tables added or removed")
	}
	for k, p := range s.periods {
		if t.SeasonalSmoothing[k] == nil || t.SeasonalSmoothing[k].Len() != s.nSeries {
			return errors.NewShapeError(errors.CodeTableShape, "seasonal smoothing table resized").
				WithContext("period", k)
		}
		if t.InitialSeasonal[k] == nil {
			return errors.NewShapeError(errors.CodeTableShape, "initial seasonal table removed").
				WithContext("period", k)
		}
		if r, c := t.InitialSeasonal[k].Dims(); r != s.nSeries || c != p {
			return errors.NewShapeError(errors.CodeTableShape, "initial seasonal table resized").
				WithContext("period", k)
		}
	}
	return nil
}

func (t *Tables) clone() *Tables {
	out := &Tables{
		LevelSmoothing:    mat.VecDenseCopyOf(t.LevelSmoothing),
		SeasonalSmoothing: make([]*mat.VecDense, len(t.SeasonalSmoothing)),
		InitialSeasonal:   make([]*mat.Dense, len(t.InitialSeasonal)),
	}
	for k := range t.SeasonalSmoothing {
		out.SeasonalSmoothing[k] = mat.VecDenseCopyOf(t.SeasonalSmoothing[k])
		out.InitialSeasonal[k] = mat.DenseCopyOf(t.InitialSeasonal[k])
	}
	return out
}

// Logistic squashes x into [0, 1]. It returns exactly 0 or 1 once exp(-x)
// under- or overflows relative to 1.
func Logistic(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func filledVec(n int, v float64) *mat.VecDense {
	data := make([]float64, n)
	for i := range data {
		data[i] = v
	}
	return mat.NewVecDense(n, data)
}
