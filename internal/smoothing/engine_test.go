package smoothing

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/esrnn/internal/params"
	"github.com/inferloop/esrnn/internal/testutil"
	"github.com/inferloop/esrnn/pkg/constants"
	"github.com/inferloop/esrnn/pkg/errors"
)

const tolerance = 1e-9

func positiveSeries(rng *rand.Rand, batch, nTime int) *mat.Dense {
	y := mat.NewDense(batch, nTime, nil)
	for i := 0; i < batch; i++ {
		for t := 0; t < nTime; t++ {
			y.Set(i, t, 10+5*math.Sin(float64(t)/2)+rng.Float64()*3)
		}
	}
	return y
}

func snapshot(t *testing.T, store *params.Store, idxs []int) *params.Snapshot {
	t.Helper()
	snap, err := store.Snapshot(idxs)
	require.NoError(t, err)
	return snap
}

func TestNewEngineVariants(t *testing.T) {
	e, err := NewEngine(nil)
	require.NoError(t, err)
	assert.Empty(t, e.Seasonality())

	e, err = NewEngine([]int{7})
	require.NoError(t, err)
	assert.Equal(t, []int{7}, e.Seasonality())

	_, err = NewEngine([]int{7, 365})
	testutil.AssertErrorKind(t, err, errors.ErrNotImplemented, errors.CodeSeasonalityNotImplemented)
	assert.ErrorIs(t, err, errors.ErrInvalidConfiguration)

	_, err = NewEngine([]int{4, 7, 12})
	testutil.AssertErrorKind(t, err, errors.ErrInvalidConfiguration, errors.CodeUnsupportedSeasonality)

	_, err = NewEngine([]int{-1})
	testutil.AssertErrorKind(t, err, errors.ErrInvalidConfiguration, errors.CodeInvalidSeasonality)
}

func TestNewEngineArityLimits(t *testing.T) {
	periods := func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = 2 + i
		}
		return out
	}

	for n := 0; n <= constants.MaxImplementedSeasonalities; n++ {
		e, err := NewEngine(periods(n))
		require.NoError(t, err, "arity %d", n)
		assert.Len(t, e.Seasonality(), n)
	}
	for n := constants.MaxImplementedSeasonalities + 1; n <= constants.MaxSeasonalities; n++ {
		_, err := NewEngine(periods(n))
		testutil.AssertErrorKind(t, err, errors.ErrNotImplemented, errors.CodeSeasonalityNotImplemented)
	}
	_, err := NewEngine(periods(constants.MaxSeasonalities + 1))
	testutil.AssertErrorKind(t, err, errors.ErrInvalidConfiguration, errors.CodeUnsupportedSeasonality)
}

func TestLevelRecursionByHand(t *testing.T) {
	store, err := params.NewStore(1, nil, params.WithInitialLevelSmoothing(0))
	require.NoError(t, err)

	e, err := NewEngine(nil)
	require.NoError(t, err)

	y := mat.NewDense(1, 3, []float64{2, 4, 6})
	state, err := e.ComputeState(y, snapshot(t, store, []int{0}))
	require.NoError(t, err)

	testutil.AssertFloatSliceEquals(t, []float64{2, 3, 4.5}, state.Levels.RawRowView(0), tolerance)
	assert.Nil(t, state.Seasonalities)
}

func TestLevelIsConvexCombination(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const batch, nTime = 4, 30

	store, err := params.NewStore(batch, nil)
	require.NoError(t, err)
	for i, raw := range []float64{-3, 0, 1.5, 6} {
		require.NoError(t, store.SetLevelSmoothing(i, raw))
	}

	e, err := NewEngine(nil)
	require.NoError(t, err)

	y := positiveSeries(rng, batch, nTime)
	state, err := e.ComputeState(y, snapshot(t, store, []int{0, 1, 2, 3}))
	require.NoError(t, err)

	for i := 0; i < batch; i++ {
		assert.Equal(t, y.At(i, 0), state.Levels.At(i, 0))
		for tt := 1; tt < nTime; tt++ {
			prev := state.Levels.At(i, tt-1)
			obs := y.At(i, tt)
			level := state.Levels.At(i, tt)
			assert.GreaterOrEqual(t, level, math.Min(obs, prev)-tolerance, "series %d t %d", i, tt)
			assert.LessOrEqual(t, level, math.Max(obs, prev)+tolerance, "series %d t %d", i, tt)
		}
	}
}

func TestSeasonalRecursionByHand(t *testing.T) {
	store, err := params.NewStore(1, []int{2},
		params.WithInitialLevelSmoothing(0),
		params.WithInitialSeasonalSmoothing(0),
		params.WithInitialSeasonal(0, []float64{1, 2}),
	)
	require.NoError(t, err)

	e, err := NewEngine([]int{2})
	require.NoError(t, err)

	y := mat.NewDense(1, 3, []float64{2, 4, 6})
	state, err := e.ComputeState(y, snapshot(t, store, []int{0}))
	require.NoError(t, err)

	testutil.AssertFloatSliceEquals(t, []float64{2, 2, 4}, state.Levels.RawRowView(0), tolerance)
	require.Len(t, state.Seasonalities, 1)
	testutil.AssertFloatSliceEquals(t, []float64{1, 2, 1, 2, 1.25}, state.Seasonalities[0].RawRowView(0), tolerance)
}

func TestSeasonalSequenceLength(t *testing.T) {
	for _, p := range []int{1, 4, 12} {
		store, err := params.NewStore(2, []int{p})
		require.NoError(t, err)
		e, err := NewEngine([]int{p})
		require.NoError(t, err)

		y := positiveSeries(rand.New(rand.NewSource(int64(p))), 2, 20)
		state, err := e.ComputeState(y, snapshot(t, store, []int{0, 1}))
		require.NoError(t, err)

		_, levels := state.Levels.Dims()
		_, seasons := state.Seasonalities[0].Dims()
		assert.Equal(t, 20, levels)
		assert.Equal(t, 20+p, seasons)
	}
}

func TestSeasonalNormalizeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	store, err := params.NewStore(3, []int{4})
	require.NoError(t, err)

	e, err := NewEngine([]int{4})
	require.NoError(t, err)

	y := positiveSeries(rng, 3, 24)
	state, err := e.ComputeState(y, snapshot(t, store, []int{0, 1, 2}))
	require.NoError(t, err)

	for _, w := range [][2]int{{0, 5}, {7, 15}, {16, 24}} {
		start, end := w[0], w[1]
		z, err := e.Normalize(y, state, start, end, end-1)
		require.NoError(t, err)

		back, err := e.Denormalize(z, state, start, end-1)
		require.NoError(t, err)

		testutil.AssertMatrixEquals(t, y.Slice(0, 3, start, end), back, tolerance, "window ", start, "-", end)
	}
}

func TestLevelNormalizeRoundTrip(t *testing.T) {
	store, err := params.NewStore(2, nil)
	require.NoError(t, err)
	e, err := NewEngine(nil)
	require.NoError(t, err)

	y := positiveSeries(rand.New(rand.NewSource(5)), 2, 12)
	state, err := e.ComputeState(y, snapshot(t, store, []int{0, 1}))
	require.NoError(t, err)

	z, err := e.Normalize(y, state, 4, 9, 8)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		testutil.AssertFloatEquals(t, math.Log(y.At(i, 4)/state.Levels.At(i, 8)), z.At(i, 0), tolerance)
		testutil.AssertFloatEquals(t, math.Log(y.At(i, 8)/state.Levels.At(i, 8)), z.At(i, 4), tolerance)
	}

	back, err := e.Denormalize(z, state, 4, 8)
	require.NoError(t, err)
	testutil.AssertMatrixEquals(t, y.Slice(0, 2, 4, 9), back, tolerance)
}

func TestExtendSeasonality(t *testing.T) {
	seas := mat.NewDense(2, 6, []float64{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	})

	assert.Same(t, seas, ExtendSeasonality(seas, 4, 4))

	ext := ExtendSeasonality(seas, 4, 10)
	r, c := ext.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 6+2*4, c)
	testutil.AssertFloatSliceEquals(t,
		[]float64{1, 2, 3, 4, 5, 6, 3, 4, 5, 6, 3, 4, 5, 6}, ext.RawRowView(0), 0)
	testutil.AssertFloatSliceEquals(t,
		[]float64{7, 8, 9, 10, 11, 12, 9, 10, 11, 12, 9, 10, 11, 12}, ext.RawRowView(1), 0)
}

func TestPredictExtendsHorizon(t *testing.T) {
	const nTime, period, horizon = 20, 4, 10

	store, err := params.NewStore(2, []int{period})
	require.NoError(t, err)
	e, err := NewEngine([]int{period})
	require.NoError(t, err)

	y := positiveSeries(rand.New(rand.NewSource(9)), 2, nTime)
	state, err := e.ComputeState(y, snapshot(t, store, []int{0, 1}))
	require.NoError(t, err)

	ext := ExtendSeasonality(state.Seasonalities[0], period, horizon)
	_, c := ext.Dims()
	assert.GreaterOrEqual(t, c, nTime+horizon)
	assert.Equal(t, nTime+period+2*period, c)

	trend := mat.NewDense(2, horizon, nil)
	trend.Apply(func(i, j int, _ float64) float64 { return 0.01 * float64(j-i) }, trend)

	yHat, err := e.Predict(trend, state)
	require.NoError(t, err)

	r, c := yHat.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, horizon, c)

	seas := state.Seasonalities[0]
	for i := 0; i < 2; i++ {
		level := state.Levels.At(i, nTime-1)
		for j := 0; j < horizon; j++ {
			want := math.Exp(trend.At(i, j)) * level * seas.At(i, nTime+j%period)
			testutil.AssertFloatEquals(t, want, yHat.At(i, j), tolerance, "series ", i, " step ", j)
		}
	}
}

func TestPredictWithoutSeasonality(t *testing.T) {
	store, err := params.NewStore(1, nil)
	require.NoError(t, err)
	e, err := NewEngine(nil)
	require.NoError(t, err)

	y := mat.NewDense(1, 4, []float64{3, 3, 3, 3})
	state, err := e.ComputeState(y, snapshot(t, store, []int{0}))
	require.NoError(t, err)

	yHat, err := e.Predict(mat.NewDense(1, 3, []float64{0, math.Log(2), 0}), state)
	require.NoError(t, err)
	testutil.AssertFloatSliceEquals(t, []float64{3, 6, 3}, yHat.RawRowView(0), tolerance)
}

func TestCoefficientIsolation(t *testing.T) {
	idxs := []int{3, 5, 7}
	store, err := params.NewStore(10, []int{4})
	require.NoError(t, err)
	e, err := NewEngine([]int{4})
	require.NoError(t, err)

	y := positiveSeries(rand.New(rand.NewSource(1)), 3, 16)
	before, err := e.ComputeState(y, snapshot(t, store, idxs))
	require.NoError(t, err)

	require.NoError(t, store.SetLevelSmoothing(5, -2))
	require.NoError(t, store.SetSeasonalSmoothing(0, 5, 2.5))

	after, err := e.ComputeState(y, snapshot(t, store, idxs))
	require.NoError(t, err)

	for _, row := range []int{0, 2} {
		assert.Equal(t, before.Levels.RawRowView(row), after.Levels.RawRowView(row))
		assert.Equal(t, before.Seasonalities[0].RawRowView(row), after.Seasonalities[0].RawRowView(row))
	}
	assert.NotEqual(t, before.Levels.RawRowView(1), after.Levels.RawRowView(1))
}

func TestNormalizeRejectsNonPositiveValues(t *testing.T) {
	store, err := params.NewStore(8, nil)
	require.NoError(t, err)
	e, err := NewEngine(nil)
	require.NoError(t, err)

	y := mat.NewDense(2, 5, []float64{
		1, 2, 3, 4, 5,
		1, 2, 3, 4, 5,
	})
	state, err := e.ComputeState(y, snapshot(t, store, []int{2, 6}))
	require.NoError(t, err)

	y.Set(1, 3, -1)
	_, err = e.Normalize(y, state, 0, 5, 4)
	testutil.AssertErrorKind(t, err, errors.ErrPreconditionViolated, errors.CodeNonPositiveValue)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 6, appErr.Context["series"])
	assert.Equal(t, 3, appErr.Context["time"])

	_, err = e.Normalize(y, state, 3, 7, 4)
	testutil.AssertErrorKind(t, err, errors.ErrPreconditionViolated, errors.CodeSeriesTooShort)

	y.Set(1, 3, math.Inf(1))
	_, err = e.Normalize(y, state, 0, 5, 4)
	testutil.AssertErrorKind(t, err, errors.ErrPreconditionViolated, errors.CodeNonFiniteValue)
}

func TestComputeStateRejectsInfiniteObservations(t *testing.T) {
	for _, seasonality := range [][]int{nil, {2}} {
		store, err := params.NewStore(4, seasonality)
		require.NoError(t, err)
		e, err := NewEngine(seasonality)
		require.NoError(t, err)

		y := mat.NewDense(2, 6, []float64{
			1, 2, 3, 4, 5, 6,
			1, 2, 3, 4, 5, math.Inf(1),
		})
		_, err = e.ComputeState(y, snapshot(t, store, []int{1, 3}))
		testutil.AssertErrorKind(t, err, errors.ErrPreconditionViolated, errors.CodeNonFiniteValue)

		var appErr *errors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, 3, appErr.Context["series"])
		assert.Equal(t, 5, appErr.Context["time"])
	}
}

func TestComputeStateRejectsMismatchedSnapshot(t *testing.T) {
	store, err := params.NewStore(4, []int{3})
	require.NoError(t, err)
	e, err := NewEngine([]int{3})
	require.NoError(t, err)

	y := mat.NewDense(2, 6, nil)
	_, err = e.ComputeState(y, snapshot(t, store, []int{0, 1, 2}))
	testutil.AssertErrorKind(t, err, errors.ErrShapeMismatch, errors.CodeBatchShape)

	wrongPeriod, err := params.NewStore(4, []int{5})
	require.NoError(t, err)
	_, err = e.ComputeState(y, snapshot(t, wrongPeriod, []int{0, 1}))
	testutil.AssertErrorKind(t, err, errors.ErrShapeMismatch, errors.CodeTableShape)
}
