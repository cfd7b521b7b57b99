// Package testutil provides numeric assertions shared by the package tests.
package testutil

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	apperrors "github.com/inferloop/esrnn/pkg/errors"
)

// DefaultTolerance is the absolute tolerance used for exact-inverse checks.
const DefaultTolerance = 1e-9

// AssertFloatEquals asserts that two floats are equal within tolerance
func AssertFloatEquals(t *testing.T, expected, actual, tolerance float64, msgAndArgs ...interface{}) {
	t.Helper()

	if math.IsNaN(expected) && math.IsNaN(actual) {
		return
	}

	if math.IsInf(expected, 0) && math.IsInf(actual, 0) {
		assert.Equal(t, math.Signbit(expected), math.Signbit(actual), msgAndArgs...)
		return
	}

	diff := math.Abs(expected - actual)
	assert.True(t, diff <= tolerance,
		"expected %g to be within %g of %g (diff: %g). %s",
		actual, tolerance, expected, diff, fmt.Sprint(msgAndArgs...))
}

// AssertFloatSliceEquals asserts that two float slices are equal within tolerance
func AssertFloatSliceEquals(t *testing.T, expected, actual []float64, tolerance float64, msgAndArgs ...interface{}) {
	t.Helper()

	require.Equal(t, len(expected), len(actual), "slice length mismatch. %s", fmt.Sprint(msgAndArgs...))

	for i := range expected {
		AssertFloatEquals(t, expected[i], actual[i], tolerance,
			"element ", i, ": ", fmt.Sprint(msgAndArgs...))
	}
}

// AssertMatrixEquals compares dimensions and every element of two matrices.
func AssertMatrixEquals(t *testing.T, expected, actual mat.Matrix, tolerance float64, msgAndArgs ...interface{}) {
	t.Helper()

	er, ec := expected.Dims()
	ar, ac := actual.Dims()
	require.Equal(t, []int{er, ec}, []int{ar, ac}, "matrix shape mismatch. %s", fmt.Sprint(msgAndArgs...))

	assert.True(t, mat.EqualApprox(expected, actual, tolerance),
		"matrices differ beyond %g. %s\nexpected:\n%v\nactual:\n%v",
		tolerance, fmt.Sprint(msgAndArgs...), mat.Formatted(expected), mat.Formatted(actual))
}

// AssertAllFinite fails if any element of m is NaN or infinite.
func AssertAllFinite(t *testing.T, m mat.Matrix, msgAndArgs ...interface{}) {
	t.Helper()

	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				assert.Fail(t, fmt.Sprintf("non-finite value %g at (%d, %d)", v, i, j), msgAndArgs...)
				return
			}
		}
	}
}

// AssertStatisticalProperties asserts the mean and standard deviation of data
func AssertStatisticalProperties(t *testing.T, data []float64, expectedMean, expectedStdDev, tolerance float64) {
	t.Helper()

	require.NotEmpty(t, data, "data cannot be empty")

	mean, stdDev := stat.MeanStdDev(data, nil)

	AssertFloatEquals(t, expectedMean, mean, tolerance, "mean mismatch")
	AssertFloatEquals(t, expectedStdDev, stdDev, tolerance, "standard deviation mismatch")
}

// AssertErrorKind asserts that err matches the sentinel and carries the given code.
func AssertErrorKind(t *testing.T, err error, sentinel error, code string) {
	t.Helper()

	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel), "expected %v to match %v", err, sentinel)
	if code != "" {
		assert.Equal(t, code, apperrors.GetCode(err))
	}
}
