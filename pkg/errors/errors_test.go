package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "gomachine: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "gomachine: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			assert.Contains(t, formatted, "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestModelErrorUnwrapsSentinel(t *testing.T) {
	err := NewModelError("LinRegressor.Fit", "singular matrix", ErrSingularMatrix)
	assert.True(t, Is(err, ErrSingularMatrix))
	assert.False(t, Is(err, ErrEmptyData))
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 3, 2, 1)
	assert.Equal(t, "gomachine: Predict: expected 3 features, got 2", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)

	rowsErr := NewDimensionError("Fit", 4, 5, 0)
	assert.Equal(t, "gomachine: Fit: expected 4 rows, got 5", rowsErr.Error())
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("KMeans", "Predict")
	assert.Equal(t, "gomachine: KMeans: Predict called before Fit", err.Error())

	var nf *NotFittedError
	assert.True(t, As(err, &nf))
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("alpha", "must be positive", -0.1)
	assert.Equal(t, "gomachine: invalid alpha=-0.1: must be positive", err.Error())

	var ve *ValidationError
	require.True(t, As(err, &ve))
	assert.Equal(t, "alpha", ve.ParamName)
}

func TestConvergenceWarningMessage(t *testing.T) {
	w := NewConvergenceWarning("GradientDesc", 100, "")
	assert.True(t, strings.HasPrefix(w.Error(), "GradientDesc failed to converge after 100 iterations"))

	w = NewConvergenceWarning("KMeans", 5, "centroids still moving")
	assert.Equal(t, "KMeans failed to converge after 5 iterations: centroids still moving", w.Error())
}

func TestWarnRoutesToHandlers(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(nil)

	Warn(NewConvergenceWarning("SGD", 1, ""))
	require.Len(t, got, 1)

	var zl []error
	SetZerologWarnFunc(func(w error) { zl = append(zl, w) })
	Warn(NewUndefinedMetricWarning("precision", "no positive predictions", 0))
	SetZerologWarnFunc(nil)

	assert.Len(t, got, 1, "zerolog hook takes precedence")
	assert.Len(t, zl, 1)
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrEmptyData, "loading csv")
	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Contains(t, wrapped.Error(), "loading csv")

	wrappedf := Wrapf(ErrSingularMatrix, "layer %d", 2)
	assert.Contains(t, wrappedf.Error(), "layer 2")
}

func TestCheckNumericalStability(t *testing.T) {
	assert.NoError(t, CheckNumericalStability("grad", []float64{1, 2, 3}, 0))

	err := CheckNumericalStability("grad", []float64{1, math.NaN(), math.Inf(1)}, 7)
	require.Error(t, err)
	var ni *NumericalInstabilityError
	require.True(t, As(err, &ni))
	assert.Equal(t, 7, ni.Iteration)
	assert.Len(t, ni.Values, 2)
	assert.Equal(t, "gomachine: grad: non-finite values at iteration 7 [NaN, +Inf]", err.Error())

	assert.Error(t, CheckScalar("cost", math.Inf(-1), 1))
	assert.NoError(t, CheckScalar("cost", 0.5, 1))
}

func TestCheckMatrix(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	assert.NoError(t, CheckMatrix("forward", m, 0))

	m.Set(1, 1, math.NaN())
	assert.Error(t, CheckMatrix("forward", m, 3))
}

func TestNumericalHelpers(t *testing.T) {
	assert.Equal(t, 0.0, SafeDivide(1, 0))
	assert.Equal(t, 2.0, SafeDivide(4, 2))

	assert.Equal(t, 1.0, ClipValue(5, 0, 1))
	assert.Equal(t, 0.0, ClipValue(-5, 0, 1))

	clipped := ClipGradient([]float64{3, 4}, 1)
	assert.InDelta(t, 0.6, clipped[0], 1e-12)
	assert.InDelta(t, 0.8, clipped[1], 1e-12)

	small := []float64{0.1, 0.1}
	assert.Equal(t, small, ClipGradient(small, 1))

	assert.False(t, math.IsInf(StabilizeLog(0), 0))
	assert.False(t, math.IsInf(StabilizeExp(1000), 0))
	assert.Equal(t, 0.0, StabilizeExp(-1000))

	assert.InDelta(t, math.Log(2)+1000, LogSumExp([]float64{1000, 1000}), 1e-9)
	assert.True(t, math.IsInf(LogSumExp(nil), -1))
}
