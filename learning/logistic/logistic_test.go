package logistic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/gomachine/gomachine/core/model"
	"github.com/gomachine/gomachine/learning/optim"
	"github.com/gomachine/gomachine/learning/toolkit"
	"github.com/gomachine/gomachine/pkg/errors"
)

func oneDimData() (*mat.Dense, *mat.Dense) {
	return mat.NewDense(4, 1, []float64{1, 3, 5, 7}), mat.NewDense(4, 1, []float64{0, 0, 1, 1})
}

func TestLogisticSeparatesOneDimensionalData(t *testing.T) {
	X, y := oneDimData()
	lr := NewLogisticRegressor()
	require.NoError(t, lr.Fit(X, y))

	out, err := lr.Predict(mat.NewDense(1, 1, []float64{10}))
	require.NoError(t, err)
	assert.Greater(t, out.At(0, 0), 0.5)

	out, err = lr.Predict(mat.NewDense(1, 1, []float64{-2}))
	require.NoError(t, err)
	assert.Less(t, out.At(0, 0), 0.5)

	assert.Len(t, lr.Parameters(), 2)
	costs := lr.Costs()
	require.NotEmpty(t, costs)
	assert.Less(t, costs[len(costs)-1], costs[0])
}

func TestLogisticGradientMatchesFiniteDifferences(t *testing.T) {
	_, y := oneDimData()
	obj := &objective{reg: toolkit.L2(0.3)}
	Xb := mat.NewDense(4, 2, []float64{1, 1, 1, 3, 1, 5, 1, 7})
	params := []float64{-0.4, 0.2}

	_, grad, err := obj.ComputeGrad(params, Xb, y)
	require.NoError(t, err)

	const h = 1e-6
	for i := range params {
		plus := append([]float64(nil), params...)
		minus := append([]float64(nil), params...)
		plus[i] += h
		minus[i] -= h
		cp, _, _ := obj.ComputeGrad(plus, Xb, y)
		cm, _, _ := obj.ComputeGrad(minus, Xb, y)
		assert.InDelta(t, (cp-cm)/(2*h), grad[i], 1e-6)
	}
}

func TestPredictClassAndScore(t *testing.T) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0.5, 0.2,
		0.3, 0.8,
		1, 0.5,
		4, 4,
		4.5, 3.8,
		3.7, 4.2,
		5, 5,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})

	lr := NewLogisticRegressor(WithOptimizer(optim.GradientDesc{Alpha: 0.5, Iters: 500}))
	require.NoError(t, lr.Fit(X, y))

	classes, err := lr.PredictClass(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y, classes))

	acc, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)
}

func TestLogisticValidation(t *testing.T) {
	X, _ := oneDimData()

	err := NewLogisticRegressor().Fit(X, mat.NewDense(4, 1, []float64{0, 2, 1, 1}))
	var valueErr *errors.ValueError
	assert.True(t, errors.As(err, &valueErr))

	err = NewLogisticRegressor(WithThreshold(1.5)).Fit(X, mat.NewDense(4, 1, nil))
	var validationErr *errors.ValidationError
	assert.True(t, errors.As(err, &validationErr))

	_, err = NewLogisticRegressor().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	X, y := oneDimData()
	lr := NewLogisticRegressor()
	require.NoError(t, lr.Fit(X, y))
	_, err = lr.Predict(nil)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
	_, err = lr.PredictClass(nil)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestLogisticCancellation(t *testing.T) {
	X, y := oneDimData()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewLogisticRegressor().FitContext(ctx, X, y)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogisticExportImport(t *testing.T) {
	X, y := oneDimData()
	src := NewLogisticRegressor(WithThreshold(0.7), WithRegularization(toolkit.L2(0.01)))
	require.NoError(t, src.Fit(X, y))

	w, err := src.ExportWeights()
	require.NoError(t, err)
	data, err := w.ToJSON()
	require.NoError(t, err)

	var decoded model.ModelWeights
	require.NoError(t, decoded.FromJSON(data))

	dst := NewLogisticRegressor()
	require.NoError(t, dst.ImportWeights(&decoded))
	assert.Equal(t, src.Parameters(), dst.Parameters())
	assert.Equal(t, 0.7, dst.threshold)

	_, err = dst.Predict(mat.NewDense(2, 1, []float64{0, 10}))
	require.NoError(t, err)

	decoded.ModelType = "linreg"
	assert.Error(t, dst.ImportWeights(&decoded))
}
