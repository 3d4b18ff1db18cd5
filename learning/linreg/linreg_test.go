package linreg

import (
	"bytes"
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/gomachine/gomachine/core/model"
	"github.com/gomachine/gomachine/learning/optim"
	"github.com/gomachine/gomachine/learning/toolkit"
	"github.com/gomachine/gomachine/pkg/errors"
)

// linearData は y = 1 + 2x₁ − 3x₂ のノイズなしデータを生成する
func linearData(n int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(42, 42))
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x1, x2 := rng.Float64()*2-1, rng.Float64()*2-1
		X.Set(i, 0, x1)
		X.Set(i, 1, x2)
		y.Set(i, 0, 1+2*x1-3*x2)
	}
	return X, y
}

func TestLinRegressorNormalEquations(t *testing.T) {
	X, y := linearData(50)
	lr := NewLinRegressor()
	require.NoError(t, lr.Fit(X, y))

	assert.InDelta(t, 1.0, lr.Intercept(), 1e-9)
	assert.InDeltaSlice(t, []float64{2, -3}, lr.Weights(), 1e-9)
	assert.InDeltaSlice(t, []float64{1, 2, -3}, lr.Parameters(), 1e-9)

	pred, err := lr.Predict(mat.NewDense(1, 2, []float64{0.5, 0.5}))
	require.NoError(t, err)
	assert.InDelta(t, 1+1-1.5, pred.At(0, 0), 1e-9)

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestLinRegressorWithOptimizer(t *testing.T) {
	X, y := linearData(50)
	lr := NewLinRegressor(WithOptimizer(optim.GradientDesc{Alpha: 0.5, Iters: 3000, Tol: 1e-15}))
	require.NoError(t, lr.Fit(X, y))

	assert.InDeltaSlice(t, []float64{1, 2, -3}, lr.Parameters(), 1e-3)
	assert.NotEmpty(t, lr.Costs())
}

func TestRidgeShrinksCoefficients(t *testing.T) {
	X, y := linearData(50)

	plain := NewLinRegressor()
	require.NoError(t, plain.Fit(X, y))
	ridge := NewLinRegressor(WithRegularization(toolkit.L2(10)))
	require.NoError(t, ridge.Fit(X, y))

	norm := func(w []float64) float64 { return w[0]*w[0] + w[1]*w[1] }
	assert.Less(t, norm(ridge.Weights()), norm(plain.Weights()))
}

func TestRidgeMatchesGradientSolution(t *testing.T) {
	X, y := linearData(40)

	closed := NewLinRegressor(WithRegularization(toolkit.L2(5)))
	require.NoError(t, closed.Fit(X, y))

	iterative := NewLinRegressor(
		WithRegularization(toolkit.L2(5)),
		WithOptimizer(optim.DefaultLBFGS()),
	)
	require.NoError(t, iterative.Fit(X, y))

	assert.InDeltaSlice(t, closed.Parameters(), iterative.Parameters(), 1e-4)
}

func TestLinRegressorErrors(t *testing.T) {
	lr := NewLinRegressor()

	_, err := lr.Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = lr.Fit(mat.NewDense(3, 2, nil), mat.NewDense(2, 1, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	err = lr.Fit(mat.NewDense(3, 2, nil), mat.NewDense(3, 2, nil))
	var valErr *errors.ValueError
	assert.True(t, errors.As(err, &valErr))

	// 同一の列は XᵀX を特異にする
	collinear := mat.NewDense(4, 2, []float64{1, 1, 2, 2, 3, 3, 4, 4})
	err = lr.Fit(collinear, mat.NewDense(4, 1, []float64{1, 2, 3, 4}))
	assert.True(t, errors.Is(err, errors.ErrSingularMatrix))

	X, y := linearData(10)
	require.NoError(t, lr.Fit(X, y))
	_, err = lr.Predict(mat.NewDense(1, 3, nil))
	assert.True(t, errors.As(err, &dimErr))

	_, err = lr.Predict(nil)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
	_, err = lr.Score(nil, y)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestLinRegressorCancellation(t *testing.T) {
	X, y := linearData(10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lr := NewLinRegressor(WithOptimizer(optim.DefaultGradientDesc()))
	err := lr.FitContext(ctx, X, y)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, lr.IsFitted())
}

func TestLinRegressorWeightsRoundTrip(t *testing.T) {
	X, y := linearData(20)
	src := NewLinRegressor(WithRegularization(toolkit.L2(0.1)))
	require.NoError(t, src.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(src, &buf))

	dst := NewLinRegressor()
	require.NoError(t, model.LoadModelFromReader(dst, &buf))
	assert.Equal(t, src.Parameters(), dst.Parameters())

	w, err := dst.ExportWeights()
	require.NoError(t, err)
	assert.Equal(t, "l2", w.Hyperparameters["regularization"])

	p1, _ := src.Predict(X)
	p2, _ := dst.Predict(X)
	assert.True(t, mat.EqualApprox(p1, p2, 1e-12))
}

func TestLinRegressorImplementsInterfaces(t *testing.T) {
	var _ model.LinearModel = NewLinRegressor()
	var _ model.WeightExporter = NewLinRegressor()
}
