package gp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/gomachine/gomachine/core/model"
	"github.com/gomachine/gomachine/learning/toolkit"
	"github.com/gomachine/gomachine/pkg/errors"
)

func sineData() (*mat.Dense, *mat.Dense) {
	xs := []float64{-2, -1, 0, 1, 2}
	X := mat.NewDense(len(xs), 1, xs)
	y := mat.NewDense(len(xs), 1, nil)
	for i, x := range xs {
		y.Set(i, 0, math.Sin(x))
	}
	return X, y
}

func TestGPInterpolatesTrainingPoints(t *testing.T) {
	X, y := sineData()
	g := NewGaussianProcess()
	require.NoError(t, g.Fit(X, y))

	pred, err := g.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		assert.InDelta(t, y.At(i, 0), pred.At(i, 0), 1e-4)
	}

	// 学習点の間でも元の関数に近い
	mid, err := g.Predict(mat.NewDense(1, 1, []float64{0.5}))
	require.NoError(t, err)
	assert.InDelta(t, math.Sin(0.5), mid.At(0, 0), 0.05)
}

func TestGPPosteriorVariance(t *testing.T) {
	X, y := sineData()
	g := NewGaussianProcess()
	require.NoError(t, g.Fit(X, y))

	mean, cov, err := g.Posterior(mat.NewDense(3, 1, []float64{0, 0.5, 50}))
	require.NoError(t, err)
	assert.Equal(t, 3, mean.Len())

	assert.InDelta(t, 0, cov.At(0, 0), 1e-6)
	assert.Greater(t, cov.At(1, 1), cov.At(0, 0))
	// 学習データから遠い点では事前分布に戻る
	assert.InDelta(t, 1, cov.At(2, 2), 1e-9)
	assert.InDelta(t, 0, mean.AtVec(2), 1e-9)
	assert.Equal(t, cov.At(0, 1), cov.At(1, 0))
}

func TestGPPriorMean(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 1, 2})
	y := mat.NewDense(3, 1, []float64{5, 5, 5})
	g := NewGaussianProcess(WithMean(ConstMean{C: 5}))
	require.NoError(t, g.Fit(X, y))

	pred, err := g.Predict(mat.NewDense(2, 1, []float64{1.5, 100}))
	require.NoError(t, err)
	assert.InDelta(t, 5, pred.At(0, 0), 1e-9)
	assert.InDelta(t, 5, pred.At(1, 0), 1e-9)

	lin := NewGaussianProcess(WithMean(MeanFuncOf(func(x []float64) float64 { return 2 * x[0] })))
	require.NoError(t, lin.Fit(X, mat.NewDense(3, 1, []float64{0, 2, 4})))
	pred, err = lin.Predict(mat.NewDense(1, 1, []float64{100}))
	require.NoError(t, err)
	assert.InDelta(t, 200, pred.At(0, 0), 1e-9)
}

func TestLogMarginalLikelihoodMatchesDirectFormula(t *testing.T) {
	X, y := sineData()
	kernel := toolkit.SquaredExp{Ls: 0.8, Ampl: 1.5}
	g := NewGaussianProcess(WithKernel(kernel), WithNoise(0.1))
	require.NoError(t, g.Fit(X, y))

	K := toolkit.GramMatrix(kernel, X, X)
	for i := 0; i < 5; i++ {
		K.Set(i, i, K.At(i, i)+0.1)
	}
	var inv mat.Dense
	require.NoError(t, inv.Inverse(K))
	yv := mat.NewVecDense(5, mat.Col(nil, 0, y))
	quad := mat.Inner(yv, &inv, yv)
	want := -0.5*quad - 0.5*math.Log(mat.Det(K)) - 2.5*math.Log(2*math.Pi)

	assert.InDelta(t, want, g.LogMarginalLikelihood(), 1e-9)
	assert.True(t, math.IsNaN(NewGaussianProcess().LogMarginalLikelihood()))
}

func TestGPSample(t *testing.T) {
	X, y := sineData()
	g := NewGaussianProcess(WithNoise(0.01))
	require.NoError(t, g.Fit(X, y))

	Xs := mat.NewDense(3, 1, []float64{-1.5, 0.5, 3})
	s1, err := g.Sample(Xs, 2000, 7)
	require.NoError(t, err)
	r, c := s1.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2000, c)

	s2, err := g.Sample(Xs, 2000, 7)
	require.NoError(t, err)
	assert.True(t, mat.Equal(s1, s2))

	mean, _, err := g.Posterior(Xs)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		row := mat.Row(nil, i, s1)
		sum := 0.0
		for _, v := range row {
			sum += v
		}
		assert.InDelta(t, mean.AtVec(i), sum/2000, 0.1)
	}

	// 学習点での事後共分散はほぼ0でも分解できる
	_, err = g.Sample(X, 3, 1)
	require.NoError(t, err)

	_, err = g.Sample(Xs, 0, 1)
	assert.Error(t, err)
}

func TestGPNotPositiveDefinite(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{1, 2, 3})
	g := NewGaussianProcess(WithKernel(toolkit.LinearKernel{C: 0}), WithNoise(0))
	err := g.Fit(X, y)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotPositiveDefinite)
	var me *errors.ModelError
	assert.True(t, errors.As(err, &me))
	assert.False(t, g.IsFitted())
}

func TestGPErrors(t *testing.T) {
	g := NewGaussianProcess()
	_, err := g.Predict(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	X, y := sineData()
	var de *errors.DimensionError
	assert.True(t, errors.As(g.Fit(X, mat.NewDense(4, 1, nil)), &de))

	require.NoError(t, g.Fit(X, y))
	_, _, err = g.Posterior(mat.NewDense(1, 2, nil))
	assert.True(t, errors.As(err, &de))

	var ve *errors.ValidationError
	assert.True(t, errors.As(NewGaussianProcess(WithNoise(-1)).Fit(X, y), &ve))
}

var _ model.Model = (*GaussianProcess)(nil)
