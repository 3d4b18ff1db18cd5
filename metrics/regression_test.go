package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRegressionMetrics(t *testing.T) {
	yTrue := vec(3, -0.5, 2, 7)
	yPred := vec(2.5, 0, 2, 8)

	tests := []struct {
		name string
		fn   func(a, b *mat.VecDense) (float64, error)
		want float64
	}{
		// 残差 0.5, -0.5, 0, -1
		{"MSE", MSE, 0.375},
		{"RMSE", RMSE, math.Sqrt(0.375)},
		{"MAE", MAE, 0.5},
		// TSS = 29.1875
		{"R2Score", R2Score, 1 - 1.5/29.1875},
		// Var(resid)=0.3125, Var(y)=7.296875
		{"ExplainedVarianceScore", ExplainedVarianceScore, 1 - 0.3125/7.296875},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(yTrue, yPred)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestRegressionMetricsPerfectFit(t *testing.T) {
	y := vec(1, 2, 3, 4, 5)
	for name, fn := range map[string]func(a, b *mat.VecDense) (float64, error){
		"MSE": MSE, "RMSE": RMSE, "MAE": MAE,
	} {
		got, err := fn(y, y)
		require.NoError(t, err, name)
		assert.Zero(t, got, name)
	}
	r2, err := R2Score(y, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r2)
}

func TestRegressionMetricsRejectBadInput(t *testing.T) {
	fns := map[string]func(a, b *mat.VecDense) (float64, error){
		"MSE": MSE, "RMSE": RMSE, "MAE": MAE, "R2Score": R2Score,
		"MAPE": MAPE, "ExplainedVarianceScore": ExplainedVarianceScore,
	}
	for name, fn := range fns {
		t.Run(name, func(t *testing.T) {
			_, err := fn(vec(1, 2, 3), vec(1, 2))
			assert.Error(t, err, "length mismatch")
			_, err = fn(&mat.VecDense{}, &mat.VecDense{})
			assert.Error(t, err, "empty")
			_, err = fn(nil, vec(1))
			assert.Error(t, err, "nil")
		})
	}
}

func TestR2ScoreConstantTarget(t *testing.T) {
	_, err := R2Score(vec(2, 2, 2), vec(1, 2, 3))
	assert.Error(t, err)

	_, err = ExplainedVarianceScore(vec(2, 2, 2), vec(1, 2, 3))
	assert.Error(t, err)
}

func TestR2ScoreCanBeNegative(t *testing.T) {
	got, err := R2Score(vec(1, 2, 3), vec(3, 2, 1))
	require.NoError(t, err)
	// RSS=8, TSS=2
	assert.InDelta(t, -3, got, 1e-12)
}

func TestMSEMatrix(t *testing.T) {
	yTrue := mat.NewDense(3, 1, []float64{1, 2, 3})
	yPred := mat.NewDense(3, 1, []float64{1, 2, 5})

	got, err := MSEMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 4.0/3, got, 1e-12)

	// 列ベクトルのビューも受け付ける
	wide := mat.NewDense(3, 2, []float64{1, 9, 2, 9, 3, 9})
	got, err = MSEMatrix(wide.ColView(0), yTrue)
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = MSEMatrix(nil, yPred)
	assert.Error(t, err)
	_, err = MSEMatrix(mat.NewDense(2, 1, nil), yPred)
	assert.Error(t, err)
	_, err = MSEMatrix(mat.NewDense(3, 2, nil), mat.NewDense(3, 2, nil))
	assert.Error(t, err)
}

func TestMAPESkipsZeroTargets(t *testing.T) {
	got, err := MAPE(vec(0, 2, 4), vec(5, 1, 5))
	require.NoError(t, err)
	// (0.5 + 0.25) / 2 × 100
	assert.InDelta(t, 37.5, got, 1e-12)

	_, err = MAPE(vec(0, 0), vec(1, 1))
	assert.Error(t, err)
}

func BenchmarkMSE(b *testing.B) {
	n := 10000
	yTrue := mat.NewVecDense(n, nil)
	yPred := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yTrue.SetVec(i, float64(i))
		yPred.SetVec(i, float64(i)+0.5)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = MSE(yTrue, yPred)
	}
}
