package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/gomachine/gomachine/linalg"
	"github.com/gomachine/gomachine/pkg/errors"
)

// residuals returns yTrue − yPred after the shared shape checks.
func residuals(op string, yTrue, yPred *mat.VecDense) ([]float64, error) {
	n, err := checkPair(op, yTrue, yPred)
	if err != nil {
		return nil, err
	}
	r := make([]float64, n)
	floats.SubTo(r, vecData(yTrue), vecData(yPred))
	return r, nil
}

// vecData は stride を考慮して要素をコピーする
func vecData(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

// MSE is the mean squared error (1/n)·Σ(y − ŷ)².
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	r, err := residuals("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return floats.Dot(r, r) / float64(len(r)), nil
}

// MSEMatrix は n×1 行列同士の MSE
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	const op = "MSEMatrix"
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "nil matrix")
	}
	rt, ct := yTrue.Dims()
	rp, cp := yPred.Dims()
	if rt == 0 || ct == 0 {
		return 0, errors.NewValueError(op, "empty matrix")
	}
	if rt != rp || ct != cp {
		return 0, errors.NewDimensionError(op, rt, rp, 0)
	}
	t, err := linalg.ColumnVector(yTrue)
	if err != nil {
		return 0, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	p, err := linalg.ColumnVector(yPred)
	if err != nil {
		return 0, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	return MSE(t, p)
}

// RMSE is √MSE.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE is the mean absolute error.
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	r, err := residuals("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return floats.Norm(r, 1) / float64(len(r)), nil
}

// R2Score は決定係数 1 − RSS/TSS。yTrue が定数だと TSS=0 になりエラー
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	r, err := residuals("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	y := vecData(yTrue)
	mean := stat.Mean(y, nil)
	var tss float64
	for _, v := range y {
		tss += (v - mean) * (v - mean)
	}
	if tss == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - floats.Dot(r, r)/tss, nil
}

// MAPE is the mean absolute percentage error over the rows where yTrue ≠ 0.
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	r, err := residuals("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	used := 0
	for i, d := range r {
		if t := yTrue.AtVec(i); t != 0 {
			sum += math.Abs(d / t)
			used++
		}
	}
	if used == 0 {
		return 0, errors.Newf("MAPE: all yTrue values are zero")
	}
	return 100 * sum / float64(used), nil
}

// ExplainedVarianceScore is 1 − Var(y − ŷ)/Var(y), population variances.
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	r, err := residuals("ExplainedVarianceScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	_, varY := stat.PopMeanVariance(vecData(yTrue), nil)
	if varY == 0 {
		return 0, errors.Newf("ExplainedVarianceScore: no variance in yTrue")
	}
	_, varR := stat.PopMeanVariance(r, nil)
	return 1 - varR/varY, nil
}
