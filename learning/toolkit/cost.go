package toolkit

import (
	"github.com/gomachine/gomachine/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// probEps はクロスエントロピーの勾配で確率をクリップする幅
const probEps = 1e-12

// CostFunc は出力と教師データの間のコストとその勾配を計算します。
// 勾配は出力に関する偏微分で、出力と同じ形の行列です。
type CostFunc interface {
	Name() string
	Cost(outputs, targets mat.Matrix) float64
	Grad(outputs, targets mat.Matrix) *mat.Dense
}

// MeanSqError is Σ(o−t)² / 2n with gradient o − t.
type MeanSqError struct{}

// Name implements CostFunc.
func (MeanSqError) Name() string { return "mse" }

// Cost implements CostFunc.
func (MeanSqError) Cost(outputs, targets mat.Matrix) float64 {
	r, c := outputs.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d := outputs.At(i, j) - targets.At(i, j)
			sum += d * d
		}
	}
	return sum / (2 * float64(r))
}

// Grad implements CostFunc.
func (MeanSqError) Grad(outputs, targets mat.Matrix) *mat.Dense {
	var g mat.Dense
	g.Sub(outputs, targets)
	return &g
}

// CrossEntropyError は二値クロスエントロピー −Σ[t ln o + (1−t) ln(1−o)] / n です。
type CrossEntropyError struct{}

// Name implements CostFunc.
func (CrossEntropyError) Name() string { return "cross_entropy" }

// Cost implements CostFunc.
func (CrossEntropyError) Cost(outputs, targets mat.Matrix) float64 {
	r, c := outputs.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			o, t := outputs.At(i, j), targets.At(i, j)
			sum += t*errors.StabilizeLog(o) + (1-t)*errors.StabilizeLog(1-o)
		}
	}
	return -sum / float64(r)
}

// Grad implements CostFunc.
func (CrossEntropyError) Grad(outputs, targets mat.Matrix) *mat.Dense {
	var g mat.Dense
	g.Apply(func(i, j int, v float64) float64 {
		o := errors.ClipValue(v, probEps, 1-probEps)
		return (o - targets.At(i, j)) / (o * (1 - o))
	}, outputs)
	return &g
}

// CostByName は名前からコスト関数を返します。
func CostByName(name string) (CostFunc, error) {
	switch name {
	case MeanSqError{}.Name():
		return MeanSqError{}, nil
	case CrossEntropyError{}.Name():
		return CrossEntropyError{}, nil
	default:
		return nil, errors.NewValidationError("cost", "unknown cost function", name)
	}
}
