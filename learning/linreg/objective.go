package linreg

import (
	"github.com/gomachine/gomachine/learning/toolkit"
	"github.com/gomachine/gomachine/linalg"
	"gonum.org/v1/gonum/mat"
)

// objective は平均二乗誤差 Σ(Xβ−y)²/2n に正則化/n を加えたもの。
// inputs には切片列が既に追加されている。
type objective struct {
	reg toolkit.Regularization
}

func (o *objective) ComputeGrad(params []float64, inputs, targets mat.Matrix) (float64, []float64, error) {
	n, _ := inputs.Dims()
	beta := mat.NewDense(len(params), 1, params)

	pred, err := linalg.Mul(inputs, beta)
	if err != nil {
		return 0, nil, err
	}
	var cost toolkit.MeanSqError
	c := cost.Cost(pred, targets)
	diff := cost.Grad(pred, targets)

	g, err := linalg.MulT(inputs, diff)
	if err != nil {
		return 0, nil, err
	}
	grad := mat.Col(nil, 0, g)
	for i := range grad {
		grad[i] /= float64(n)
	}

	// 切片は正則化しない
	nf := float64(n)
	c += o.reg.Cost(params[1:]) / nf
	for i, v := range o.reg.Grad(params[1:]) {
		grad[i+1] += v / nf
	}
	return c, grad, nil
}
