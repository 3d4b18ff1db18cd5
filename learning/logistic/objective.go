package logistic

import (
	"github.com/gomachine/gomachine/learning/toolkit"
	"github.com/gomachine/gomachine/linalg"
	"gonum.org/v1/gonum/mat"
)

// objective はクロスエントロピーとその勾配 Xᵀ(σ(Xβ) − y)/n を計算する。
// inputs には切片列が既に追加されている。
type objective struct {
	reg toolkit.Regularization
}

func (o *objective) ComputeGrad(params []float64, inputs, targets mat.Matrix) (float64, []float64, error) {
	n, _ := inputs.Dims()
	z, err := linalg.Mul(inputs, mat.NewDense(len(params), 1, params))
	if err != nil {
		return 0, nil, err
	}
	outputs := linalg.Apply(z, toolkit.Sigmoid.Func)
	cost := toolkit.CrossEntropyError{}.Cost(outputs, targets)

	var diff mat.Dense
	diff.Sub(outputs, targets)
	g, err := linalg.MulT(inputs, &diff)
	if err != nil {
		return 0, nil, err
	}

	nf := float64(n)
	grad := mat.Col(nil, 0, g)
	for i := range grad {
		grad[i] /= nf
	}
	cost += o.reg.Cost(params[1:]) / nf
	for i, v := range o.reg.Grad(params[1:]) {
		grad[i+1] += v / nf
	}
	return cost, grad, nil
}
