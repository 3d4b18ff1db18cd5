package gp

import "gonum.org/v1/gonum/mat"

// MeanFunc is the prior mean of a Gaussian process.
type MeanFunc interface {
	Value(x []float64) float64
}

// ConstMean は定数の事前平均
type ConstMean struct{ C float64 }

// Value implements MeanFunc.
func (m ConstMean) Value([]float64) float64 { return m.C }

// MeanFuncOf adapts a plain function to MeanFunc.
type MeanFuncOf func(x []float64) float64

// Value implements MeanFunc.
func (f MeanFuncOf) Value(x []float64) float64 { return f(x) }

func meanVector(m MeanFunc, X mat.Matrix) *mat.VecDense {
	r, _ := X.Dims()
	out := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		out.SetVec(i, m.Value(mat.Row(nil, i, X)))
	}
	return out
}
