package toolkit

import (
	"math"

	"github.com/gomachine/gomachine/core/parallel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Kernel は2つの入力ベクトルの類似度を返すカーネル関数です。
type Kernel interface {
	K(x1, x2 []float64) float64
}

// LinearKernel is x1·x2 + C.
type LinearKernel struct{ C float64 }

// K implements Kernel.
func (k LinearKernel) K(x1, x2 []float64) float64 { return floats.Dot(x1, x2) + k.C }

// Polynomial is (Alpha·x1·x2 + C)^D.
type Polynomial struct {
	Alpha, C, D float64
}

// K implements Kernel.
func (k Polynomial) K(x1, x2 []float64) float64 {
	return math.Pow(k.Alpha*floats.Dot(x1, x2)+k.C, k.D)
}

// SquaredExp は二乗指数（RBF）カーネル Ampl·exp(−‖x1−x2‖² / 2Ls²) です。
type SquaredExp struct {
	Ls, Ampl float64
}

// K implements Kernel.
func (k SquaredExp) K(x1, x2 []float64) float64 {
	d := floats.Distance(x1, x2, 2)
	return k.Ampl * math.Exp(-d*d/(2*k.Ls*k.Ls))
}

// Exponential is Ampl·exp(−‖x1−x2‖ / 2Ls²).
type Exponential struct {
	Ls, Ampl float64
}

// K implements Kernel.
func (k Exponential) K(x1, x2 []float64) float64 {
	return k.Ampl * math.Exp(-floats.Distance(x1, x2, 2)/(2*k.Ls*k.Ls))
}

// HyperTan is tanh(Alpha·x1·x2 + C).
type HyperTan struct {
	Alpha, C float64
}

// K implements Kernel.
func (k HyperTan) K(x1, x2 []float64) float64 {
	return math.Tanh(k.Alpha*floats.Dot(x1, x2) + k.C)
}

// Multiquadric is sqrt(‖x1−x2‖² + C²).
type Multiquadric struct{ C float64 }

// K implements Kernel.
func (k Multiquadric) K(x1, x2 []float64) float64 {
	d := floats.Distance(x1, x2, 2)
	return math.Sqrt(d*d + k.C*k.C)
}

// RationalQuadratic is (1 + ‖x1−x2‖² / 2·Alpha·Ls²)^(−Alpha).
type RationalQuadratic struct {
	Alpha, Ls float64
}

// K implements Kernel.
func (k RationalQuadratic) K(x1, x2 []float64) float64 {
	d := floats.Distance(x1, x2, 2)
	return math.Pow(1+d*d/(2*k.Alpha*k.Ls*k.Ls), -k.Alpha)
}

type kernelSum struct{ a, b Kernel }

func (k kernelSum) K(x1, x2 []float64) float64 { return k.a.K(x1, x2) + k.b.K(x1, x2) }

type kernelProduct struct{ a, b Kernel }

func (k kernelProduct) K(x1, x2 []float64) float64 { return k.a.K(x1, x2) * k.b.K(x1, x2) }

// Sum returns the kernel a + b.
func Sum(a, b Kernel) Kernel { return kernelSum{a, b} }

// Product returns the kernel a · b.
func Product(a, b Kernel) Kernel { return kernelProduct{a, b} }

// gramParallelThreshold 以下の行数では逐次計算
const gramParallelThreshold = 64

// GramMatrix は K[i][j] = k(X1_i, X2_j) の行列を返します。
func GramMatrix(k Kernel, X1, X2 mat.Matrix) *mat.Dense {
	r1, _ := X1.Dims()
	r2, _ := X2.Dims()
	rows2 := make([][]float64, r2)
	for j := range rows2 {
		rows2[j] = mat.Row(nil, j, X2)
	}

	out := mat.NewDense(r1, r2, nil)
	parallel.ParallelizeWithThreshold(r1, gramParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			x1 := mat.Row(nil, i, X1)
			for j, x2 := range rows2 {
				out.Set(i, j, k.K(x1, x2))
			}
		}
	})
	return out
}
