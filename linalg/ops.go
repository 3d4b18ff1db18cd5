package linalg

import (
	"github.com/gomachine/gomachine/core/parallel"
	"github.com/gomachine/gomachine/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// エラー報告用の操作名
const (
	opHCat       = "HCat"
	opVCat       = "VCat"
	opSelectRows = "SelectRows"
	opSelectCols = "SelectCols"
	opDropFirst  = "DropFirstCol"
	opElemMul    = "ElemMul"
	opReshape    = "Reshape"
	opMul        = "Mul"
	opSolveSPD   = "SolveSPD"
	opInverse    = "Inverse"
	opColVector  = "ColumnVector"
)

// rowParallelThreshold 以下の行数では逐次処理する
const rowParallelThreshold = 256

// AsDense は m が *mat.Dense ならそのまま返し、そうでなければコピーを作る。
func AsDense(m mat.Matrix) *mat.Dense {
	if d, ok := m.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(m)
}

// Ones returns an r×c matrix filled with ones.
func Ones(r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = 1
	}
	return mat.NewDense(r, c, data)
}

// Identity returns the n×n identity matrix.
func Identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// AddBias は X の先頭に1の列を追加した行列を返します。
func AddBias(X mat.Matrix) *mat.Dense {
	r, c := X.Dims()
	out := mat.NewDense(r, c+1, nil)
	parallel.ParallelizeWithThreshold(r, rowParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			out.Set(i, 0, 1)
			for j := 0; j < c; j++ {
				out.Set(i, j+1, X.At(i, j))
			}
		}
	})
	return out
}

// HCat concatenates a and b horizontally. Both must have the same number of rows.
func HCat(a, b mat.Matrix) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br {
		return nil, errors.NewDimensionError(opHCat, ar, br, 0)
	}
	out := mat.NewDense(ar, ac+bc, nil)
	out.Augment(a, b)
	return out, nil
}

// VCat concatenates a and b vertically. Both must have the same number of columns.
func VCat(a, b mat.Matrix) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != bc {
		return nil, errors.NewDimensionError(opVCat, ac, bc, 1)
	}
	out := mat.NewDense(ar+br, ac, nil)
	out.Stack(a, b)
	return out, nil
}

// SelectRows returns a new matrix made of the rows of X at idx, in order.
func SelectRows(X mat.Matrix, idx []int) (*mat.Dense, error) {
	r, c := X.Dims()
	if len(idx) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, opSelectRows)
	}
	out := mat.NewDense(len(idx), c, nil)
	for i, row := range idx {
		if row < 0 || row >= r {
			return nil, errors.NewValueError(opSelectRows, "row index out of range")
		}
		for j := 0; j < c; j++ {
			out.Set(i, j, X.At(row, j))
		}
	}
	return out, nil
}

// SelectCols returns a new matrix made of the columns of X at idx, in order.
func SelectCols(X mat.Matrix, idx []int) (*mat.Dense, error) {
	r, c := X.Dims()
	if len(idx) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, opSelectCols)
	}
	out := mat.NewDense(r, len(idx), nil)
	for j, col := range idx {
		if col < 0 || col >= c {
			return nil, errors.NewValueError(opSelectCols, "column index out of range")
		}
		for i := 0; i < r; i++ {
			out.Set(i, j, X.At(i, col))
		}
	}
	return out, nil
}

// DropFirstCol は先頭列（バイアス列）を除いたコピーを返します。
func DropFirstCol(X mat.Matrix) (*mat.Dense, error) {
	r, c := X.Dims()
	if c < 2 {
		return nil, errors.NewDimensionError(opDropFirst, 2, c, 1)
	}
	out := mat.NewDense(r, c-1, nil)
	out.Copy(AsDense(X).Slice(0, r, 1, c))
	return out, nil
}

// Apply returns a new matrix with f applied to every element of X.
func Apply(X mat.Matrix, f func(float64) float64) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return f(v) }, X)
	return &out
}

// ElemMul はアダマール積（要素ごとの積）を返します。
func ElemMul(a, b mat.Matrix) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br {
		return nil, errors.NewDimensionError(opElemMul, ar, br, 0)
	}
	if ac != bc {
		return nil, errors.NewDimensionError(opElemMul, ac, bc, 1)
	}
	var out mat.Dense
	out.MulElem(a, b)
	return &out, nil
}

// Flatten returns a row-major copy of the elements of X.
func Flatten(X mat.Matrix) []float64 {
	r, c := X.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, X.At(i, j))
		}
	}
	return out
}

// Reshape は行優先のデータから r×c 行列を作ります。data はコピーされます。
func Reshape(data []float64, r, c int) (*mat.Dense, error) {
	if r <= 0 || c <= 0 {
		return nil, errors.NewValueError(opReshape, "dimensions must be positive")
	}
	if len(data) != r*c {
		return nil, errors.NewDimensionError(opReshape, r*c, len(data), 0)
	}
	cp := make([]float64, len(data))
	copy(cp, data)
	return mat.NewDense(r, c, cp), nil
}

// ColumnMeans returns the mean of every column of X.
func ColumnMeans(X mat.Matrix) []float64 {
	_, c := X.Dims()
	means := make([]float64, c)
	for j := 0; j < c; j++ {
		means[j] = stat.Mean(mat.Col(nil, j, X), nil)
	}
	return means
}

// ColumnVariances returns the population variance of every column of X.
func ColumnVariances(X mat.Matrix) []float64 {
	_, c := X.Dims()
	vars := make([]float64, c)
	for j := 0; j < c; j++ {
		vars[j] = stat.PopVariance(mat.Col(nil, j, X), nil)
	}
	return vars
}

// Covariance は列間の標本共分散行列を返します。
func Covariance(X mat.Matrix) *mat.SymDense {
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, X, nil)
	return &cov
}

// ColumnVector は y が n×1 であることを確認し、ベクトルとして返します。
func ColumnVector(y mat.Matrix) (*mat.VecDense, error) {
	r, c := y.Dims()
	if c != 1 {
		return nil, errors.NewDimensionError(opColVector, 1, c, 1)
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, y)), nil
}
