package linalg

import (
	"github.com/gomachine/gomachine/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ToSym は正方行列 A の上三角から対称行列を作ります。
func ToSym(A mat.Matrix) (*mat.SymDense, error) {
	n, c := A.Dims()
	if n != c {
		return nil, errors.NewDimensionError(opSolveSPD, n, c, 1)
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, A.At(i, j))
		}
	}
	return sym, nil
}

// Cholesky は A = LLᵀ を分解します。正定値でなければ ErrNotPositiveDefinite を返します。
func Cholesky(A mat.Matrix) (*mat.Cholesky, error) {
	sym, err := ToSym(A)
	if err != nil {
		return nil, err
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, errors.Wrap(errors.ErrNotPositiveDefinite, opSolveSPD)
	}
	return &chol, nil
}

// SolveSPD solves A·x = b for a symmetric positive definite A using a
// Cholesky factorisation.
func SolveSPD(A, b mat.Matrix) (*mat.Dense, error) {
	n, _ := A.Dims()
	br, _ := b.Dims()
	if br != n {
		return nil, errors.NewDimensionError(opSolveSPD, n, br, 0)
	}
	chol, err := Cholesky(A)
	if err != nil {
		return nil, err
	}
	var x mat.Dense
	if err := chol.SolveTo(&x, b); err != nil {
		// 条件数が大きい場合も解は計算済み
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, errors.Wrap(err, opSolveSPD)
		}
	}
	return &x, nil
}

// Inverse returns the inverse of the square matrix A.
// A singular or numerically singular matrix yields ErrSingularMatrix.
func Inverse(A mat.Matrix) (*mat.Dense, error) {
	n, c := A.Dims()
	if n != c {
		return nil, errors.NewDimensionError(opInverse, n, c, 1)
	}
	var inv mat.Dense
	if err := inv.Inverse(A); err != nil {
		return nil, errors.Wrapf(errors.ErrSingularMatrix, "%s: %v", opInverse, err)
	}
	return &inv, nil
}
