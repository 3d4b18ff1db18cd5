package linalg

import (
	"sync"

	"github.com/gomachine/gomachine/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	// SerialThreshold は出力セル数がこれ未満の積を逐次計算するしきい値
	SerialThreshold = 128 * 128

	// LeafSize は分割を止めるブロックの出力セル数
	LeafSize = 64 * 64

	// MaxDepth は再帰分割の深さの上限。葉のブロック数は最大 2^MaxDepth
	MaxDepth = 6
)

// Mul computes a·b. Large products are split recursively along the larger
// output dimension and the halves are computed concurrently; each leaf block
// is written in place through gonum's BLAS-backed Dense.Mul.
func Mul(a, b mat.Matrix) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		return nil, errors.NewDimensionError(opMul, ac, br, 0)
	}

	ad, bd := AsDense(a), AsDense(b)
	out := mat.NewDense(ar, bc, nil)
	if ar*bc < SerialThreshold {
		out.Mul(ad, bd)
		return out, nil
	}

	mulBlock(out, ad, bd, 0, ar, 0, bc, 0)
	return out, nil
}

// mulBlock は out[r0:r1, c0:c1] を計算する。各ブロックの書き込み先は互いに素。
func mulBlock(out, a, b *mat.Dense, r0, r1, c0, c1, depth int) {
	rows, cols := r1-r0, c1-c0
	if rows*cols <= LeafSize || depth >= MaxDepth || (rows < 2 && cols < 2) {
		_, k := a.Dims()
		dst := out.Slice(r0, r1, c0, c1).(*mat.Dense)
		dst.Mul(a.Slice(r0, r1, 0, k), b.Slice(0, k, c0, c1))
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)
	if rows >= cols {
		mid := r0 + rows/2
		go func() {
			defer wg.Done()
			mulBlock(out, a, b, r0, mid, c0, c1, depth+1)
		}()
		mulBlock(out, a, b, mid, r1, c0, c1, depth+1)
	} else {
		mid := c0 + cols/2
		go func() {
			defer wg.Done()
			mulBlock(out, a, b, r0, r1, c0, mid, depth+1)
		}()
		mulBlock(out, a, b, r0, r1, mid, c1, depth+1)
	}
	wg.Wait()
}

// MulT computes aᵀ·b.
func MulT(a, b mat.Matrix) (*mat.Dense, error) {
	return Mul(AsDense(a).T(), b)
}

// MulBT computes a·bᵀ.
func MulBT(a, b mat.Matrix) (*mat.Dense, error) {
	return Mul(a, AsDense(b).T())
}
