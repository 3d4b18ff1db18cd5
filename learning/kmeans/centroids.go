package kmeans

import (
	"math"

	"github.com/gomachine/gomachine/core/parallel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// rowParallelThreshold 以下の行数では割り当てを逐次実行する
const rowParallelThreshold = 512

// nearest は二乗ユークリッド距離が最小のセントロイドを返す。同距離なら小さい添字が勝つ。
func nearest(x []float64, centroids *mat.Dense) (int, float64) {
	k, _ := centroids.Dims()
	best, bestDist := 0, math.Inf(1)
	for c := 0; c < k; c++ {
		d := sqDist(x, centroids.RawRowView(c))
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

// assign writes the nearest centroid of every row of X into labels and
// returns the inertia (sum of squared distances).
func assign(X *mat.Dense, centroids *mat.Dense, labels []int) float64 {
	n, _ := X.Dims()
	dists := make([]float64, n)
	parallel.ParallelizeWithThreshold(n, rowParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			labels[i], dists[i] = nearest(X.RawRowView(i), centroids)
		}
	})
	return floats.Sum(dists)
}

// updateCentroids は各クラスタの平均を新しい中心として返す。
// 空のクラスタは以前の中心を保持する。
func updateCentroids(X *mat.Dense, labels []int, prev *mat.Dense) *mat.Dense {
	k, d := prev.Dims()
	next := mat.NewDense(k, d, nil)
	counts := make([]int, k)
	for i, c := range labels {
		floats.Add(next.RawRowView(c), X.RawRowView(i))
		counts[c]++
	}
	for c := 0; c < k; c++ {
		row := next.RawRowView(c)
		if counts[c] == 0 {
			copy(row, prev.RawRowView(c))
			continue
		}
		floats.Scale(1/float64(counts[c]), row)
	}
	return next
}

// maxShift はセントロイドの最大移動距離
func maxShift(a, b *mat.Dense) float64 {
	k, _ := a.Dims()
	shift := 0.0
	for c := 0; c < k; c++ {
		shift = math.Max(shift, floats.Distance(a.RawRowView(c), b.RawRowView(c), 2))
	}
	return shift
}

// distances returns the n×k matrix of Euclidean distances from each row to each centroid.
func distances(X *mat.Dense, centroids *mat.Dense) *mat.Dense {
	n, _ := X.Dims()
	k, _ := centroids.Dims()
	out := mat.NewDense(n, k, nil)
	parallel.ParallelizeWithThreshold(n, rowParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			x := X.RawRowView(i)
			for c := 0; c < k; c++ {
				out.Set(i, c, floats.Distance(x, centroids.RawRowView(c), 2))
			}
		}
	})
	return out
}

func labelsToMatrix(labels []int) *mat.Dense {
	out := mat.NewDense(len(labels), 1, nil)
	for i, l := range labels {
		out.Set(i, 0, float64(l))
	}
	return out
}
