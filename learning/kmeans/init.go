package kmeans

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// initCentroids は選択されたアルゴリズムで k 個の初期中心を作る。X の行数は k 以上。
func initCentroids(alg InitAlgorithm, X *mat.Dense, k int, rng *rand.Rand) *mat.Dense {
	switch alg {
	case Forgy:
		return initForgy(X, k, rng)
	case RandomPartition:
		return initRandomPartition(X, k, rng)
	default:
		return initKPlusPlus(X, k, rng)
	}
}

func initForgy(X *mat.Dense, k int, rng *rand.Rand) *mat.Dense {
	n, d := X.Dims()
	centroids := mat.NewDense(k, d, nil)
	for c, i := range rng.Perm(n)[:k] {
		centroids.SetRow(c, X.RawRowView(i))
	}
	return centroids
}

func initRandomPartition(X *mat.Dense, k int, rng *rand.Rand) *mat.Dense {
	n, d := X.Dims()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = rng.IntN(k)
	}
	centroids := updateCentroids(X, labels, mat.NewDense(k, d, nil))

	// 1行も割り当てられなかったクラスタにはランダムな行を使う
	counts := make([]int, k)
	for _, l := range labels {
		counts[l]++
	}
	for c, cnt := range counts {
		if cnt == 0 {
			centroids.SetRow(c, X.RawRowView(rng.IntN(n)))
		}
	}
	return centroids
}

func initKPlusPlus(X *mat.Dense, k int, rng *rand.Rand) *mat.Dense {
	n, d := X.Dims()
	centroids := mat.NewDense(k, d, nil)
	centroids.SetRow(0, X.RawRowView(rng.IntN(n)))

	// 各行から最も近い既存中心までの二乗距離
	minDist := make([]float64, n)
	for i := range minDist {
		minDist[i] = sqDist(X.RawRowView(i), centroids.RawRowView(0))
	}

	for c := 1; c < k; c++ {
		total := floats.Sum(minDist)
		next := rng.IntN(n)
		if total > 0 {
			target := rng.Float64() * total
			cum := 0.0
			for i, v := range minDist {
				cum += v
				if cum >= target && v > 0 {
					next = i
					break
				}
			}
		}
		centroids.SetRow(c, X.RawRowView(next))

		for i := range minDist {
			if dd := sqDist(X.RawRowView(i), centroids.RawRowView(c)); dd < minDist[i] {
				minDist[i] = dd
			}
		}
	}
	return centroids
}
