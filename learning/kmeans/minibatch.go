package kmeans

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gomachine/gomachine/core/model"
	"github.com/gomachine/gomachine/linalg"
	"github.com/gomachine/gomachine/pkg/errors"
	"github.com/gomachine/gomachine/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// MiniBatchModelType はMiniBatchKMeansの重みのモデル種別
const MiniBatchModelType = "minibatch_kmeans"

// MiniBatchKMeans はミニバッチK-meansクラスタリング。
// 各サンプルで最近傍の中心を学習率 1/count で移動させる。
// PartialFit と FitStream による逐次学習に対応する。
type MiniBatchKMeans struct {
	model.BaseEstimator
	config

	centroids *mat.Dense
	counts    []int // 各クラスタに割り当てられた累計サンプル数
	labels    []int
	inertia   float64
	nIter     int

	mu  sync.RWMutex
	rng *rand.Rand
}

// NewMiniBatchKMeans creates a MiniBatchKMeans with batch size 100,
// 100 iterations and early stopping after 10 iterations without improvement.
func NewMiniBatchKMeans(opts ...Option) *MiniBatchKMeans {
	mb := &MiniBatchKMeans{config: config{
		iters:            100,
		init:             KPlusPlus,
		batchSize:        100,
		maxNoImprovement: 10,
	}}
	for _, opt := range opts {
		opt(&mb.config)
	}
	return mb
}

// Fit はランダムなミニバッチで中心を更新し、最後に全データのラベルと慣性を計算する
func (mb *MiniBatchKMeans) Fit(X mat.Matrix) error {
	const op = "MiniBatchKMeans.Fit"
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if err := mb.validate(); err != nil {
		return err
	}
	data, err := checkData(op, X, mb.k)
	if err != nil {
		return err
	}
	n, d := data.Dims()

	logger := log.GetLoggerWithName("kmeans").With(log.ModelNameKey, "MiniBatchKMeans")
	logger.Debug("fit started", log.SamplesKey, n, log.FeaturesKey, d, "batch_size", mb.batchSize)
	began := time.Now()

	mb.centroids = initCentroids(mb.init, data, mb.k, mb.random())
	mb.counts = make([]int, mb.k)
	labels := make([]int, n)

	prev := math.Inf(1)
	noImprovement := 0
	iter := 0
	for iter < mb.iters {
		batch := mb.sampleBatch(n)
		for _, i := range batch {
			mb.step(data.RawRowView(i))
		}
		iter++

		inertia := assign(data, mb.centroids, labels)
		logger.Debug("iteration", log.IterationKey, iter, log.LossKey, inertia)
		if prev-inertia <= mb.tol {
			noImprovement++
			if mb.maxNoImprovement > 0 && noImprovement >= mb.maxNoImprovement {
				break
			}
		} else {
			noImprovement = 0
		}
		prev = inertia
	}

	mb.inertia = assign(data, mb.centroids, labels)
	mb.labels = labels
	mb.nIter = iter
	mb.SetFitted()

	logger.Debug("fit finished",
		log.IterationKey, iter,
		log.LossKey, mb.inertia,
		log.DurationMsKey, time.Since(began).Milliseconds(),
	)
	return nil
}

// PartialFit updates the centroids with one mini-batch. The first call
// initializes the centroids from X, so it needs at least k rows.
func (mb *MiniBatchKMeans) PartialFit(X mat.Matrix) error {
	const op = "MiniBatchKMeans.PartialFit"
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if err := mb.validate(); err != nil {
		return err
	}
	if X == nil {
		return errors.Wrap(errors.ErrEmptyData, op)
	}
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return errors.Wrap(errors.ErrEmptyData, op)
	}

	if mb.centroids == nil {
		data, err := checkData(op, X, mb.k)
		if err != nil {
			return err
		}
		mb.centroids = initCentroids(mb.init, data, mb.k, mb.random())
		mb.counts = make([]int, mb.k)
	}
	if _, cd := mb.centroids.Dims(); cd != d {
		return errors.NewDimensionError(op, cd, d, 1)
	}
	if err := errors.CheckMatrix(op, X, mb.nIter); err != nil {
		return err
	}

	data := linalg.AsDense(X)
	for i := 0; i < n; i++ {
		mb.step(data.RawRowView(i))
	}
	mb.nIter++
	mb.inertia = assign(data, mb.centroids, make([]int, n))
	mb.SetFitted()
	return nil
}

// FitStream はチャネルから受け取ったバッチで PartialFit を繰り返す。
// チャネルが閉じられるか ctx がキャンセルされると終了する。
func (mb *MiniBatchKMeans) FitStream(ctx context.Context, dataChan <-chan *model.Batch) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-dataChan:
			if !ok {
				return nil
			}
			if batch == nil {
				continue
			}
			if err := mb.PartialFit(batch.X); err != nil {
				return err
			}
		}
	}
}

// step は1サンプル分の中心更新
func (mb *MiniBatchKMeans) step(x []float64) {
	c, _ := nearest(x, mb.centroids)
	mb.counts[c]++
	eta := 1 / float64(mb.counts[c])
	row := mb.centroids.RawRowView(c)
	for j := range row {
		row[j] = (1-eta)*row[j] + eta*x[j]
	}
}

// sampleBatch は重複なしでミニバッチの行番号を選ぶ
func (mb *MiniBatchKMeans) sampleBatch(n int) []int {
	size := mb.batchSize
	if size > n {
		size = n
	}
	return mb.random().Perm(n)[:size]
}

// Predict returns the index of the nearest centroid for each row.
func (mb *MiniBatchKMeans) Predict(X mat.Matrix) (mat.Matrix, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	data, err := mb.checkPredict("Predict", X)
	if err != nil {
		return nil, err
	}
	n, _ := data.Dims()
	labels := make([]int, n)
	assign(data, mb.centroids, labels)
	return labelsToMatrix(labels), nil
}

// Transform はデータをクラスタ中心との距離に変換
func (mb *MiniBatchKMeans) Transform(X mat.Matrix) (mat.Matrix, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	data, err := mb.checkPredict("Transform", X)
	if err != nil {
		return nil, err
	}
	return distances(data, mb.centroids), nil
}

func (mb *MiniBatchKMeans) checkPredict(method string, X mat.Matrix) (*mat.Dense, error) {
	if !mb.IsFitted() {
		return nil, errors.NewNotFittedError("MiniBatchKMeans", method)
	}
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "MiniBatchKMeans."+method)
	}
	r, c := X.Dims()
	if r == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "MiniBatchKMeans."+method)
	}
	if _, d := mb.centroids.Dims(); c != d {
		return nil, errors.NewDimensionError("MiniBatchKMeans."+method, d, c, 1)
	}
	return linalg.AsDense(X), nil
}

// NIterations は実行された学習イテレーション数を返す
func (mb *MiniBatchKMeans) NIterations() int {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	return mb.nIter
}

// Centroids は学習されたクラスタ中心のコピーを返す
func (mb *MiniBatchKMeans) Centroids() *mat.Dense {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.centroids == nil {
		return nil
	}
	return mat.DenseCopyOf(mb.centroids)
}

// Labels は Fit で使った学習データのクラスタラベルを返す。PartialFit では更新されない。
func (mb *MiniBatchKMeans) Labels() []int {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.labels == nil {
		return nil
	}
	out := make([]int, len(mb.labels))
	copy(out, mb.labels)
	return out
}

// Inertia returns the inertia of the last Fit, or of the last PartialFit batch.
func (mb *MiniBatchKMeans) Inertia() float64 {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	return mb.inertia
}

// ExportWeights implements model.WeightExporter. The per-cluster counts are
// kept so that PartialFit can resume after ImportWeights.
func (mb *MiniBatchKMeans) ExportWeights() (*model.ModelWeights, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if !mb.IsFitted() {
		return nil, errors.NewNotFittedError("MiniBatchKMeans", "ExportWeights")
	}
	k, d := mb.centroids.Dims()
	counts := make([]int, len(mb.counts))
	copy(counts, mb.counts)
	return &model.ModelWeights{
		ModelType:    MiniBatchModelType,
		Version:      model.WeightsVersion,
		Coefficients: linalg.Flatten(mb.centroids),
		Shape:        []int{k, d},
		Hyperparameters: map[string]interface{}{
			"k":          mb.k,
			"init":       mb.init.String(),
			"batch_size": mb.batchSize,
			"counts":     counts,
		},
		Metadata: map[string]interface{}{
			"n_iter": mb.nIter,
		},
		IsFitted: true,
	}, nil
}

// ImportWeights implements model.WeightExporter.
func (mb *MiniBatchKMeans) ImportWeights(w *model.ModelWeights) error {
	centroids, err := importCentroids(w, MiniBatchModelType)
	if err != nil {
		return err
	}
	init, err := ParseInit(w.HyperString("init", ""))
	if err != nil {
		return err
	}
	k, _ := centroids.Dims()
	counts := w.HyperInts("counts")
	if len(counts) != k {
		counts = make([]int, k)
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.k = k
	mb.init = init
	mb.batchSize = int(w.HyperFloat("batch_size", float64(mb.batchSize)))
	mb.centroids = centroids
	mb.counts = counts
	mb.labels = nil
	mb.SetFitted()
	return nil
}

// random は乱数生成器を初回使用時に作る。呼び出し側がロックを持つ。
func (mb *MiniBatchKMeans) random() *rand.Rand {
	if mb.rng == nil {
		mb.rng = mb.newRand()
	}
	return mb.rng
}
