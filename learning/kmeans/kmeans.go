// Package kmeans はk-meansクラスタリングを提供します。
//
// KMeans はロイドのアルゴリズムによるバッチ学習、MiniBatchKMeans は
// ミニバッチごとに中心を更新する逐次学習版です。
package kmeans

import (
	"context"
	"time"

	"github.com/gomachine/gomachine/core/model"
	"github.com/gomachine/gomachine/linalg"
	"github.com/gomachine/gomachine/pkg/errors"
	"github.com/gomachine/gomachine/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// ModelType はエクスポートされた重みのモデル種別
const ModelType = "kmeans"

// KMeans clusters samples with Lloyd's algorithm.
type KMeans struct {
	model.BaseEstimator
	config

	centroids *mat.Dense
	labels    []int
	inertia   float64
	nIter     int
}

// NewKMeans creates a KMeans. WithK must be given; the defaults are 100
// iterations, k-means++ initialization and a centroid shift tolerance of 1e-4.
func NewKMeans(opts ...Option) *KMeans {
	km := &KMeans{config: config{
		iters:     100,
		init:      KPlusPlus,
		tol:       1e-4,
		batchSize: 1,
	}}
	for _, opt := range opts {
		opt(&km.config)
	}
	return km
}

// Fit runs Lloyd iterations until the largest centroid shift is at most the
// tolerance or the iteration limit is reached.
func (km *KMeans) Fit(X mat.Matrix) error {
	return km.FitContext(context.Background(), X)
}

// FitContext は Fit と同じだが、イテレーションの合間に ctx を確認する
func (km *KMeans) FitContext(ctx context.Context, X mat.Matrix) error {
	const op = "KMeans.Fit"
	if err := km.validate(); err != nil {
		return err
	}
	data, err := checkData(op, X, km.k)
	if err != nil {
		return err
	}
	n, d := data.Dims()

	logger := log.GetLoggerWithName("kmeans").With(log.ModelNameKey, "KMeans")
	logger.Debug("fit started", log.SamplesKey, n, log.FeaturesKey, d, "k", km.k, "init", km.init.String())
	began := time.Now()

	centroids := initCentroids(km.init, data, km.k, km.newRand())
	labels := make([]int, n)
	converged := false
	iter := 0
	for iter < km.iters {
		if err := ctx.Err(); err != nil {
			return err
		}
		inertia := assign(data, centroids, labels)
		next := updateCentroids(data, labels, centroids)
		shift := maxShift(centroids, next)
		centroids = next
		iter++
		logger.Debug("iteration", log.IterationKey, iter, log.LossKey, inertia, "shift", shift)
		if shift <= km.tol {
			converged = true
			break
		}
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("KMeans", iter, "centroid shift is still above tol"))
	}

	km.inertia = assign(data, centroids, labels)
	km.centroids = centroids
	km.labels = labels
	km.nIter = iter
	km.SetFitted()

	logger.Debug("fit finished",
		log.IterationKey, iter,
		log.LossKey, km.inertia,
		log.ConvergedKey, converged,
		log.DurationMsKey, time.Since(began).Milliseconds(),
	)
	return nil
}

// Predict returns the index of the nearest centroid for each row as an n×1 matrix.
func (km *KMeans) Predict(X mat.Matrix) (mat.Matrix, error) {
	data, err := km.checkPredict("Predict", X)
	if err != nil {
		return nil, err
	}
	n, _ := data.Dims()
	labels := make([]int, n)
	assign(data, km.centroids, labels)
	return labelsToMatrix(labels), nil
}

// Transform はデータを各セントロイドまでのユークリッド距離 (n×k) に変換する
func (km *KMeans) Transform(X mat.Matrix) (mat.Matrix, error) {
	data, err := km.checkPredict("Transform", X)
	if err != nil {
		return nil, err
	}
	return distances(data, km.centroids), nil
}

// FitPredict fits the model and returns the training labels.
func (km *KMeans) FitPredict(X mat.Matrix) (mat.Matrix, error) {
	if err := km.Fit(X); err != nil {
		return nil, err
	}
	return labelsToMatrix(km.labels), nil
}

func (km *KMeans) checkPredict(method string, X mat.Matrix) (*mat.Dense, error) {
	if !km.IsFitted() {
		return nil, errors.NewNotFittedError("KMeans", method)
	}
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "KMeans."+method)
	}
	r, c := X.Dims()
	if r == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "KMeans."+method)
	}
	if _, d := km.centroids.Dims(); c != d {
		return nil, errors.NewDimensionError("KMeans."+method, d, c, 1)
	}
	return linalg.AsDense(X), nil
}

// Centroids returns a copy of the k×d centroid matrix, or nil before Fit.
func (km *KMeans) Centroids() *mat.Dense {
	if km.centroids == nil {
		return nil
	}
	return mat.DenseCopyOf(km.centroids)
}

// Labels は学習データの各行のクラスタ番号を返す
func (km *KMeans) Labels() []int {
	if km.labels == nil {
		return nil
	}
	out := make([]int, len(km.labels))
	copy(out, km.labels)
	return out
}

// Inertia is the sum of squared distances of the training rows to their centroids.
func (km *KMeans) Inertia() float64 { return km.inertia }

// NIter is the number of Lloyd iterations run by the last Fit.
func (km *KMeans) NIter() int { return km.nIter }

// K returns the configured number of clusters.
func (km *KMeans) K() int { return km.k }

// ExportWeights implements model.WeightExporter.
func (km *KMeans) ExportWeights() (*model.ModelWeights, error) {
	if !km.IsFitted() {
		return nil, errors.NewNotFittedError("KMeans", "ExportWeights")
	}
	k, d := km.centroids.Dims()
	return &model.ModelWeights{
		ModelType:    ModelType,
		Version:      model.WeightsVersion,
		Coefficients: linalg.Flatten(km.centroids),
		Shape:        []int{k, d},
		Hyperparameters: map[string]interface{}{
			"k":     km.k,
			"iters": km.iters,
			"init":  km.init.String(),
			"tol":   km.tol,
		},
		Metadata: map[string]interface{}{
			"inertia": km.inertia,
			"n_iter":  km.nIter,
		},
		IsFitted: true,
	}, nil
}

// ImportWeights implements model.WeightExporter. Training labels are not restored.
func (km *KMeans) ImportWeights(w *model.ModelWeights) error {
	centroids, err := importCentroids(w, ModelType)
	if err != nil {
		return err
	}
	init, err := ParseInit(w.HyperString("init", ""))
	if err != nil {
		return err
	}
	km.k, _ = centroids.Dims()
	km.iters = int(w.HyperFloat("iters", float64(km.iters)))
	km.tol = w.HyperFloat("tol", km.tol)
	km.init = init
	km.centroids = centroids
	km.labels = nil
	if v, ok := w.Metadata["inertia"].(float64); ok {
		km.inertia = v
	}
	km.SetFitted()
	return nil
}

func importCentroids(w *model.ModelWeights, modelType string) (*mat.Dense, error) {
	if err := w.Expect(modelType); err != nil {
		return nil, err
	}
	if len(w.Shape) != 2 {
		return nil, errors.NewValidationError("shape", "centroids must be [k, features]", w.Shape)
	}
	return linalg.Reshape(w.Coefficients, w.Shape[0], w.Shape[1])
}

// checkData は学習データを検証して *mat.Dense として返す
func checkData(op string, X mat.Matrix, k int) (*mat.Dense, error) {
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	if k > n {
		return nil, errors.NewValueError(op, "k is larger than the number of samples")
	}
	if err := errors.CheckMatrix(op, X, 0); err != nil {
		return nil, err
	}
	return linalg.AsDense(X), nil
}
