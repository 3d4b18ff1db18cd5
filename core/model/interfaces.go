package model

import (
	"gonum.org/v1/gonum/mat"
)

// UnsupervisedFitter is implemented by models trained without targets.
type UnsupervisedFitter interface {
	Fit(X mat.Matrix) error
}

// Clusterer groups samples and assigns each one a cluster index.
type Clusterer interface {
	UnsupervisedFitter
	Predictor
	// Labels returns the cluster index of each training sample.
	Labels() []int
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// WeightExporter is implemented by models whose learned state can be
// captured in a ModelWeights snapshot and restored later.
type WeightExporter interface {
	ExportWeights() (*ModelWeights, error)
	ImportWeights(w *ModelWeights) error
}

// IncrementalEstimator はミニバッチで逐次学習できるモデルのインターフェース
type IncrementalEstimator interface {
	// PartialFit は1バッチ分だけモデルを更新する
	PartialFit(X mat.Matrix) error

	// NIterations は実行された学習イテレーション数を返す
	NIterations() int
}
