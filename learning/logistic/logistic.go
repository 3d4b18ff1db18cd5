// Package logistic は二値分類のためのロジスティック回帰を提供します。
//
// 入力の先頭に1の列を追加し、全パラメータ0.5から始めて
// シグモイド出力のクロスエントロピーを勾配降下法で最小化します。
package logistic

import (
	"context"
	"time"

	"github.com/gomachine/gomachine/core/model"
	"github.com/gomachine/gomachine/learning/optim"
	"github.com/gomachine/gomachine/learning/toolkit"
	"github.com/gomachine/gomachine/linalg"
	"github.com/gomachine/gomachine/metrics"
	"github.com/gomachine/gomachine/pkg/errors"
	"github.com/gomachine/gomachine/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// ModelType はエクスポートされた重みのモデル種別
const ModelType = "logistic"

// initialParam は全パラメータの初期値
const initialParam = 0.5

// LogisticRegressor はロジスティック回帰による二値分類器
type LogisticRegressor struct {
	model.BaseEstimator

	optimizer optim.Algorithm
	threshold float64
	reg       toolkit.Regularization

	params    []float64 // 切片が先頭
	nFeatures int
	costs     []float64
}

// Option is a functional option for LogisticRegressor
type Option func(*LogisticRegressor)

// WithOptimizer sets the optimization algorithm. The default is GradientDesc
// with alpha 0.3 and 100 iterations.
func WithOptimizer(alg optim.Algorithm) Option {
	return func(lr *LogisticRegressor) {
		lr.optimizer = alg
	}
}

// WithThreshold sets the probability above which PredictClass returns 1.
func WithThreshold(th float64) Option {
	return func(lr *LogisticRegressor) {
		lr.threshold = th
	}
}

// WithRegularization は切片以外のパラメータに正則化を掛ける
func WithRegularization(reg toolkit.Regularization) Option {
	return func(lr *LogisticRegressor) {
		lr.reg = reg
	}
}

// NewLogisticRegressor creates a new LogisticRegressor
func NewLogisticRegressor(opts ...Option) *LogisticRegressor {
	lr := &LogisticRegressor{
		optimizer: optim.DefaultGradientDesc(),
		threshold: 0.5,
		reg:       toolkit.None(),
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit trains the classifier. y must be an n×1 matrix of 0/1 labels.
func (lr *LogisticRegressor) Fit(X, y mat.Matrix) error {
	return lr.FitContext(context.Background(), X, y)
}

// FitContext は Fit と同じだが、学習をキャンセルできる
func (lr *LogisticRegressor) FitContext(ctx context.Context, X, y mat.Matrix) error {
	const op = "LogisticRegressor.Fit"
	if err := lr.validateParams(); err != nil {
		return err
	}
	r, c, err := validate(op, X, y)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("logistic").With(log.ModelNameKey, "LogisticRegressor")
	logger.Debug("fit started",
		log.SamplesKey, r,
		log.FeaturesKey, c,
		log.OptimizerKey, lr.optimizer.Name(),
	)
	began := time.Now()

	start := make([]float64, c+1)
	for i := range start {
		start[i] = initialParam
	}

	res, err := lr.optimizer.Optimize(ctx, &objective{reg: lr.reg}, start, linalg.AddBias(X), y)
	if err != nil {
		return errors.NewModelError(op, "training failed", err)
	}

	lr.params = res.Params
	lr.costs = res.Costs
	lr.nFeatures = c
	lr.SetFitted()

	logger.Debug("fit finished",
		log.LossKey, res.FinalCost(),
		log.DurationMsKey, time.Since(began).Milliseconds(),
	)
	return nil
}

func (lr *LogisticRegressor) validateParams() error {
	if lr.optimizer == nil {
		return errors.NewValidationError("optimizer", "must not be nil", nil)
	}
	if lr.reg == nil {
		return errors.NewValidationError("regularization", "must not be nil", nil)
	}
	if lr.threshold <= 0 || lr.threshold >= 1 {
		return errors.NewValidationError("threshold", "must be in (0, 1)", lr.threshold)
	}
	return nil
}

// Predict returns the probability of the positive class for each row as an n×1 matrix.
func (lr *LogisticRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegressor", "Predict")
	}
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "LogisticRegressor.Predict")
	}
	_, c := X.Dims()
	if c != lr.nFeatures {
		return nil, errors.NewDimensionError("LogisticRegressor.Predict", lr.nFeatures, c, 1)
	}
	z, err := linalg.Mul(linalg.AddBias(X), mat.NewDense(len(lr.params), 1, lr.params))
	if err != nil {
		return nil, err
	}
	return linalg.Apply(z, toolkit.Sigmoid.Func), nil
}

// PredictClass はしきい値で0/1のラベルに変換した予測を返す
func (lr *LogisticRegressor) PredictClass(X mat.Matrix) (mat.Matrix, error) {
	probs, err := lr.Predict(X)
	if err != nil {
		return nil, err
	}
	return linalg.Apply(probs, func(p float64) float64 {
		if p >= lr.threshold {
			return 1
		}
		return 0
	}), nil
}

// Score returns the classification accuracy on X, y.
func (lr *LogisticRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.PredictClass(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := linalg.ColumnVector(y)
	if err != nil {
		return 0, err
	}
	yPred, _ := linalg.ColumnVector(pred)
	return metrics.Accuracy(yTrue, yPred)
}

// Parameters は切片を先頭にしたパラメータのコピーを返す。未学習なら nil。
func (lr *LogisticRegressor) Parameters() []float64 {
	if !lr.IsFitted() {
		return nil
	}
	out := make([]float64, len(lr.params))
	copy(out, lr.params)
	return out
}

// Costs はイテレーションごとのクロスエントロピーを返す
func (lr *LogisticRegressor) Costs() []float64 {
	return lr.costs
}

// ExportWeights implements model.WeightExporter.
func (lr *LogisticRegressor) ExportWeights() (*model.ModelWeights, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegressor", "ExportWeights")
	}
	l1, l2 := lr.reg.Strengths()
	coef := make([]float64, len(lr.params)-1)
	copy(coef, lr.params[1:])
	return &model.ModelWeights{
		ModelType:    ModelType,
		Version:      model.WeightsVersion,
		Coefficients: coef,
		Intercept:    lr.params[0],
		Shape:        []int{lr.nFeatures},
		Hyperparameters: map[string]interface{}{
			"threshold":      lr.threshold,
			"regularization": lr.reg.Name(),
			"lambda1":        l1,
			"lambda2":        l2,
		},
		IsFitted: true,
	}, nil
}

// ImportWeights implements model.WeightExporter.
func (lr *LogisticRegressor) ImportWeights(w *model.ModelWeights) error {
	if err := w.Expect(ModelType); err != nil {
		return err
	}
	reg, err := toolkit.NewRegularization(w.HyperString("regularization", "none"),
		w.HyperFloat("lambda1", 0), w.HyperFloat("lambda2", 0))
	if err != nil {
		return err
	}
	lr.reg = reg
	lr.threshold = w.HyperFloat("threshold", 0.5)
	lr.params = append([]float64{w.Intercept}, w.Coefficients...)
	lr.nFeatures = len(w.Coefficients)
	lr.SetFitted()
	return nil
}

func validate(op string, X, y mat.Matrix) (int, int, error) {
	if X == nil || y == nil {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return 0, 0, errors.NewDimensionError(op, r, ry, 0)
	}
	if cy != 1 {
		return 0, 0, errors.NewValueError(op, "y must be a column vector")
	}
	for i := 0; i < ry; i++ {
		if v := y.At(i, 0); v != 0 && v != 1 {
			return 0, 0, errors.NewValueError(op, "targets must be 0 or 1")
		}
	}
	return r, c, nil
}
