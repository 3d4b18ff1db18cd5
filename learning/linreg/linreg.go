// Package linreg は切片付きの線形回帰を提供します。
//
// 最適化アルゴリズムを指定しない場合は正規方程式 (XᵀX)⁻¹Xᵀy で解き、
// L2正則化が指定されていれば切片を罰則から除いたリッジ回帰として解きます。
// 最適化アルゴリズムを指定した場合は平均二乗誤差を勾配法で最小化します。
package linreg

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
const ModelType = "linreg"

// LinRegressor は線形回帰モデル
type LinRegressor struct {
	model.BaseEstimator

	optimizer optim.Algorithm
	reg       toolkit.Regularization

	params    []float64 // 切片が先頭
	nFeatures int
	costs     []float64
}

// Option is a function that configures LinRegressor
type Option func(*LinRegressor)

// WithOptimizer はパラメータを勾配法で学習させる
func WithOptimizer(alg optim.Algorithm) Option {
	return func(lr *LinRegressor) {
		lr.optimizer = alg
	}
}

// WithRegularization は切片以外のパラメータに正則化を掛ける
func WithRegularization(reg toolkit.Regularization) Option {
	return func(lr *LinRegressor) {
		lr.reg = reg
	}
}

// NewLinRegressor は新しい線形回帰モデルを作成する
func NewLinRegressor(opts ...Option) *LinRegressor {
	lr := &LinRegressor{reg: toolkit.None()}
	for _, opt := range opts {
		opt(lr)
	}
	if lr.reg == nil {
		lr.reg = toolkit.None()
	}
	return lr
}

// Fit はモデルを訓練データで学習させる
func (lr *LinRegressor) Fit(X, y mat.Matrix) error {
	return lr.FitContext(context.Background(), X, y)
}

// FitContext は Fit と同じだが、勾配法の学習をキャンセルできる
func (lr *LinRegressor) FitContext(ctx context.Context, X, y mat.Matrix) error {
	const op = "LinRegressor.Fit"
	r, c, err := validate(op, X, y)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("linreg").With(log.ModelNameKey, "LinRegressor")
	logger.Debug("fit started", log.SamplesKey, r, log.FeaturesKey, c)
	began := time.Now()

	// 切片項のために X に 1 の列を追加
	Xb := linalg.AddBias(X)

	optimizer := lr.optimizer
	if optimizer == nil {
		if _, isL1 := lr.reg.(toolkit.L1Reg); isL1 {
			optimizer = optim.DefaultGradientDesc()
		}
		if _, isEN := lr.reg.(toolkit.ElasticNetReg); isEN {
			optimizer = optim.DefaultGradientDesc()
		}
	}

	var params []float64
	lr.costs = nil
	if optimizer == nil {
		params, err = lr.solveNormal(Xb, y)
	} else {
		var res *optim.Result
		res, err = optimizer.Optimize(ctx, &objective{reg: lr.reg}, make([]float64, c+1), Xb, y)
		if res != nil {
			params = res.Params
			lr.costs = res.Costs
		}
	}
	if err != nil {
		return errors.NewModelError(op, "training failed", err)
	}

	lr.params = params
	lr.nFeatures = c
	lr.SetFitted()

	logger.Debug("fit finished", log.DurationMsKey, time.Since(began).Milliseconds())
	return nil
}

// solveNormal は正規方程式を解く。L2 の場合は切片以外の対角に λ を加える。
func (lr *LinRegressor) solveNormal(Xb *mat.Dense, y mat.Matrix) ([]float64, error) {
	XtX, err := linalg.MulT(Xb, Xb)
	if err != nil {
		return nil, err
	}
	if l2, ok := lr.reg.(toolkit.L2Reg); ok && l2.Lambda > 0 {
		n, _ := XtX.Dims()
		for i := 1; i < n; i++ {
			XtX.Set(i, i, XtX.At(i, i)+l2.Lambda)
		}
	}

	XtXInv, err := linalg.Inverse(XtX)
	if err != nil {
		return nil, err
	}
	Xty, err := linalg.MulT(Xb, y)
	if err != nil {
		return nil, err
	}
	beta, err := linalg.Mul(XtXInv, Xty)
	if err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, beta), nil
}

// Predict は入力データに対する予測を行う
func (lr *LinRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinRegressor", "Predict")
	}
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "LinRegressor.Predict")
	}
	_, c := X.Dims()
	if c != lr.nFeatures {
		return nil, errors.NewDimensionError("LinRegressor.Predict", lr.nFeatures, c, 1)
	}
	beta := mat.NewDense(len(lr.params), 1, lr.params)
	return linalg.Mul(linalg.AddBias(X), beta)
}

// Parameters は切片を先頭にしたパラメータのコピーを返す
func (lr *LinRegressor) Parameters() []float64 {
	if lr.params == nil {
		return nil
	}
	out := make([]float64, len(lr.params))
	copy(out, lr.params)
	return out
}

// Intercept は学習された切片を返す
func (lr *LinRegressor) Intercept() float64 {
	if !lr.IsFitted() {
		return 0
	}
	return lr.params[0]
}

// Weights は学習された重み（係数）を返す
func (lr *LinRegressor) Weights() []float64 {
	if !lr.IsFitted() {
		return nil
	}
	out := make([]float64, len(lr.params)-1)
	copy(out, lr.params[1:])
	return out
}

// Costs は勾配法で学習した場合のイテレーションごとのコストを返す
func (lr *LinRegressor) Costs() []float64 {
	return lr.costs
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinRegressor) Score(X, y mat.Matrix) (float64, error) {
	if !lr.IsFitted() {
		return 0, errors.NewNotFittedError("LinRegressor", "Score")
	}
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := linalg.ColumnVector(y)
	if err != nil {
		return 0, err
	}
	pred, _ := linalg.ColumnVector(yPred)
	return metrics.R2Score(yTrue, pred)
}

// ExportWeights implements model.WeightExporter.
func (lr *LinRegressor) ExportWeights() (*model.ModelWeights, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinRegressor", "ExportWeights")
	}
	l1, l2 := lr.reg.Strengths()
	return &model.ModelWeights{
		ModelType:    ModelType,
		Version:      model.WeightsVersion,
		Coefficients: lr.Weights(),
		Intercept:    lr.params[0],
		Shape:        []int{lr.nFeatures},
		Hyperparameters: map[string]interface{}{
			"regularization": lr.reg.Name(),
			"lambda1":        l1,
			"lambda2":        l2,
		},
		IsFitted: true,
	}, nil
}

// ImportWeights implements model.WeightExporter.
func (lr *LinRegressor) ImportWeights(w *model.ModelWeights) error {
	if err := w.Expect(ModelType); err != nil {
		return err
	}
	reg, err := toolkit.NewRegularization(w.HyperString("regularization", "none"),
		w.HyperFloat("lambda1", 0), w.HyperFloat("lambda2", 0))
	if err != nil {
		return err
	}
	lr.reg = reg
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
	return r, c, nil
}
