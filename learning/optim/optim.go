// Package optim は勾配ベースの最適化アルゴリズムを提供します。
//
// モデルは Optimizable を実装してコストと勾配を返し、Algorithm がパラメータを更新します。
// 確率的な手法（StochasticGD, AdaGrad）は1サンプルずつ ComputeGrad を呼び出します。
package optim

import (
	"context"
	"time"

	"github.com/gomachine/gomachine/pkg/errors"
	"github.com/gomachine/gomachine/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// Optimizable is implemented by models that can be trained by an Algorithm.
type Optimizable interface {
	// ComputeGrad returns the cost and the gradient with respect to params
	// over the given inputs and targets. It must not modify params.
	ComputeGrad(params []float64, inputs, targets mat.Matrix) (float64, []float64, error)
}

// Algorithm minimises the cost of an Optimizable starting from start.
type Algorithm interface {
	Optimize(ctx context.Context, m Optimizable, start []float64, inputs, targets mat.Matrix) (*Result, error)
	Name() string
}

// Result は最適化の結果です。
type Result struct {
	Params     []float64
	Costs      []float64 // イテレーション（エポック）ごとのコスト
	Iterations int
	Converged  bool
}

// FinalCost returns the last recorded cost, or 0 if none was recorded.
func (r *Result) FinalCost() float64 {
	if len(r.Costs) == 0 {
		return 0
	}
	return r.Costs[len(r.Costs)-1]
}

func validateInputs(op string, start []float64, inputs, targets mat.Matrix) error {
	if len(start) == 0 {
		return errors.NewValueError(op, "start parameters are empty")
	}
	if inputs == nil || targets == nil {
		return errors.Wrap(errors.ErrEmptyData, op)
	}
	r, _ := inputs.Dims()
	tr, _ := targets.Dims()
	if r != tr {
		return errors.NewDimensionError(op, r, tr, 0)
	}
	return nil
}

// checkStep は各イテレーションのコストと勾配のNaN/Infを検査する
func checkStep(cost float64, grad []float64, iter int) error {
	if err := errors.CheckScalar("cost", cost, iter); err != nil {
		return err
	}
	return errors.CheckNumericalStability("gradient", grad, iter)
}

// ctxErr はキャンセル済みなら ctx.Err() を返す
func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func logger(name string) log.Logger {
	return log.GetLoggerWithName("optim").With(log.OptimizerKey, name)
}

func logDone(l log.Logger, res *Result, start time.Time) {
	l.Debug("optimization finished",
		log.IterationKey, res.Iterations,
		log.LossKey, res.FinalCost(),
		log.ConvergedKey, res.Converged,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
}

func copyParams(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}
