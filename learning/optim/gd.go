package optim

import (
	"context"
	"math"
	"time"

	"github.com/gomachine/gomachine/pkg/errors"
	"github.com/gomachine/gomachine/pkg/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// GradientDesc はバッチ勾配降下法です。各イテレーションで全データの勾配を使います。
type GradientDesc struct {
	Alpha float64 // 学習率
	Iters int     // 最大イテレーション数
	Tol   float64 // コストの変化がこれ未満で停止。0なら常にIters回実行
}

// DefaultGradientDesc returns GradientDesc with alpha 0.3 and 100 iterations.
func DefaultGradientDesc() GradientDesc {
	return GradientDesc{Alpha: 0.3, Iters: 100, Tol: 1e-8}
}

// NewGradientDesc creates a GradientDesc with the given learning rate and iteration count.
func NewGradientDesc(alpha float64, iters int) (GradientDesc, error) {
	gd := GradientDesc{Alpha: alpha, Iters: iters, Tol: 1e-8}
	return gd, gd.validate()
}

// Name implements Algorithm.
func (gd GradientDesc) Name() string { return "GradientDesc" }

func (gd GradientDesc) validate() error {
	if !(gd.Alpha > 0) || math.IsInf(gd.Alpha, 0) {
		return errors.NewValidationError("alpha", "must be positive", gd.Alpha)
	}
	if gd.Iters <= 0 {
		return errors.NewValidationError("iters", "must be positive", gd.Iters)
	}
	if gd.Tol < 0 {
		return errors.NewValidationError("tol", "must be non-negative", gd.Tol)
	}
	return nil
}

// Optimize implements Algorithm.
func (gd GradientDesc) Optimize(ctx context.Context, m Optimizable, start []float64, inputs, targets mat.Matrix) (*Result, error) {
	const op = "GradientDesc.Optimize"
	if err := gd.validate(); err != nil {
		return nil, err
	}
	if err := validateInputs(op, start, inputs, targets); err != nil {
		return nil, err
	}

	l := logger(gd.Name())
	began := time.Now()
	params := copyParams(start)
	res := &Result{Costs: make([]float64, 0, gd.Iters)}
	prevCost := math.Inf(1)

	for i := 0; i < gd.Iters; i++ {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}

		cost, grad, err := m.ComputeGrad(params, inputs, targets)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: iteration %d", op, i)
		}
		if err := checkStep(cost, grad, i); err != nil {
			return nil, err
		}

		res.Costs = append(res.Costs, cost)
		res.Iterations = i + 1
		l.Debug("iteration", log.IterationKey, i, log.LossKey, cost)

		if gd.Tol > 0 && math.Abs(prevCost-cost) < gd.Tol {
			res.Converged = true
			break
		}
		prevCost = cost

		floats.AddScaled(params, -gd.Alpha, grad)
	}

	res.Params = params
	if gd.Tol > 0 && !res.Converged {
		errors.Warn(errors.NewConvergenceWarning(gd.Name(), res.Iterations, ""))
	}
	logDone(l, res, began)
	return res, nil
}
