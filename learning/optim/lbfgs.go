package optim

import (
	"context"
	"sync"
	"time"

	"github.com/gomachine/gomachine/pkg/errors"
	"github.com/gomachine/gomachine/pkg/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// LBFGS は gonum/optimize の L-BFGS を Algorithm として使うためのアダプタです。
// 全データのコストと勾配を使います。
type LBFGS struct {
	Iters   int     // 最大メジャーイテレーション数
	GradTol float64 // 勾配の無限大ノルムがこれ未満で収束
}

// DefaultLBFGS returns LBFGS with 100 iterations and gradient tolerance 1e-6.
func DefaultLBFGS() LBFGS {
	return LBFGS{Iters: 100, GradTol: 1e-6}
}

// Name implements Algorithm.
func (lb LBFGS) Name() string { return "LBFGS" }

func (lb LBFGS) validate() error {
	if lb.Iters <= 0 {
		return errors.NewValidationError("iters", "must be positive", lb.Iters)
	}
	if lb.GradTol < 0 {
		return errors.NewValidationError("grad_tol", "must be non-negative", lb.GradTol)
	}
	return nil
}

// lbfgsObjective はコストと勾配を1回の ComputeGrad で求め、同じ点の再評価を省く。
// Func/Grad はワーカー goroutine、Status は集計 goroutine から呼ばれる。
type lbfgsObjective struct {
	m               Optimizable
	inputs, targets mat.Matrix

	mu    sync.Mutex
	x     []float64
	cost  float64
	grad  []float64
	err   error
	evals int
}

func (o *lbfgsObjective) eval(x []float64) (float64, []float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.x != nil && floats.Equal(o.x, x) {
		return o.cost, o.grad
	}
	cost, grad, err := o.m.ComputeGrad(x, o.inputs, o.targets)
	if err == nil {
		err = checkStep(cost, grad, o.evals)
	}
	o.evals++
	if err != nil {
		if o.err == nil {
			o.err = err
		}
		return cost, make([]float64, len(x))
	}
	o.x = copyParams(x)
	o.cost, o.grad = cost, grad
	return cost, grad
}

func (o *lbfgsObjective) status() (optimize.Status, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return optimize.Failure, o.err
	}
	return optimize.NotTerminated, nil
}

// costRecorder はメジャーイテレーションごとのコストを記録し、キャンセルを検出する
type costRecorder struct {
	ctx   context.Context
	l     log.Logger
	costs []float64
}

func (r *costRecorder) Init() error { return nil }

func (r *costRecorder) Record(loc *optimize.Location, op optimize.Operation, _ *optimize.Stats) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	if op == optimize.MajorIteration {
		r.costs = append(r.costs, loc.F)
		r.l.Debug("iteration", log.IterationKey, len(r.costs), log.LossKey, loc.F)
	}
	return nil
}

// Optimize implements Algorithm.
func (lb LBFGS) Optimize(ctx context.Context, m Optimizable, start []float64, inputs, targets mat.Matrix) (*Result, error) {
	const op = "LBFGS.Optimize"
	if err := lb.validate(); err != nil {
		return nil, err
	}
	if err := validateInputs(op, start, inputs, targets); err != nil {
		return nil, err
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	l := logger(lb.Name())
	began := time.Now()
	obj := &lbfgsObjective{m: m, inputs: inputs, targets: targets}
	rec := &costRecorder{ctx: ctx, l: l}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			cost, _ := obj.eval(x)
			return cost
		},
		Grad: func(grad, x []float64) {
			_, g := obj.eval(x)
			copy(grad, g)
		},
		Status: obj.status,
	}
	settings := &optimize.Settings{
		MajorIterations:   lb.Iters,
		GradientThreshold: lb.GradTol,
		Converger:         &optimize.FunctionConverge{Absolute: 1e-12, Iterations: 20},
		Recorder:          rec,
	}

	result, err := optimize.Minimize(problem, start, settings, &optimize.LBFGS{})
	if ctxE := ctx.Err(); ctxE != nil {
		return nil, ctxE
	}
	if _, evalErr := obj.status(); evalErr != nil {
		return nil, evalErr
	}
	if result == nil {
		return nil, errors.Wrap(err, op)
	}

	res := &Result{
		Params:     copyParams(result.X),
		Costs:      rec.costs,
		Iterations: result.MajorIterations,
		Converged:  err == nil && result.Status != optimize.IterationLimit,
	}
	if !res.Converged {
		msg := result.Status.String()
		if err != nil {
			msg = err.Error()
		}
		errors.Warn(errors.NewConvergenceWarning(lb.Name(), res.Iterations, msg))
	}
	logDone(l, res, began)
	return res, nil
}
