package optim

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/gomachine/gomachine/pkg/errors"
	"github.com/gomachine/gomachine/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// AdaGrad はパラメータごとに学習率を調整する確率的勾配法です。
// p −= α∇ / (τ + sqrt(G))、G は勾配の二乗和。
type AdaGrad struct {
	Alpha float64
	Tau   float64
	Iters int
	Seed  uint64
}

// DefaultAdaGrad returns AdaGrad with alpha 1, tau 1e-3 and 100 epochs.
func DefaultAdaGrad() AdaGrad {
	return AdaGrad{Alpha: 1, Tau: 1e-3, Iters: 100}
}

// NewAdaGrad creates an AdaGrad with explicit hyperparameters.
func NewAdaGrad(alpha, tau float64, iters int) (AdaGrad, error) {
	a := AdaGrad{Alpha: alpha, Tau: tau, Iters: iters}
	return a, a.validate()
}

// Name implements Algorithm.
func (a AdaGrad) Name() string { return "AdaGrad" }

func (a AdaGrad) validate() error {
	if !(a.Alpha > 0) || math.IsInf(a.Alpha, 0) {
		return errors.NewValidationError("alpha", "must be positive", a.Alpha)
	}
	if !(a.Tau > 0) {
		return errors.NewValidationError("tau", "must be positive", a.Tau)
	}
	if a.Iters <= 0 {
		return errors.NewValidationError("iters", "must be positive", a.Iters)
	}
	return nil
}

// Optimize implements Algorithm.
func (a AdaGrad) Optimize(ctx context.Context, m Optimizable, start []float64, inputs, targets mat.Matrix) (*Result, error) {
	const op = "AdaGrad.Optimize"
	if err := a.validate(); err != nil {
		return nil, err
	}
	if err := validateInputs(op, start, inputs, targets); err != nil {
		return nil, err
	}

	l := logger(a.Name())
	began := time.Now()
	rng := rand.New(rand.NewPCG(a.Seed, a.Seed^0x9e3779b97f4a7c15))
	samples := newSampler(inputs, targets)

	params := copyParams(start)
	sumSq := make([]float64, len(params))
	res := &Result{Costs: make([]float64, 0, a.Iters)}

	for epoch := 0; epoch < a.Iters; epoch++ {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}

		total := 0.0
		for _, i := range rng.Perm(samples.n) {
			x, t := samples.row(i)
			cost, grad, err := m.ComputeGrad(params, x, t)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: epoch %d", op, epoch)
			}
			if err := checkStep(cost, grad, epoch); err != nil {
				return nil, err
			}
			for j, g := range grad {
				sumSq[j] += g * g
				params[j] -= a.Alpha * g / (a.Tau + math.Sqrt(sumSq[j]))
			}
			total += cost
		}

		mean := total / float64(samples.n)
		res.Costs = append(res.Costs, mean)
		res.Iterations = epoch + 1
		l.Debug("epoch", log.EpochKey, epoch, log.LossKey, mean)
	}

	res.Params = params
	logDone(l, res, began)
	return res, nil
}
