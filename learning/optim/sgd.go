package optim

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/gomachine/gomachine/linalg"
	"github.com/gomachine/gomachine/pkg/errors"
	"github.com/gomachine/gomachine/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// StochasticGD はモメンタム付き確率的勾配降下法です。
// エポックごとに行をシャッフルし、1サンプルずつ δ = μδ + α∇, p −= δ で更新します。
type StochasticGD struct {
	Alpha float64 // 学習率
	Mu    float64 // モメンタム係数
	Iters int     // エポック数
	Seed  uint64  // シャッフル用の乱数シード
}

// DefaultStochasticGD returns StochasticGD with alpha 0.1, momentum 0.1 and 20 epochs.
func DefaultStochasticGD() StochasticGD {
	return StochasticGD{Alpha: 0.1, Mu: 0.1, Iters: 20}
}

// NewStochasticGD creates a StochasticGD with explicit hyperparameters.
func NewStochasticGD(alpha, mu float64, iters int) (StochasticGD, error) {
	sgd := StochasticGD{Alpha: alpha, Mu: mu, Iters: iters}
	return sgd, sgd.validate()
}

// Name implements Algorithm.
func (s StochasticGD) Name() string { return "StochasticGD" }

func (s StochasticGD) validate() error {
	if !(s.Alpha > 0) || math.IsInf(s.Alpha, 0) {
		return errors.NewValidationError("alpha", "must be positive", s.Alpha)
	}
	if s.Mu < 0 || s.Mu >= 1 || math.IsNaN(s.Mu) {
		return errors.NewValidationError("mu", "must be in [0, 1)", s.Mu)
	}
	if s.Iters <= 0 {
		return errors.NewValidationError("iters", "must be positive", s.Iters)
	}
	return nil
}

// Optimize implements Algorithm.
func (s StochasticGD) Optimize(ctx context.Context, m Optimizable, start []float64, inputs, targets mat.Matrix) (*Result, error) {
	const op = "StochasticGD.Optimize"
	if err := s.validate(); err != nil {
		return nil, err
	}
	if err := validateInputs(op, start, inputs, targets); err != nil {
		return nil, err
	}

	l := logger(s.Name())
	began := time.Now()
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
	samples := newSampler(inputs, targets)

	params := copyParams(start)
	delta := make([]float64, len(params))
	res := &Result{Costs: make([]float64, 0, s.Iters)}

	for epoch := 0; epoch < s.Iters; epoch++ {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}

		order := rng.Perm(samples.n)
		total := 0.0
		for _, i := range order {
			x, t := samples.row(i)
			cost, grad, err := m.ComputeGrad(params, x, t)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: epoch %d", op, epoch)
			}
			if err := checkStep(cost, grad, epoch); err != nil {
				return nil, err
			}
			for j := range params {
				delta[j] = s.Mu*delta[j] + s.Alpha*grad[j]
				params[j] -= delta[j]
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

// sampler は1行ずつの入力・教師ビューを提供する
type sampler struct {
	x, t *mat.Dense
	n    int
	xc   int
	tc   int
}

func newSampler(inputs, targets mat.Matrix) *sampler {
	x, t := linalg.AsDense(inputs), linalg.AsDense(targets)
	n, xc := x.Dims()
	_, tc := t.Dims()
	return &sampler{x: x, t: t, n: n, xc: xc, tc: tc}
}

func (s *sampler) row(i int) (mat.Matrix, mat.Matrix) {
	return s.x.Slice(i, i+1, 0, s.xc), s.t.Slice(i, i+1, 0, s.tc)
}
