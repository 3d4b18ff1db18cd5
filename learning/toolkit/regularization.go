package toolkit

import (
	"math"

	"github.com/gomachine/gomachine/pkg/errors"
)

// Regularization はパラメータに対するペナルティ項です。
// バイアス（切片）パラメータは呼び出し側で除外します。
type Regularization interface {
	Name() string
	// Strengths returns the L1 and L2 coefficients.
	Strengths() (l1, l2 float64)
	Cost(params []float64) float64
	Grad(params []float64) []float64
}

type noReg struct{}

// None returns a regularization that adds nothing.
func None() Regularization { return noReg{} }

func (noReg) Name() string                    { return "none" }
func (noReg) Strengths() (float64, float64)   { return 0, 0 }
func (noReg) Cost([]float64) float64          { return 0 }
func (noReg) Grad(params []float64) []float64 { return make([]float64, len(params)) }

// L1Reg は λ·Σ|w| のペナルティ
type L1Reg struct{ Lambda float64 }

// L1 returns an L1 (lasso) penalty.
func L1(lambda float64) Regularization { return L1Reg{Lambda: lambda} }

func (r L1Reg) Name() string                  { return "l1" }
func (r L1Reg) Strengths() (float64, float64) { return r.Lambda, 0 }

func (r L1Reg) Cost(params []float64) float64 {
	sum := 0.0
	for _, p := range params {
		sum += math.Abs(p)
	}
	return r.Lambda * sum
}

func (r L1Reg) Grad(params []float64) []float64 {
	g := make([]float64, len(params))
	for i, p := range params {
		g[i] = r.Lambda * sign(p)
	}
	return g
}

// L2Reg は λ/2·Σw² のペナルティ
type L2Reg struct{ Lambda float64 }

// L2 returns an L2 (ridge) penalty.
func L2(lambda float64) Regularization { return L2Reg{Lambda: lambda} }

func (r L2Reg) Name() string                  { return "l2" }
func (r L2Reg) Strengths() (float64, float64) { return 0, r.Lambda }

func (r L2Reg) Cost(params []float64) float64 {
	sum := 0.0
	for _, p := range params {
		sum += p * p
	}
	return 0.5 * r.Lambda * sum
}

func (r L2Reg) Grad(params []float64) []float64 {
	g := make([]float64, len(params))
	for i, p := range params {
		g[i] = r.Lambda * p
	}
	return g
}

// ElasticNetReg は L1 と L2 の和
type ElasticNetReg struct{ L1, L2 float64 }

// ElasticNet returns the sum of an L1 and an L2 penalty.
func ElasticNet(l1, l2 float64) Regularization { return ElasticNetReg{L1: l1, L2: l2} }

func (r ElasticNetReg) Name() string                  { return "elasticnet" }
func (r ElasticNetReg) Strengths() (float64, float64) { return r.L1, r.L2 }

func (r ElasticNetReg) Cost(params []float64) float64 {
	return L1Reg{r.L1}.Cost(params) + L2Reg{r.L2}.Cost(params)
}

func (r ElasticNetReg) Grad(params []float64) []float64 {
	g := L1Reg{r.L1}.Grad(params)
	l2 := L2Reg{r.L2}.Grad(params)
	for i, v := range l2 {
		g[i] += v
	}
	return g
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// NewRegularization は名前と強さから正則化を組み立てます。
// 設定ファイルやエクスポートされた重みから復元する際に使います。
func NewRegularization(name string, l1, l2 float64) (Regularization, error) {
	if l1 < 0 || l2 < 0 || math.IsNaN(l1) || math.IsNaN(l2) {
		return nil, errors.NewValidationError("regularization", "strength must be non-negative", []float64{l1, l2})
	}
	switch name {
	case "", "none":
		return None(), nil
	case "l1":
		return L1(l1), nil
	case "l2":
		return L2(l2), nil
	case "elasticnet":
		return ElasticNet(l1, l2), nil
	default:
		return nil, errors.NewValidationError("regularization", "unknown regularization", name)
	}
}
