package nnet

import (
	"github.com/gomachine/gomachine/learning/toolkit"
	"gonum.org/v1/gonum/mat"
)

// Criterion はネットワーク全体で使う活性化関数とコスト関数の組。
// Regularization はバイアス以外の重みにだけ掛かる。
type Criterion struct {
	Activation     toolkit.ActivationFunc
	Cost           toolkit.CostFunc
	Regularization toolkit.Regularization
}

// BCECriterion uses the sigmoid activation with binary cross-entropy.
func BCECriterion() Criterion {
	return Criterion{
		Activation:     toolkit.Sigmoid,
		Cost:           toolkit.CrossEntropyError{},
		Regularization: toolkit.None(),
	}
}

// MSECriterion uses the linear activation with mean squared error.
func MSECriterion() Criterion {
	return Criterion{
		Activation:     toolkit.Linear,
		Cost:           toolkit.MeanSqError{},
		Regularization: toolkit.None(),
	}
}

// NewCriterion builds a Criterion from activation and cost names,
// e.g. ("sigmoid", "cross_entropy").
func NewCriterion(activation, cost string) (Criterion, error) {
	act, err := toolkit.ActivationByName(activation)
	if err != nil {
		return Criterion{}, err
	}
	cf, err := toolkit.CostByName(cost)
	if err != nil {
		return Criterion{}, err
	}
	return Criterion{Activation: act, Cost: cf, Regularization: toolkit.None()}, nil
}

// WithRegularization returns a copy of c that penalises the non-bias weights.
func (c Criterion) WithRegularization(reg toolkit.Regularization) Criterion {
	c.Regularization = reg
	return c
}

func (c Criterion) activate(z mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return c.Activation.Func(v) }, z)
	return &out
}

func (c Criterion) gradActiv(z mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return c.Activation.Grad(v) }, z)
	return &out
}

func (c Criterion) reg() toolkit.Regularization {
	if c.Regularization == nil {
		return toolkit.None()
	}
	return c.Regularization
}
