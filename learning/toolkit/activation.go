package toolkit

import (
	"math"

	"github.com/gomachine/gomachine/pkg/errors"
)

// ActivationFunc はニューロンの活性化関数とその導関数の組です。
// どちらも活性化前の値 z で評価します。
type ActivationFunc struct {
	Name string
	Func func(z float64) float64
	Grad func(z float64) float64
}

// Sigmoid is the logistic function 1/(1+e^-z).
var Sigmoid = ActivationFunc{
	Name: "sigmoid",
	Func: sigmoid,
	Grad: func(z float64) float64 {
		s := sigmoid(z)
		return s * (1 - s)
	},
}

// Linear is the identity activation.
var Linear = ActivationFunc{
	Name: "linear",
	Func: func(z float64) float64 { return z },
	Grad: func(float64) float64 { return 1 },
}

// Tanh is the hyperbolic tangent activation.
var Tanh = ActivationFunc{
	Name: "tanh",
	Func: math.Tanh,
	Grad: func(z float64) float64 {
		t := math.Tanh(z)
		return 1 - t*t
	},
}

// ReLU is max(0, z). Its gradient at 0 is taken to be 0.
var ReLU = ActivationFunc{
	Name: "relu",
	Func: func(z float64) float64 { return math.Max(0, z) },
	Grad: func(z float64) float64 {
		if z > 0 {
			return 1
		}
		return 0
	},
}

func sigmoid(z float64) float64 {
	return 1 / (1 + errors.StabilizeExp(-z))
}

// SigmoidFunc は単体のシグモイド関数です。
func SigmoidFunc(z float64) float64 { return sigmoid(z) }

// ActivationByName は名前から活性化関数を返します。
func ActivationByName(name string) (ActivationFunc, error) {
	switch name {
	case Sigmoid.Name:
		return Sigmoid, nil
	case Linear.Name:
		return Linear, nil
	case Tanh.Name:
		return Tanh, nil
	case ReLU.Name:
		return ReLU, nil
	default:
		return ActivationFunc{}, errors.NewValidationError("activation", "unknown activation function", name)
	}
}
