package preprocessing

import (
	"github.com/gomachine/gomachine/core/model"
	"github.com/gomachine/gomachine/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// constantScale より小さい幅の列は定数列とみなし、スケールを1にする
const constantScale = 1e-8

// affine は列ごとの x' = (x − shift)/scale + offset
type affine struct {
	shift  []float64
	scale  []float64
	offset float64
}

func (a *affine) nFeatures() int { return len(a.shift) }

func (a *affine) forward(name, method string, X mat.Matrix) (*mat.Dense, error) {
	if err := a.check(name, method, X); err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Apply(func(_, j int, v float64) float64 {
		return (v-a.shift[j])/a.scale[j] + a.offset
	}, X)
	return &out, nil
}

func (a *affine) inverse(name, method string, X mat.Matrix) (*mat.Dense, error) {
	if err := a.check(name, method, X); err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Apply(func(_, j int, v float64) float64 {
		return (v-a.offset)*a.scale[j] + a.shift[j]
	}, X)
	return &out, nil
}

func (a *affine) check(name, method string, X mat.Matrix) error {
	if a.shift == nil {
		return errors.NewNotFittedError(name, method)
	}
	if X == nil {
		return errors.Wrap(errors.ErrEmptyData, name+"."+method)
	}
	r, c := X.Dims()
	if r == 0 {
		return errors.Wrap(errors.ErrEmptyData, name+"."+method)
	}
	if c != a.nFeatures() {
		return errors.NewDimensionError(name+"."+method, a.nFeatures(), c, 1)
	}
	return nil
}

// export は shift と scale を [2, features] の係数として書き出す
func (a *affine) export(modelType string, hyper map[string]interface{}) *model.ModelWeights {
	n := a.nFeatures()
	coef := make([]float64, 0, 2*n)
	coef = append(coef, a.shift...)
	coef = append(coef, a.scale...)
	return &model.ModelWeights{
		ModelType:       modelType,
		Version:         model.WeightsVersion,
		Coefficients:    coef,
		Intercept:       a.offset,
		Shape:           []int{2, n},
		Hyperparameters: hyper,
		IsFitted:        true,
	}
}

func (a *affine) load(w *model.ModelWeights, modelType string) error {
	if err := w.Expect(modelType); err != nil {
		return err
	}
	if len(w.Shape) != 2 || w.Shape[0] != 2 {
		return errors.NewValidationError("shape", "scaler weights must be [2, features]", w.Shape)
	}
	n := w.Shape[1]
	a.shift = append([]float64(nil), w.Coefficients[:n]...)
	a.scale = append([]float64(nil), w.Coefficients[n:]...)
	a.offset = w.Intercept
	return nil
}

func checkFitData(op string, X mat.Matrix) error {
	if X == nil {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	return errors.CheckMatrix(op, X, 0)
}
