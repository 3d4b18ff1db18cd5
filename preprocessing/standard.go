package preprocessing

import (
	"fmt"
	"math"

	"github.com/gomachine/gomachine/core/model"
	"github.com/gomachine/gomachine/linalg"
	"github.com/gomachine/gomachine/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// StandardScalerType はStandardScalerの重みのモデル種別
const StandardScalerType = "standard_scaler"

// StandardScaler はデータを平均0、標準偏差1に変換する
type StandardScaler struct {
	model.BaseEstimator
	affine

	withMean bool
	withStd  bool
}

// NewStandardScaler creates a StandardScaler. withMean centres each column,
// withStd divides it by its population standard deviation.
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{withMean: withMean, withStd: withStd}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は各列の平均と標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	if err := checkFitData("StandardScaler.Fit", X); err != nil {
		return err
	}
	_, c := X.Dims()
	shift := make([]float64, c)
	scale := make([]float64, c)
	if s.withMean {
		shift = linalg.ColumnMeans(X)
	}
	variances := linalg.ColumnVariances(X)
	for j := range scale {
		scale[j] = 1
		if !s.withStd {
			continue
		}
		if sd := math.Sqrt(variances[j]); sd >= constantScale {
			scale[j] = sd
		}
	}
	s.affine = affine{shift: shift, scale: scale}
	s.SetFitted()
	return nil
}

// Transform standardises X with the fitted statistics.
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	return s.forward("StandardScaler", "Transform", X)
}

// FitTransform は学習と変換を続けて行う
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardised data back to the original scale.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return s.inverse("StandardScaler", "InverseTransform", X)
}

// Mean returns the fitted column means (zeros when withMean is false).
func (s *StandardScaler) Mean() []float64 { return append([]float64(nil), s.shift...) }

// Scale returns the fitted column scales.
func (s *StandardScaler) Scale() []float64 { return append([]float64(nil), s.scale...) }

// ExportWeights implements model.WeightExporter.
func (s *StandardScaler) ExportWeights() (*model.ModelWeights, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "ExportWeights")
	}
	return s.export(StandardScalerType, map[string]interface{}{
		"with_mean": s.withMean,
		"with_std":  s.withStd,
	}), nil
}

// ImportWeights implements model.WeightExporter.
func (s *StandardScaler) ImportWeights(w *model.ModelWeights) error {
	if err := s.load(w, StandardScalerType); err != nil {
		return err
	}
	if v, ok := w.Hyperparameters["with_mean"].(bool); ok {
		s.withMean = v
	}
	if v, ok := w.Hyperparameters["with_std"].(bool); ok {
		s.withStd = v
	}
	s.SetFitted()
	return nil
}

func (s *StandardScaler) String() string {
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.withMean, s.withStd, s.nFeatures())
}
