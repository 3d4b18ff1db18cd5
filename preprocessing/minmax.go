package preprocessing

import (
	"fmt"

	"github.com/gomachine/gomachine/core/model"
	"github.com/gomachine/gomachine/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MinMaxScalerType はMinMaxScalerの重みのモデル種別
const MinMaxScalerType = "minmax_scaler"

// MinMaxScaler はデータを指定した範囲（デフォルト[0,1]）にスケーリングする
type MinMaxScaler struct {
	model.BaseEstimator
	affine

	featureRange [2]float64
	dataMin      []float64
	dataMax      []float64
}

// NewMinMaxScaler creates a MinMaxScaler mapping each column onto featureRange.
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{featureRange: featureRange}
}

// NewMinMaxScalerDefault は [0,1] 範囲のMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0, 1})
}

// Fit records the per-column minimum and maximum.
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	width := m.featureRange[1] - m.featureRange[0]
	if !(width > 0) {
		return errors.NewValidationError("feature_range", "min must be smaller than max", m.featureRange)
	}
	if err := checkFitData("MinMaxScaler.Fit", X); err != nil {
		return err
	}
	r, c := X.Dims()
	m.dataMin = make([]float64, c)
	m.dataMax = make([]float64, c)
	scale := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		m.dataMin[j], m.dataMax[j] = floats.Min(col), floats.Max(col)
		// (x − min)/(max − min) * width を (x − min)/scale にまとめる
		scale[j] = 1 / width
		if span := m.dataMax[j] - m.dataMin[j]; span >= constantScale {
			scale[j] = span / width
		}
	}
	m.affine = affine{shift: append([]float64(nil), m.dataMin...), scale: scale, offset: m.featureRange[0]}
	m.SetFitted()
	return nil
}

// Transform scales X onto the feature range.
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	return m.forward("MinMaxScaler", "Transform", X)
}

// FitTransform は学習と変換を続けて行う
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform maps scaled data back to the original range.
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return m.inverse("MinMaxScaler", "InverseTransform", X)
}

// DataMin は学習データの列ごとの最小値
func (m *MinMaxScaler) DataMin() []float64 { return append([]float64(nil), m.dataMin...) }

// DataMax は学習データの列ごとの最大値
func (m *MinMaxScaler) DataMax() []float64 { return append([]float64(nil), m.dataMax...) }

// ExportWeights implements model.WeightExporter.
func (m *MinMaxScaler) ExportWeights() (*model.ModelWeights, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MinMaxScaler", "ExportWeights")
	}
	return m.export(MinMaxScalerType, map[string]interface{}{
		"range_min": m.featureRange[0],
		"range_max": m.featureRange[1],
	}), nil
}

// ImportWeights implements model.WeightExporter. DataMax is not restored.
func (m *MinMaxScaler) ImportWeights(w *model.ModelWeights) error {
	if err := m.load(w, MinMaxScalerType); err != nil {
		return err
	}
	m.featureRange = [2]float64{w.HyperFloat("range_min", 0), w.HyperFloat("range_max", 1)}
	m.dataMin = append([]float64(nil), m.shift...)
	m.dataMax = nil
	m.SetFitted()
	return nil
}

func (m *MinMaxScaler) String() string {
	return fmt.Sprintf("MinMaxScaler(feature_range=[%g, %g], n_features=%d)",
		m.featureRange[0], m.featureRange[1], m.nFeatures())
}
