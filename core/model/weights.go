package model

import (
	"encoding/json"

	"github.com/gomachine/gomachine/pkg/errors"
)

// WeightsVersion は現在のスナップショット形式のバージョン
const WeightsVersion = "1.0.0"

// ModelWeights はモデルの重みを表す構造体（シリアライゼーション用）
type ModelWeights struct {
	// ModelType はモデルの種類（linreg, logistic, kmeans, nnet等）
	ModelType string `json:"model_type"`

	// Version はモデルのバージョン（互換性チェック用）
	Version string `json:"version"`

	// Coefficients は重み係数。行列の場合は行優先で平坦化する
	Coefficients []float64 `json:"coefficients"`

	// Intercept は切片
	Intercept float64 `json:"intercept"`

	// Shape はCoefficientsの論理的な形（例: k-meansでは [k, features]）
	Shape []int `json:"shape,omitempty"`

	// Features は特徴量の名前（オプション）
	Features []string `json:"features,omitempty"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Metadata は追加のメタデータ（学習時の統計等）
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, mw); err != nil {
		return errors.Wrap(err, "decode model weights")
	}
	return nil
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version == "" {
		return errors.NewValidationError("version", "is required", mw.Version)
	}
	if !mw.IsFitted && len(mw.Coefficients) > 0 {
		return errors.NewValidationError("coefficients", "unfitted model should not have coefficients", len(mw.Coefficients))
	}
	if mw.IsFitted && len(mw.Coefficients) == 0 {
		return errors.NewValidationError("coefficients", "fitted model must have coefficients", 0)
	}
	if len(mw.Shape) > 0 {
		n := 1
		for _, d := range mw.Shape {
			if d <= 0 {
				return errors.NewValidationError("shape", "dimensions must be positive", mw.Shape)
			}
			n *= d
		}
		if n != len(mw.Coefficients) {
			return errors.NewValidationError("shape", "does not match number of coefficients", mw.Shape)
		}
	}
	return nil
}

// Expect はModelTypeとバージョンを確認してからValidateを実行します。
// ImportWeightsの先頭で使われます。
func (mw *ModelWeights) Expect(modelType string) error {
	if mw == nil {
		return errors.NewValueError("ImportWeights", "weights are nil")
	}
	if mw.ModelType != modelType {
		return errors.NewValueError("ImportWeights",
			"model type mismatch: expected "+modelType+", got "+mw.ModelType)
	}
	return mw.Validate()
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:       mw.ModelType,
		Version:         mw.Version,
		Intercept:       mw.Intercept,
		IsFitted:        mw.IsFitted,
		Coefficients:    make([]float64, len(mw.Coefficients)),
		Shape:           make([]int, len(mw.Shape)),
		Features:        make([]string, len(mw.Features)),
		Hyperparameters: make(map[string]interface{}, len(mw.Hyperparameters)),
		Metadata:        make(map[string]interface{}, len(mw.Metadata)),
	}

	copy(clone.Coefficients, mw.Coefficients)
	copy(clone.Shape, mw.Shape)
	copy(clone.Features, mw.Features)

	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	for k, v := range mw.Metadata {
		clone.Metadata[k] = v
	}

	return clone
}

// HyperFloat はHyperparametersから数値を取り出します。
// JSON経由の場合はfloat64、直接構築した場合はintの可能性がある。
func (mw *ModelWeights) HyperFloat(key string, def float64) float64 {
	switch v := mw.Hyperparameters[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// HyperInts はHyperparametersから整数スライスを取り出します。
func (mw *ModelWeights) HyperInts(key string) []int {
	switch v := mw.Hyperparameters[key].(type) {
	case []int:
		out := make([]int, len(v))
		copy(out, v)
		return out
	case []interface{}:
		out := make([]int, 0, len(v))
		for _, x := range v {
			switch n := x.(type) {
			case float64:
				out = append(out, int(n))
			case int:
				out = append(out, n)
			default:
				return nil
			}
		}
		return out
	default:
		return nil
	}
}

// HyperString はHyperparametersから文字列を取り出します。
func (mw *ModelWeights) HyperString(key, def string) string {
	if s, ok := mw.Hyperparameters[key].(string); ok {
		return s
	}
	return def
}
