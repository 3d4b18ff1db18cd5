package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/gomachine/gomachine/pkg/errors"
)

// SaveModel はモデルの重みスナップショットをgob形式でファイルに保存する
//
// パラメータ:
//   - m: 保存するモデル（WeightExporterを実装していること）
//   - filename: 保存先のファイルパス
//
// 使用例:
//
//	reg := linreg.NewLinRegressor()
//	// ... モデルの学習 ...
//	err := model.SaveModel(reg, "model.gob")
func SaveModel(m WeightExporter, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer file.Close()

	return SaveModelToWriter(m, file)
}

// LoadModel はファイルから重みを読み込み、モデルへ復元する
//
// 使用例:
//
//	reg := linreg.NewLinRegressor()
//	err := model.LoadModel(reg, "model.gob")
func LoadModel(m WeightExporter, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return LoadModelFromReader(m, file)
}

// SaveModelToWriter はモデルの重みをio.Writerに保存する
func SaveModelToWriter(m WeightExporter, w io.Writer) error {
	weights, err := m.ExportWeights()
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(w).Encode(weights); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerから重みを読み込み、モデルへ復元する
func LoadModelFromReader(m WeightExporter, r io.Reader) error {
	var weights ModelWeights
	if err := gob.NewDecoder(r).Decode(&weights); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return m.ImportWeights(&weights)
}
