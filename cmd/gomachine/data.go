package main

import (
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/gomachine/gomachine/core/model"
	"github.com/gomachine/gomachine/dataset"
	"github.com/gomachine/gomachine/linalg"
	"github.com/gomachine/gomachine/pkg/errors"
	"github.com/gomachine/gomachine/preprocessing"
)

// dataRequest describes which file to read and which column is the target.
type dataRequest struct {
	path     string
	target   string // 列名または列番号。空なら最後の列
	noHeader bool
	noTarget bool
}

// loadData reads CSV or, for the .gmx extension, a memory-mapped binary
// matrix. Binary files have no header, so the target must be an index.
func loadData(req dataRequest) (*dataset.Dataset, error) {
	if strings.EqualFold(filepath.Ext(req.path), ".gmx") {
		return loadBinary(req)
	}
	opts := dataset.CSVOptions{
		Header:      !req.noHeader,
		TargetIndex: -1,
		NoTarget:    req.noTarget,
	}
	if req.target != "" {
		if i, err := strconv.Atoi(req.target); err == nil {
			opts.TargetIndex = i
		} else {
			opts.Target = req.target
		}
	}
	return dataset.LoadCSVFile(req.path, opts)
}

func loadBinary(req dataRequest) (*dataset.Dataset, error) {
	const op = "loadData"
	mm, err := dataset.OpenBinary(req.path)
	if err != nil {
		return nil, err
	}
	defer mm.Close()

	_, cols := mm.Dims()
	all := make([]int, cols)
	for j := range all {
		all[j] = j
	}
	if req.noTarget {
		X, err := linalg.SelectCols(mm, all)
		if err != nil {
			return nil, err
		}
		return &dataset.Dataset{X: X}, nil
	}

	tcol := cols - 1
	if req.target != "" {
		i, err := strconv.Atoi(req.target)
		if err != nil {
			return nil, errors.NewValueError(op, "binary matrices have no header; give the target as a column index")
		}
		if i < 0 {
			i += cols
		}
		tcol = i
	}
	if tcol < 0 || tcol >= cols {
		return nil, errors.NewValidationError("target", "column index out of range", req.target)
	}
	if cols < 2 {
		return nil, errors.NewValueError(op, "no feature columns")
	}

	features := append(all[:tcol:tcol], all[tcol+1:]...)
	X, err := linalg.SelectCols(mm, features)
	if err != nil {
		return nil, err
	}
	y, err := linalg.SelectCols(mm, []int{tcol})
	if err != nil {
		return nil, err
	}
	return &dataset.Dataset{X: X, Y: y}, nil
}

// scaler is the common surface of the preprocessing scalers.
type scaler interface {
	model.Transformer
	model.WeightExporter
}

func newScaler(kind string) scaler {
	switch kind {
	case "standard":
		return preprocessing.NewStandardScalerDefault()
	case "minmax":
		return preprocessing.NewMinMaxScalerDefault()
	default:
		return nil
	}
}

// metadataScaler はモデルのMetadataに保存されたスケーラを復元する。
// JSONを経由しているため map[string]interface{} から組み立て直す。
func metadataScaler(w *model.ModelWeights) (scaler, error) {
	raw, ok := w.Metadata[scalerKey]
	if !ok || raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "encode stored scaler")
	}
	var sw model.ModelWeights
	if err := sw.FromJSON(data); err != nil {
		return nil, err
	}

	var s scaler
	switch sw.ModelType {
	case preprocessing.StandardScalerType:
		s = preprocessing.NewStandardScalerDefault()
	case preprocessing.MinMaxScalerType:
		s = preprocessing.NewMinMaxScalerDefault()
	default:
		return nil, errors.NewValueError("metadataScaler", "unknown scaler type "+sw.ModelType)
	}
	if err := s.ImportWeights(&sw); err != nil {
		return nil, err
	}
	return s, nil
}

// optionalTarget は nil の *mat.Dense を nil の mat.Matrix に変換する
func optionalTarget(y *mat.Dense) mat.Matrix {
	if y == nil {
		return nil
	}
	return y
}
