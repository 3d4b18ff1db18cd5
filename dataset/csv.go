package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gomachine/gomachine/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CSVOptions controls LoadCSV.
type CSVOptions struct {
	// Header は1行目を列名として扱うかどうか
	Header bool
	// Target selects the target column by name. It requires Header.
	Target string
	// TargetIndex selects the target column by index when Target is empty.
	// Negative values count from the end, so -1 is the last column.
	TargetIndex int
	// NoTarget makes every column a feature; Dataset.Y is then nil.
	NoTarget bool
	// Comma はフィールド区切り文字（0ならカンマ）
	Comma rune
}

// Dataset is a feature matrix with an optional n×1 target.
type Dataset struct {
	X        *mat.Dense
	Y        *mat.Dense
	Features []string
	Target   string
}

// LoadCSVFile opens path and calls LoadCSV.
func LoadCSVFile(path string, opts CSVOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return LoadCSV(f, opts)
}

// LoadCSV reads numeric CSV data. Parse errors report the line and column
// of the offending field.
func LoadCSV(r io.Reader, opts CSVOptions) (*Dataset, error) {
	const op = "dataset.LoadCSV"
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var names []string
	if opts.Header {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil, errors.Wrap(errors.ErrEmptyData, op)
		}
		if err != nil {
			return nil, errors.Wrap(err, op)
		}
		names = make([]string, len(rec))
		for i, n := range rec {
			names[i] = strings.TrimSpace(n)
		}
	}

	var (
		data   []float64
		target []float64
		cols   = -1
		tcol   = -1
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewValueError(op, err.Error())
		}
		if cols < 0 {
			cols = len(rec)
			if tcol, err = targetColumn(opts, names, cols); err != nil {
				return nil, err
			}
		}
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				line, col := cr.FieldPos(j)
				return nil, errors.NewValueError(op,
					fmt.Sprintf("line %d, column %d: cannot parse %q as a number", line, col, field))
			}
			if j == tcol {
				target = append(target, v)
			} else {
				data = append(data, v)
			}
		}
	}
	if cols < 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, op)
	}

	nFeatures := cols
	if tcol >= 0 {
		nFeatures--
	}
	if nFeatures == 0 {
		return nil, errors.NewValueError(op, "no feature columns")
	}
	rows := len(data) / nFeatures
	ds := &Dataset{X: mat.NewDense(rows, nFeatures, data)}
	if tcol >= 0 {
		ds.Y = mat.NewDense(rows, 1, target)
	}
	if names != nil {
		for j, n := range names {
			if j == tcol {
				ds.Target = n
				continue
			}
			ds.Features = append(ds.Features, n)
		}
	}
	return ds, nil
}

// targetColumn は目的変数の列番号を返す。NoTarget なら -1。
func targetColumn(opts CSVOptions, names []string, cols int) (int, error) {
	const op = "dataset.LoadCSV"
	if opts.NoTarget {
		return -1, nil
	}
	if opts.Target != "" {
		if names == nil {
			return 0, errors.NewValidationError("target", "selecting a target by name needs a header", opts.Target)
		}
		for i, n := range names {
			if n == opts.Target {
				return i, nil
			}
		}
		return 0, errors.NewValueError(op, fmt.Sprintf("target column %q not found", opts.Target))
	}
	idx := opts.TargetIndex
	if idx < 0 {
		idx += cols
	}
	if idx < 0 || idx >= cols {
		return 0, errors.NewValidationError("target_index", "out of range", opts.TargetIndex)
	}
	return idx, nil
}
