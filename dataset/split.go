package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/gomachine/gomachine/linalg"
	"github.com/gomachine/gomachine/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Split holds the result of TrainTestSplit. The Y fields are nil when no
// target was given.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.Dense
}

// TrainTestSplit shuffles the rows with seed and moves round(n·testFraction)
// of them (at least one, at most n−1) into the test set.
func TrainTestSplit(X, y mat.Matrix, testFraction float64, seed uint64) (*Split, error) {
	const op = "dataset.TrainTestSplit"
	if !(testFraction > 0 && testFraction < 1) {
		return nil, errors.NewValidationError("test_fraction", "must be in (0, 1)", testFraction)
	}
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	n, _ := X.Dims()
	if n < 2 {
		return nil, errors.NewValueError(op, "need at least two rows to split")
	}
	if y != nil {
		if yr, _ := y.Dims(); yr != n {
			return nil, errors.NewDimensionError(op, n, yr, 0)
		}
	}

	nTest := int(math.Round(float64(n) * testFraction))
	nTest = max(1, min(nTest, n-1))

	perm := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)).Perm(n)
	testIdx, trainIdx := perm[:nTest], perm[nTest:]

	var s Split
	var err error
	if s.XTrain, err = linalg.SelectRows(X, trainIdx); err != nil {
		return nil, err
	}
	if s.XTest, err = linalg.SelectRows(X, testIdx); err != nil {
		return nil, err
	}
	if y != nil {
		if s.YTrain, err = linalg.SelectRows(y, trainIdx); err != nil {
			return nil, err
		}
		if s.YTest, err = linalg.SelectRows(y, testIdx); err != nil {
			return nil, err
		}
	}
	return &s, nil
}
