package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/gomachine/gomachine/pkg/errors"
)

const sampleCSV = `x1,x2,label
1,2,0
3,4,1
5,6,1
`

func TestLoadCSVByName(t *testing.T) {
	ds, err := LoadCSV(strings.NewReader(sampleCSV), CSVOptions{Header: true, Target: "x2"})
	require.NoError(t, err)
	assert.True(t, mat.Equal(mat.NewDense(3, 2, []float64{1, 0, 3, 1, 5, 1}), ds.X))
	assert.True(t, mat.Equal(mat.NewDense(3, 1, []float64{2, 4, 6}), ds.Y))
	assert.Equal(t, []string{"x1", "label"}, ds.Features)
	assert.Equal(t, "x2", ds.Target)
}

func TestLoadCSVByIndex(t *testing.T) {
	ds, err := LoadCSV(strings.NewReader(sampleCSV), CSVOptions{Header: true, TargetIndex: -1})
	require.NoError(t, err)
	assert.True(t, mat.Equal(mat.NewDense(3, 1, []float64{0, 1, 1}), ds.Y))
	assert.Equal(t, "label", ds.Target)

	noHeader := "1;2\n3;4\n"
	ds, err = LoadCSV(strings.NewReader(noHeader), CSVOptions{TargetIndex: 0, Comma: ';'})
	require.NoError(t, err)
	assert.True(t, mat.Equal(mat.NewDense(2, 1, []float64{2, 4}), ds.X))
	assert.True(t, mat.Equal(mat.NewDense(2, 1, []float64{1, 3}), ds.Y))
	assert.Nil(t, ds.Features)
}

func TestLoadCSVNoTarget(t *testing.T) {
	ds, err := LoadCSV(strings.NewReader(sampleCSV), CSVOptions{Header: true, NoTarget: true})
	require.NoError(t, err)
	r, c := ds.X.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.Nil(t, ds.Y)
}

func TestLoadCSVErrors(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("a,b\n1,2\n3,oops\n"), CSVOptions{Header: true})
	var ve *errors.ValueError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, err.Error(), "line 3, column 3")

	_, err = LoadCSV(strings.NewReader(sampleCSV), CSVOptions{Header: true, Target: "missing"})
	assert.True(t, errors.As(err, &ve))

	_, err = LoadCSV(strings.NewReader("1,2\n"), CSVOptions{Target: "x"})
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))

	_, err = LoadCSV(strings.NewReader("1,2\n"), CSVOptions{TargetIndex: 5})
	assert.True(t, errors.As(err, &vErr))

	_, err = LoadCSV(strings.NewReader("1,2\n3\n"), CSVOptions{NoTarget: true})
	assert.True(t, errors.As(err, &ve))

	_, err = LoadCSV(strings.NewReader(""), CSVOptions{})
	assert.ErrorIs(t, err, errors.ErrEmptyData)
}

func TestLoadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))
	ds, err := LoadCSVFile(path, CSVOptions{Header: true, TargetIndex: -1})
	require.NoError(t, err)
	r, _ := ds.X.Dims()
	assert.Equal(t, 3, r)

	_, err = LoadCSVFile(filepath.Join(t.TempDir(), "missing.csv"), CSVOptions{})
	assert.Error(t, err)
}

func TestTrainTestSplit(t *testing.T) {
	X := mat.NewDense(10, 2, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i*10))
		y.Set(i, 0, float64(i))
	}

	s, err := TrainTestSplit(X, y, 0.3, 42)
	require.NoError(t, err)
	trainRows, _ := s.XTrain.Dims()
	testRows, _ := s.XTest.Dims()
	assert.Equal(t, 7, trainRows)
	assert.Equal(t, 3, testRows)

	// 行は X と y で同じ順に並び替えられ、重複も欠落もない
	var seen []int
	for _, part := range []struct{ X, y *mat.Dense }{{s.XTrain, s.YTrain}, {s.XTest, s.YTest}} {
		r, _ := part.X.Dims()
		for i := 0; i < r; i++ {
			assert.Equal(t, part.X.At(i, 0), part.y.At(i, 0))
			assert.Equal(t, part.X.At(i, 0)*10, part.X.At(i, 1))
			seen = append(seen, int(part.X.At(i, 0)))
		}
	}
	sort.Ints(seen)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)

	again, err := TrainTestSplit(X, y, 0.3, 42)
	require.NoError(t, err)
	assert.True(t, mat.Equal(s.XTest, again.XTest))

	noY, err := TrainTestSplit(X, nil, 0.01, 1)
	require.NoError(t, err)
	testRows, _ = noY.XTest.Dims()
	assert.Equal(t, 1, testRows)
	assert.Nil(t, noY.YTest)
}

func TestTrainTestSplitErrors(t *testing.T) {
	X := mat.NewDense(4, 1, nil)
	_, err := TrainTestSplit(X, nil, 1, 0)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = TrainTestSplit(X, mat.NewDense(3, 1, nil), 0.5, 0)
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	_, err = TrainTestSplit(mat.NewDense(1, 1, nil), nil, 0.5, 0)
	var valueErr *errors.ValueError
	assert.True(t, errors.As(err, &valueErr))
}

func TestBinaryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.gmx")
	src := mat.NewDense(3, 2, []float64{1.5, -2, 3.25, 0, 1e-300, 42})
	require.NoError(t, WriteBinary(path, src))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(24+8*6), info.Size())

	mm, err := OpenBinary(path)
	require.NoError(t, err)
	defer mm.Close()

	assert.True(t, mat.Equal(src, mm))
	assert.True(t, mat.Equal(src.T(), mm.T()))
	assert.Equal(t, []float64{3.25, 0}, mm.Row(nil, 1))
	assert.Panics(t, func() { mm.At(3, 0) })

	// gonum の演算にそのまま渡せる
	var prod mat.Dense
	prod.Mul(mm.T(), mm)
	var want mat.Dense
	want.Mul(src.T(), src)
	assert.True(t, mat.EqualApprox(&want, &prod, 1e-12))
}

func TestOpenBinaryRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	var ve *errors.ValueError

	small := filepath.Join(dir, "small.gmx")
	require.NoError(t, os.WriteFile(small, []byte("GMX"), 0o644))
	_, err := OpenBinary(small)
	assert.True(t, errors.As(err, &ve))

	magic := filepath.Join(dir, "magic.gmx")
	require.NoError(t, os.WriteFile(magic, make([]byte, 40), 0o644))
	_, err = OpenBinary(magic)
	assert.True(t, errors.As(err, &ve))

	good := filepath.Join(dir, "good.gmx")
	require.NoError(t, WriteBinary(good, mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	data, err := os.ReadFile(good)
	require.NoError(t, err)
	truncated := filepath.Join(dir, "truncated.gmx")
	require.NoError(t, os.WriteFile(truncated, data[:len(data)-8], 0o644))
	_, err = OpenBinary(truncated)
	assert.True(t, errors.As(err, &ve))

	_, err = OpenBinary(filepath.Join(dir, "missing.gmx"))
	assert.Error(t, err)
}
