package plotting

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/gomachine/gomachine/pkg/errors"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestLossCurve(t *testing.T) {
	dir := t.TempDir()
	costs := []float64{4, 2, 1, 0.5, 0.25}

	pngPath := filepath.Join(dir, "loss.png")
	require.NoError(t, LossCurve(costs, "training loss", pngPath))
	data, err := os.ReadFile(pngPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))

	svgPath := filepath.Join(dir, "loss.svg")
	require.NoError(t, LossCurve(costs, "training loss", svgPath))
	data, err = os.ReadFile(svgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")
}

func TestLossCurveErrors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, LossCurve([]float64{1}, "x", filepath.Join(dir, "loss.gif")))
	assert.Error(t, LossCurve(nil, "x", filepath.Join(dir, "loss.png")))

	err := LossCurve([]float64{1, math.NaN()}, "x", filepath.Join(dir, "loss.png"))
	var nerr *errors.NumericalInstabilityError
	assert.True(t, errors.As(err, &nerr))
}

func TestClusters(t *testing.T) {
	X := mat.NewDense(6, 3, []float64{
		0, 0, 9,
		0.2, 0.1, 9,
		0.1, 0.3, 9,
		5, 5, 9,
		5.2, 4.9, 9,
		4.8, 5.1, 9,
	})
	labels := []int{0, 0, 0, 1, 1, 1}
	centroids := mat.NewDense(3, 3, []float64{0.1, 0.13, 9, 5, 5, 9, 10, 10, 9})

	path := filepath.Join(t.TempDir(), "clusters.png")
	require.NoError(t, Clusters(X, labels, centroids, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestClustersErrors(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "c.png")
	X := mat.NewDense(2, 2, []float64{0, 0, 1, 1})
	cents := mat.NewDense(1, 2, []float64{0.5, 0.5})

	assert.Error(t, Clusters(X, []int{0, 0}, cents, filepath.Join(dir, "c.txt")))
	assert.Error(t, Clusters(X, []int{0}, cents, png))
	assert.Error(t, Clusters(X, []int{0, 1}, cents, png))
	assert.Error(t, Clusters(X, []int{0, 0}, mat.NewDense(1, 3, nil), png))
	assert.Error(t, Clusters(mat.NewDense(2, 1, []float64{1, 2}), []int{0, 0}, mat.NewDense(1, 1, []float64{1}), png))
}
