package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/gomachine/gomachine/pkg/log"
)

func vec(v ...float64) *mat.VecDense { return mat.NewVecDense(len(v), v) }

func TestPrecisionRecallF1(t *testing.T) {
	yTrue := vec(1, 1, 0, 0, 1)
	yPred := vec(1, 0, 1, 0, 1)

	p, err := Precision(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, p, 1e-12)

	r, err := Recall(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, r, 1e-12)

	f1, err := F1Score(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, f1, 1e-12)
}

func TestPrecisionUndefinedWarns(t *testing.T) {
	provider, logger := log.NewTestLoggerProvider(log.LevelWarn)
	log.SetProvider(provider)
	defer log.SetProvider(nil)

	p, err := Precision(vec(1, 0), vec(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, p)
	assert.True(t, logger.ContainsMessage("'precision' is ill-defined"))
}

func TestBinaryMetricsRejectNonBinaryLabels(t *testing.T) {
	_, err := Precision(vec(0, 2), vec(0, 1))
	assert.Error(t, err)
	_, err = Recall(vec(0, 1), vec(0.5, 1))
	assert.Error(t, err)
	_, err = F1Score(nil, vec(1))
	assert.Error(t, err)
}

func TestConfusionMatrix(t *testing.T) {
	cm, labels, err := ConfusionMatrix(vec(0, 1, 2, 1, 0), vec(0, 2, 2, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, labels)

	want := mat.NewDense(3, 3, []float64{
		1, 1, 0,
		0, 1, 1,
		0, 0, 1,
	})
	assert.True(t, mat.Equal(want, cm))

	_, _, err = ConfusionMatrix(vec(0, 1), vec(0))
	assert.Error(t, err)
}

func TestMAPE(t *testing.T) {
	got, err := MAPE(vec(100, 200, 0), vec(110, 180, 5))
	require.NoError(t, err)
	assert.InDelta(t, 10.0, got, 1e-9)

	_, err = MAPE(vec(0, 0), vec(1, 1))
	assert.Error(t, err)
}
