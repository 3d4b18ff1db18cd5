package model

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomachine/gomachine/pkg/errors"
)

type stubModel struct {
	BaseEstimator
	coef []float64
}

func (s *stubModel) ExportWeights() (*ModelWeights, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("stub", "ExportWeights")
	}
	return &ModelWeights{
		ModelType:       "stub",
		Version:         WeightsVersion,
		Coefficients:    append([]float64(nil), s.coef...),
		Shape:           []int{1, len(s.coef)},
		Hyperparameters: map[string]interface{}{"alpha": 0.5, "layers": []int{2, 3}},
		IsFitted:        true,
	}, nil
}

func (s *stubModel) ImportWeights(w *ModelWeights) error {
	if err := w.Expect("stub"); err != nil {
		return err
	}
	s.coef = append([]float64(nil), w.Coefficients...)
	s.SetFitted()
	return nil
}

func TestBaseEstimatorState(t *testing.T) {
	var e BaseEstimator
	assert.False(t, e.IsFitted())
	e.SetFitted()
	assert.True(t, e.IsFitted())
	e.Reset()
	assert.False(t, e.IsFitted())
}

func TestModelWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		w       ModelWeights
		wantErr bool
	}{
		{"ok", ModelWeights{ModelType: "x", Version: "1", Coefficients: []float64{1, 2}, IsFitted: true}, false},
		{"missing type", ModelWeights{Version: "1"}, true},
		{"missing version", ModelWeights{ModelType: "x"}, true},
		{"fitted without coefficients", ModelWeights{ModelType: "x", Version: "1", IsFitted: true}, true},
		{"unfitted with coefficients", ModelWeights{ModelType: "x", Version: "1", Coefficients: []float64{1}}, true},
		{"shape mismatch", ModelWeights{ModelType: "x", Version: "1", Coefficients: []float64{1, 2, 3}, Shape: []int{2, 2}, IsFitted: true}, true},
		{"shape ok", ModelWeights{ModelType: "x", Version: "1", Coefficients: []float64{1, 2, 3, 4}, Shape: []int{2, 2}, IsFitted: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestModelWeightsJSONAndClone(t *testing.T) {
	s := &stubModel{coef: []float64{1.5, -2}}
	s.SetFitted()
	w, err := s.ExportWeights()
	require.NoError(t, err)

	data, err := w.ToJSON()
	require.NoError(t, err)

	var decoded ModelWeights
	require.NoError(t, decoded.FromJSON(data))
	assert.Equal(t, w.Coefficients, decoded.Coefficients)
	assert.Equal(t, w.Shape, decoded.Shape)
	assert.Equal(t, 0.5, decoded.HyperFloat("alpha", 0))
	assert.Equal(t, []int{2, 3}, decoded.HyperInts("layers"))
	assert.Equal(t, "fallback", decoded.HyperString("missing", "fallback"))

	clone := w.Clone()
	clone.Coefficients[0] = 99
	assert.Equal(t, 1.5, w.Coefficients[0])
}

func TestExpectRejectsOtherModelType(t *testing.T) {
	w := &ModelWeights{ModelType: "other", Version: WeightsVersion}
	var valErr *errors.ValueError
	assert.True(t, errors.As(w.Expect("stub"), &valErr))
}

func TestGobPersistenceRoundTrip(t *testing.T) {
	src := &stubModel{coef: []float64{3, 4, 5}}
	src.SetFitted()

	var buf bytes.Buffer
	require.NoError(t, SaveModelToWriter(src, &buf))

	dst := &stubModel{}
	require.NoError(t, LoadModelFromReader(dst, &buf))
	assert.True(t, dst.IsFitted())
	assert.Equal(t, src.coef, dst.coef)
}

func TestSaveModelFileRoundTrip(t *testing.T) {
	path := t.TempDir() + "/model.gob"
	src := &stubModel{coef: []float64{7}}
	src.SetFitted()
	require.NoError(t, SaveModel(src, path))

	dst := &stubModel{}
	require.NoError(t, LoadModel(dst, path))
	assert.Equal(t, []float64{7}, dst.coef)
}

func TestSaveUnfittedModelFails(t *testing.T) {
	var buf bytes.Buffer
	err := SaveModelToWriter(&stubModel{}, &buf)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}
