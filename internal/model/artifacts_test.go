package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCentroidClassifierPredict(t *testing.T) {
	clf := &CentroidClassifier{Centroids: [][]float64{
		{90, 4, 90, 95, 90, 5},  // class 0: strong students
		{60, 2, 50, 60, 50, 0},  // class 1: middling
		{30, 1, 20, 30, 20, -5}, // class 2: struggling
	}}

	tests := []struct {
		name     string
		features []float64
		want     int
	}{
		{"near strong centroid", []float64{88, 4, 85, 92, 88, 4}, 0},
		{"near middling centroid", []float64{58, 2, 55, 58, 48, 1}, 1},
		{"near struggling centroid", []float64{25, 1, 25, 28, 22, -4}, 2},
		{"exactly on a centroid", []float64{60, 2, 50, 60, 50, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := clf.Predict(tt.features)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCentroidClassifierErrors(t *testing.T) {
	t.Run("no centroids", func(t *testing.T) {
		clf := &CentroidClassifier{}
		_, err := clf.Predict([]float64{1, 2, 3})
		assert.Error(t, err)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		clf := &CentroidClassifier{Centroids: [][]float64{{1, 2, 3}}}
		_, err := clf.Predict([]float64{1, 2})
		assert.Error(t, err)
	})
}

func TestLabelEncoderInverseTransform(t *testing.T) {
	enc := &LabelEncoder{Classes: []string{"good", "medium", "poor"}}

	label, err := enc.InverseTransform(1)
	require.NoError(t, err)
	assert.Equal(t, "medium", label)

	_, err = enc.InverseTransform(-1)
	assert.Error(t, err)

	_, err = enc.InverseTransform(3)
	assert.Error(t, err)
}

func writeArtifact(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func writeAllArtifacts(t *testing.T, dir string) {
	t.Helper()
	model := `{"centroids": [[90,4,90,95,90,5],[30,1,20,30,20,-5]]}`
	writeArtifact(t, dir, "performance_model.json", model)
	writeArtifact(t, dir, "risk_model.json", model)
	writeArtifact(t, dir, "dropout_model.json", model)
	writeArtifact(t, dir, "performance_label_encoder.json", `{"classes": ["good", "poor"]}`)
	writeArtifact(t, dir, "risk_label_encoder.json", `{"classes": ["low", "high"]}`)
	writeArtifact(t, dir, "dropout_label_encoder.json", `{"classes": ["low", "high"]}`)
}

func TestStoreLoadComplete(t *testing.T) {
	dir := t.TempDir()
	writeAllArtifacts(t, dir)

	set := NewStore(dir).Load()
	require.NotNil(t, set)
	assert.True(t, set.Complete())

	class, err := set.PerformanceModel.Predict([]float64{85, 4, 88, 90, 85, 3})
	require.NoError(t, err)
	label, err := set.PerformanceEncoder.InverseTransform(class)
	require.NoError(t, err)
	assert.Equal(t, "good", label)
}

func TestStoreLoadDegradesOnMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	writeAllArtifacts(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "risk_model.json")))

	assert.Nil(t, NewStore(dir).Load())
}

func TestStoreLoadDegradesOnCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	writeAllArtifacts(t, dir)
	writeArtifact(t, dir, "dropout_label_encoder.json", "{not json")

	assert.Nil(t, NewStore(dir).Load())
}

func TestStoreLoadEmptyDir(t *testing.T) {
	assert.Nil(t, NewStore(t.TempDir()).Load())
}
