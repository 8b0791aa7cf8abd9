package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubClassifier struct {
	class int
	err   error
}

func (s stubClassifier) Predict([]float64) (int, error) { return s.class, s.err }

type stubEncoder struct {
	labels []string
	err    error
}

func (s stubEncoder) InverseTransform(class int) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if class < 0 || class >= len(s.labels) {
		return "", errors.New("class out of range")
	}
	return s.labels[class], nil
}

func completeArtifacts() *ArtifactSet {
	return &ArtifactSet{
		PerformanceModel:   stubClassifier{class: 0},
		RiskModel:          stubClassifier{class: 1},
		DropoutModel:       stubClassifier{class: 2},
		PerformanceEncoder: stubEncoder{labels: []string{"good", "medium", "poor"}},
		RiskEncoder:        stubEncoder{labels: []string{"low", "medium", "high"}},
		DropoutEncoder:     stubEncoder{labels: []string{"low", "medium", "high"}},
	}
}

func TestPredictorHappyPath(t *testing.T) {
	p := NewPredictor(completeArtifacts())
	assert.True(t, p.Available())

	pred := p.Predict(Features{PastAvg: 75, PastCount: 2})
	assert.Equal(t, "good", pred.PerformanceLabel)
	assert.Equal(t, "medium", pred.RiskLabel)
	assert.Equal(t, "high", pred.DropoutLabel)
}

func TestPredictorMissingArtifacts(t *testing.T) {
	partial := completeArtifacts()
	partial.RiskEncoder = nil

	tests := []struct {
		name      string
		artifacts *ArtifactSet
	}{
		{"nil set", nil},
		{"empty set", &ArtifactSet{}},
		{"one artifact missing", partial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPredictor(tt.artifacts)
			assert.False(t, p.Available())

			pred := p.Predict(Features{})
			assert.Equal(t, LabelUnknown, pred.PerformanceLabel)
			assert.Equal(t, LabelUnknown, pred.RiskLabel)
			assert.Equal(t, LabelUnknown, pred.DropoutLabel)
		})
	}
}

func TestPredictorInferenceFailureDefaultsToMedium(t *testing.T) {
	failing := errors.New("bad vector")

	tests := []struct {
		name   string
		mutate func(*ArtifactSet)
	}{
		{"performance model fails", func(s *ArtifactSet) {
			s.PerformanceModel = stubClassifier{err: failing}
		}},
		{"risk encoder fails", func(s *ArtifactSet) {
			s.RiskEncoder = stubEncoder{err: failing}
		}},
		{"dropout class out of range", func(s *ArtifactSet) {
			s.DropoutModel = stubClassifier{class: 99}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifacts := completeArtifacts()
			tt.mutate(artifacts)

			pred := NewPredictor(artifacts).Predict(Features{})
			assert.Equal(t, LabelMedium, pred.PerformanceLabel)
			assert.Equal(t, LabelMedium, pred.RiskLabel)
			assert.Equal(t, LabelMedium, pred.DropoutLabel)
		})
	}
}
