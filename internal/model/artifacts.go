// Package model provides the trained classifier and label-encoder artifacts
// consumed by the analysis pipeline. Artifacts are plain JSON files exported
// from the training run; they are loaded once at process start and never
// mutated, so concurrent reads are safe.
package model

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"github.com/edumetric/edumetric/internal/analysis"
)

// Artifact file names mirror the training pipeline's exports.
const (
	performanceModelFile   = "performance_model.json"
	performanceEncoderFile = "performance_label_encoder.json"
	riskModelFile          = "risk_model.json"
	riskEncoderFile        = "risk_label_encoder.json"
	dropoutModelFile       = "dropout_model.json"
	dropoutEncoderFile     = "dropout_label_encoder.json"
)

// CentroidClassifier predicts the class whose trained centroid is nearest to
// the input vector (euclidean). Centroid index == class index.
type CentroidClassifier struct {
	Centroids [][]float64 `json:"centroids"`
}

var _ analysis.Classifier = (*CentroidClassifier)(nil)

// Predict returns the nearest centroid's index. A dimension mismatch or an
// empty model is an inference error; the predictor downgrades it to the
// medium default.
func (c *CentroidClassifier) Predict(features []float64) (int, error) {
	if len(c.Centroids) == 0 {
		return 0, fmt.Errorf("classifier has no centroids")
	}

	best, bestDist := -1, 0.0
	for i, centroid := range c.Centroids {
		if len(centroid) != len(features) {
			return 0, fmt.Errorf("feature vector has %d dimensions, centroid %d has %d",
				len(features), i, len(centroid))
		}
		d := floats.Distance(features, centroid, 2)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, nil
}

// LabelEncoder maps class indexes back to the label vocabulary the
// classifier was trained with.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

var _ analysis.LabelEncoder = (*LabelEncoder)(nil)

// InverseTransform decodes a class index into its label string.
func (e *LabelEncoder) InverseTransform(class int) (string, error) {
	if class < 0 || class >= len(e.Classes) {
		return "", fmt.Errorf("class index %d outside trained vocabulary of %d", class, len(e.Classes))
	}
	return e.Classes[class], nil
}

// Store locates and loads the six artifacts from a data directory.
type Store struct {
	dataDir string
}

func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// Load reads all six artifacts. Absence or corruption of any one of them
// returns a nil set with no error: partial availability is not supported and
// the predictor degrades to "unknown" labels rather than crashing the
// process.
func (s *Store) Load() *analysis.ArtifactSet {
	var (
		perfModel, riskModel, dropModel       CentroidClassifier
		perfEncoder, riskEncoder, dropEncoder LabelEncoder
	)

	artifacts := []struct {
		file string
		dst  any
	}{
		{performanceModelFile, &perfModel},
		{performanceEncoderFile, &perfEncoder},
		{riskModelFile, &riskModel},
		{riskEncoderFile, &riskEncoder},
		{dropoutModelFile, &dropModel},
		{dropoutEncoderFile, &dropEncoder},
	}

	for _, a := range artifacts {
		if err := s.loadJSON(a.file, a.dst); err != nil {
			slog.Warn("classifier artifact unavailable, predictions degrade to unknown",
				"artifact", a.file, "error", err)
			return nil
		}
	}

	slog.Info("classifier artifacts loaded",
		"data_dir", s.dataDir,
		"performance_classes", len(perfEncoder.Classes),
		"risk_classes", len(riskEncoder.Classes),
		"dropout_classes", len(dropEncoder.Classes),
	)

	return &analysis.ArtifactSet{
		PerformanceModel:   &perfModel,
		RiskModel:          &riskModel,
		DropoutModel:       &dropModel,
		PerformanceEncoder: &perfEncoder,
		RiskEncoder:        &riskEncoder,
		DropoutEncoder:     &dropEncoder,
	}
}

func (s *Store) loadJSON(name string, dst any) error {
	path := filepath.Join(s.dataDir, name)

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(dst); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}
