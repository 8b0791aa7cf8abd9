package analysis

import "log/slog"

// Sentinel labels used when the classifiers cannot answer.
const (
	LabelUnknown = "unknown"
	LabelMedium  = "medium"
)

// Classifier maps a 6-element feature vector to a raw class index. Concrete
// implementations live outside this package; the pipeline is artifact-agnostic
// and applies no scaling or calibration of its own.
type Classifier interface {
	Predict(features []float64) (int, error)
}

// LabelEncoder decodes a raw class index into the human-readable label the
// classifier was trained with.
type LabelEncoder interface {
	InverseTransform(class int) (string, error)
}

// ArtifactSet bundles the three trained classifier/encoder pairs. It is
// loaded once at process start and read-only thereafter.
type ArtifactSet struct {
	PerformanceModel   Classifier
	RiskModel          Classifier
	DropoutModel       Classifier
	PerformanceEncoder LabelEncoder
	RiskEncoder        LabelEncoder
	DropoutEncoder     LabelEncoder
}

// Complete reports whether all six artifacts are present. Partial
// availability is not supported: prediction is all-or-nothing.
func (s *ArtifactSet) Complete() bool {
	return s != nil &&
		s.PerformanceModel != nil && s.RiskModel != nil && s.DropoutModel != nil &&
		s.PerformanceEncoder != nil && s.RiskEncoder != nil && s.DropoutEncoder != nil
}

// Predictor maps a feature vector to the three categorical labels.
type Predictor struct {
	artifacts *ArtifactSet
}

// NewPredictor wraps an artifact set; a nil or incomplete set is tolerated
// and degrades every prediction to "unknown".
func NewPredictor(artifacts *ArtifactSet) *Predictor {
	return &Predictor{artifacts: artifacts}
}

// Available reports whether real inference will run.
func (p *Predictor) Available() bool {
	return p.artifacts.Complete()
}

// Predict runs the three classifiers over the same feature vector. Missing
// artifacts yield "unknown" on every axis without invoking anything; any
// inference failure yields the medium-confidence default instead of an error
// so downstream aggregation always has a label to count.
func (p *Predictor) Predict(f Features) Prediction {
	if !p.artifacts.Complete() {
		return Prediction{
			PerformanceLabel: LabelUnknown,
			RiskLabel:        LabelUnknown,
			DropoutLabel:     LabelUnknown,
		}
	}

	x := f.Vector()

	perf, err := decode(p.artifacts.PerformanceModel, p.artifacts.PerformanceEncoder, x)
	if err != nil {
		return mediumDefault(err)
	}
	risk, err := decode(p.artifacts.RiskModel, p.artifacts.RiskEncoder, x)
	if err != nil {
		return mediumDefault(err)
	}
	dropout, err := decode(p.artifacts.DropoutModel, p.artifacts.DropoutEncoder, x)
	if err != nil {
		return mediumDefault(err)
	}

	return Prediction{
		PerformanceLabel: perf,
		RiskLabel:        risk,
		DropoutLabel:     dropout,
	}
}

func decode(model Classifier, encoder LabelEncoder, x []float64) (string, error) {
	class, err := model.Predict(x)
	if err != nil {
		return "", err
	}
	return encoder.InverseTransform(class)
}

func mediumDefault(err error) Prediction {
	slog.Warn("classifier inference failed, using medium default", "error", err)
	return Prediction{
		PerformanceLabel: LabelMedium,
		RiskLabel:        LabelMedium,
		DropoutLabel:     LabelMedium,
	}
}
