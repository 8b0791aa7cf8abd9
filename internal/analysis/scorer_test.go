package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edumetric/edumetric/internal/types"
)

func TestScoreComputesFreshRecord(t *testing.T) {
	scorer := NewScorer(NewPredictor(completeArtifacts()))

	sr := scorer.Score(sampleRecord())

	assert.False(t, sr.Reused)
	assert.Equal(t, "21CS001", sr.RNO)
	assert.Equal(t, "Asha", sr.Name)
	assert.Equal(t, 78.7, sr.PerformanceOverall)
	assert.Equal(t, 21.3, sr.RiskScore)
	assert.Equal(t, 88.0, sr.AttendancePct)
	assert.Equal(t, "good", sr.PerformanceLabel)
	assert.Equal(t, "medium", sr.RiskLabel)
	assert.Equal(t, "high", sr.DropoutLabel)
}

func TestScoreReusesTrustedLabels(t *testing.T) {
	// A predictor that would fail loudly if invoked.
	scorer := NewScorer(NewPredictor(nil))

	rec := sampleRecord()
	rec[types.FieldPerformanceLabel] = "Good"
	rec[types.FieldRiskLabel] = "LOW"
	rec[types.FieldDropoutLabel] = "low"
	rec[types.FieldPerformanceOverall] = 81.5
	rec[types.FieldRiskScore] = 18.5
	rec[types.FieldDropoutScore] = 12.0
	rec[types.FieldAttendancePct] = 92.0

	sr := scorer.Score(rec)

	assert.True(t, sr.Reused)
	assert.Equal(t, "good", sr.PerformanceLabel)
	assert.Equal(t, "low", sr.RiskLabel)
	assert.Equal(t, "low", sr.DropoutLabel)
	assert.Equal(t, 81.5, sr.PerformanceOverall)
	assert.Equal(t, 18.5, sr.RiskScore)
	assert.Equal(t, 92.0, sr.AttendancePct)
}

func TestScoreReuseFallbacks(t *testing.T) {
	scorer := NewScorer(NewPredictor(nil))

	rec := types.StudentRecord{
		types.FieldRNO:              "21CS002",
		types.FieldPerformanceLabel: "poor",
	}

	sr := scorer.Score(rec)

	assert.True(t, sr.Reused)
	assert.Equal(t, "medium", sr.RiskLabel)
	assert.Equal(t, "medium", sr.DropoutLabel)
	assert.Equal(t, 50.0, sr.RiskScore)
	assert.Equal(t, 50.0, sr.DropoutScore)
}

func TestScoreUnknownLabelIsNotTrusted(t *testing.T) {
	scorer := NewScorer(NewPredictor(completeArtifacts()))

	rec := sampleRecord()
	rec[types.FieldPerformanceLabel] = "UNKNOWN"

	sr := scorer.Score(rec)

	assert.False(t, sr.Reused)
	assert.Equal(t, "good", sr.PerformanceLabel)
	assert.Equal(t, 78.7, sr.PerformanceOverall)
}

func TestScoredRecordApply(t *testing.T) {
	scorer := NewScorer(NewPredictor(completeArtifacts()))
	rec := sampleRecord()

	sr := scorer.Score(rec)
	out := sr.Apply(rec)

	// Source record stays untouched.
	assert.False(t, rec.Has(types.FieldPerformanceLabel))

	assert.Equal(t, "good", out.String(types.FieldPerformanceLabel))
	assert.Equal(t, 78.7, out.Float(types.FieldPerformanceOverall))
	assert.Equal(t, 75.0, out.Float(types.FieldPastAvg))
	assert.Equal(t, 2, out.Int(types.FieldPastCount))
	// Original fields survive.
	assert.Equal(t, "21CS001", out.String(types.FieldRNO))
}
