package analysis

import (
	"strings"

	"github.com/edumetric/edumetric/internal/types"
)

// Scores absent on a trusted record fall back to a neutral midpoint so that
// distribution charts stay plottable.
const neutralScore = 50.0

// Scorer turns raw student records into scored ones, combining the feature
// deriver and the label predictor. It is stateless; every call is independent
// given the read-only artifact set inside the predictor.
type Scorer struct {
	predictor *Predictor
}

func NewScorer(predictor *Predictor) *Scorer {
	return &Scorer{predictor: predictor}
}

// Score produces the scored view of one record. When the record already
// carries trusted labels (present, non-empty, not the "unknown" sentinel),
// they and any stored scores are reused verbatim so precomputed batches and
// live requests share the aggregator without redundant inference. Identity
// validation is the caller's concern; Score itself only reads numeric and
// label fields.
func (s *Scorer) Score(rec types.StudentRecord) ScoredRecord {
	sr := ScoredRecord{
		RNO:    rec.String(types.FieldRNO),
		Name:   rec.String(types.FieldName),
		Dept:   rec.String(types.FieldDept),
		Year:   rec.Int(types.FieldYear),
		Record: rec,
	}

	if trustedLabels(rec) {
		sr.Reused = true
		sr.PerformanceLabel = strings.ToLower(rec.String(types.FieldPerformanceLabel))
		sr.RiskLabel = strings.ToLower(labelOr(rec, types.FieldRiskLabel, LabelMedium))
		sr.DropoutLabel = strings.ToLower(labelOr(rec, types.FieldDropoutLabel, LabelMedium))

		sr.PerformanceOverall = rec.Float(types.FieldPerformanceOverall)
		sr.RiskScore = floatOr(rec, types.FieldRiskScore, neutralScore)
		sr.DropoutScore = floatOr(rec, types.FieldDropoutScore, neutralScore)
		sr.AttendancePct = rec.Float(types.FieldAttendancePct)

		sr.Features = Features{
			PastAvg:            rec.Float(types.FieldPastAvg),
			PastCount:          rec.Int(types.FieldPastCount),
			InternalPct:        rec.Float(types.FieldInternalPct),
			AttendancePct:      rec.Float(types.FieldAttendancePct),
			BehaviorPct:        rec.Float(types.FieldBehaviorPct),
			PerformanceTrend:   rec.Float(types.FieldPerformanceTrend),
			PerformanceOverall: sr.PerformanceOverall,
			RiskScore:          sr.RiskScore,
			DropoutScore:       sr.DropoutScore,
		}
		return sr
	}

	f := DeriveFeatures(rec)
	pred := s.predictor.Predict(f)

	sr.Features = f
	sr.PerformanceLabel = pred.PerformanceLabel
	sr.RiskLabel = pred.RiskLabel
	sr.DropoutLabel = pred.DropoutLabel
	sr.PerformanceOverall = f.PerformanceOverall
	sr.RiskScore = f.RiskScore
	sr.DropoutScore = f.DropoutScore
	sr.AttendancePct = f.AttendancePct
	return sr
}

// Apply writes the computed features and labels back onto a copy of the
// record, keyed canonically, for callers that opt to persist scores. The
// write-back itself stays the caller's responsibility and must be idempotent
// on RNO.
func (sr ScoredRecord) Apply(rec types.StudentRecord) types.StudentRecord {
	out := make(types.StudentRecord, len(rec)+14)
	for k, v := range rec {
		out[k] = v
	}
	out[types.FieldPastAvg] = sr.Features.PastAvg
	out[types.FieldPastCount] = sr.Features.PastCount
	out[types.FieldInternalPct] = sr.Features.InternalPct
	out[types.FieldAttendancePct] = sr.Features.AttendancePct
	out[types.FieldBehaviorPct] = sr.Features.BehaviorPct
	out[types.FieldPerformanceTrend] = sr.Features.PerformanceTrend
	out[types.FieldPerformanceOverall] = sr.PerformanceOverall
	out[types.FieldRiskScore] = sr.RiskScore
	out[types.FieldDropoutScore] = sr.DropoutScore
	out[types.FieldPerformanceLabel] = sr.PerformanceLabel
	out[types.FieldRiskLabel] = sr.RiskLabel
	out[types.FieldDropoutLabel] = sr.DropoutLabel
	return out
}

// trustedLabels is the explicit trust predicate for the reuse short-circuit:
// the performance label must be present, non-empty and not the "unknown"
// sentinel.
func trustedLabels(rec types.StudentRecord) bool {
	lbl := rec.String(types.FieldPerformanceLabel)
	return lbl != "" && !strings.EqualFold(lbl, LabelUnknown)
}

func labelOr(rec types.StudentRecord, key, fallback string) string {
	if v := rec.String(key); v != "" {
		return v
	}
	return fallback
}

func floatOr(rec types.StudentRecord, key string, fallback float64) float64 {
	if rec.Has(key) {
		return rec.Float(key)
	}
	return fallback
}
