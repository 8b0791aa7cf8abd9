package analysis

import (
	"math"

	"github.com/edumetric/edumetric/internal/types"
)

// Fixed design constants for the weighted blends. These are not learned
// parameters; the classifiers consume the blended values as-is.
var (
	attendanceWeights  = [3]float64{0.70, 0.20, 0.10} // present, previous term, behavior
	performanceWeights = [4]float64{0.50, 0.30, 0.15, 0.05}
	dropoutWeights     = [4]float64{0.10, 0.10, 0.70, 0.10} // attendance dominates
)

const internalMarksScale = 30.0

// DeriveFeatures converts one raw student record into its feature vector.
// Pure and total: missing or non-numeric fields read as zero and the function
// never fails. A past semester mark counts only when present and strictly
// greater than zero.
func DeriveFeatures(rec types.StudentRecord) Features {
	currSem := rec.Int(types.FieldCurrSem)
	if currSem < 1 {
		currSem = 1
	}

	var past []float64
	for i := 1; i < currSem; i++ {
		key := types.SemField(i)
		if !rec.Has(key) {
			continue
		}
		if v := rec.Float(key); v > 0 {
			past = append(past, v)
		}
	}

	pastAvg := 0.0
	for _, v := range past {
		pastAvg += v
	}
	if len(past) > 0 {
		pastAvg /= float64(len(past))
	}

	// Short-term trajectory: only the last two available marks matter.
	trend := 0.0
	if len(past) >= 2 {
		trend = past[len(past)-1] - past[len(past)-2]
	}

	internalPct := rec.Float(types.FieldInternalMarks) / internalMarksScale * 100.0
	behaviorPct := rec.Float(types.FieldBehaviorScore10) * 10.0

	presentAtt := 0.0
	if total := rec.Float(types.FieldTotalDaysCurr); total > 0 {
		presentAtt = rec.Float(types.FieldAttendedDaysCurr) / total * 100.0
	}
	prevAtt := rec.Float(types.FieldPrevAttendancePerc)

	attendancePct := presentAtt*attendanceWeights[0] +
		prevAtt*attendanceWeights[1] +
		behaviorPct*attendanceWeights[2]

	performanceOverall := pastAvg*performanceWeights[0] +
		internalPct*performanceWeights[1] +
		attendancePct*performanceWeights[2] +
		behaviorPct*performanceWeights[3]

	// Risk is distance from a perfect score in either direction. The
	// symmetry above 100 is kept from the trained system even though a
	// bounded performance blend never reaches it.
	riskScore := math.Abs(100.0 - performanceOverall)

	dropoutScore := math.Abs(100.0 - (pastAvg*dropoutWeights[0] +
		internalPct*dropoutWeights[1] +
		attendancePct*dropoutWeights[2] +
		behaviorPct*dropoutWeights[3]))

	return Features{
		PastAvg:          round2(pastAvg),
		PastCount:        len(past),
		InternalPct:      round2(internalPct),
		AttendancePct:    round2(attendancePct),
		BehaviorPct:      round2(behaviorPct),
		PerformanceTrend: round2(trend),

		PerformanceOverall: round2(performanceOverall),
		RiskScore:          round2(riskScore),
		DropoutScore:       round2(dropoutScore),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
