package analysis

import (
	"strings"

	"github.com/edumetric/edumetric/internal/types"
)

// Features is the derived, immutable representation of one student record.
// The six Vector() dimensions feed the classifiers; the three trailing scores
// are deterministic weighted blends computed alongside them. All fields are
// rounded to 2 decimals; the weighted sums that produce them use full
// precision internally.
type Features struct {
	PastAvg          float64 `json:"past_avg"`
	PastCount        int     `json:"past_count"`
	InternalPct      float64 `json:"internal_pct"`
	AttendancePct    float64 `json:"attendance_pct"`
	BehaviorPct      float64 `json:"behavior_pct"`
	PerformanceTrend float64 `json:"performance_trend"`

	PerformanceOverall float64 `json:"performance_overall"`
	RiskScore          float64 `json:"risk_score"`
	DropoutScore       float64 `json:"dropout_score"`
}

// Vector returns the ordered 6-element input the classifiers were trained on:
// [past_avg, past_count, internal_pct, attendance_pct, behavior_pct,
// performance_trend].
func (f Features) Vector() []float64 {
	return []float64{
		f.PastAvg,
		float64(f.PastCount),
		f.InternalPct,
		f.AttendancePct,
		f.BehaviorPct,
		f.PerformanceTrend,
	}
}

// Prediction holds the three categorical labels returned by the classifiers.
// Labels are opaque strings from the trained encoders, not a closed enum.
type Prediction struct {
	PerformanceLabel string `json:"performance_label"`
	RiskLabel        string `json:"risk_label"`
	DropoutLabel     string `json:"dropout_label"`
}

// ScoredRecord is a student record extended with its numeric scores and
// labels. It is computed on demand and never mutates the source record.
type ScoredRecord struct {
	RNO  string `json:"RNO"`
	Name string `json:"NAME"`
	Dept string `json:"DEPT"`
	Year int    `json:"YEAR"`

	PerformanceLabel string `json:"performance_label"`
	RiskLabel        string `json:"risk_label"`
	DropoutLabel     string `json:"dropout_label"`

	PerformanceOverall float64 `json:"performance_overall"`
	AttendancePct      float64 `json:"attendance_pct"`
	RiskScore          float64 `json:"risk_score"`
	DropoutScore       float64 `json:"dropout_score"`

	Features Features            `json:"-"`
	Reused   bool                `json:"-"`
	Record   types.StudentRecord `json:"-"`
}

// Field resolves a scored field by name for drill-down predicates: label and
// score fields first, then any raw record field.
func (sr ScoredRecord) Field(name string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case types.FieldPerformanceLabel:
		return sr.PerformanceLabel, true
	case types.FieldRiskLabel:
		return sr.RiskLabel, true
	case types.FieldDropoutLabel:
		return sr.DropoutLabel, true
	case types.FieldRNO:
		return sr.RNO, true
	case types.FieldDept:
		return sr.Dept, true
	}
	if sr.Record == nil {
		return "", false
	}
	key := strings.ToUpper(strings.TrimSpace(name))
	if !sr.Record.Has(key) {
		return "", false
	}
	return sr.Record.String(key), true
}

// Stats is the headline block of a cohort summary.
type Stats struct {
	TotalStudents  int     `json:"total_students"`
	HighPerformers int     `json:"high_performers"`
	HighRisk       int     `json:"high_risk"`
	HighDropout    int     `json:"high_dropout"`
	AvgPerformance float64 `json:"avg_performance"`
}

// ScoreSeries carries per-record score lists for distribution charts.
type ScoreSeries struct {
	Performance []float64 `json:"performance"`
	Risk        []float64 `json:"risk"`
	Dropout     []float64 `json:"dropout"`
}

// Summary is the aggregate over a set of scored records. LabelCounts tables
// are built over the labels actually observed in the batch, never over a
// predeclared vocabulary. Population is the true input size; when sampling
// kicked in, Stats.TotalStudents reflects the sampled subset.
type Summary struct {
	Stats       Stats                     `json:"stats"`
	LabelCounts map[string]map[string]int `json:"label_counts"`
	Scores      ScoreSeries               `json:"scores"`
	Table       []ScoredRecord            `json:"table"`
	Population  int                       `json:"population"`
	SampleSize  int                       `json:"sample_size,omitempty"`
}

// Label axes used as LabelCounts keys.
const (
	AxisPerformance = "performance"
	AxisRisk        = "risk"
	AxisDropout     = "dropout"
)
