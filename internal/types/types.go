package types

import (
	"strconv"
	"strings"
)

// Canonical field keys. Record sources disagree on casing, so every record is
// normalized to these UPPERCASE keys at the source boundary (see database
// package); the scoring pipeline never case-folds on its own.
const (
	FieldRNO     = "RNO"
	FieldName    = "NAME"
	FieldDept    = "DEPT"
	FieldYear    = "YEAR"
	FieldCurrSem = "CURR_SEM"

	FieldInternalMarks      = "INTERNAL_MARKS"
	FieldBehaviorScore10    = "BEHAVIOR_SCORE_10"
	FieldTotalDaysCurr      = "TOTAL_DAYS_CURR"
	FieldAttendedDaysCurr   = "ATTENDED_DAYS_CURR"
	FieldPrevAttendancePerc = "PREV_ATTENDANCE_PERC"

	FieldPastAvg          = "PAST_AVG"
	FieldPastCount        = "PAST_COUNT"
	FieldInternalPct      = "INTERNAL_PCT"
	FieldAttendancePct    = "ATTENDANCE_PCT"
	FieldBehaviorPct      = "BEHAVIOR_PCT"
	FieldPerformanceTrend = "PERFORMANCE_TREND"

	FieldPerformanceOverall = "PERFORMANCE_OVERALL"
	FieldRiskScore          = "RISK_SCORE"
	FieldDropoutScore       = "DROPOUT_SCORE"
	FieldPerformanceLabel   = "PERFORMANCE_LABEL"
	FieldRiskLabel          = "RISK_LABEL"
	FieldDropoutLabel       = "DROPOUT_LABEL"
)

// SemField returns the canonical key for semester i marks (SEM1..SEM8).
func SemField(i int) string {
	return "SEM" + strconv.Itoa(i)
}

// StudentRecord is one student's raw academic data: a mapping from canonical
// field name to scalar value (string, integer or float). Extra fields carried
// by a record source pass through untouched.
type StudentRecord map[string]any

// Canonical returns a copy of the record with all keys upper-cased. Record
// sources call this once at their boundary.
func (r StudentRecord) Canonical() StudentRecord {
	out := make(StudentRecord, len(r))
	for k, v := range r {
		out[strings.ToUpper(k)] = v
	}
	return out
}

// Has reports whether the field is present and non-nil.
func (r StudentRecord) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Float reads a numeric field. Missing, nil, non-numeric or NaN-ish values
// read as 0 so that feature derivation never fails on dirty data.
func (r StudentRecord) Float(key string) float64 {
	v, ok := r[key]
	if !ok || v == nil {
		return 0
	}
	return toFloat(v)
}

// Int reads an integer field, truncating floats and parsing strings.
func (r StudentRecord) Int(key string) int {
	return int(r.Float(key))
}

// String reads a field as a trimmed string; missing fields read as "".
func (r StudentRecord) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return ""
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(n)
		if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// SearchRequest is the payload for student lookup endpoints.
type SearchRequest struct {
	RNO  string `json:"rno"`
	Name string `json:"name"`
}

// CohortRequest narrows analytics endpoints to one department and/or year.
type CohortRequest struct {
	Dept string `json:"dept"`
	Year string `json:"year"`
}

// DrilldownRequest narrows a cohort by scope and an optional field-equality
// predicate, e.g. {scope: "dept", scope_value: "CSE",
// filter_type: "risk_label", filter_value: "high"}.
type DrilldownRequest struct {
	Scope       string `json:"scope"`
	ScopeValue  string `json:"scope_value"`
	FilterType  string `json:"filter_type"`
	FilterValue string `json:"filter_value"`
}

// AlertRequest asks for a mentor alert email about one at-risk student.
type AlertRequest struct {
	Email       string         `json:"email"`
	Student     StudentRecord  `json:"student"`
	Features    map[string]any `json:"features"`
	Predictions map[string]any `json:"predictions"`
}
