package analysis

import (
	"strconv"
	"strings"

	apperrors "github.com/edumetric/edumetric/internal/errors"
)

// Scope selects which slice of the institution a cohort covers.
type Scope string

const (
	ScopeStudent Scope = "student"
	ScopeDept    Scope = "dept"
	ScopeYear    Scope = "year"
	ScopeBatch   Scope = "batch"
	ScopeCollege Scope = "college"
)

// Admission year approximated from year-of-study when no explicit batch
// column exists: batch = batchBaseYear + YEAR.
const batchBaseYear = 2022

// CohortFilter narrows a scored-record collection before aggregation. The
// aggregator itself has no knowledge of filter semantics. FilterField /
// FilterValue apply an equality predicate on any scored field (commonly a
// label) after the scope narrowing.
type CohortFilter struct {
	Scope       Scope  `json:"scope"`
	ScopeValue  string `json:"scope_value"`
	FilterField string `json:"filter_type,omitempty"`
	FilterValue string `json:"filter_value,omitempty"`
}

// Apply returns the subset of records matching the filter. Data sparsity
// (no matches) is not an error; malformed filter parameters are, since they
// indicate a caller programming error rather than bad data.
func (f CohortFilter) Apply(records []ScoredRecord) ([]ScoredRecord, error) {
	match, err := f.scopePredicate()
	if err != nil {
		return nil, err
	}

	out := make([]ScoredRecord, 0, len(records))
	for _, sr := range records {
		if !match(sr) {
			continue
		}
		if f.FilterField != "" {
			v, ok := sr.Field(f.FilterField)
			if !ok || !strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(f.FilterValue)) {
				continue
			}
		}
		out = append(out, sr)
	}
	return out, nil
}

func (f CohortFilter) scopePredicate() (func(ScoredRecord) bool, error) {
	value := strings.TrimSpace(f.ScopeValue)

	switch f.Scope {
	case ScopeCollege, "":
		return func(ScoredRecord) bool { return true }, nil

	case ScopeStudent:
		if value == "" {
			return nil, apperrors.NewValidationError("scope_value is required for student scope")
		}
		return func(sr ScoredRecord) bool { return sr.RNO == value }, nil

	case ScopeDept:
		if value == "" {
			return nil, apperrors.NewValidationError("scope_value is required for dept scope")
		}
		return func(sr ScoredRecord) bool {
			return strings.TrimSpace(sr.Dept) == value
		}, nil

	case ScopeYear:
		year, err := strconv.Atoi(value)
		if err != nil {
			return nil, apperrors.NewValidationError("year scope_value must be numeric", value)
		}
		return func(sr ScoredRecord) bool { return sr.Year == year }, nil

	case ScopeBatch:
		batch, err := strconv.Atoi(value)
		if err != nil {
			return nil, apperrors.NewValidationError("batch scope_value must be numeric", value)
		}
		year := batch - batchBaseYear
		return func(sr ScoredRecord) bool { return sr.Year == year }, nil

	default:
		return nil, apperrors.NewValidationError("unknown cohort scope", string(f.Scope))
	}
}
