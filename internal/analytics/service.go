// Package analytics orchestrates the scoring pipeline over the student store:
// it loads records, scores them, applies cohort filters, aggregates summaries
// and handles the student CRUD surface. Handlers stay thin; everything with
// domain meaning lives here.
package analytics

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/edumetric/edumetric/internal/analysis"
	"github.com/edumetric/edumetric/internal/cache"
	"github.com/edumetric/edumetric/internal/database"
	apperrors "github.com/edumetric/edumetric/internal/errors"
	"github.com/edumetric/edumetric/internal/monitoring"
	"github.com/edumetric/edumetric/internal/types"
)

// Drill-down tables are clipped so one hot label cannot blow up the response.
const drilldownTableLimit = 100

// Scatter plots and raw score series are clipped independently of the
// aggregator's sample cap.
const chartPointLimit = 500

// RecordSource is the persistence surface the service needs. *database.Repository
// satisfies it; tests substitute an in-memory fake.
type RecordSource interface {
	All(ctx context.Context) ([]types.StudentRecord, error)
	ByRNO(ctx context.Context, rno string) (types.StudentRecord, error)
	Search(ctx context.Context, rno, name string, limit int) ([]types.StudentRecord, error)
	Exists(ctx context.Context, rno string) (bool, error)
	Insert(ctx context.Context, rec types.StudentRecord) error
	Upsert(ctx context.Context, rec types.StudentRecord) error
	BatchUpsert(ctx context.Context, records []types.StudentRecord) error
	Delete(ctx context.Context, rno string) error
	Stats(ctx context.Context) (*database.Overview, error)
	LogAlert(ctx context.Context, rno, recipient, perfLabel, riskLabel, dropoutLabel string) error
}

var _ RecordSource = (*database.Repository)(nil)

// Service wires the record source to the scoring pipeline.
type Service struct {
	source     RecordSource
	scorer     *analysis.Scorer
	predictor  *analysis.Predictor
	aggregator *analysis.Aggregator
	cache      *cache.Cache
	metrics    *monitoring.Metrics
	logger     *monitoring.Logger

	// writeBack persists freshly computed scores after a cohort analysis so
	// later runs take the label-reuse path. Idempotent on RNO.
	writeBack bool
}

func NewService(
	source RecordSource,
	scorer *analysis.Scorer,
	predictor *analysis.Predictor,
	aggregator *analysis.Aggregator,
	responseCache *cache.Cache,
	metrics *monitoring.Metrics,
	logger *monitoring.Logger,
	writeBack bool,
) *Service {
	return &Service{
		source:     source,
		scorer:     scorer,
		predictor:  predictor,
		aggregator: aggregator,
		cache:      responseCache,
		metrics:    metrics,
		logger:     logger,
		writeBack:  writeBack,
	}
}

// StatsResponse is the dashboard landing block.
type StatsResponse struct {
	TotalStudents int      `json:"total_students"`
	Departments   []string `json:"departments"`
	Years         []int    `json:"years"`
	ModelsLoaded  bool     `json:"models_loaded"`
}

func (s *Service) Stats(ctx context.Context) (*StatsResponse, error) {
	overview, err := s.source.Stats(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("loading overview stats", err)
	}
	return &StatsResponse{
		TotalStudents: overview.TotalStudents,
		Departments:   overview.Departments,
		Years:         overview.Years,
		ModelsLoaded:  s.predictor.Available(),
	}, nil
}

// Search finds students by register number and/or name fragment and returns
// them scored, so the result rows carry the same labels as cohort tables.
func (s *Service) Search(ctx context.Context, req types.SearchRequest) ([]analysis.ScoredRecord, error) {
	rno := strings.TrimSpace(req.RNO)
	name := strings.TrimSpace(req.Name)
	if rno == "" && name == "" {
		return nil, apperrors.NewValidationError("rno or name is required")
	}

	records, err := s.source.Search(ctx, rno, name, 0)
	if err != nil {
		return nil, apperrors.NewInternalError("searching students", err)
	}

	scored := make([]analysis.ScoredRecord, 0, len(records))
	for _, rec := range records {
		scored = append(scored, s.scorer.Score(rec))
	}
	s.metrics.AddRecordsScored(len(scored))
	return scored, nil
}

// PredictResponse is the ad-hoc prediction result for a single submitted
// record. NeedAlert flags students whose performance label warrants a mentor
// notification.
type PredictResponse struct {
	RNO        string              `json:"rno"`
	Name       string              `json:"name"`
	Features   analysis.Features   `json:"features"`
	Prediction analysis.Prediction `json:"predictions"`
	NeedAlert  bool                `json:"need_alert"`
}

// Predict scores one submitted record without touching the store. The record
// bypasses the reuse short-circuit: an ad-hoc submission always reflects the
// numbers just typed in, never stale labels carried in the payload.
func (s *Service) Predict(ctx context.Context, rec types.StudentRecord) (*PredictResponse, error) {
	sr := s.scorer.Score(stripStaleLabels(rec.Canonical()))
	s.metrics.AddRecordsScored(1)

	return &PredictResponse{
		RNO:        sr.RNO,
		Name:       sr.Name,
		Features:   sr.Features,
		Prediction: analysis.Prediction{
			PerformanceLabel: sr.PerformanceLabel,
			RiskLabel:        sr.RiskLabel,
			DropoutLabel:     sr.DropoutLabel,
		},
		NeedAlert: needAlert(sr.PerformanceLabel),
	}, nil
}

// needAlert reports whether a performance label warrants a mentor alert.
func needAlert(performanceLabel string) bool {
	switch strings.ToLower(performanceLabel) {
	case "poor", "medium":
		return true
	}
	return false
}

// Create stores a new student. The record is scored on the way in so reads
// and cohort analyses take the reuse path immediately.
func (s *Service) Create(ctx context.Context, rec types.StudentRecord) (analysis.ScoredRecord, error) {
	rec = rec.Canonical()
	if err := requireIdentity(rec); err != nil {
		return analysis.ScoredRecord{}, err
	}

	rno := rec.String(types.FieldRNO)
	exists, err := s.source.Exists(ctx, rno)
	if err != nil {
		return analysis.ScoredRecord{}, apperrors.NewInternalError("checking student existence", err)
	}
	if exists {
		return analysis.ScoredRecord{}, apperrors.NewConflictError("student already exists: " + rno)
	}

	sr := s.scorer.Score(stripStaleLabels(rec))
	if err := s.source.Insert(ctx, sr.Apply(rec)); err != nil {
		return analysis.ScoredRecord{}, apperrors.NewInternalError("inserting student", err)
	}

	s.invalidateSummaries("create", rno)
	return sr, nil
}

// Read returns one student, scored.
func (s *Service) Read(ctx context.Context, rno string) (analysis.ScoredRecord, error) {
	rno = strings.TrimSpace(rno)
	if rno == "" {
		return analysis.ScoredRecord{}, apperrors.NewValidationError("rno is required")
	}

	rec, err := s.source.ByRNO(ctx, rno)
	if err != nil {
		if errors.Is(err, database.ErrStudentNotFound) {
			return analysis.ScoredRecord{}, apperrors.NewNotFoundError("student", rno)
		}
		return analysis.ScoredRecord{}, apperrors.NewInternalError("loading student", err)
	}
	return s.scorer.Score(rec), nil
}

// Update rescores and overwrites an existing student.
func (s *Service) Update(ctx context.Context, rec types.StudentRecord) (analysis.ScoredRecord, error) {
	rec = rec.Canonical()
	if err := requireIdentity(rec); err != nil {
		return analysis.ScoredRecord{}, err
	}

	rno := rec.String(types.FieldRNO)
	exists, err := s.source.Exists(ctx, rno)
	if err != nil {
		return analysis.ScoredRecord{}, apperrors.NewInternalError("checking student existence", err)
	}
	if !exists {
		return analysis.ScoredRecord{}, apperrors.NewNotFoundError("student", rno)
	}

	sr := s.scorer.Score(stripStaleLabels(rec))
	if err := s.source.Upsert(ctx, sr.Apply(rec)); err != nil {
		return analysis.ScoredRecord{}, apperrors.NewInternalError("updating student", err)
	}

	s.invalidateSummaries("update", rno)
	return sr, nil
}

// Delete removes a student by register number.
func (s *Service) Delete(ctx context.Context, rno string) error {
	rno = strings.TrimSpace(rno)
	if rno == "" {
		return apperrors.NewValidationError("rno is required")
	}
	if err := s.source.Delete(ctx, rno); err != nil {
		if errors.Is(err, database.ErrStudentNotFound) {
			return apperrors.NewNotFoundError("student", rno)
		}
		return apperrors.NewInternalError("deleting student", err)
	}
	s.invalidateSummaries("delete", rno)
	return nil
}

// AnalyzeCohort scores the whole store, narrows it by the filter and
// aggregates the survivors. Records missing both RNO and NAME are skipped
// before scoring; a filter matching nothing yields an empty summary, not an
// error.
func (s *Service) AnalyzeCohort(ctx context.Context, filter analysis.CohortFilter) (*analysis.Summary, error) {
	start := time.Now()

	scored, err := s.loadScored(ctx)
	if err != nil {
		return nil, err
	}

	matched, err := filter.Apply(scored)
	if err != nil {
		return nil, err
	}

	summary := s.aggregator.Aggregate(matched)
	s.metrics.IncrementCohortsAggregated()
	s.logger.PipelineLogger(string(filter.Scope), len(scored), summary.Stats.TotalStudents,
		time.Since(start), false)

	if s.writeBack {
		s.persistScores(ctx, matched)
	}
	return &summary, nil
}

// Drilldown is AnalyzeCohort with a clipped table, for the dashboard's
// click-through views.
func (s *Service) Drilldown(ctx context.Context, req types.DrilldownRequest) (*analysis.Summary, error) {
	filter := analysis.CohortFilter{
		Scope:       analysis.Scope(strings.ToLower(strings.TrimSpace(req.Scope))),
		ScopeValue:  req.ScopeValue,
		FilterField: req.FilterType,
		FilterValue: req.FilterValue,
	}

	summary, err := s.AnalyzeCohort(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(summary.Table) > drilldownTableLimit {
		summary.Table = summary.Table[:drilldownTableLimit]
	}
	return summary, nil
}

// ScatterPoint is one attendance-vs-performance chart point.
type ScatterPoint struct {
	Attendance  float64 `json:"attendance"`
	Performance float64 `json:"performance"`
	RiskLabel   string  `json:"risk_label"`
}

// Comparisons carries the cross-cohort chart payloads for the aggregated
// analytics view. Year keys are rendered as strings for JSON stability.
type Comparisons struct {
	DeptPerformance      map[string]float64        `json:"dept_performance"`
	RiskDistribution     map[string]int            `json:"risk_distribution"`
	DeptDropoutPct       map[string]float64        `json:"dept_dropout_pct"`
	YearPerformance      map[string]float64        `json:"year_performance"`
	YearAttendance       map[string]float64        `json:"year_attendance"`
	YearRiskDistribution map[string]map[string]int `json:"year_risk_distribution"`
	Scatter              []ScatterPoint            `json:"scatter"`
	PerformanceScores    []float64                 `json:"performance_scores"`
	Population           int                       `json:"population"`
}

// AggregatedComparisons computes the cross-department and cross-year chart
// data in one pass over the scored store.
func (s *Service) AggregatedComparisons(ctx context.Context) (*Comparisons, error) {
	start := time.Now()

	scored, err := s.loadScored(ctx)
	if err != nil {
		return nil, err
	}

	deptPerf := map[string][]float64{}
	deptDropoutHigh := map[string]int{}
	deptTotal := map[string]int{}
	yearPerf := map[string][]float64{}
	yearAtt := map[string][]float64{}

	out := &Comparisons{
		RiskDistribution:     map[string]int{},
		YearRiskDistribution: map[string]map[string]int{},
		Scatter:              []ScatterPoint{},
		PerformanceScores:    []float64{},
		Population:           len(scored),
	}

	for _, sr := range scored {
		dept := sr.Dept
		if dept == "" {
			dept = "UNKNOWN"
		}
		yearKey := strconv.Itoa(sr.Year)

		deptPerf[dept] = append(deptPerf[dept], sr.PerformanceOverall)
		deptTotal[dept]++
		if strings.EqualFold(sr.DropoutLabel, "high") {
			deptDropoutHigh[dept]++
		}

		out.RiskDistribution[sr.RiskLabel]++

		yearPerf[yearKey] = append(yearPerf[yearKey], sr.PerformanceOverall)
		yearAtt[yearKey] = append(yearAtt[yearKey], sr.AttendancePct)
		if out.YearRiskDistribution[yearKey] == nil {
			out.YearRiskDistribution[yearKey] = map[string]int{}
		}
		out.YearRiskDistribution[yearKey][sr.RiskLabel]++

		if len(out.Scatter) < chartPointLimit {
			out.Scatter = append(out.Scatter, ScatterPoint{
				Attendance:  sr.AttendancePct,
				Performance: sr.PerformanceOverall,
				RiskLabel:   sr.RiskLabel,
			})
		}
		if len(out.PerformanceScores) < chartPointLimit {
			out.PerformanceScores = append(out.PerformanceScores, sr.PerformanceOverall)
		}
	}

	out.DeptPerformance = meansOf(deptPerf)
	out.YearPerformance = meansOf(yearPerf)
	out.YearAttendance = meansOf(yearAtt)

	out.DeptDropoutPct = make(map[string]float64, len(deptTotal))
	for dept, total := range deptTotal {
		if total == 0 {
			continue
		}
		out.DeptDropoutPct[dept] = round2(float64(deptDropoutHigh[dept]) / float64(total) * 100)
	}

	s.metrics.IncrementCohortsAggregated()
	s.logger.PipelineLogger("aggregated", len(scored), len(scored), time.Since(start), false)
	return out, nil
}

// RecordAlert logs a sent mentor alert for the audit trail.
func (s *Service) RecordAlert(ctx context.Context, rno, recipient string, pred analysis.Prediction) error {
	if err := s.source.LogAlert(ctx, rno, recipient,
		pred.PerformanceLabel, pred.RiskLabel, pred.DropoutLabel); err != nil {
		return apperrors.NewInternalError("logging alert", err)
	}
	s.metrics.IncrementAlertsSent()
	return nil
}

// loadScored loads the full store and scores every identifiable record.
func (s *Service) loadScored(ctx context.Context) ([]analysis.ScoredRecord, error) {
	records, err := s.source.All(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("loading students", err)
	}

	scored := make([]analysis.ScoredRecord, 0, len(records))
	for _, rec := range records {
		if rec.String(types.FieldRNO) == "" && rec.String(types.FieldName) == "" {
			continue
		}
		scored = append(scored, s.scorer.Score(rec))
	}
	s.metrics.AddRecordsScored(len(scored))
	return scored, nil
}

// persistScores writes freshly computed scores back to the store. Failures
// are logged and swallowed: write-back is an optimization, never part of the
// analysis contract.
func (s *Service) persistScores(ctx context.Context, scored []analysis.ScoredRecord) {
	fresh := make([]types.StudentRecord, 0, len(scored))
	for _, sr := range scored {
		if sr.Reused || sr.RNO == "" {
			continue
		}
		fresh = append(fresh, sr.Apply(sr.Record))
	}
	if len(fresh) == 0 {
		return
	}
	if err := s.source.BatchUpsert(ctx, fresh); err != nil {
		s.logger.SystemLogger("score_writeback_failed", err.Error())
		return
	}
	s.logger.SystemLogger("score_writeback", strconv.Itoa(len(fresh))+" records persisted")
}

// invalidateSummaries drops cached cohort responses after a student write.
func (s *Service) invalidateSummaries(operation, rno string) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate()
	s.logger.CacheLogger("invalidate:"+operation, rno, false, s.cache.Len())
}

func requireIdentity(rec types.StudentRecord) error {
	if rec.String(types.FieldRNO) == "" {
		return apperrors.NewValidationError("RNO is required")
	}
	if rec.String(types.FieldName) == "" {
		return apperrors.NewValidationError("NAME is required")
	}
	return nil
}

// stripStaleLabels drops carried labels so a submitted payload is always
// rescored from its numbers.
func stripStaleLabels(rec types.StudentRecord) types.StudentRecord {
	out := make(types.StudentRecord, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	delete(out, types.FieldPerformanceLabel)
	delete(out, types.FieldRiskLabel)
	delete(out, types.FieldDropoutLabel)
	return out
}

func meansOf(groups map[string][]float64) map[string]float64 {
	out := make(map[string]float64, len(groups))
	for key, values := range groups {
		if len(values) == 0 {
			continue
		}
		sort.Float64s(values)
		out[key] = round2(stat.Mean(values, nil))
	}
	return out
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
