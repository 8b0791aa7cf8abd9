package analysis

import (
	"math"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultSampleCap bounds how many records a single aggregation chews
	// through before switching to a fixed-seed sample.
	DefaultSampleCap = 500

	// Fixed seed keeps sampled summaries reproducible across requests.
	defaultSampleSeed = 42
)

// Aggregator rolls a set of scored records up into a cohort summary. It
// never mutates its input and holds no state between calls, so concurrent
// aggregations over overlapping cohorts are safe.
type Aggregator struct {
	SampleCap  int
	SampleSeed int64
}

func NewAggregator(sampleCap int) *Aggregator {
	if sampleCap <= 0 {
		sampleCap = DefaultSampleCap
	}
	return &Aggregator{SampleCap: sampleCap, SampleSeed: defaultSampleSeed}
}

// Aggregate computes summary statistics, observed-label frequency tables and
// per-record score lists. Empty input yields a zero summary, never an error.
// Inputs larger than SampleCap are reduced to a fixed-seed pseudo-random
// sample of that size; Population always reports the true input size.
func (a *Aggregator) Aggregate(records []ScoredRecord) Summary {
	population := len(records)

	sampled := false
	if a.SampleCap > 0 && len(records) > a.SampleCap {
		records = a.sample(records)
		sampled = true
	}

	summary := Summary{
		LabelCounts: map[string]map[string]int{
			AxisPerformance: {},
			AxisRisk:        {},
			AxisDropout:     {},
		},
		Scores: ScoreSeries{
			Performance: make([]float64, 0, len(records)),
			Risk:        make([]float64, 0, len(records)),
			Dropout:     make([]float64, 0, len(records)),
		},
		Table:      records,
		Population: population,
	}
	if sampled {
		summary.SampleSize = len(records)
	}

	for _, sr := range records {
		perf := strings.ToLower(sr.PerformanceLabel)
		risk := strings.ToLower(sr.RiskLabel)
		dropout := strings.ToLower(sr.DropoutLabel)

		summary.LabelCounts[AxisPerformance][perf]++
		summary.LabelCounts[AxisRisk][risk]++
		summary.LabelCounts[AxisDropout][dropout]++

		if perf == "high" {
			summary.Stats.HighPerformers++
		}
		if risk == "high" {
			summary.Stats.HighRisk++
		}
		if dropout == "high" {
			summary.Stats.HighDropout++
		}

		summary.Scores.Performance = append(summary.Scores.Performance, sr.PerformanceOverall)
		summary.Scores.Risk = append(summary.Scores.Risk, sr.RiskScore)
		summary.Scores.Dropout = append(summary.Scores.Dropout, sr.DropoutScore)
	}

	summary.Stats.TotalStudents = len(records)
	if len(records) > 0 {
		avg := stat.Mean(summary.Scores.Performance, nil)
		summary.Stats.AvgPerformance = math.Round(avg*100) / 100
	}

	return summary
}

// sample takes a SampleCap-sized prefix of a seeded permutation. The input
// slice is left untouched.
func (a *Aggregator) sample(records []ScoredRecord) []ScoredRecord {
	seed := a.SampleSeed
	if seed == 0 {
		seed = defaultSampleSeed
	}
	rng := rand.New(rand.NewSource(seed))

	out := make([]ScoredRecord, 0, a.SampleCap)
	for _, idx := range rng.Perm(len(records))[:a.SampleCap] {
		out = append(out, records[idx])
	}
	return out
}
