package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/soralab/netfault/internal/model"
)

// movingAverageWindow is the smoothing window applied per partition.
const movingAverageWindow = 3

// Summary holds the per-metric aggregate of one partition. Nil means the
// value is undefined: a mean over zero observations, or a std over fewer
// than two.
type Summary struct {
	Mean *float64 `json:"mean"`
	Std  *float64 `json:"std"`
}

// Impact holds the before/after change of one metric. A nil ChangePercent
// is the serialized sentinel for an infinite relative change (before mean
// was zero); the absolute change still carries the signal.
type Impact struct {
	ChangePercent  *float64 `json:"change_percent"`
	ChangeAbsolute *float64 `json:"change_absolute"`
}

// TimeSeries groups the derived series of a result.
type TimeSeries struct {
	// MovingAverages is keyed "<metric>_before" / "<metric>_after"; each
	// series is computed independently per partition and restarts at the
	// partition boundary. Nil points mean no observation fell in the
	// window.
	MovingAverages map[string][]*float64 `json:"moving_averages"`
}

// Result is the outcome of one analysis run. It is recomputed on every
// request and never persisted.
type Result struct {
	Message            string               `json:"message,omitempty"`
	SummaryBefore      map[string]Summary   `json:"summary_before_injection"`
	SummaryAfter       map[string]Summary   `json:"summary_after_injection"`
	ImpactAnalysis     map[string]Impact    `json:"impact_analysis"`
	TimeSeries         TimeSeries           `json:"time_series_analysis"`
	FirstInjectionTime *string              `json:"first_injection_time"`
	RawData            []model.MetricSample `json:"raw_data"`
}

// Engine computes before/after-fault statistics over a sample sequence.
type Engine struct{}

// NewEngine creates an analysis engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Analyze partitions the samples at the first fault instant and computes
// summary statistics, moving averages and impact metrics. The input is
// not modified; zero-timestamp rows are discarded before sorting.
func (e *Engine) Analyze(samples []model.MetricSample) Result {
	if len(samples) == 0 {
		return Result{Message: "No data to analyze."}
	}

	valid := make([]model.MetricSample, 0, len(samples))
	for _, s := range samples {
		if s.Timestamp.IsZero() {
			continue
		}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return Result{Message: "No data to analyze."}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Timestamp.Before(valid[j].Timestamp)
	})

	var firstFault time.Time
	for _, s := range valid {
		if s.IsInjected {
			firstFault = s.Timestamp
			break
		}
	}

	var before, after []model.MetricSample
	if firstFault.IsZero() {
		before = valid
	} else {
		for _, s := range valid {
			if s.Timestamp.Before(firstFault) {
				before = append(before, s)
			} else {
				after = append(after, s)
			}
		}
	}

	result := Result{
		SummaryBefore:  map[string]Summary{},
		SummaryAfter:   map[string]Summary{},
		ImpactAnalysis: map[string]Impact{},
		TimeSeries: TimeSeries{
			MovingAverages: map[string][]*float64{},
		},
		RawData: valid,
	}
	if !firstFault.IsZero() {
		ts := firstFault.Format(model.TimestampLayout)
		result.FirstInjectionTime = &ts
	}

	for _, metric := range model.Metrics() {
		beforeVals := metricSeries(before, metric)
		afterVals := metricSeries(after, metric)

		if len(before) > 0 {
			result.SummaryBefore[metric] = summarize(beforeVals)
		}
		if len(after) > 0 {
			result.SummaryAfter[metric] = summarize(afterVals)
		}

		result.TimeSeries.MovingAverages[metric+"_before"] = movingAverage(beforeVals, movingAverageWindow)
		result.TimeSeries.MovingAverages[metric+"_after"] = movingAverage(afterVals, movingAverageWindow)

		if len(before) > 0 && len(after) > 0 {
			beforeMean := result.SummaryBefore[metric].Mean
			afterMean := result.SummaryAfter[metric].Mean
			if beforeMean != nil && afterMean != nil {
				result.ImpactAnalysis[metric] = impact(*beforeMean, *afterMean)
			}
		}
	}

	return result
}

// metricSeries extracts one metric across a partition, keeping nils so
// the moving average aligns with sample positions.
func metricSeries(samples []model.MetricSample, metric string) []*float64 {
	series := make([]*float64, len(samples))
	for i := range samples {
		series[i] = samples[i].Metric(metric)
	}
	return series
}

// summarize computes mean and sample standard deviation over the non-nil
// values of a series.
func summarize(series []*float64) Summary {
	values := observed(series)
	if len(values) == 0 {
		return Summary{}
	}

	m := mean(values)
	s := Summary{Mean: model.Float(m)}
	if len(values) >= 2 {
		s.Std = model.Float(sampleStddev(values, m))
	}
	return s
}

// movingAverage computes a trailing windowed mean with min_periods=1
// semantics: each point averages the non-nil observations among the last
// up-to-window entries, and is nil when the window holds none.
func movingAverage(series []*float64, window int) []*float64 {
	out := make([]*float64, len(series))
	for i := range series {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		sum, count := 0.0, 0
		for j := start; j <= i; j++ {
			if series[j] == nil {
				continue
			}
			sum += *series[j]
			count++
		}
		if count > 0 {
			out[i] = model.Float(sum / float64(count))
		}
	}
	return out
}

// impact computes relative and absolute change of the after mean against
// the before mean, with the zero-baseline edge cases pinned down.
func impact(beforeMean, afterMean float64) Impact {
	diff := afterMean - beforeMean
	switch {
	case beforeMean != 0:
		pct := diff / beforeMean * 100
		return Impact{ChangePercent: model.Float(pct), ChangeAbsolute: model.Float(diff)}
	case afterMean != 0:
		// Infinite relative change; the percent sentinel serializes as
		// null and the absolute change carries the magnitude.
		return Impact{ChangePercent: nil, ChangeAbsolute: model.Float(afterMean)}
	default:
		zero := 0.0
		return Impact{ChangePercent: &zero, ChangeAbsolute: model.Float(0)}
	}
}

func observed(series []*float64) []float64 {
	values := make([]float64, 0, len(series))
	for _, v := range series {
		if v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) {
			values = append(values, *v)
		}
	}
	return values
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStddev uses the n-1 divisor; callers guarantee len >= 2.
func sampleStddev(values []float64, avg float64) float64 {
	sumSquares := 0.0
	for _, v := range values {
		diff := v - avg
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}
