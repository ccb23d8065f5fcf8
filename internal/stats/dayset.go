package stats

import (
	"time"

	"github.com/pingsantohq/dailyping/pkg/types"
)

// MaxListedUnreachable bounds how many unreachable timestamps a report lists.
// All events stay in the DaySet; the bound only applies to the report.
const MaxListedUnreachable = 10

// DaySet accumulates the probe outcomes of one local calendar date.
type DaySet struct {
	Date    string
	Samples []types.Sample
	Events  []types.UnreachableEvent
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) string {
	return t.Format(types.DateLayout)
}

func (d DaySet) Len() int {
	return len(d.Samples) + len(d.Events)
}

func (d DaySet) Empty() bool {
	return d.Len() == 0
}

// Summarize computes the daily report for a DaySet. It never mutates day.
func Summarize(day DaySet, now time.Time) types.DailyReport {
	report := types.DailyReport{
		Date:         day.Date,
		SuccessCount: len(day.Samples),
		FailureCount: len(day.Events),
		GeneratedAt:  now,
	}
	report.TotalProbes = report.SuccessCount + report.FailureCount
	if report.TotalProbes > 0 {
		report.SuccessRate = float64(report.SuccessCount) / float64(report.TotalProbes) * 100
	}

	if len(day.Samples) > 0 {
		var sum float64
		minLatency := day.Samples[0].LatencyMillis
		maxLatency := day.Samples[0].LatencyMillis
		for _, s := range day.Samples {
			sum += s.LatencyMillis
			if s.LatencyMillis < minLatency {
				minLatency = s.LatencyMillis
			}
			if s.LatencyMillis > maxLatency {
				maxLatency = s.LatencyMillis
			}
		}
		report.MinLatencyMillis = minLatency
		report.MaxLatencyMillis = maxLatency
		report.AvgLatencyMillis = clamp(sum/float64(len(day.Samples)), minLatency, maxLatency)
	}

	listed := len(day.Events)
	if listed > MaxListedUnreachable {
		listed = MaxListedUnreachable
		report.UnreachableOverflow = len(day.Events) - MaxListedUnreachable
	}
	report.UnreachableTimes = make([]time.Time, 0, listed)
	for _, ev := range day.Events[:listed] {
		report.UnreachableTimes = append(report.UnreachableTimes, ev.Timestamp)
	}

	report.FirstProbe, report.LastProbe = probeBounds(day)
	return report
}

// Floating point summation can land a hair outside [min, max].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func probeBounds(day DaySet) (first, last time.Time) {
	observe := func(ts time.Time) {
		if ts.IsZero() {
			return
		}
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if last.IsZero() || ts.After(last) {
			last = ts
		}
	}
	for _, s := range day.Samples {
		observe(s.Timestamp)
	}
	for _, ev := range day.Events {
		observe(ev.Timestamp)
	}
	return first, last
}
