package types

import "time"

// DateLayout is the calendar-date format used for report dates.
const DateLayout = "2006-01-02"

// Sample is a successful probe observation.
type Sample struct {
	LatencyMillis float64   `json:"latency_ms" yaml:"latency_ms"`
	Timestamp     time.Time `json:"ts" yaml:"ts"`
}

// UnreachableEvent marks a probe that got no answer from the target.
type UnreachableEvent struct {
	Timestamp time.Time `json:"ts" yaml:"ts"`
}

// DailyReport is the immutable summary of one calendar day of probes.
type DailyReport struct {
	Date                string      `json:"date" yaml:"date"`
	TotalProbes         int         `json:"total_probes" yaml:"total_probes"`
	SuccessCount        int         `json:"success_count" yaml:"success_count"`
	FailureCount        int         `json:"failure_count" yaml:"failure_count"`
	SuccessRate         float64     `json:"success_rate" yaml:"success_rate"`
	MinLatencyMillis    float64     `json:"min_latency_ms" yaml:"min_latency_ms"`
	AvgLatencyMillis    float64     `json:"avg_latency_ms" yaml:"avg_latency_ms"`
	MaxLatencyMillis    float64     `json:"max_latency_ms" yaml:"max_latency_ms"`
	UnreachableTimes    []time.Time `json:"unreachable_times" yaml:"unreachable_times"`
	UnreachableOverflow int         `json:"unreachable_overflow" yaml:"unreachable_overflow"`
	FirstProbe          time.Time   `json:"first_probe,omitempty" yaml:"first_probe,omitempty"`
	LastProbe           time.Time   `json:"last_probe,omitempty" yaml:"last_probe,omitempty"`
	GeneratedAt         time.Time   `json:"generated_at" yaml:"generated_at"`
}

// Empty reports whether no probe contributed to the report.
func (r DailyReport) Empty() bool {
	return r.TotalProbes == 0
}
