package report

// Success-rate thresholds (percent) for the report severity.
const (
	HealthyThreshold  = 99.0
	DegradedThreshold = 95.0
)

type Severity string

const (
	SeverityHealthy  Severity = "healthy"
	SeverityDegraded Severity = "degraded"
	SeverityCritical Severity = "critical"
)

// Embed colours per severity.
const (
	colorHealthy  = 0x00ff00
	colorDegraded = 0xff9900
	colorCritical = 0xff0000
)

// SeverityFor classifies a success rate given in percent.
func SeverityFor(successRate float64) Severity {
	switch {
	case successRate >= HealthyThreshold:
		return SeverityHealthy
	case successRate >= DegradedThreshold:
		return SeverityDegraded
	default:
		return SeverityCritical
	}
}

// Color returns the embed colour for the severity.
func (s Severity) Color() int {
	switch s {
	case SeverityHealthy:
		return colorHealthy
	case SeverityDegraded:
		return colorDegraded
	default:
		return colorCritical
	}
}
