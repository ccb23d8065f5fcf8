package probe

import (
	"fmt"
	"time"
)

// Outcome is the result of a single probe. Network failures are expressed as
// an unreachable outcome rather than as an error.
type Outcome struct {
	Reachable bool
	Latency   time.Duration
	Reason    string
}

// Reachable builds a successful outcome. Negative latencies are clamped to zero.
func Reachable(latency time.Duration) Outcome {
	if latency < 0 {
		latency = 0
	}
	return Outcome{Reachable: true, Latency: latency}
}

// Unreachable builds a failed outcome carrying a human readable reason.
func Unreachable(reason string) Outcome {
	return Outcome{Reason: reason}
}

// LatencyMillis returns the latency in fractional milliseconds.
func (o Outcome) LatencyMillis() float64 {
	return float64(o.Latency) / float64(time.Millisecond)
}

func (o Outcome) String() string {
	if o.Reachable {
		return fmt.Sprintf("%.1fms", o.LatencyMillis())
	}
	if o.Reason == "" {
		return "unreachable"
	}
	return "unreachable: " + o.Reason
}
