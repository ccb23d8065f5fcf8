package health

import (
	"fmt"
	"sync"
	"time"

	"github.com/pingsantohq/dailyping/internal/metrics"
	"github.com/pingsantohq/dailyping/internal/probe"
	"github.com/pingsantohq/dailyping/internal/scheduler"
)

// staleFactor is how many probe intervals may pass without a probe before
// the loop is considered stuck.
const staleFactor = 3

const (
	categoryLoopStopped  = "LOOP_STOPPED"
	categoryProbePending = "PROBE_PENDING"
	categoryProbeStale   = "PROBE_STALE"
)

const (
	severityInfo     = "info"
	severityWarning  = "warning"
	severityCritical = "critical"
)

// Checker evaluates readiness of the probe loop. It implements
// scheduler.Observer.
type Checker struct {
	metrics    *metrics.Store
	staleAfter time.Duration

	mu        sync.RWMutex
	state     scheduler.State
	lastProbe time.Time
	reachable bool
}

// NewChecker builds a checker for a loop probing every interval.
func NewChecker(store *metrics.Store, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = scheduler.DefaultInterval
	}
	return &Checker{
		metrics:    store,
		staleAfter: staleFactor * interval,
	}
}

func (c *Checker) ObserveState(s scheduler.State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Checker) ObserveProbe(ts time.Time, outcome probe.Outcome) {
	c.mu.Lock()
	c.lastProbe = ts
	c.reachable = outcome.Reachable
	c.mu.Unlock()
}

// Status is the JSON view served by the status endpoints.
type Status struct {
	Ready         bool      `json:"ready"`
	State         string    `json:"state"`
	LastProbe     time.Time `json:"last_probe,omitempty"`
	LastReachable bool      `json:"last_reachable"`
	Reasons       []string  `json:"reasons,omitempty"`
}

// Ready evaluates all readiness conditions and returns the overall status and reasons for failure.
func (c *Checker) Ready(now time.Time) (bool, []string) {
	st := c.Status(now)
	return st.Ready, st.Reasons
}

func (c *Checker) Status(now time.Time) Status {
	c.mu.RLock()
	state := c.state
	lastProbe := c.lastProbe
	reachable := c.reachable
	staleAfter := c.staleAfter
	c.mu.RUnlock()

	reasons := make([]string, 0, 2)
	categories := make([]metrics.ReadinessCategory, 0, 2)
	appendCategory := func(name, severity string) {
		categories = append(categories, metrics.ReadinessCategory{
			Name:     name,
			Severity: severity,
		})
	}

	if state != scheduler.Running {
		reasons = append(reasons, fmt.Sprintf("probe loop %s", state))
		appendCategory(categoryLoopStopped, severityCritical)
	}

	if lastProbe.IsZero() {
		reasons = append(reasons, "no probe recorded yet")
		appendCategory(categoryProbePending, severityInfo)
	} else if age := now.Sub(lastProbe); age > staleAfter {
		reasons = append(reasons, fmt.Sprintf("last probe is stale (%s)", age.Round(time.Second)))
		appendCategory(categoryProbeStale, severityWarning)
	}

	ready := len(reasons) == 0
	if c.metrics != nil {
		c.metrics.ObserveReadiness(ready, categories)
	}

	st := Status{
		Ready:         ready,
		State:         state.String(),
		LastProbe:     lastProbe,
		LastReachable: reachable,
	}
	if !ready {
		st.Reasons = reasons
	}
	return st
}
