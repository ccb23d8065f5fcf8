package stats

import (
	"sync"
	"time"

	"github.com/pingsantohq/dailyping/internal/probe"
	"github.com/pingsantohq/dailyping/pkg/types"
)

// Aggregator owns the DaySet of the active date. Every access goes through a
// single mutex so a snapshot can never interleave with a Record call.
type Aggregator struct {
	now func() time.Time

	mu  sync.Mutex
	day DaySet
}

type Option func(*Aggregator)

func WithNow(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAggregator(date string, opts ...Option) *Aggregator {
	a := &Aggregator{
		now: time.Now,
		day: DaySet{Date: date},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record appends the outcome observed at ts to the active DaySet.
func (a *Aggregator) Record(outcome probe.Outcome, ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.day.Date == "" {
		a.day.Date = DateOf(ts)
	}
	if outcome.Reachable {
		a.day.Samples = append(a.day.Samples, types.Sample{
			LatencyMillis: outcome.LatencyMillis(),
			Timestamp:     ts,
		})
		return
	}
	a.day.Events = append(a.day.Events, types.UnreachableEvent{Timestamp: ts})
}

// SnapshotAndReset summarises the active DaySet and replaces it with an empty
// one for next. The boolean is false when the DaySet held no outcomes; the
// reset happens either way.
func (a *Aggregator) SnapshotAndReset(next string) (types.DailyReport, bool) {
	a.mu.Lock()
	day := a.day
	a.day = DaySet{Date: next}
	a.mu.Unlock()

	if day.Empty() {
		return types.DailyReport{}, false
	}
	return Summarize(day, a.now()), true
}

// Peek summarises the active DaySet without resetting it.
func (a *Aggregator) Peek() types.DailyReport {
	a.mu.Lock()
	day := DaySet{
		Date:    a.day.Date,
		Samples: append([]types.Sample(nil), a.day.Samples...),
		Events:  append([]types.UnreachableEvent(nil), a.day.Events...),
	}
	a.mu.Unlock()
	return Summarize(day, a.now())
}

func (a *Aggregator) Date() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.day.Date
}

func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.day.Len()
}
