package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pingsantohq/dailyping/internal/metrics"
	"github.com/pingsantohq/dailyping/internal/notify"
	"github.com/pingsantohq/dailyping/internal/probe"
	"github.com/pingsantohq/dailyping/internal/stats"
	"github.com/pingsantohq/dailyping/pkg/types"
)

const (
	DefaultInterval             = time.Second
	DefaultMaxConsecutiveFaults = 10

	// probeGrace is added to the probe timeout so probers that bound their
	// own subprocess get to report before the loop gives up on them.
	probeGrace = 2 * time.Second
)

var (
	ErrPersistentFault = errors.New("scheduler: persistent loop fault")
	ErrAlreadyStarted  = errors.New("scheduler: loop already started")
)

type State int32

const (
	Idle State = iota
	Running
	Draining
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Sink receives completed daily reports.
type Sink interface {
	Dispatch(ctx context.Context, r types.DailyReport) notify.Result
}

// Observer is told about state changes and every recorded probe.
type Observer interface {
	ObserveState(s State)
	ObserveProbe(ts time.Time, outcome probe.Outcome)
}

type noopObserver struct{}

func (noopObserver) ObserveState(State)                   {}
func (noopObserver) ObserveProbe(time.Time, probe.Outcome) {}

// Loop probes one target at a fixed interval, feeds the aggregator and
// dispatches a report whenever a calendar date is complete or the loop stops.
type Loop struct {
	target string
	prober probe.Prober
	agg    *stats.Aggregator
	sink   Sink

	now          func() time.Time
	interval     time.Duration
	probeTimeout time.Duration
	gateway      string
	maxFaults    int
	logger       *slog.Logger
	metrics      metrics.LoopRecorder
	observer     Observer
	console      io.Writer

	state     atomic.Int32
	drainOnce sync.Once
	done      chan struct{}

	// Owned by the Run goroutine.
	activeDate string
	faults     int
}

type Option func(*Loop)

func WithNow(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

func WithProbeTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.probeTimeout = d
		}
	}
}

// WithGateway sets the address probed for diagnostics after a failed probe.
// An empty address disables the gateway probe.
func WithGateway(addr string) Option {
	return func(l *Loop) {
		l.gateway = addr
	}
}

// WithMaxConsecutiveFaults bounds how many loop iterations in a row may
// fail before Run gives up. Zero disables the bound.
func WithMaxConsecutiveFaults(n int) Option {
	return func(l *Loop) {
		if n >= 0 {
			l.maxFaults = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithMetrics(rec metrics.LoopRecorder) Option {
	return func(l *Loop) {
		if rec != nil {
			l.metrics = rec
		}
	}
}

func WithObserver(o Observer) Option {
	return func(l *Loop) {
		if o != nil {
			l.observer = o
		}
	}
}

// WithConsole sets the writer receiving one human readable line per probe.
func WithConsole(w io.Writer) Option {
	return func(l *Loop) {
		if w != nil {
			l.console = w
		}
	}
}

func New(target string, prober probe.Prober, agg *stats.Aggregator, sink Sink, opts ...Option) *Loop {
	l := &Loop{
		target:       target,
		prober:       prober,
		agg:          agg,
		sink:         sink,
		now:          time.Now,
		interval:     DefaultInterval,
		probeTimeout: probe.DefaultTimeout,
		maxFaults:    DefaultMaxConsecutiveFaults,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:      metrics.NoopLoopRecorder{},
		observer:     noopObserver{},
		console:      io.Discard,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) State() State {
	return State(l.state.Load())
}

// Done is closed once Run has drained and returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
	l.observer.ObserveState(s)
	l.logger.Debug("loop state changed", "state", s.String())
}

// Run probes until ctx is cancelled, then dispatches the partial day once.
// It returns ErrPersistentFault when too many iterations fail in a row.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return ErrAlreadyStarted
	}
	defer close(l.done)
	l.setState(Running)

	// Start from the aggregator's date so a day change since construction
	// rolls over on the first tick.
	l.activeDate = l.agg.Date()
	if l.activeDate == "" {
		l.activeDate = stats.DateOf(l.now())
	}
	l.logger.Info("monitoring started", "target", l.target, "interval", l.interval.String(), "date", l.activeDate)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if err := l.safeTick(ctx, l.now()); err != nil {
			if l.fault(err) {
				l.drain(ctx)
				return fmt.Errorf("%w: %d consecutive failures, last: %v", ErrPersistentFault, l.faults, err)
			}
		} else {
			l.faults = 0
		}

		select {
		case <-ctx.Done():
			l.drain(ctx)
			return nil
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			l.drain(ctx)
			return nil
		}
	}
}

// fault records a failed iteration and reports whether the budget is spent.
func (l *Loop) fault(err error) bool {
	l.faults++
	l.metrics.IncLoopFaults()
	l.logger.Error("loop iteration failed", "error", err, "consecutive", l.faults)
	return l.maxFaults > 0 && l.faults >= l.maxFaults
}

func (l *Loop) safeTick(ctx context.Context, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	l.tick(ctx, now)
	return nil
}

func (l *Loop) tick(ctx context.Context, now time.Time) {
	l.rollover(ctx, now)

	outcome := l.probe(ctx, l.target)
	l.agg.Record(outcome, now)
	l.metrics.ObserveProbe(outcome.Reachable, outcome.Latency)
	l.metrics.ObserveDaySize(l.agg.Len())
	l.observer.ObserveProbe(now, outcome)
	fmt.Fprintf(l.console, "%s - %s %s\n", now.Format("15:04:05"), l.target, consoleResult(outcome, "ping: "))

	if outcome.Reachable || l.gateway == "" || ctx.Err() != nil {
		return
	}
	gw := l.probe(ctx, l.gateway)
	l.metrics.ObserveGatewayProbe(gw.Reachable)
	fmt.Fprintf(l.console, "  -> gateway(%s): %s\n", l.gateway, consoleResult(gw, ""))
}

// probe runs one probe on a context detached from ctx so a stop request
// lets the in-flight probe finish.
func (l *Loop) probe(ctx context.Context, addr string) probe.Outcome {
	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.probeTimeout+probeGrace)
	defer cancel()
	return l.prober.Probe(probeCtx, addr)
}

func consoleResult(o probe.Outcome, prefix string) string {
	if !o.Reachable {
		return "unreachable"
	}
	return fmt.Sprintf("%s%.1fms", prefix, o.LatencyMillis())
}

func (l *Loop) rollover(ctx context.Context, now time.Time) {
	date := stats.DateOf(now)
	if date == l.activeDate {
		return
	}
	prev := l.activeDate
	l.activeDate = date

	report, ok := l.agg.SnapshotAndReset(date)
	if !ok {
		l.logger.Info("date changed with no outcomes recorded", "previous", prev, "date", date)
		return
	}
	l.metrics.IncRollovers()
	l.logger.Info("date changed, sending daily report", "previous", prev, "date", date, "total_probes", report.TotalProbes)
	l.sink.Dispatch(context.WithoutCancel(ctx), report)
}

func (l *Loop) drain(ctx context.Context) {
	l.drainOnce.Do(func() {
		l.setState(Draining)
		report, ok := l.agg.SnapshotAndReset(stats.DateOf(l.now()))
		if ok {
			l.logger.Info("sending final report", "date", report.Date, "total_probes", report.TotalProbes)
			l.sink.Dispatch(context.WithoutCancel(ctx), report)
		} else {
			l.logger.Info("no outcomes recorded, skipping final report")
		}
		l.setState(Terminated)
	})
}
