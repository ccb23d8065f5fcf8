package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/pingsantohq/dailyping/internal/metrics"
	"github.com/pingsantohq/dailyping/internal/report"
	"github.com/pingsantohq/dailyping/pkg/types"
)

// Sender delivers a rendered webhook message.
type Sender interface {
	Send(ctx context.Context, msg types.WebhookMessage) error
}

// Result is the outcome of a dispatch. Reason is set when delivery failed
// and the console rendering was used instead.
type Result struct {
	Delivered bool
	Reason    string
}

func Delivered() Result {
	return Result{Delivered: true}
}

func Failed(reason string) Result {
	return Result{Reason: reason}
}

// Dispatcher renders daily reports and hands them to the webhook, falling
// back to the console rendering so a report is never silently dropped.
type Dispatcher struct {
	sender  Sender
	meta    report.Meta
	logger  *slog.Logger
	metrics metrics.DispatchRecorder

	mu      sync.Mutex
	console io.Writer
}

type Option func(*Dispatcher)

// WithConsole sets the writer receiving fallback renderings.
func WithConsole(w io.Writer) Option {
	return func(d *Dispatcher) {
		if w != nil {
			d.console = w
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithMetrics(rec metrics.DispatchRecorder) Option {
	return func(d *Dispatcher) {
		if rec != nil {
			d.metrics = rec
		}
	}
}

// NewDispatcher builds a Dispatcher. A nil sender means console-only output.
func NewDispatcher(sender Sender, meta report.Meta, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender:  sender,
		meta:    meta,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: metrics.NoopDispatchRecorder{},
		console: os.Stdout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends r to the webhook and falls back to the console on failure.
func (d *Dispatcher) Dispatch(ctx context.Context, r types.DailyReport) Result {
	result := d.send(ctx, r)
	d.metrics.ObserveDispatch(result.Delivered)
	if result.Delivered {
		d.logger.Info("daily report delivered", "date", r.Date, "total_probes", r.TotalProbes,
			"success_rate", fmt.Sprintf("%.2f", r.SuccessRate))
		return result
	}

	d.logger.Warn("daily report not delivered, printing to console", "date", r.Date, "reason", result.Reason)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := io.WriteString(d.console, report.Console(r, d.meta)); err != nil {
		d.logger.Error("console fallback failed", "date", r.Date, "error", err)
	}
	return result
}

func (d *Dispatcher) send(ctx context.Context, r types.DailyReport) Result {
	if d.sender == nil {
		return Failed("webhook not configured")
	}
	if err := d.sender.Send(ctx, report.Webhook(r, d.meta)); err != nil {
		return Failed(err.Error())
	}
	return Delivered()
}
