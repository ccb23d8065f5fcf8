package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pingsantohq/dailyping/internal/config"
	"github.com/pingsantohq/dailyping/internal/health"
	"github.com/pingsantohq/dailyping/internal/metrics"
	"github.com/pingsantohq/dailyping/internal/netinfo"
	"github.com/pingsantohq/dailyping/internal/notify"
	"github.com/pingsantohq/dailyping/internal/probe"
	"github.com/pingsantohq/dailyping/internal/report"
	"github.com/pingsantohq/dailyping/internal/scheduler"
	"github.com/pingsantohq/dailyping/internal/server"
	"github.com/pingsantohq/dailyping/internal/shutdown"
	"github.com/pingsantohq/dailyping/internal/stats"
)

const userAgent = "dailyping"

type Option func(*options)

type options struct {
	logger       *slog.Logger
	metricsStore *metrics.Store
	console      io.Writer
	now          func() time.Time
	prober       probe.Prober
	sender       notify.Sender
	senderSet    bool
	resolver     *netinfo.Resolver
	localAddress func(string) string
	instanceID   string
	httpClient   *http.Client
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetricsStore(store *metrics.Store) Option {
	return func(o *options) {
		o.metricsStore = store
	}
}

// WithConsole sets the writer for probe lines and fallback reports.
func WithConsole(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.console = w
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithProber replaces the prober built from the monitor config.
func WithProber(p probe.Prober) Option {
	return func(o *options) {
		o.prober = p
	}
}

// WithSender replaces the webhook client. A nil sender means console-only.
func WithSender(s notify.Sender) Option {
	return func(o *options) {
		o.sender = s
		o.senderSet = true
	}
}

func WithResolver(r *netinfo.Resolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolver = r
		}
	}
}

func WithLocalAddress(fn func(target string) string) Option {
	return func(o *options) {
		if fn != nil {
			o.localAddress = fn
		}
	}
}

func WithInstanceID(id string) Option {
	return func(o *options) {
		o.instanceID = id
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// Runtime wires the probe loop to its aggregator, dispatcher, health checker,
// shutdown coordinator and optional status server.
type Runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	console io.Writer
	meta    report.Meta
	gateway string

	store       *metrics.Store
	agg         *stats.Aggregator
	dispatcher  *notify.Dispatcher
	checker     *health.Checker
	loop        *scheduler.Loop
	coordinator *shutdown.Coordinator
	server      *server.Server
	loopCtx     context.Context
}

// New builds a Runtime from a validated config. ctx bounds gateway detection.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Runtime, error) {
	o := options{
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		console:      io.Discard,
		now:          time.Now,
		localAddress: netinfo.LocalAddress,
		httpClient:   &http.Client{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.resolver == nil {
		o.resolver = netinfo.NewResolver()
	}
	if o.metricsStore == nil {
		o.metricsStore = metrics.NewStore()
	}

	mon := cfg.Monitor
	prober := o.prober
	if prober == nil {
		p, err := probe.New(mon.Method, probe.WithTimeout(mon.ProbeTimeout), probe.WithPrivileged(mon.Privileged))
		if err != nil {
			return nil, fmt.Errorf("init prober: %w", err)
		}
		prober = p
	}

	gateway := mon.Gateway
	if gateway == "" {
		gateway = o.resolver.DefaultGateway(ctx)
	}
	loopGateway := gateway
	if loopGateway == netinfo.Unknown {
		loopGateway = ""
	}

	hostname, _ := os.Hostname()
	meta := report.Meta{
		Target:      mon.Target,
		TargetLabel: mon.TargetLabel,
		Source:      o.localAddress(mon.Target),
		Interval:    mon.Interval,
		InstanceID:  o.instanceID,
		Hostname:    hostname,
	}

	var sender notify.Sender
	if o.senderSet {
		sender = o.sender
	} else {
		client, err := notify.NewClient(notify.Config{
			WebhookURL:    cfg.DiscordWebhookURL,
			Username:      cfg.Notify.Username,
			Timeout:       cfg.Notify.Timeout,
			RatePerMinute: cfg.Notify.RatePerMinute,
		}, notify.Dependencies{HTTPClient: o.httpClient, UserAgent: userAgent})
		if err != nil {
			return nil, fmt.Errorf("init webhook client: %w", err)
		}
		sender = client
	}

	store := o.metricsStore
	dispatcher := notify.NewDispatcher(sender, meta,
		notify.WithConsole(o.console),
		notify.WithLogger(o.logger),
		notify.WithMetrics(store),
	)
	agg := stats.NewAggregator("", stats.WithNow(o.now))
	checker := health.NewChecker(store, mon.Interval)
	loop := scheduler.New(mon.Target, prober, agg, dispatcher,
		scheduler.WithNow(o.now),
		scheduler.WithInterval(mon.Interval),
		scheduler.WithProbeTimeout(mon.ProbeTimeout),
		scheduler.WithGateway(loopGateway),
		scheduler.WithMaxConsecutiveFaults(mon.MaxConsecutiveFaults),
		scheduler.WithLogger(o.logger),
		scheduler.WithMetrics(store),
		scheduler.WithObserver(checker),
		scheduler.WithConsole(o.console),
	)

	loopCtx, cancelLoop := context.WithCancel(context.Background())
	coordinator := shutdown.NewCoordinator(cancelLoop, loop.Done(), shutdown.WithLogger(o.logger))

	rt := &Runtime{
		cfg:         cfg,
		logger:      o.logger,
		console:     o.console,
		meta:        meta,
		gateway:     gateway,
		store:       store,
		agg:         agg,
		dispatcher:  dispatcher,
		checker:     checker,
		loop:        loop,
		coordinator: coordinator,
		loopCtx:     loopCtx,
	}
	if cfg.Metrics.Listen != "" {
		rt.server = server.New(server.Config{Addr: cfg.Metrics.Listen}, server.Dependencies{
			Logger:  o.logger,
			Metrics: store,
			Health:  checker,
			Reports: agg,
			Now:     o.now,
		})
	}
	return rt, nil
}

// PrintBanner writes the startup notice with the detected addresses.
func (r *Runtime) PrintBanner() {
	target := r.meta.Target
	if r.meta.TargetLabel != "" {
		target = fmt.Sprintf("%s (%s)", r.meta.TargetLabel, r.meta.Target)
	}
	fmt.Fprintf(r.console, "🌐 Ping Monitor\n%s\n", strings.Repeat("=", 30))
	fmt.Fprintf(r.console, "Target: %s\n", target)
	fmt.Fprintf(r.console, "Default gateway: %s\n", r.gateway)
	fmt.Fprintf(r.console, "Source address: %s\n", r.meta.Source)
	fmt.Fprintf(r.console, "Interval: %s\n", r.meta.Interval)
	fmt.Fprintln(r.console, "Press Ctrl+C to stop")
}

// Start runs the loop, the shutdown coordinator and the status server. The
// returned wait function blocks until the final report has been dispatched
// and returns scheduler.ErrPersistentFault or a server error, if any.
// Start must be called at most once.
func (r *Runtime) Start(ctx context.Context, signals <-chan os.Signal) func() error {
	var grp errgroup.Group

	grp.Go(func() error {
		return r.loop.Run(r.loopCtx)
	})

	grp.Go(func() error {
		return r.coordinator.Run(ctx, signals)
	})

	if r.server != nil {
		srvCtx, stopServer := context.WithCancel(context.Background())
		grp.Go(func() error {
			<-r.loop.Done()
			stopServer()
			return nil
		})
		grp.Go(func() error {
			if err := r.server.Run(srvCtx); err != nil {
				r.logger.Error("status server failed, stopping monitor", "error", err)
				r.coordinator.Request()
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
	}

	r.logger.Info("dailyping started", "target", r.meta.Target, "gateway", r.gateway, "source", r.meta.Source)
	return grp.Wait
}

// Stop requests termination as if a signal had arrived.
func (r *Runtime) Stop() {
	r.coordinator.Request()
}

func (r *Runtime) Aggregator() *stats.Aggregator {
	return r.agg
}

func (r *Runtime) Checker() *health.Checker {
	return r.checker
}

func (r *Runtime) Loop() *scheduler.Loop {
	return r.loop
}

func (r *Runtime) MetricsStore() *metrics.Store {
	return r.store
}

func (r *Runtime) Meta() report.Meta {
	return r.meta
}

func (r *Runtime) Gateway() string {
	return r.gateway
}
