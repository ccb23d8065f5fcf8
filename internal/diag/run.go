package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pingsantohq/dailyping/internal/config"
	"github.com/pingsantohq/dailyping/internal/netinfo"
	"github.com/pingsantohq/dailyping/internal/probe"
)

const defaultMetricsTimeout = 3 * time.Second

// Options selects what Run inspects.
type Options struct {
	ConfigPath     string
	MetricsURL     string
	MetricsTimeout time.Duration
	SkipProbes     bool
}

// Dependencies provides optional overrides for testing.
type Dependencies struct {
	Now          func() time.Time
	Out          io.Writer
	HTTPClient   *http.Client
	RunCommand   netinfo.Runner
	LocalAddress func(target string) string
	// NewProber overrides the prober built from the loaded config.
	NewProber func(cfg config.Config) (probe.Prober, error)
}

// Info is the JSON document written by Run.
type Info struct {
	GeneratedAt  string          `json:"generated_at"`
	GoVersion    string          `json:"go_version"`
	Platform     string          `json:"platform"`
	Hostname     string          `json:"hostname,omitempty"`
	ConfigPath   string          `json:"config_path"`
	Config       *config.Config  `json:"config,omitempty"`
	ConfigValid  bool            `json:"config_valid"`
	Gateway      string          `json:"gateway"`
	LocalAddress string          `json:"local_address"`
	Probes       []ProbeResult   `json:"probes,omitempty"`
	Metrics      *MetricsSummary `json:"metrics,omitempty"`
	Warnings     []string        `json:"warnings,omitempty"`
}

type ProbeResult struct {
	Role          string  `json:"role"`
	Address       string  `json:"address"`
	Reachable     bool    `json:"reachable"`
	LatencyMillis float64 `json:"latency_ms,omitempty"`
	Reason        string  `json:"reason,omitempty"`
}

// MetricsSummary holds counters scraped from a running instance.
type MetricsSummary struct {
	URL              string   `json:"url"`
	ProbesReachable  *float64 `json:"probes_reachable,omitempty"`
	ProbesFailed     *float64 `json:"probes_unreachable,omitempty"`
	DaySamples       *float64 `json:"day_samples,omitempty"`
	ReportsDelivered *float64 `json:"reports_delivered,omitempty"`
	ReportsFallback  *float64 `json:"reports_console_fallback,omitempty"`
	Ready            *float64 `json:"ready,omitempty"`
}

// Run gathers host and configuration diagnostics and writes them as JSON.
// Problems are reported as warnings; only an unwritable output is an error.
func Run(ctx context.Context, opts Options, deps Dependencies) error {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{}
	}
	if deps.LocalAddress == nil {
		deps.LocalAddress = netinfo.LocalAddress
	}
	if deps.NewProber == nil {
		deps.NewProber = func(cfg config.Config) (probe.Prober, error) {
			return probe.New(cfg.Monitor.Method,
				probe.WithTimeout(cfg.Monitor.ProbeTimeout),
				probe.WithPrivileged(cfg.Monitor.Privileged))
		}
	}
	if opts.MetricsTimeout <= 0 {
		opts.MetricsTimeout = defaultMetricsTimeout
	}

	info := Info{
		GeneratedAt: deps.Now().UTC().Format(time.RFC3339),
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		ConfigPath:  config.ResolvePath(opts.ConfigPath),
		Warnings:    make([]string, 0, 4),
	}
	if host, err := os.Hostname(); err == nil {
		info.Hostname = host
	}

	cfg, err := config.Load(ctx, info.ConfigPath)
	if err != nil {
		info.Warnings = append(info.Warnings, fmt.Sprintf("config unavailable: %v", err))
		cfg = config.Config{}
		cfg.ApplyDefaults()
	} else {
		redacted := cfg.Redacted()
		info.Config = &redacted
		if err := cfg.Validate(); err != nil {
			info.Warnings = append(info.Warnings, fmt.Sprintf("config invalid: %v", err))
		} else {
			info.ConfigValid = true
		}
	}

	info.Gateway = cfg.Monitor.Gateway
	if info.Gateway == "" {
		var resolverOpts []netinfo.Option
		if deps.RunCommand != nil {
			resolverOpts = append(resolverOpts, netinfo.WithRunner(deps.RunCommand))
		}
		info.Gateway = netinfo.NewResolver(resolverOpts...).DefaultGateway(ctx)
	}
	info.LocalAddress = deps.LocalAddress(cfg.Monitor.Target)

	if !opts.SkipProbes {
		info.Probes, info.Warnings = runProbes(ctx, cfg, info.Gateway, deps, info.Warnings)
	}

	if opts.MetricsURL != "" {
		scrapeCtx, cancel := context.WithTimeout(ctx, opts.MetricsTimeout)
		data, err := scrapeMetrics(scrapeCtx, deps.HTTPClient, opts.MetricsURL)
		cancel()
		if err != nil {
			info.Warnings = append(info.Warnings, fmt.Sprintf("metrics scrape failed: %v", err))
		} else {
			summary, warnings := summarizeMetrics(data, opts.MetricsURL)
			info.Metrics = summary
			info.Warnings = append(info.Warnings, warnings...)
		}
	}

	enc := json.NewEncoder(deps.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		return fmt.Errorf("write diagnostics: %w", err)
	}
	return nil
}

func runProbes(ctx context.Context, cfg config.Config, gateway string, deps Dependencies, warnings []string) ([]ProbeResult, []string) {
	prober, err := deps.NewProber(cfg)
	if err != nil {
		return nil, append(warnings, fmt.Sprintf("prober unavailable: %v", err))
	}

	results := []ProbeResult{probeOnce(ctx, prober, "target", cfg.Monitor.Target)}
	if gateway != "" && gateway != netinfo.Unknown {
		results = append(results, probeOnce(ctx, prober, "gateway", gateway))
	}
	return results, warnings
}

func probeOnce(ctx context.Context, prober probe.Prober, role, addr string) ProbeResult {
	out := prober.Probe(ctx, addr)
	res := ProbeResult{Role: role, Address: addr, Reachable: out.Reachable, Reason: out.Reason}
	if out.Reachable {
		res.LatencyMillis = out.LatencyMillis()
	}
	return res
}

func scrapeMetrics(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/plain")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func summarizeMetrics(data []byte, url string) (*MetricsSummary, []string) {
	summary := &MetricsSummary{URL: url}
	targets := map[string]**float64{
		`dailyping_probes_total{outcome="reachable"}`:        &summary.ProbesReachable,
		`dailyping_probes_total{outcome="unreachable"}`:      &summary.ProbesFailed,
		`dailyping_day_samples`:                              &summary.DaySamples,
		`dailyping_reports_total{result="delivered"}`:        &summary.ReportsDelivered,
		`dailyping_reports_total{result="console_fallback"}`: &summary.ReportsFallback,
		`dailyping_ready`:                                    &summary.Ready,
	}

	var warnings []string
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		dst, ok := targets[fields[0]]
		if !ok {
			continue
		}
		val, err := parseMetricValue(fields)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("parse %s: %v", fields[0], err))
			continue
		}
		*dst = &val
	}
	return summary, warnings
}

func parseMetricValue(fields []string) (float64, error) {
	if len(fields) < 2 {
		return 0, fmt.Errorf("invalid metric line %q", strings.Join(fields, " "))
	}
	return strconv.ParseFloat(fields[1], 64)
}
