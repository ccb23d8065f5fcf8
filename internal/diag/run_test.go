package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pingsantohq/dailyping/internal/config"
	"github.com/pingsantohq/dailyping/internal/probe"
)

const metricsBody = `# HELP dailyping_probes_total Probes by outcome.
# TYPE dailyping_probes_total counter
dailyping_probes_total{outcome="reachable"} 95
dailyping_probes_total{outcome="unreachable"} 5
dailyping_day_samples 100
dailyping_ready 1
`

func fakeProber(cfg config.Config) (probe.Prober, error) {
	return probe.Func(func(ctx context.Context, address string) probe.Outcome {
		if address == "192.168.1.1" {
			return probe.Unreachable("timeout")
		}
		return probe.Reachable(12500 * time.Microsecond)
	}), nil
}

func TestRunWritesDiagnostics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "discord_webhook_url: https://discord.com/api/webhooks/1/very-secret\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	metricsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(metricsBody))
	}))
	defer metricsSrv.Close()

	var out bytes.Buffer
	deps := Dependencies{
		Now:        func() time.Time { return time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC) },
		Out:        &out,
		HTTPClient: metricsSrv.Client(),
		RunCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("default via 192.168.1.1 dev eth0\n"), nil
		},
		LocalAddress: func(string) string { return "192.168.1.20" },
		NewProber:    fakeProber,
	}

	err := Run(context.Background(), Options{ConfigPath: path, MetricsURL: metricsSrv.URL + "/metrics"}, deps)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if strings.Contains(out.String(), "very-secret") {
		t.Fatalf("webhook token leaked into diagnostics")
	}

	var info Info
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.GeneratedAt != "2025-03-14T08:00:00Z" {
		t.Fatalf("unexpected timestamp %s", info.GeneratedAt)
	}
	if !info.ConfigValid || info.Config == nil || info.Config.Monitor.Target != "8.8.8.8" {
		t.Fatalf("expected valid config with defaults, got %+v", info)
	}
	if info.Gateway != "192.168.1.1" || info.LocalAddress != "192.168.1.20" {
		t.Fatalf("unexpected network info %s %s", info.Gateway, info.LocalAddress)
	}
	if len(info.Probes) != 2 {
		t.Fatalf("expected target and gateway probes, got %+v", info.Probes)
	}
	if info.Probes[0].Role != "target" || !info.Probes[0].Reachable || info.Probes[0].LatencyMillis != 12.5 {
		t.Fatalf("unexpected target probe %+v", info.Probes[0])
	}
	if info.Probes[1].Role != "gateway" || info.Probes[1].Reachable || info.Probes[1].Reason != "timeout" {
		t.Fatalf("unexpected gateway probe %+v", info.Probes[1])
	}
	if info.Metrics == nil || info.Metrics.ProbesReachable == nil || *info.Metrics.ProbesReachable != 95 {
		t.Fatalf("unexpected metrics summary %+v", info.Metrics)
	}
	if info.Metrics.ReportsDelivered != nil {
		t.Fatalf("expected absent counters to stay nil")
	}
	if len(info.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", info.Warnings)
	}
}

func TestRunReportsProblemsAsWarnings(t *testing.T) {
	var out bytes.Buffer
	deps := Dependencies{
		Out: &out,
		RunCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, errors.New("not found")
		},
		LocalAddress: func(string) string { return "unknown" },
		NewProber: func(config.Config) (probe.Prober, error) {
			return nil, errors.New("raw sockets unavailable")
		},
	}

	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if err := Run(context.Background(), Options{ConfigPath: missing}, deps); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var info Info
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.ConfigValid || info.Config != nil {
		t.Fatalf("expected missing config to be reported")
	}
	if info.Gateway != "unknown" {
		t.Fatalf("expected unknown gateway, got %q", info.Gateway)
	}
	joined := strings.Join(info.Warnings, "\n")
	for _, want := range []string{"config unavailable", "prober unavailable"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected warning %q in %v", want, info.Warnings)
		}
	}
}

func TestSummarizeMetrics(t *testing.T) {
	summary, warnings := summarizeMetrics([]byte(metricsBody+"dailyping_ready notanumber\n"), "http://x/metrics")
	if len(warnings) != 1 {
		t.Fatalf("expected one parse warning, got %v", warnings)
	}
	if summary.DaySamples == nil || *summary.DaySamples != 100 {
		t.Fatalf("unexpected day samples %+v", summary.DaySamples)
	}
	if summary.ProbesFailed == nil || *summary.ProbesFailed != 5 {
		t.Fatalf("unexpected failed probes %+v", summary.ProbesFailed)
	}
}
