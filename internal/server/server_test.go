package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pingsantohq/dailyping/internal/health"
	"github.com/pingsantohq/dailyping/internal/metrics"
	"github.com/pingsantohq/dailyping/internal/probe"
	"github.com/pingsantohq/dailyping/internal/scheduler"
	"github.com/pingsantohq/dailyping/internal/stats"
	"github.com/pingsantohq/dailyping/pkg/types"
)

func newTestServer(t *testing.T) (*Server, *health.Checker, *stats.Aggregator, time.Time) {
	t.Helper()
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	store := metrics.NewStore()
	checker := health.NewChecker(store, time.Second)
	agg := stats.NewAggregator("2025-03-14", stats.WithNow(func() time.Time { return now }))

	srv := New(Config{}, Dependencies{
		Metrics: store,
		Health:  checker,
		Reports: agg,
		Now:     func() time.Time { return now },
	})
	return srv, checker, agg, now
}

func do(t *testing.T, srv *Server, method, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr.Result()
}

func TestHealthzAndReadyz(t *testing.T) {
	srv, checker, _, now := newTestServer(t)

	if resp := do(t, srv, http.MethodGet, "/healthz"); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}

	resp := do(t, srv, http.MethodGet, "/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected readyz to fail before the loop runs, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "probe loop idle") {
		t.Fatalf("unexpected readyz body %q", body)
	}

	checker.ObserveState(scheduler.Running)
	checker.ObserveProbe(now, probe.Reachable(5*time.Millisecond))
	if resp := do(t, srv, http.MethodGet, "/readyz"); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected readyz ok, got %d", resp.StatusCode)
	}

	resp = do(t, srv, http.MethodGet, "/status")
	var st health.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !st.Ready || st.State != "running" || !st.LastReachable {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestReportEndpoint(t *testing.T) {
	srv, _, agg, now := newTestServer(t)
	agg.Record(probe.Reachable(10*time.Millisecond), now)
	agg.Record(probe.Unreachable("timeout"), now.Add(time.Second))

	resp := do(t, srv, http.MethodGet, "/report")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var r types.DailyReport
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if r.Date != "2025-03-14" || r.TotalProbes != 2 || r.FailureCount != 1 {
		t.Fatalf("unexpected report %+v", r)
	}
	if agg.Len() != 2 {
		t.Fatalf("report endpoint must not reset the day")
	}

	if resp := do(t, srv, http.MethodPost, "/report"); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	srv.deps.Metrics.ObserveProbe(true, 10*time.Millisecond)

	resp := do(t, srv, http.MethodGet, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `dailyping_probes_total{outcome="reachable"} 1`) {
		t.Fatalf("expected probe counter in metrics output")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	srv := New(Config{Addr: addr}, Dependencies{})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
