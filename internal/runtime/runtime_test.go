package runtime

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/pingsantohq/dailyping/internal/config"
	"github.com/pingsantohq/dailyping/internal/netinfo"
	"github.com/pingsantohq/dailyping/internal/probe"
	"github.com/pingsantohq/dailyping/internal/scheduler"
	"github.com/pingsantohq/dailyping/pkg/types"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type stubSender struct {
	mu   sync.Mutex
	msgs []types.WebhookMessage
}

func (s *stubSender) Send(ctx context.Context, msg types.WebhookMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func testConfig() config.Config {
	cfg := config.Config{DiscordWebhookURL: "https://discord.com/api/webhooks/1/abc"}
	cfg.ApplyDefaults()
	cfg.Monitor.Interval = 5 * time.Millisecond
	cfg.Monitor.Gateway = "192.168.1.1"
	return cfg
}

func reachable() probe.Prober {
	return probe.Func(func(ctx context.Context, address string) probe.Outcome {
		return probe.Reachable(10 * time.Millisecond)
	})
}

func TestRuntimeStopDispatchesFinalReport(t *testing.T) {
	sender := &stubSender{}
	console := &syncBuffer{}
	rt, err := New(context.Background(), testConfig(),
		WithProber(reachable()),
		WithSender(sender),
		WithConsole(console),
		WithLocalAddress(func(string) string { return "192.168.1.20" }),
		WithInstanceID("run-1"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	wait := rt.Start(context.Background(), nil)

	deadline := time.Now().Add(2 * time.Second)
	for rt.Aggregator().Len() < 3 {
		if time.Now().After(deadline) {
			rt.Stop()
			wait()
			t.Fatalf("timeout waiting for probes")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if ready, reasons := rt.Checker().Ready(time.Now()); !ready {
		t.Fatalf("expected ready while probing, got %v", reasons)
	}

	rt.Stop()
	if err := wait(); err != nil {
		t.Fatalf("wait returned error: %v", err)
	}

	if sender.count() != 1 {
		t.Fatalf("expected one final report, got %d", sender.count())
	}
	footer := sender.msgs[0].Embeds[0].Footer
	if footer == nil || !strings.Contains(footer.Text, "run-1") {
		t.Fatalf("expected instance id in footer, got %+v", footer)
	}
	if rt.Loop().State() != scheduler.Terminated {
		t.Fatalf("expected terminated loop, got %s", rt.Loop().State())
	}
	if !strings.Contains(console.String(), "8.8.8.8 ping: 10.0ms") {
		t.Fatalf("expected probe lines on console, got %q", console.String())
	}
}

func TestRuntimeSignalStopsOnce(t *testing.T) {
	sender := &stubSender{}
	rt, err := New(context.Background(), testConfig(), WithProber(reachable()), WithSender(sender))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	signals := make(chan os.Signal, 2)
	wait := rt.Start(context.Background(), signals)
	time.Sleep(20 * time.Millisecond)
	signals <- syscall.SIGINT
	signals <- syscall.SIGTERM

	if err := wait(); err != nil {
		t.Fatalf("wait returned error: %v", err)
	}
	if sender.count() != 1 {
		t.Fatalf("expected exactly one report for repeated signals, got %d", sender.count())
	}
}

func TestRuntimePersistentFault(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.MaxConsecutiveFaults = 2
	broken := probe.Func(func(ctx context.Context, address string) probe.Outcome {
		panic("socket closed")
	})
	rt, err := New(context.Background(), cfg, WithProber(broken), WithSender(nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = rt.Start(context.Background(), nil)()
	if !errors.Is(err, scheduler.ErrPersistentFault) {
		t.Fatalf("expected ErrPersistentFault, got %v", err)
	}
}

func TestRuntimeWebhookDelivery(t *testing.T) {
	var mu sync.Mutex
	posts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		posts++
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.DiscordWebhookURL = srv.URL
	rt, err := New(context.Background(), cfg, WithProber(reachable()), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	wait := rt.Start(context.Background(), nil)
	time.Sleep(20 * time.Millisecond)
	rt.Stop()
	if err := wait(); err != nil {
		t.Fatalf("wait returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if posts != 1 {
		t.Fatalf("expected one webhook post, got %d", posts)
	}
}

func TestRuntimeUnknownGateway(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.Gateway = ""
	resolver := netinfo.NewResolver(netinfo.WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("not available")
	}))
	var console bytes.Buffer
	rt, err := New(context.Background(), cfg, WithProber(reachable()), WithSender(nil),
		WithResolver(resolver), WithConsole(&console), WithLocalAddress(func(string) string { return netinfo.Unknown }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if rt.Gateway() != netinfo.Unknown {
		t.Fatalf("expected unknown gateway, got %q", rt.Gateway())
	}

	rt.PrintBanner()
	out := console.String()
	for _, want := range []string{"Target: Google (8.8.8.8)", "Default gateway: unknown", "Source address: unknown"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in banner %q", want, out)
		}
	}
}
