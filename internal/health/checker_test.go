package health

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pingsantohq/dailyping/internal/metrics"
	"github.com/pingsantohq/dailyping/internal/probe"
	"github.com/pingsantohq/dailyping/internal/scheduler"
)

func TestCheckerReadyConditions(t *testing.T) {
	store := metrics.NewStore()
	checker := NewChecker(store, time.Second)

	now := time.Unix(1000, 0).UTC()
	ready, reasons := checker.Ready(now)
	if ready {
		t.Fatalf("expected not ready before the loop starts")
	}
	if len(reasons) != 2 || reasons[0] != "probe loop idle" || reasons[1] != "no probe recorded yet" {
		t.Fatalf("unexpected reasons: %v", reasons)
	}
	if store.Ready() {
		t.Fatalf("expected readiness gauge to be false")
	}

	checker.ObserveState(scheduler.Running)
	checker.ObserveProbe(now, probe.Reachable(10*time.Millisecond))
	ready, reasons = checker.Ready(now.Add(2 * time.Second))
	if !ready || len(reasons) != 0 {
		t.Fatalf("expected ready after a recent probe, got %v", reasons)
	}
	if !store.Ready() {
		t.Fatalf("expected readiness gauge true after recovery")
	}

	ready, reasons = checker.Ready(now.Add(4 * time.Second))
	if ready {
		t.Fatalf("expected stale probe to flip readiness")
	}
	if len(reasons) != 1 || reasons[0] != "last probe is stale (4s)" {
		t.Fatalf("unexpected reasons: %v", reasons)
	}

	count, err := testutil.GatherAndCount(store.Registry(), "dailyping_ready_category_transitions_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one category series after the stale transition, got %d", count)
	}
}

func TestCheckerUnreachableTargetIsStillReady(t *testing.T) {
	checker := NewChecker(nil, time.Second)
	now := time.Unix(2000, 0)
	checker.ObserveState(scheduler.Running)
	checker.ObserveProbe(now, probe.Unreachable("timeout"))

	st := checker.Status(now)
	if !st.Ready {
		t.Fatalf("an unreachable target is data, not a readiness failure: %+v", st)
	}
	if st.LastReachable {
		t.Fatalf("expected last probe to be reported unreachable")
	}
	if st.State != "running" {
		t.Fatalf("unexpected state %q", st.State)
	}
}

func TestCheckerDrainingNotReady(t *testing.T) {
	checker := NewChecker(nil, time.Second)
	now := time.Unix(3000, 0)
	checker.ObserveState(scheduler.Running)
	checker.ObserveProbe(now, probe.Reachable(time.Millisecond))
	checker.ObserveState(scheduler.Draining)

	ready, reasons := checker.Ready(now)
	if ready || len(reasons) != 1 || reasons[0] != "probe loop draining" {
		t.Fatalf("unexpected readiness %v %v", ready, reasons)
	}
}
