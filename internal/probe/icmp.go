package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ping/ping"
)

type pinger interface {
	Run() error
	Stop()
	Statistics() *ping.Statistics
}

// ICMPProber sends a single ICMP echo request per probe.
type ICMPProber struct {
	timeout   time.Duration
	now       func() time.Time
	newPinger func(address string) (pinger, error)
}

func NewICMPProber(opts ...Option) *ICMPProber {
	o := buildOptions(opts)
	return &ICMPProber{
		timeout:   o.timeout,
		now:       o.now,
		newPinger: goPinger(o.timeout, o.privileged),
	}
}

func goPinger(timeout time.Duration, privileged bool) func(string) (pinger, error) {
	return func(address string) (pinger, error) {
		p, err := ping.NewPinger(address)
		if err != nil {
			return nil, err
		}
		p.Count = 1
		p.Timeout = timeout
		p.SetPrivileged(privileged)
		return p, nil
	}
}

func (p *ICMPProber) Probe(ctx context.Context, address string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	pg, err := p.newPinger(address)
	if err != nil {
		return Unreachable(fmt.Sprintf("resolve %s: %v", address, err))
	}

	start := p.now()
	done := make(chan error, 1)
	go func() {
		done <- pg.Run()
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		pg.Stop()
		<-done
		return Unreachable(fmt.Sprintf("ping %s: %v", address, ctx.Err()))
	}
	elapsed := p.now().Sub(start)
	if err != nil {
		return Unreachable(fmt.Sprintf("ping %s: %v", address, err))
	}

	stats := pg.Statistics()
	if stats == nil || stats.PacketsRecv == 0 {
		return Unreachable(fmt.Sprintf("no reply from %s", address))
	}
	if stats.AvgRtt > 0 {
		return Reachable(stats.AvgRtt)
	}
	return Reachable(elapsed)
}
