package probe

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"
)

// CommandProber runs the platform ping binary once per probe and parses the
// reported round-trip time from its output.
type CommandProber struct {
	timeout time.Duration
	goos    string
	run     RunCommandFunc
	now     func() time.Time
}

func NewCommandProber(opts ...Option) *CommandProber {
	o := buildOptions(opts)
	return &CommandProber{
		timeout: o.timeout,
		goos:    o.goos,
		run:     o.runCommand,
		now:     o.now,
	}
}

func (p *CommandProber) Probe(ctx context.Context, address string) Outcome {
	// The binary enforces the reply timeout itself; the context only guards
	// against a hung process.
	ctx, cancel := context.WithTimeout(ctx, p.timeout+2*time.Second)
	defer cancel()

	name, args := pingCommand(p.goos, address, p.timeout)
	start := p.now()
	out, err := p.run(ctx, name, args...)
	elapsed := p.now().Sub(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Unreachable(fmt.Sprintf("%s %s: %v", name, address, ctxErr))
		}
		return Unreachable(fmt.Sprintf("%s %s: %v", name, address, err))
	}
	if rtt, ok := ParseRTT(string(out)); ok {
		return Reachable(rtt)
	}
	return Reachable(elapsed)
}

func pingCommand(goos, address string, timeout time.Duration) (string, []string) {
	switch goos {
	case "windows":
		return "ping", []string{"-n", "1", "-w", strconv.FormatInt(timeout.Milliseconds(), 10), address}
	case "darwin":
		return "ping", []string{"-c", "1", "-W", strconv.FormatInt(timeout.Milliseconds(), 10), address}
	default:
		secs := int(math.Ceil(timeout.Seconds()))
		if secs < 1 {
			secs = 1
		}
		return "ping", []string{"-c", "1", "-W", strconv.Itoa(secs), address}
	}
}
