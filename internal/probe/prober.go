package probe

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const (
	DefaultTimeout = 3 * time.Second

	MethodICMP    = "icmp"
	MethodCommand = "command"
)

// Prober measures reachability and latency of a single address.
type Prober interface {
	Probe(ctx context.Context, address string) Outcome
}

// Func adapts a plain function to the Prober interface.
type Func func(ctx context.Context, address string) Outcome

func (f Func) Probe(ctx context.Context, address string) Outcome {
	return f(ctx, address)
}

// RunCommandFunc executes an external command and returns its standard output.
type RunCommandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

type options struct {
	timeout    time.Duration
	privileged bool
	goos       string
	runCommand RunCommandFunc
	now        func() time.Time
}

type Option func(*options)

func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithPrivileged switches the ICMP prober to raw sockets.
func WithPrivileged(privileged bool) Option {
	return func(o *options) {
		o.privileged = privileged
	}
}

func WithGOOS(goos string) Option {
	return func(o *options) {
		if goos != "" {
			o.goos = goos
		}
	}
}

func WithRunCommand(fn RunCommandFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.runCommand = fn
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

func buildOptions(opts []Option) options {
	o := options{
		timeout: DefaultTimeout,
		goos:    runtime.GOOS,
		runCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New returns the prober for the given method name.
func New(method string, opts ...Option) (Prober, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "", MethodICMP:
		return NewICMPProber(opts...), nil
	case MethodCommand:
		return NewCommandProber(opts...), nil
	default:
		return nil, fmt.Errorf("unknown probe method %q (allowed: %s, %s)", method, MethodICMP, MethodCommand)
	}
}
