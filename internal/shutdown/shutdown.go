package shutdown

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// State tracks the process-wide monitor state. It moves from running to
// stopping at most once.
type State struct {
	stopping atomic.Bool
}

// Stop flips the state to stopping and reports whether this call did it.
func (s *State) Stop() bool {
	return s.stopping.CompareAndSwap(false, true)
}

func (s *State) Stopping() bool {
	return s.stopping.Load()
}

// Coordinator turns termination requests into a single cancellation of the
// loop context and waits for the loop to finish draining.
type Coordinator struct {
	state  *State
	cancel context.CancelFunc
	done   <-chan struct{}
	logger *slog.Logger

	requestOnce sync.Once
	requested   chan struct{}
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithState(state *State) Option {
	return func(c *Coordinator) {
		if state != nil {
			c.state = state
		}
	}
}

// NewCoordinator wires a coordinator to the loop's cancel function and its
// done channel.
func NewCoordinator(cancel context.CancelFunc, done <-chan struct{}, opts ...Option) *Coordinator {
	c := &Coordinator{
		state:     &State{},
		cancel:    cancel,
		done:      done,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		requested: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) State() *State {
	return c.state
}

// Request asks for termination without a signal. Safe to call repeatedly.
func (c *Coordinator) Request() {
	c.requestOnce.Do(func() { close(c.requested) })
}

// Run blocks until the loop is done. The first signal, Request call or
// cancellation of ctx stops the loop; later signals are logged and ignored.
func (c *Coordinator) Run(ctx context.Context, signals <-chan os.Signal) error {
	select {
	case sig := <-signals:
		c.stop("signal", sig.String())
	case <-c.requested:
		c.stop("request", "")
	case <-ctx.Done():
		c.stop("context", ctx.Err().Error())
	case <-c.done:
		c.state.Stop()
		return nil
	}

	for {
		select {
		case <-c.done:
			c.logger.Info("monitor stopped")
			return nil
		case sig := <-signals:
			c.logger.Info("already stopping, waiting for final report", "signal", sig.String())
		}
	}
}

func (c *Coordinator) stop(source, detail string) {
	if !c.state.Stop() {
		return
	}
	c.logger.Info("termination requested, finishing current probe", "source", source, "detail", detail)
	if c.cancel != nil {
		c.cancel()
	}
}
