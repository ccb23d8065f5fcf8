package metrics

import "time"

// LoopRecorder receives observations from the probe loop.
type LoopRecorder interface {
	ObserveProbe(reachable bool, latency time.Duration)
	ObserveGatewayProbe(reachable bool)
	ObserveDaySize(n int)
	IncRollovers()
	IncLoopFaults()
}

type NoopLoopRecorder struct{}

func (NoopLoopRecorder) ObserveProbe(reachable bool, latency time.Duration) {}
func (NoopLoopRecorder) ObserveGatewayProbe(reachable bool)                 {}
func (NoopLoopRecorder) ObserveDaySize(n int)                               {}
func (NoopLoopRecorder) IncRollovers()                                      {}
func (NoopLoopRecorder) IncLoopFaults()                                     {}

// DispatchRecorder receives report delivery outcomes.
type DispatchRecorder interface {
	ObserveDispatch(delivered bool)
}

type NoopDispatchRecorder struct{}

func (NoopDispatchRecorder) ObserveDispatch(delivered bool) {}
