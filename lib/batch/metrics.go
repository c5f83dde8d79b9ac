package batch

import "time"

// Metrics receives instrumentation events of batch calls. All methods are
// called from event loops and must not block.
type Metrics interface {
	// CommandSubmitted is called for every node request, including resends
	CommandSubmitted(node string)
	// CommandFailed is called when a node request fails
	CommandFailed(node string, retryable bool)
	// RetrySplit is called when the keys of a failed node are re-partitioned into fanout commands
	RetrySplit(node string, fanout int)
	// CallCompleted is called once per call with the terminal outcome
	CallCompleted(variant string, success bool, elapsed time.Duration)
}

// nopMetrics is a no-op implementation of Metrics.
type nopMetrics struct{}

func (nopMetrics) CommandSubmitted(string)                   {}
func (nopMetrics) CommandFailed(string, bool)                {}
func (nopMetrics) RetrySplit(string, int)                    {}
func (nopMetrics) CallCompleted(string, bool, time.Duration) {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }
