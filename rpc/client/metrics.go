package client

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// clientMetrics records batch events in a VictoriaMetrics set. It implements
// batch.Metrics.
type clientMetrics struct {
	set *metrics.Set
}

func newClientMetrics(set *metrics.Set) *clientMetrics {
	return &clientMetrics{set: set}
}

func (m *clientMetrics) CommandSubmitted(node string) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`dbatch_commands_submitted_total{node=%q}`, node)).Inc()
}

func (m *clientMetrics) CommandFailed(node string, retryable bool) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`dbatch_commands_failed_total{node=%q,retryable="%t"}`, node, retryable)).Inc()
}

func (m *clientMetrics) RetrySplit(node string, fanout int) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`dbatch_retry_splits_total{node=%q}`, node)).Inc()
	m.set.GetOrCreateHistogram(`dbatch_retry_fanout`).Update(float64(fanout))
}

func (m *clientMetrics) CallCompleted(variant string, success bool, elapsed time.Duration) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`dbatch_calls_total{variant=%q,success="%t"}`, variant, success)).Inc()
	m.set.GetOrCreateHistogram(fmt.Sprintf(`dbatch_call_duration_seconds{variant=%q}`, variant)).Update(elapsed.Seconds())
}
