package monitoring

import (
	"sync"
	"time"

	"github.com/tr1v3r/pkg/log"
)

// Metrics tracks player session and IPC counters
type Metrics struct {
	mu sync.RWMutex

	// process metrics
	SessionsTotal      int64
	SpawnFailuresTotal int64
	SocketTimeoutTotal int64

	// IPC metrics
	RequestsSentTotal         int64
	ResponsesMatchedTotal     int64
	NotificationsDroppedTotal int64
	UnmatchedResponsesTotal   int64
	RequestsDiscardedTotal    int64

	startTime time.Time
}

// Snapshot is a point in time copy of the counters.
type Snapshot struct {
	SessionsTotal             int64
	SpawnFailuresTotal        int64
	SocketTimeoutTotal        int64
	RequestsSentTotal         int64
	ResponsesMatchedTotal     int64
	NotificationsDroppedTotal int64
	UnmatchedResponsesTotal   int64
	RequestsDiscardedTotal    int64
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{startTime: time.Now()}
	})
	return globalMetrics
}

func (m *Metrics) add(counter *int64, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	*counter += n
}

// RecordSession records a player process that reached a connected socket
func (m *Metrics) RecordSession() { m.add(&m.SessionsTotal, 1) }

// RecordSpawnFailure records a player process that could not be started
func (m *Metrics) RecordSpawnFailure() { m.add(&m.SpawnFailuresTotal, 1) }

// RecordSocketTimeout records a start whose socket never became ready
func (m *Metrics) RecordSocketTimeout() { m.add(&m.SocketTimeoutTotal, 1) }

// RecordRequestSent records a request written to the channel
func (m *Metrics) RecordRequestSent() { m.add(&m.RequestsSentTotal, 1) }

// RecordResponseMatched records a response delivered to its request
func (m *Metrics) RecordResponseMatched() { m.add(&m.ResponsesMatchedTotal, 1) }

// RecordNotificationDropped records an event message that was discarded
func (m *Metrics) RecordNotificationDropped() { m.add(&m.NotificationsDroppedTotal, 1) }

// RecordUnmatchedResponse records a response that arrived with nothing pending
func (m *Metrics) RecordUnmatchedResponse() { m.add(&m.UnmatchedResponsesTotal, 1) }

// RecordRequestsDiscarded records pending requests dropped by a teardown
func (m *Metrics) RecordRequestsDiscarded(n int) { m.add(&m.RequestsDiscardedTotal, int64(n)) }

// Snapshot returns a copy of the current counters
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Snapshot{
		SessionsTotal:             m.SessionsTotal,
		SpawnFailuresTotal:        m.SpawnFailuresTotal,
		SocketTimeoutTotal:        m.SocketTimeoutTotal,
		RequestsSentTotal:         m.RequestsSentTotal,
		ResponsesMatchedTotal:     m.ResponsesMatchedTotal,
		NotificationsDroppedTotal: m.NotificationsDroppedTotal,
		UnmatchedResponsesTotal:   m.UnmatchedResponsesTotal,
		RequestsDiscardedTotal:    m.RequestsDiscardedTotal,
	}
}

// GetUptime returns the application uptime
func (m *Metrics) GetUptime() time.Duration {
	return time.Since(m.startTime)
}

// LogMetrics logs current metrics
func (m *Metrics) LogMetrics() {
	s := m.Snapshot()
	log.Info("Application metrics uptime=%s sessions_total=%d spawn_failures_total=%d socket_timeouts_total=%d requests_sent_total=%d responses_matched_total=%d notifications_dropped_total=%d unmatched_responses_total=%d requests_discarded_total=%d",
		m.GetUptime().String(),
		s.SessionsTotal,
		s.SpawnFailuresTotal,
		s.SocketTimeoutTotal,
		s.RequestsSentTotal,
		s.ResponsesMatchedTotal,
		s.NotificationsDroppedTotal,
		s.UnmatchedResponsesTotal,
		s.RequestsDiscardedTotal)
}
