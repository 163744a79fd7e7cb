package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics is an in-process collector of adapter counters, exposed on the
// admin API. Counters are created lazily and updated atomically.
type Metrics struct {
	mu        sync.RWMutex
	counters  map[string]*int64
	startTime time.Time
}

// Counter names used across the adapter
const (
	MessagesProcessed      = "messages_processed"
	MessagesDropped        = "messages_dropped"
	TransportFailures      = "transport_failures"
	NotificationsPublished = "notifications_published"
	ReconciliationFailures = "reconciliation_failures"
)

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		counters:  make(map[string]*int64),
		startTime: time.Now(),
	}
}

// IncrementCounter increments a counter by 1
func (m *Metrics) IncrementCounter(name string) {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		// Check again to avoid race conditions
		if counter, exists = m.counters[name]; !exists {
			var c int64
			counter = &c
			m.counters[name] = counter
		}
		m.mu.Unlock()
	}

	atomic.AddInt64(counter, 1)
}

// Snapshot returns the current counter values plus process uptime
func (m *Metrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]interface{}, len(m.counters)+1)
	for name, counter := range m.counters {
		snapshot[name] = atomic.LoadInt64(counter)
	}
	snapshot["uptime_seconds"] = int64(time.Since(m.startTime).Seconds())
	return snapshot
}
