package consumer

import (
	"sync"
	"time"
)

// Metrics processing counters for the stream consumer.
type Metrics struct {
	mu sync.RWMutex

	processed int64
	succeeded int64
	rejected  int64 // invalid samples, acknowledged and dropped
	failed    int64
	// pending entries read again after a store failure
	redelivered int64

	errorsParse int64
	errorsStore int64

	totalProcessingTime time.Duration
	lastProcessTime     time.Time
	startTime           time.Time
}

// MetricsSnapshot point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Processed           int64         `json:"processed"`
	Succeeded           int64         `json:"succeeded"`
	Rejected            int64         `json:"rejected"`
	Failed              int64         `json:"failed"`
	Redelivered         int64         `json:"redelivered"`
	ErrorsParse         int64         `json:"errors_parse"`
	ErrorsStore         int64         `json:"errors_store"`
	TotalProcessingTime time.Duration `json:"total_processing_time"`
	LastProcessTime     time.Time     `json:"last_process_time"`
	StartTime           time.Time     `json:"start_time"`
}

func newMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		Processed:           m.processed,
		Succeeded:           m.succeeded,
		Rejected:            m.rejected,
		Failed:              m.failed,
		Redelivered:         m.redelivered,
		ErrorsParse:         m.errorsParse,
		ErrorsStore:         m.errorsStore,
		TotalProcessingTime: m.totalProcessingTime,
		LastProcessTime:     m.lastProcessTime,
		StartTime:           m.startTime,
	}
}

// AverageProcessingTime mean time per successful message.
func (s MetricsSnapshot) AverageProcessingTime() time.Duration {
	if s.Succeeded == 0 {
		return 0
	}
	return s.TotalProcessingTime / time.Duration(s.Succeeded)
}

func (m *Metrics) incProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed++
}

func (m *Metrics) incSucceeded(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.succeeded++
	m.totalProcessingTime += d
	m.lastProcessTime = time.Now()
}

func (m *Metrics) incRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected++
}

func (m *Metrics) incFailed(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
	switch errorType {
	case "parse":
		m.errorsParse++
	case "store":
		m.errorsStore++
	}
}

func (m *Metrics) addRedelivered(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redelivered += int64(n)
}
