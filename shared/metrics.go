package shared

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ServiceMetrics tracks performance and success metrics for one service,
// broken down by operation
type ServiceMetrics struct {
	serviceName string
	mutex       sync.RWMutex
	operations  map[string]*operationStats
	startedAt   time.Time
}

type operationStats struct {
	total       int64
	failed      int64
	totalTime   time.Duration
	lastSuccess time.Time
	lastFailure time.Time
	perf        *PerformanceMetrics
}

// OperationSnapshot is a point-in-time copy of one operation's counters
type OperationSnapshot struct {
	Operation             string        `json:"operation"`
	TotalRequests         int64         `json:"total_requests"`
	SuccessfulRequests    int64         `json:"successful_requests"`
	FailedRequests        int64         `json:"failed_requests"`
	SuccessRate           float64       `json:"success_rate"`
	AverageProcessingTime time.Duration `json:"average_processing_time"`
	P95ProcessingTime     time.Duration `json:"p95_processing_time"`
	MaxProcessingTime     time.Duration `json:"max_processing_time"`
	LastSuccess           *time.Time    `json:"last_success,omitempty"`
	LastFailure           *time.Time    `json:"last_failure,omitempty"`
}

// MetricsSnapshot is the serializable view of ServiceMetrics
type MetricsSnapshot struct {
	ServiceName string              `json:"service_name"`
	Uptime      string              `json:"uptime"`
	Operations  []OperationSnapshot `json:"operations"`
}

// NewServiceMetrics creates a new metrics tracker for a service
func NewServiceMetrics(serviceName string) *ServiceMetrics {
	return &ServiceMetrics{
		serviceName: serviceName,
		operations:  make(map[string]*operationStats),
		startedAt:   time.Now(),
	}
}

// RecordRequest records an operation with its success status and processing time
func (m *ServiceMetrics) RecordRequest(operation string, success bool, processingTime time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stats, ok := m.operations[operation]
	if !ok {
		stats = &operationStats{perf: NewPerformanceMetrics()}
		m.operations[operation] = stats
	}

	stats.total++
	stats.totalTime += processingTime
	if success {
		stats.lastSuccess = time.Now()
	} else {
		stats.failed++
		stats.lastFailure = time.Now()
	}
	stats.perf.RecordProcessingTime(processingTime)
}

// Track times fn and records the outcome under operation
func (m *ServiceMetrics) Track(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.RecordRequest(operation, err == nil, time.Since(start))
	return err
}

// GetSnapshot returns a thread-safe snapshot of current metrics, sorted by operation name
func (m *ServiceMetrics) GetSnapshot() MetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snapshot := MetricsSnapshot{
		ServiceName: m.serviceName,
		Uptime:      time.Since(m.startedAt).Round(time.Second).String(),
		Operations:  make([]OperationSnapshot, 0, len(m.operations)),
	}

	for name, stats := range m.operations {
		perf := stats.perf.GetPerformanceSnapshot()
		op := OperationSnapshot{
			Operation:          name,
			TotalRequests:      stats.total,
			SuccessfulRequests: stats.total - stats.failed,
			FailedRequests:     stats.failed,
			P95ProcessingTime:  perf.P95ProcessingTime,
			MaxProcessingTime:  perf.MaxProcessingTime,
		}
		if stats.total > 0 {
			op.SuccessRate = float64(stats.total-stats.failed) / float64(stats.total) * 100.0
			op.AverageProcessingTime = time.Duration(int64(stats.totalTime) / stats.total)
		}
		if !stats.lastSuccess.IsZero() {
			t := stats.lastSuccess
			op.LastSuccess = &t
		}
		if !stats.lastFailure.IsZero() {
			t := stats.lastFailure
			op.LastFailure = &t
		}
		snapshot.Operations = append(snapshot.Operations, op)
	}

	sort.Slice(snapshot.Operations, func(i, j int) bool {
		return snapshot.Operations[i].Operation < snapshot.Operations[j].Operation
	})
	return snapshot
}

// LogSummary logs one line per operation
func (m *ServiceMetrics) LogSummary() {
	snapshot := m.GetSnapshot()
	for _, op := range snapshot.Operations {
		logrus.WithFields(logrus.Fields{
			"service_name":            snapshot.ServiceName,
			"operation":               op.Operation,
			"total_requests":          op.TotalRequests,
			"failed_requests":         op.FailedRequests,
			"success_rate":            op.SuccessRate,
			"average_processing_time": op.AverageProcessingTime,
			"p95_processing_time":     op.P95ProcessingTime,
		}).Info("Service metrics summary")
	}
}

// Reset resets all metrics to zero
func (m *ServiceMetrics) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.operations = make(map[string]*operationStats)
	logrus.WithField("service_name", m.serviceName).Info("Service metrics reset")
}

// PerformanceMetrics tracks detailed performance measurements
type PerformanceMetrics struct {
	MinProcessingTime time.Duration `json:"min_processing_time"`
	MaxProcessingTime time.Duration `json:"max_processing_time"`
	P95ProcessingTime time.Duration `json:"p95_processing_time"`
	P99ProcessingTime time.Duration `json:"p99_processing_time"`
	mutex             sync.RWMutex
	processingTimes   []time.Duration
}

// PerformanceSnapshot is a copy of PerformanceMetrics without the lock
type PerformanceSnapshot struct {
	MinProcessingTime time.Duration `json:"min_processing_time"`
	MaxProcessingTime time.Duration `json:"max_processing_time"`
	P95ProcessingTime time.Duration `json:"p95_processing_time"`
	P99ProcessingTime time.Duration `json:"p99_processing_time"`
}

const maxPerformanceSamples = 1000

// NewPerformanceMetrics creates a new performance metrics tracker
func NewPerformanceMetrics() *PerformanceMetrics {
	return &PerformanceMetrics{
		processingTimes: make([]time.Duration, 0, 64),
	}
}

// RecordProcessingTime records a processing time and updates performance metrics
func (pm *PerformanceMetrics) RecordProcessingTime(duration time.Duration) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pm.MinProcessingTime == 0 || duration < pm.MinProcessingTime {
		pm.MinProcessingTime = duration
	}
	if duration > pm.MaxProcessingTime {
		pm.MaxProcessingTime = duration
	}

	// keep the most recent samples only
	if len(pm.processingTimes) >= maxPerformanceSamples {
		pm.processingTimes = pm.processingTimes[1:]
	}
	pm.processingTimes = append(pm.processingTimes, duration)

	pm.calculatePercentiles()
}

func (pm *PerformanceMetrics) calculatePercentiles() {
	if len(pm.processingTimes) == 0 {
		return
	}

	times := make([]time.Duration, len(pm.processingTimes))
	copy(times, pm.processingTimes)
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	p95Index := int(float64(len(times)) * 0.95)
	p99Index := int(float64(len(times)) * 0.99)

	if p95Index < len(times) {
		pm.P95ProcessingTime = times[p95Index]
	}
	if p99Index < len(times) {
		pm.P99ProcessingTime = times[p99Index]
	}
}

// GetPerformanceSnapshot returns a thread-safe snapshot of performance metrics
func (pm *PerformanceMetrics) GetPerformanceSnapshot() PerformanceSnapshot {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	return PerformanceSnapshot{
		MinProcessingTime: pm.MinProcessingTime,
		MaxProcessingTime: pm.MaxProcessingTime,
		P95ProcessingTime: pm.P95ProcessingTime,
		P99ProcessingTime: pm.P99ProcessingTime,
	}
}
