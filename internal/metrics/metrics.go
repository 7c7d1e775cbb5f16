package metrics

import (
	"sync"
	"time"
)

// Collector accumulates in-process counters and latency samples. It backs the
// /metrics endpoint and costs one mutex acquisition per observation.
type Collector struct {
	mutex               sync.RWMutex
	counters            map[string]int64
	transitionCounts    map[string]int64
	requestCounts       map[string]int64
	requestLatencies    map[string][]time.Duration
	errorCounts         map[string]int64
	startTime           time.Time
	maxHistogramSamples int
}

// Counter metrics
const (
	CounterHTTPRequests        = "http_requests_total"
	CounterHTTPRequestsSuccess = "http_requests_success_total"
	CounterHTTPRequestsError   = "http_requests_error_total"
	CounterTransitionsTotal    = "load_transitions_total"
	CounterTransitionsRejected = "load_transitions_rejected_total"
	CounterCheckpointFailures  = "checkpoint_failures_total"
	CounterTripsLinked         = "trips_linked_total"
	CounterTripsAssigned       = "trips_assigned_total"
	CounterMessagesSent        = "messages_sent_total"
	CounterMessagesError       = "messages_error_total"
	CounterStaleLoadsFlagged   = "stale_loads_flagged_total"
)

// Error types
const (
	ErrorTypeHTTP       = "http"
	ErrorTypeValidation = "validation"
	ErrorTypeDatabase   = "database"
	ErrorTypeMessageBus = "message_bus"
	ErrorTypeInternal   = "internal"
)

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		counters:            make(map[string]int64),
		transitionCounts:    make(map[string]int64),
		requestCounts:       make(map[string]int64),
		requestLatencies:    make(map[string][]time.Duration),
		errorCounts:         make(map[string]int64),
		startTime:           time.Now(),
		maxHistogramSamples: 1000,
	}
}

// IncrementCounter increments a counter by the given value
func (m *Collector) IncrementCounter(name string, value int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.counters[name] += value
}

// RecordTransition counts a committed transition keyed by its target status.
func (m *Collector) RecordTransition(toStatus string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.counters[CounterTransitionsTotal]++
	m.transitionCounts[toStatus]++
}

// RecordRejectedTransition counts a transition refused by the rule table or a
// checkpoint guard.
func (m *Collector) RecordRejectedTransition(checkpointFailure bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.counters[CounterTransitionsRejected]++
	if checkpointFailure {
		m.counters[CounterCheckpointFailures]++
	}
	m.errorCounts[ErrorTypeValidation]++
}

// RecordHTTPRequest records metrics for an HTTP request
func (m *Collector) RecordHTTPRequest(path string, statusCode int, latency time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.counters[CounterHTTPRequests]++
	m.requestCounts[path]++

	latencies, ok := m.requestLatencies[path]
	if !ok {
		latencies = make([]time.Duration, 0, m.maxHistogramSamples)
	}
	if len(latencies) >= m.maxHistogramSamples {
		latencies = latencies[1:]
	}
	latencies = append(latencies, latency)
	m.requestLatencies[path] = latencies

	if statusCode >= 200 && statusCode < 400 {
		m.counters[CounterHTTPRequestsSuccess]++
	} else {
		m.counters[CounterHTTPRequestsError]++
		m.errorCounts[ErrorTypeHTTP]++
	}
}

// RecordMessageSent counts an outbound queue publish.
func (m *Collector) RecordMessageSent(success bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.counters[CounterMessagesSent]++
	if !success {
		m.counters[CounterMessagesError]++
		m.errorCounts[ErrorTypeMessageBus]++
	}
}

// RecordError records an error of the given type
func (m *Collector) RecordError(errorType string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.errorCounts[errorType]++
}

// Snapshot returns all collected metrics in a structured format
func (m *Collector) Snapshot() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	httpLatencies := make(map[string]float64)
	for path, latencies := range m.requestLatencies {
		if len(latencies) > 0 {
			var sum time.Duration
			for _, l := range latencies {
				sum += l
			}
			httpLatencies[path] = float64(sum.Milliseconds()) / float64(len(latencies))
		}
	}

	counters := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}
	transitions := make(map[string]int64, len(m.transitionCounts))
	for k, v := range m.transitionCounts {
		transitions[k] = v
	}
	errs := make(map[string]int64, len(m.errorCounts))
	for k, v := range m.errorCounts {
		errs[k] = v
	}

	return map[string]interface{}{
		"uptime_seconds":       time.Since(m.startTime).Seconds(),
		"counters":             counters,
		"transitions_by_state": transitions,
		"request_counts":       m.requestCounts,
		"request_latencies_ms": httpLatencies,
		"error_counts":         errs,
	}
}

// Global collector instance
var globalCollector *Collector
var once sync.Once

// GetCollector returns the global collector instance
func GetCollector() *Collector {
	once.Do(func() {
		globalCollector = NewCollector()
	})
	return globalCollector
}
