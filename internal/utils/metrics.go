// internal/utils/metrics.go
package utils

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects counters, gauges and simple histograms in memory
type MetricsCollector struct {
	counters   map[string]*int64
	gauges     map[string]*int64
	histograms map[string]*Histogram

	mu sync.RWMutex
}

// Histogram tracks count, sum, min and max of recorded values
type Histogram struct {
	count int64
	sum   int64
	min   int64
	max   int64
	mu    sync.Mutex
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// GetMetricsCollector returns the global metrics collector
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsCollector()
	})
	return globalMetrics
}

// NewMetricsCollector returns an empty, independent collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]*int64),
		gauges:     make(map[string]*int64),
		histograms: make(map[string]*Histogram),
	}
}

func (m *MetricsCollector) slot(table map[string]*int64, name string) *int64 {
	m.mu.RLock()
	v, ok := table[name]
	m.mu.RUnlock()
	if ok {
		return v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok = table[name]; !ok {
		v = new(int64)
		table[name] = v
	}
	return v
}

func (m *MetricsCollector) IncrementCounter(name string) {
	atomic.AddInt64(m.slot(m.counters, name), 1)
}

func (m *MetricsCollector) AddCounter(name string, value int64) {
	atomic.AddInt64(m.slot(m.counters, name), value)
}

func (m *MetricsCollector) GetCounterValue(name string) int64 {
	m.mu.RLock()
	v, ok := m.counters[name]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v)
}

func (m *MetricsCollector) SetGauge(name string, value int64) {
	atomic.StoreInt64(m.slot(m.gauges, name), value)
}

func (m *MetricsCollector) IncGauge(name string) {
	atomic.AddInt64(m.slot(m.gauges, name), 1)
}

func (m *MetricsCollector) DecGauge(name string) {
	atomic.AddInt64(m.slot(m.gauges, name), -1)
}

func (m *MetricsCollector) GetGauge(name string) int64 {
	m.mu.RLock()
	v, ok := m.gauges[name]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v)
}

// RecordHistogram records a value in a histogram
func (m *MetricsCollector) RecordHistogram(name string, value int64) {
	m.mu.RLock()
	histogram, exists := m.histograms[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		histogram, exists = m.histograms[name]
		if !exists {
			histogram = &Histogram{min: value, max: value}
			m.histograms[name] = histogram
		}
		m.mu.Unlock()
	}

	histogram.mu.Lock()
	defer histogram.mu.Unlock()

	histogram.count++
	histogram.sum += value
	if value < histogram.min {
		histogram.min = value
	}
	if value > histogram.max {
		histogram.max = value
	}
}

// GetMetrics returns a snapshot of all metrics
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for name, v := range m.counters {
		counters[name] = atomic.LoadInt64(v)
	}

	gauges := make(map[string]int64, len(m.gauges))
	for name, v := range m.gauges {
		gauges[name] = atomic.LoadInt64(v)
	}

	histograms := make(map[string]map[string]int64, len(m.histograms))
	for name, h := range m.histograms {
		h.mu.Lock()
		histograms[name] = map[string]int64{
			"count": h.count,
			"sum":   h.sum,
			"min":   h.min,
			"max":   h.max,
		}
		h.mu.Unlock()
	}

	return map[string]interface{}{
		"counters":   counters,
		"gauges":     gauges,
		"histograms": histograms,
	}
}

// GenerationMetrics records per-operation call, failure and latency figures
// for the generation client.
type GenerationMetrics struct {
	metrics *MetricsCollector
}

func NewGenerationMetrics(m *MetricsCollector) *GenerationMetrics {
	if m == nil {
		m = GetMetricsCollector()
	}
	return &GenerationMetrics{metrics: m}
}

// Record counts one call of op and its outcome
func (gm *GenerationMetrics) Record(op string, duration time.Duration, err error) {
	gm.metrics.IncrementCounter("generation." + op + ".calls")
	if err != nil {
		gm.metrics.IncrementCounter("generation." + op + ".failures")
	}
	gm.metrics.RecordHistogram("generation."+op+".duration_ms", duration.Milliseconds())
}

// RecordAPIRequest counts a served HTTP request by status class
func (gm *GenerationMetrics) RecordAPIRequest(route, method string, statusCode int, duration time.Duration) {
	gm.metrics.IncrementCounter("api.requests_total")
	gm.metrics.IncrementCounter(fmt.Sprintf("api.responses_%dxx", statusCode/100))
	gm.metrics.IncrementCounter("api." + method + " " + route)
	gm.metrics.RecordHistogram("api.response_time_ms", duration.Milliseconds())
}

// RecordCache counts a session cache event (hit, miss, corrupt, write, write_failed)
func (gm *GenerationMetrics) RecordCache(event string) {
	gm.metrics.IncrementCounter("cache." + event)
}
