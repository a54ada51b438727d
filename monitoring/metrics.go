package monitoring

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// MetricsCollector tracks service counters and gauges and renders them in
// Prometheus text exposition format.
type MetricsCollector struct {
	mu       sync.RWMutex
	counters map[string]int64
	gauges   map[string]float64
	started  time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		started:  time.Now(),
	}
}

// IncCounter adds delta to a monotonically increasing counter.
func (mc *MetricsCollector) IncCounter(name string, delta int64) {
	mc.mu.Lock()
	mc.counters[name] += delta
	mc.mu.Unlock()
}

// SetGauge sets an instantaneous value.
func (mc *MetricsCollector) SetGauge(name string, value float64) {
	mc.mu.Lock()
	mc.gauges[name] = value
	mc.mu.Unlock()
}

// Counter reads one counter.
func (mc *MetricsCollector) Counter(name string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.counters[name]
}

// Uptime is the time since the collector was created.
func (mc *MetricsCollector) Uptime() time.Duration {
	return time.Since(mc.started)
}

// Snapshot copies all metrics for JSON responses.
func (mc *MetricsCollector) Snapshot() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	counters := make(map[string]int64, len(mc.counters))
	for name, value := range mc.counters {
		counters[name] = value
	}
	gauges := make(map[string]float64, len(mc.gauges))
	for name, value := range mc.gauges {
		gauges[name] = value
	}

	return map[string]interface{}{
		"counters":       counters,
		"gauges":         gauges,
		"uptime_seconds": time.Since(mc.started).Seconds(),
	}
}

// WritePrometheus renders all metrics in text exposition format with
// deterministic ordering.
func (mc *MetricsCollector) WritePrometheus(w io.Writer) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	counterNames := make([]string, 0, len(mc.counters))
	for name := range mc.counters {
		counterNames = append(counterNames, name)
	}
	sort.Strings(counterNames)
	for _, name := range counterNames {
		fmt.Fprintf(w, "# TYPE %s counter\n%s %d\n", name, name, mc.counters[name])
	}

	gaugeNames := make([]string, 0, len(mc.gauges))
	for name := range mc.gauges {
		gaugeNames = append(gaugeNames, name)
	}
	sort.Strings(gaugeNames)
	for _, name := range gaugeNames {
		fmt.Fprintf(w, "# TYPE %s gauge\n%s %g\n", name, name, mc.gauges[name])
	}

	fmt.Fprintf(w, "# TYPE skycast_uptime_seconds gauge\nskycast_uptime_seconds %g\n",
		time.Since(mc.started).Seconds())
}
