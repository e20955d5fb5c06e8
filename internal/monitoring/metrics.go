// Package monitoring - metrics.go provides simple counters.
//
// DESIGN: Lightweight in-memory counters for operational metrics:
//   - requests/successes: Total and successful call counts
//   - rejections:         Pre-call hook rejections
//   - hook_failures:      Isolated plugin hook failures
//   - dataset_exports:    Items written to the dataset sink
//
// For production, export these to Prometheus or similar.
package monitoring

import (
	"sync/atomic"
	"time"
)

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	requests       atomic.Int64
	successes      atomic.Int64
	rejections     atomic.Int64
	hookFailures   atomic.Int64
	datasetExports atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordRequest records a request.
func (mc *MetricsCollector) RecordRequest(success bool, _ time.Duration) {
	mc.requests.Add(1)
	if success {
		mc.successes.Add(1)
	}
}

// RecordRejection records a pre-call hook rejection.
func (mc *MetricsCollector) RecordRejection() { mc.rejections.Add(1) }

// RecordHookFailure records an isolated plugin hook failure.
func (mc *MetricsCollector) RecordHookFailure() { mc.hookFailures.Add(1) }

// RecordDatasetExport records items written to the dataset sink.
func (mc *MetricsCollector) RecordDatasetExport(n int) { mc.datasetExports.Add(int64(n)) }

// Stats returns current metrics.
func (mc *MetricsCollector) Stats() map[string]int64 {
	return map[string]int64{
		"requests":        mc.requests.Load(),
		"successes":       mc.successes.Load(),
		"rejections":      mc.rejections.Load(),
		"hook_failures":   mc.hookFailures.Load(),
		"dataset_exports": mc.datasetExports.Load(),
	}
}

// Stop is a no-op for compatibility.
func (mc *MetricsCollector) Stop() {}
