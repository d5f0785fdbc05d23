// Package metrics accumulates time-to-first-reply measurements.
//
// # Running totals
//
// [RunningStats] holds sum, min and max of measured latencies in atomic cells.
// Updates use add and compare-and-swap folds, so the goroutine that wins a
// trial's first-reply race can record without taking a lock:
//
//	collector := metrics.NewCollector()
//	collector.RecordLatency(latency)
//	stats := collector.Stats(measured)
//
// # Statistics
//
// [Stats] reports the mean as sum divided by the configured number of measured
// trials, along with min and max. Percentiles (P50, P90, P95, P99) come from an
// HDR histogram and are informational.
//
// # History
//
// [Collector.RecordTrial] keeps a per-trial history (index, warmup flag,
// latency, probe count) and [Collector.RecordProbeFailure] counts swallowed
// transport failures by kind. Both feed the report files.
package metrics
