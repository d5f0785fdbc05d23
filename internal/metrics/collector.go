package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// TrialResult describes one finished trial.
type TrialResult struct {
	Index     int           `json:"index" yaml:"index"`
	Warmup    bool          `json:"warmup" yaml:"warmup"`
	Latency   time.Duration `json:"-" yaml:"-"`
	LatencyMs float64       `json:"latency_ms,omitempty" yaml:"latency_ms,omitempty"`
	Probes    int           `json:"probes" yaml:"probes"`
}

// Collector records trial outcomes. Measured latencies are folded into a
// lock-free RunningStats; the histogram, trial history and probe failure
// breakdown sit behind a mutex since they are informational only.
type Collector struct {
	running *RunningStats

	mu            sync.Mutex
	hist          *hdrhistogram.Histogram
	trials        []TrialResult
	probes        int64
	probeFailures map[string]int64
}

// Stats represents aggregated metrics over the measured trials.
type Stats struct {
	Measured      int            `json:"measured" yaml:"measured"`
	Recorded      int64          `json:"recorded" yaml:"recorded"`
	Probes        int64          `json:"probes" yaml:"probes"`
	MinLatency    time.Duration  `json:"-" yaml:"-"`
	MaxLatency    time.Duration  `json:"-" yaml:"-"`
	MeanLatency   time.Duration  `json:"-" yaml:"-"`
	P50Latency    time.Duration  `json:"-" yaml:"-"`
	P90Latency    time.Duration  `json:"-" yaml:"-"`
	P95Latency    time.Duration  `json:"-" yaml:"-"`
	P99Latency    time.Duration  `json:"-" yaml:"-"`
	ProbeFailures map[string]int `json:"probe_failures,omitempty" yaml:"probe_failures,omitempty"`
	Trials        []TrialResult  `json:"trials,omitempty" yaml:"trials,omitempty"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64 `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms" yaml:"p99_latency_ms"`
}

func NewCollector() *Collector {
	// Startup latencies from 1µs up to 10 minutes with 3 significant figures.
	h := hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3)
	return &Collector{
		running:       NewRunningStats(),
		hist:          h,
		probeFailures: make(map[string]int64),
	}
}

// RecordLatency folds one measured latency into the running totals. It is
// called from whichever goroutine won the trial's first-reply race.
func (c *Collector) RecordLatency(latency time.Duration) {
	c.running.Add(latency)

	us := latency.Microseconds()
	c.mu.Lock()
	defer c.mu.Unlock()
	if us < c.hist.LowestTrackableValue() {
		us = c.hist.LowestTrackableValue()
	}
	if us > c.hist.HighestTrackableValue() {
		us = c.hist.HighestTrackableValue()
	}
	_ = c.hist.RecordValue(us)
}

// RecordTrial appends a finished trial to the history.
func (c *Collector) RecordTrial(tr TrialResult) {
	if !tr.Warmup {
		tr.LatencyMs = toMs(tr.Latency)
	} else {
		tr.Latency = 0
		tr.LatencyMs = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trials = append(c.trials, tr)
	c.probes += int64(tr.Probes)
}

// RecordProbeFailure counts a transport-level probe failure by kind.
func (c *Collector) RecordProbeFailure(err error) {
	if err == nil {
		return
	}
	kind := ProbeErrorKind(err)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probeFailures[kind]++
}

// Running exposes the lock-free totals.
func (c *Collector) Running() *RunningStats {
	return c.running
}

// Stats computes aggregated statistics. The mean divides by measured, the
// configured number of measured trials; with zero measured trials every
// latency is reported as zero.
func (c *Collector) Stats(measured int) Stats {
	stats := Stats{
		Measured: measured,
		Recorded: c.running.Count(),
	}

	if stats.Recorded > 0 {
		stats.MinLatency = c.running.Min()
		stats.MaxLatency = c.running.Max()
	}
	if measured > 0 {
		stats.MeanLatency = c.running.Sum() / time.Duration(measured)
	}

	c.mu.Lock()
	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P95Latency = time.Duration(c.hist.ValueAtQuantile(95)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}
	stats.Probes = c.probes
	if len(c.trials) > 0 {
		stats.Trials = append([]TrialResult(nil), c.trials...)
		sort.Slice(stats.Trials, func(i, j int) bool { return stats.Trials[i].Index < stats.Trials[j].Index })
	}
	if len(c.probeFailures) > 0 {
		stats.ProbeFailures = make(map[string]int, len(c.probeFailures))
		for k, v := range c.probeFailures {
			stats.ProbeFailures[k] = int(v)
		}
	}
	c.mu.Unlock()

	stats.MinLatencyMs = toMs(stats.MinLatency)
	stats.MaxLatencyMs = toMs(stats.MaxLatency)
	stats.MeanLatencyMs = toMs(stats.MeanLatency)
	stats.P50LatencyMs = toMs(stats.P50Latency)
	stats.P90LatencyMs = toMs(stats.P90Latency)
	stats.P95LatencyMs = toMs(stats.P95Latency)
	stats.P99LatencyMs = toMs(stats.P99Latency)

	return stats
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
