package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/torosent/ttfr/internal/metrics"
	"github.com/torosent/ttfr/internal/threshold"
)

// Report is everything written to a report file for one run.
type Report struct {
	RunID       string            `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time         `json:"generated_at" yaml:"generated_at"`
	Command     []string          `json:"command" yaml:"command"`
	Target      string            `json:"target" yaml:"target"`
	Warmup      int               `json:"warmup" yaml:"warmup"`
	Measured    int               `json:"measured" yaml:"measured"`
	DurationMs  float64           `json:"duration_ms" yaml:"duration_ms"`
	Stats       metrics.Stats     `json:"stats" yaml:"stats"`
	Thresholds  *ThresholdSummary `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// ThresholdSummary aggregates threshold outcomes for reports.
type ThresholdSummary struct {
	Total   int                   `json:"total" yaml:"total"`
	Passed  int                   `json:"passed" yaml:"passed"`
	Failed  int                   `json:"failed" yaml:"failed"`
	Results []ThresholdResultJSON `json:"results" yaml:"results"`
}

// ThresholdResultJSON is one threshold outcome in report form.
type ThresholdResultJSON struct {
	Threshold string  `json:"threshold" yaml:"threshold"`
	Metric    string  `json:"metric" yaml:"metric"`
	Aggregate string  `json:"aggregate" yaml:"aggregate"`
	Operator  string  `json:"operator" yaml:"operator"`
	Expected  float64 `json:"expected" yaml:"expected"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Pass      bool    `json:"pass" yaml:"pass"`
}

// SummarizeThresholds converts evaluator results for a report. It returns nil
// when there are none.
func SummarizeThresholds(results []threshold.Result) *ThresholdSummary {
	if len(results) == 0 {
		return nil
	}
	summary := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, tr := range results {
		summary.Results[i] = ThresholdResultJSON{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		}
		if tr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// PrintSummary writes the one-line result: mean, min and max time to first
// reply in milliseconds.
func PrintSummary(w io.Writer, stats metrics.Stats) {
	fmt.Fprintf(w, "AVG %.2f ms MIN %.2f ms MAX %.2f ms\n",
		stats.MeanLatencyMs, stats.MinLatencyMs, stats.MaxLatencyMs)
}

// PrintReport outputs a human-readable multi-line report.
func PrintReport(w io.Writer, report Report) {
	stats := report.Stats
	fmt.Fprintln(w, "\n--- Time To First Reply ---")
	if report.RunID != "" {
		fmt.Fprintf(w, "Run:               %s\n", report.RunID)
	}
	fmt.Fprintf(w, "Target:            %s\n", report.Target)
	fmt.Fprintf(w, "Trials:            %d warmup, %d measured\n", report.Warmup, report.Measured)
	fmt.Fprintf(w, "Probes:            %d\n", stats.Probes)
	fmt.Fprintf(w, "Duration:          %.2f ms\n", report.DurationMs)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %.2f ms\n", stats.MinLatencyMs)
	fmt.Fprintf(w, "  Max:             %.2f ms\n", stats.MaxLatencyMs)
	fmt.Fprintf(w, "  Mean:            %.2f ms\n", stats.MeanLatencyMs)
	fmt.Fprintf(w, "  P50:             %.2f ms\n", stats.P50LatencyMs)
	fmt.Fprintf(w, "  P90:             %.2f ms\n", stats.P90LatencyMs)
	fmt.Fprintf(w, "  P95:             %.2f ms\n", stats.P95LatencyMs)
	fmt.Fprintf(w, "  P99:             %.2f ms\n", stats.P99LatencyMs)

	if len(stats.ProbeFailures) > 0 {
		fmt.Fprintln(w, "\nProbe Failures:")
		kinds := make([]string, 0, len(stats.ProbeFailures))
		for kind := range stats.ProbeFailures {
			kinds = append(kinds, kind)
		}
		sort.Slice(kinds, func(i, j int) bool {
			if stats.ProbeFailures[kinds[i]] != stats.ProbeFailures[kinds[j]] {
				return stats.ProbeFailures[kinds[i]] > stats.ProbeFailures[kinds[j]]
			}
			return kinds[i] < kinds[j]
		})
		for _, kind := range kinds {
			fmt.Fprintf(w, "  %s: %d\n", kind, stats.ProbeFailures[kind])
		}
	}

	if report.Thresholds != nil {
		fmt.Fprintf(w, "\nThresholds: %d/%d passed\n", report.Thresholds.Passed, report.Thresholds.Total)
	}
}

// PrintThresholdResults writes one line per evaluated threshold.
func PrintThresholdResults(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w, "\nThresholds:")
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
