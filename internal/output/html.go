package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/torosent/ttfr/internal/metrics"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	Report      Report
	GeneratedAt string
	Command     string
	Measured    []metrics.TrialResult
	TrialsJSON  string
}

// GenerateHTMLReport generates a standalone HTML report with an embedded
// per-trial latency chart.
func GenerateHTMLReport(w io.Writer, report Report) error {
	measured := make([]metrics.TrialResult, 0, len(report.Stats.Trials))
	for _, tr := range report.Stats.Trials {
		if !tr.Warmup {
			measured = append(measured, tr)
		}
	}

	trialsJSON, err := json.Marshal(measured)
	if err != nil {
		return fmt.Errorf("failed to marshal trials: %w", err)
	}

	generated := report.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	data := HTMLReportData{
		Report:      report,
		GeneratedAt: generated.Format(time.RFC3339),
		Command:     strings.Join(report.Command, " "),
		Measured:    measured,
		TrialsJSON:  string(trialsJSON),
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>ttfr Report</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 {
            font-size: 2rem;
            margin-bottom: 10px;
        }
        header .meta {
            opacity: 0.9;
            font-size: 0.9rem;
        }
        .content {
            padding: 40px;
        }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #667eea;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value {
            font-size: 2rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .card .subvalue {
            font-size: 0.85rem;
            color: #6c757d;
            margin-top: 5px;
        }
        .card.success {
            border-left-color: #10b981;
        }
        .card.error {
            border-left-color: #ef4444;
        }
        .card.warning {
            border-left-color: #f59e0b;
        }
        .section {
            margin-bottom: 40px;
        }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        .chart-container {
            background: white;
            border-radius: 8px;
            padding: 20px;
            margin-bottom: 30px;
            border: 1px solid #e5e7eb;
        }
        .chart-container h3 {
            font-size: 1.1rem;
            margin-bottom: 15px;
            color: #4b5563;
        }
        .chart {
            width: 100%;
            height: 300px;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            background: white;
        }
        th, td {
            text-align: left;
            padding: 12px;
            border-bottom: 1px solid #e5e7eb;
        }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
            letter-spacing: 0.5px;
        }
        tr:hover {
            background: #f8f9fa;
        }
        .badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 12px;
            font-size: 0.85rem;
            font-weight: 600;
        }
        .badge-success {
            background: #d1fae5;
            color: #065f46;
        }
        .badge-error {
            background: #fee2e2;
            color: #991b1b;
        }
        .latency-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
            gap: 15px;
            margin-top: 20px;
        }
        .latency-item {
            background: #f8f9fa;
            padding: 15px;
            border-radius: 6px;
            text-align: center;
        }
        .latency-item .label {
            font-size: 0.85rem;
            color: #6c757d;
            margin-bottom: 5px;
        }
        .latency-item .value {
            font-size: 1.3rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .no-data {
            text-align: center;
            padding: 40px;
            color: #6c757d;
            font-style: italic;
        }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>Time To First Reply</h1>
            <div class="meta">Command: <code>{{.Command}}</code></div>
            <div class="meta">Target: {{.Report.Target}}</div>
            <div class="meta">Run: {{.Report.RunID}} | Generated: {{.GeneratedAt}} | Duration: {{formatFloat .Report.DurationMs}} ms</div>
        </header>

        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Average</h3>
                    <div class="value">{{formatFloat .Report.Stats.MeanLatencyMs}} ms</div>
                </div>
                <div class="card success">
                    <h3>Min</h3>
                    <div class="value">{{formatFloat .Report.Stats.MinLatencyMs}} ms</div>
                </div>
                <div class="card error">
                    <h3>Max</h3>
                    <div class="value">{{formatFloat .Report.Stats.MaxLatencyMs}} ms</div>
                </div>
                <div class="card warning">
                    <h3>Trials</h3>
                    <div class="value">{{.Report.Stats.Recorded}}</div>
                    <div class="subvalue">{{.Report.Warmup}} warmup, {{.Report.Stats.Probes}} probes</div>
                </div>
            </div>

            {{if .Measured}}
            <div class="section">
                <h2>Latency Per Trial</h2>
                <div class="chart-container">
                    <div id="trial-chart" class="chart"></div>
                </div>
            </div>
            {{end}}

            <div class="section">
                <h2>Latency Percentiles</h2>
                <div class="latency-grid">
                    <div class="latency-item">
                        <div class="label">P50</div>
                        <div class="value">{{formatFloat .Report.Stats.P50LatencyMs}} ms</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P90</div>
                        <div class="value">{{formatFloat .Report.Stats.P90LatencyMs}} ms</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P95</div>
                        <div class="value">{{formatFloat .Report.Stats.P95LatencyMs}} ms</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P99</div>
                        <div class="value">{{formatFloat .Report.Stats.P99LatencyMs}} ms</div>
                    </div>
                </div>
            </div>

            {{with .Report.Thresholds}}
            <div class="section">
                <h2>Thresholds ({{.Passed}}/{{.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Threshold</th>
                            <th>Metric</th>
                            <th>Expected</th>
                            <th>Actual</th>
                            <th>Status</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Results}}
                        <tr>
                            <td>{{.Threshold}}</td>
                            <td>{{.Metric}} ({{.Aggregate}})</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">✓ PASS</span>
                                {{else}}
                                <span class="badge badge-error">✗ FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .Report.Stats.ProbeFailures}}
            <div class="section">
                <h2>Probe Failures</h2>
                <table>
                    <thead>
                        <tr><th>Kind</th><th>Count</th></tr>
                    </thead>
                    <tbody>
                        {{range $kind, $count := .Report.Stats.ProbeFailures}}
                        <tr><td>{{$kind}}</td><td>{{$count}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            {{if .Measured}}
            <div class="section">
                <h2>Trials</h2>
                <table>
                    <thead>
                        <tr><th>Trial</th><th>Latency</th><th>Probes</th></tr>
                    </thead>
                    <tbody>
                        {{range .Measured}}
                        <tr><td>{{.Index}}</td><td>{{formatFloat .LatencyMs}} ms</td><td>{{.Probes}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{else}}
            <div class="no-data">No measured trials</div>
            {{end}}
        </div>
    </div>

    {{if .Measured}}
    <script>
        const trials = JSON.parse({{.TrialsJSON}});
        if (trials && trials.length > 0) {
            const el = document.getElementById('trial-chart');
            new uPlot({
                width: el.offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Trial" },
                    {
                        label: "Latency (ms)",
                        stroke: "#667eea",
                        fill: "rgba(102, 126, 234, 0.1)",
                        width: 2
                    }
                ],
                axes: [
                    { label: "Trial" },
                    { label: "Latency (ms)" }
                ]
            }, [trials.map(t => t.index), trials.map(t => t.latency_ms || 0)], el);
        }
    </script>
    {{end}}
</body>
</html>
`
