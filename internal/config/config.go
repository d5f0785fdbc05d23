package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultWarmup       = 10
	DefaultMeasured     = 40
	DefaultTargetURL    = "http://localhost:8080"
	DefaultProbeTimeout = 30 * time.Second
)

// ErrNoCommand is returned when no command to benchmark was supplied.
var ErrNoCommand = errors.New("no command to start")

type ReportFormat string

const (
	ReportFormatJSON ReportFormat = "json"
	ReportFormatYAML ReportFormat = "yaml"
	ReportFormatHTML ReportFormat = "html"
)

type Config struct {
	Command      []string      `mapstructure:"-"`
	Warmup       int           `mapstructure:"warmup"`
	Measured     int           `mapstructure:"measured"`
	TargetURL    string        `mapstructure:"uri"`
	PrintOutput  bool          `mapstructure:"print_output"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	ProbeRate    int           `mapstructure:"probe_rate"`
	LogErrors    bool          `mapstructure:"log_errors"`
	Verbose      bool          `mapstructure:"verbose"`
	Report       string        `mapstructure:"report"`
	ReportFormat ReportFormat  `mapstructure:"report_format"`
	Thresholds   []string      `mapstructure:"thresholds"`
	LockFile     string        `mapstructure:"lock_file"`
	LockTimeout  time.Duration `mapstructure:"lock_timeout"`
	Tracing      TracingConfig `mapstructure:"tracing"`
	ConfigFile   string        `mapstructure:"-"`
}

// TracingConfig controls OTLP span export for trials and probes.
type TracingConfig struct {
	Endpoint      string  `mapstructure:"endpoint"`
	Protocol      string  `mapstructure:"protocol"` // "grpc" or "http"
	Insecure      bool    `mapstructure:"insecure"`
	SampleRate    float64 `mapstructure:"sample_rate"`
	ServiceName   string  `mapstructure:"service_name"`
	NoPropagation bool    `mapstructure:"no_propagation"`
}

// Enabled reports whether an OTLP endpoint is configured either directly or
// through the standard OTEL_EXPORTER_OTLP_ENDPOINT variable.
func (t TracingConfig) Enabled() bool {
	if strings.TrimSpace(t.Endpoint) != "" {
		return true
	}
	return strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")) != ""
}

// ShouldPropagate reports whether W3C trace headers are injected into probes.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Enabled() && !t.NoPropagation
}

// Trials returns the total number of trials, warmup included.
func (c Config) Trials() int {
	return c.Warmup + c.Measured
}

// ResolvedReportFormat returns the configured report format, falling back to
// the report file extension.
func (c Config) ResolvedReportFormat() ReportFormat {
	if c.ReportFormat != "" {
		return c.ReportFormat
	}
	switch strings.ToLower(filepath.Ext(c.Report)) {
	case ".yaml", ".yml":
		return ReportFormatYAML
	case ".html", ".htm":
		return ReportFormatHTML
	default:
		return ReportFormatJSON
	}
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	if len(c.Command) == 0 || strings.TrimSpace(c.Command[0]) == "" {
		return ErrNoCommand
	}

	var issues []string

	if c.Warmup < 0 {
		issues = append(issues, "warmup must be >= 0")
	}
	if c.Measured < 0 {
		issues = append(issues, "measured must be >= 0")
	}
	if c.ProbeTimeout < 0 {
		issues = append(issues, "probe_timeout must be >= 0")
	}
	if c.ProbeRate < 0 {
		issues = append(issues, "probe_rate must be >= 0")
	}
	if c.LockTimeout < 0 {
		issues = append(issues, "lock_timeout must be >= 0")
	}

	if issue := validateTargetURL(c.TargetURL); issue != "" {
		issues = append(issues, issue)
	}

	switch c.ReportFormat {
	case "", ReportFormatJSON, ReportFormatYAML, ReportFormatHTML:
	default:
		issues = append(issues, fmt.Sprintf("report_format %q is not supported (json, yaml, html)", c.ReportFormat))
	}
	if c.ReportFormat != "" && strings.TrimSpace(c.Report) == "" {
		issues = append(issues, "report_format requires report to be set")
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTargetURL(raw string) string {
	target := strings.TrimSpace(raw)
	if target == "" {
		return "uri is required"
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Sprintf("uri %q is invalid: %v", target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("uri %q must use http or https", target)
	}
	if u.Host == "" {
		return fmt.Sprintf("uri %q has no host", target)
	}
	return ""
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol %q is not supported (grpc, http)", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
