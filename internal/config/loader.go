package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable the loader reads,
// e.g. BENCHMARK_WARMUP or BENCHMARK_TRACING_ENDPOINT.
const EnvPrefix = "BENCHMARK"

// knownKeys lists every setting that may come from the environment.
var knownKeys = []string{
	"config",
	"warmup",
	"measured",
	"uri",
	"print_output",
	"probe_timeout",
	"probe_rate",
	"log_errors",
	"verbose",
	"report",
	"report_format",
	"thresholds",
	"lock_file",
	"lock_timeout",
	"tracing.endpoint",
	"tracing.protocol",
	"tracing.insecure",
	"tracing.sample_rate",
	"tracing.service_name",
	"tracing.no_propagation",
}

// Loader builds a Config from the environment and an optional config file.
// The command to benchmark is never parsed; it is taken verbatim.
type Loader struct{}

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load resolves settings and attaches command as the process under test.
// Precedence: environment over config file over defaults.
func (Loader) Load(command []string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, key := range knownKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	configPath := strings.TrimSpace(v.GetString("config"))
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := &Config{
		Command:      append([]string(nil), command...),
		Warmup:       DefaultWarmup,
		Measured:     DefaultMeasured,
		TargetURL:    DefaultTargetURL,
		ProbeTimeout: DefaultProbeTimeout,
		ConfigFile:   configPath,
		Tracing:      TracingConfig{SampleRate: 1.0},
	}

	settings := v.AllSettings()
	delete(settings, "config")
	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.Report = strings.TrimSpace(cfg.Report)
	cfg.LockFile = strings.TrimSpace(cfg.LockFile)

	return cfg, nil
}

// applyConfigSettings applies resolved settings to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "warmup"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("warmup: %w", err)
		}
		cfg.Warmup = val
	}

	if raw, ok := lookupSetting(settings, "measured"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("measured: %w", err)
		}
		cfg.Measured = val
	}

	if raw, ok := lookupSetting(settings, "uri", "target"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("uri: %w", err)
		}
		if strings.TrimSpace(val) != "" {
			cfg.TargetURL = val
		}
	}

	if raw, ok := lookupSetting(settings, "print_output", "printoutput", "print-output"); ok {
		cfg.PrintOutput = asPresenceFlag(raw)
	}

	if raw, ok := lookupSetting(settings, "probe_timeout", "probetimeout", "probe-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("probe_timeout: %w", err)
		}
		cfg.ProbeTimeout = dur
	}

	if raw, ok := lookupSetting(settings, "probe_rate", "proberate", "probe-rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("probe_rate: %w", err)
		}
		cfg.ProbeRate = val
	}

	if raw, ok := lookupSetting(settings, "log_errors", "logerrors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("log_errors: %w", err)
		}
		cfg.LogErrors = val
	}

	if raw, ok := lookupSetting(settings, "verbose"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("verbose: %w", err)
		}
		cfg.Verbose = val
	}

	if raw, ok := lookupSetting(settings, "report"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("report: %w", err)
		}
		cfg.Report = val
	}

	if raw, ok := lookupSetting(settings, "report_format", "reportformat", "report-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("report_format: %w", err)
		}
		cfg.ReportFormat = ReportFormat(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = splitList(thresholds)
	}

	if raw, ok := lookupSetting(settings, "lock_file", "lockfile", "lock-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("lock_file: %w", err)
		}
		cfg.LockFile = val
	}

	if raw, ok := lookupSetting(settings, "lock_timeout", "locktimeout", "lock-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("lock_timeout: %w", err)
		}
		cfg.LockTimeout = dur
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracingConfig(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseTracingConfig(value interface{}, base TracingConfig) (TracingConfig, error) {
	if value == nil {
		return base, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}

	tc := base
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		tc.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		tc.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		tc.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "sample_rate", "samplerate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		tc.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "service_name", "servicename", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		tc.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "no_propagation", "nopropagation", "no-propagation"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("no_propagation: %w", err)
		}
		tc.NoPropagation = val
	}
	return tc, nil
}

// splitList flattens comma separated entries, as delivered by a single
// environment variable, into individual trimmed items.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
