package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/ttfr/internal/config"
	"github.com/torosent/ttfr/internal/metrics"
	"github.com/torosent/ttfr/internal/output"
	"github.com/torosent/ttfr/internal/probe"
	"github.com/torosent/ttfr/internal/process"
	"github.com/torosent/ttfr/internal/runlock"
	"github.com/torosent/ttfr/internal/runner"
	"github.com/torosent/ttfr/internal/threshold"
	"github.com/torosent/ttfr/internal/tracing"
)

const tracingShutdownTimeout = 5 * time.Second

const longHelp = `ttfr starts <command> repeatedly and measures how long it takes until the
server it launches answers its first HTTP request with a 2xx status.

Every trial launches the command, probes the target URL until a reply
arrives, then kills the whole process tree. Warmup trials print '-',
measured trials print '+'. The summary line is written to stderr:

  AVG <mean> ms MIN <min> ms MAX <max> ms

Settings are read from BENCHMARK_* environment variables and an optional
file named by BENCHMARK_CONFIG:

  BENCHMARK_WARMUP          warmup trials (default 10)
  BENCHMARK_MEASURED        measured trials (default 40)
  BENCHMARK_URI             probe target (default http://localhost:8080)
  BENCHMARK_PRINT_OUTPUT    show the command's output when set
  BENCHMARK_PROBE_TIMEOUT   per-probe timeout (default 30s)
  BENCHMARK_PROBE_RATE      max probes per second (default unlimited)
  BENCHMARK_LOG_ERRORS      log swallowed probe failures
  BENCHMARK_VERBOSE         print a detailed report after the summary
  BENCHMARK_REPORT          write a json, yaml or html report file
  BENCHMARK_THRESHOLDS      comma-separated assertions, e.g. "ttfr:avg < 250"
  BENCHMARK_LOCK_FILE       hold a host-wide lock for the run
  BENCHMARK_TRACING_*       OTLP tracing (endpoint, protocol, sample_rate, ...)`

// errThresholdsFailed is returned when at least one threshold does not hold.
var errThresholdsFailed = errors.New("thresholds failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
	cancel()
	if err != nil {
		output.NewDiagnostics(os.Stderr).Error(err)
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "ttfr <command> [args...]",
		Short: "Measure the time until a freshly started server answers its first request",
		Long:  longHelp,
		// Everything after the program name belongs to the command under test.
		DisableFlagParsing:    true,
		DisableFlagsInUseLine: true,
		SilenceErrors:         true,
		SilenceUsage:          true,
		Args:                  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd.Context(), args, stdout, stderr)
			if errors.Is(err, config.ErrNoCommand) {
				fmt.Fprintln(stderr, cmd.UseLine())
			}
			return err
		},
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	diag := output.NewDiagnostics(stderr)

	if cfg.LockFile != "" {
		lock, err := runlock.Acquire(ctx, cfg.LockFile, cfg.LockTimeout)
		if err != nil {
			return err
		}
		defer func() {
			if rerr := lock.Release(); rerr != nil {
				diag.Warnf("%v", rerr)
			}
		}()
	}

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer cancel()
		if serr := provider.Shutdown(shutdownCtx); serr != nil {
			diag.Warnf("tracing shutdown: %v", serr)
		}
	}()

	var tracer trace.Tracer
	if cfg.Tracing.Enabled() {
		tracer = provider.Tracer()
	}

	var failureLogger runner.FailureLogger
	if cfg.LogErrors {
		failureLogger = diag
	}

	runID := ulid.Make().String()
	collector := metrics.NewCollector()
	markers := output.NewMarkers(stdout)

	r := runner.New(runner.Options{
		Warmup:   cfg.Warmup,
		Measured: cfg.Measured,
		Launcher: runner.ProcessLauncher(process.Launcher{
			Command:     cfg.Command,
			PrintOutput: cfg.PrintOutput,
			Stdout:      stdout,
			Stderr:      stderr,
		}),
		NewProber: runner.HTTPProbers(probe.Options{
			Target:    cfg.TargetURL,
			Timeout:   cfg.ProbeTimeout,
			Tracer:    tracer,
			Propagate: provider.ShouldPropagate(),
		}),
		Collector:     collector,
		Markers:       markers,
		FailureLogger: failureLogger,
		RatePerSecond: cfg.ProbeRate,
		Tracer:        tracer,
		RunID:         runID,
		Command:       cfg.Command,
	})

	result, err := r.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted: %w", err)
		}
		return err
	}
	markers.Finish()
	output.PrintSummary(stderr, result.Stats)

	results := threshold.NewEvaluator(thresholds).Evaluate(result.Stats)
	output.PrintThresholdResults(stderr, results)

	report := output.Report{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Command:     cfg.Command,
		Target:      cfg.TargetURL,
		Warmup:      cfg.Warmup,
		Measured:    cfg.Measured,
		DurationMs:  float64(result.Duration) / float64(time.Millisecond),
		Stats:       result.Stats,
		Thresholds:  output.SummarizeThresholds(results),
	}
	if cfg.Verbose {
		output.PrintReport(stderr, report)
	}
	if cfg.Report != "" {
		if err := output.WriteReportFile(cfg.Report, cfg.ResolvedReportFormat(), report); err != nil {
			return err
		}
	}

	if !threshold.AllPassed(results) {
		return errThresholdsFailed
	}
	return nil
}
