package runner

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/torosent/ttfr/internal/metrics"
	"github.com/torosent/ttfr/internal/probe"
	"github.com/torosent/ttfr/internal/process"
)

// Process is the running command of one trial.
type Process interface {
	Alive() bool
	Destroy() error
}

// Launcher starts a fresh process for every trial.
type Launcher interface {
	Launch() (Process, error)
}

// Prober issues asynchronous readiness probes. The channel returned by Send
// yields exactly one value once the probe completes.
type Prober interface {
	Send(ctx context.Context, onSuccess func(probe.Response)) <-chan error
	Close()
}

// ProberFactory builds the prober for one trial. onFailure receives transport
// failures the prober swallows.
type ProberFactory func(onFailure func(error)) (Prober, error)

// Marker reports trial completion, one mark per trial.
type Marker interface {
	Mark(warmup bool)
}

// FailureLogger logs swallowed probe failures.
type FailureLogger interface {
	LogFailure(err error)
}

// Options configure the Runner.
type Options struct {
	Warmup        int           // warmup trials, not measured
	Measured      int           // measured trials
	Launcher      Launcher      // required
	NewProber     ProberFactory // required
	Collector     *metrics.Collector
	Markers       Marker
	FailureLogger FailureLogger // optional
	RatePerSecond int           // probe pacing (0 means back to back)
	Tracer        trace.Tracer  // optional; spans are skipped when nil
	RunID         string
	Command       []string // recorded on the run span

	// LimiterFactory is an optional injection for tests.
	LimiterFactory func(rps int) *rate.Limiter
}

func (o *Options) normalize() {
	if o.Warmup < 0 {
		o.Warmup = 0
	}
	if o.Measured < 0 {
		o.Measured = 0
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.Collector == nil {
		o.Collector = metrics.NewCollector()
	}
	if o.Markers == nil {
		o.Markers = nopMarker{}
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type nopMarker struct{}

func (nopMarker) Mark(bool) {}

// ProcessLauncher adapts a process.Launcher to the Launcher interface.
func ProcessLauncher(l process.Launcher) Launcher {
	return processLauncher{l: l}
}

type processLauncher struct {
	l process.Launcher
}

func (p processLauncher) Launch() (Process, error) {
	h, err := p.l.Start()
	if err != nil {
		return nil, err
	}
	return h, nil
}

// HTTPProbers returns a ProberFactory creating one HTTP prober per trial from
// the given options.
func HTTPProbers(opts probe.Options) ProberFactory {
	return func(onFailure func(error)) (Prober, error) {
		o := opts
		o.OnFailure = onFailure
		p, err := probe.New(o)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}
