package runner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/torosent/ttfr/internal/metrics"
	"github.com/torosent/ttfr/internal/probe"
	"github.com/torosent/ttfr/internal/tracing"
)

// ErrNoReply is returned when the process exits before any probe succeeds.
var ErrNoReply = errors.New("process failed before receiving reply")

// Result captures execution summary.
type Result struct {
	RunID    string
	Trials   int // trials completed
	Stats    metrics.Stats
	Duration time.Duration
}

// Runner executes trials strictly one after another.
type Runner struct {
	opt     Options
	limiter *rate.Limiter
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt, limiter: opt.LimiterFactory(opt.RatePerSecond)}
}

// Run executes every warmup and measured trial. It stops at the first fatal
// error; the trial in progress has its process tree destroyed before Run
// returns.
func (r *Runner) Run(ctx context.Context) (res Result, err error) {
	if r.opt.Launcher == nil || r.opt.NewProber == nil {
		return Result{}, errors.New("runner requires a launcher and a prober factory")
	}
	start := time.Now()

	if r.opt.Tracer != nil {
		var span trace.Span
		ctx, span = tracing.StartRunSpan(ctx, r.opt.Tracer, r.opt.RunID, r.opt.Command, r.opt.Warmup, r.opt.Measured)
		defer func() { tracing.EndSpan(span, err) }()
	}

	completed := 0
	defer func() {
		res = Result{
			RunID:    r.opt.RunID,
			Trials:   completed,
			Stats:    r.opt.Collector.Stats(r.opt.Measured),
			Duration: time.Since(start),
		}
	}()

	total := r.opt.Warmup + r.opt.Measured
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := r.runTrial(ctx, i); err != nil {
			return res, err
		}
		completed++
	}
	return res, nil
}

func (r *Runner) runTrial(ctx context.Context, index int) (err error) {
	warmup := index < r.opt.Warmup
	var (
		latency time.Duration
		probes  int
	)

	if r.opt.Tracer != nil {
		var span trace.Span
		ctx, span = tracing.StartTrialSpan(ctx, r.opt.Tracer, index, warmup)
		defer func() {
			tracing.EndSpan(span, err,
				attribute.Float64("ttfr.trial.latency_ms", float64(latency)/float64(time.Millisecond)),
				attribute.Int("ttfr.trial.probes", probes),
			)
		}()
	}

	prober, err := r.opt.NewProber(r.recordFailure)
	if err != nil {
		return fmt.Errorf("create prober: %w", err)
	}
	defer prober.Close()

	proc, err := r.opt.Launcher.Launch()
	if err != nil {
		return err
	}
	defer func() {
		if derr := proc.Destroy(); derr != nil && err == nil {
			err = derr
		}
	}()

	start := time.Now()
	var received atomic.Bool
	onSuccess := func(resp probe.Response) {
		if !received.CompareAndSwap(false, true) {
			return
		}
		if !warmup {
			latency = resp.Received.Sub(start)
			r.opt.Collector.RecordLatency(latency)
		}
		r.opt.Markers.Mark(warmup)
	}

	for proc.Alive() && !received.Load() {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		probes++
		if err := <-prober.Send(ctx, onSuccess); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if !received.Load() {
		return ErrNoReply
	}
	r.opt.Collector.RecordTrial(metrics.TrialResult{
		Index:   index,
		Warmup:  warmup,
		Latency: latency,
		Probes:  probes,
	})
	return nil
}

func (r *Runner) recordFailure(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	r.opt.Collector.RecordProbeFailure(err)
	if r.opt.FailureLogger != nil {
		r.opt.FailureLogger.LogFailure(err)
	}
}
