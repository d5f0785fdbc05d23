// Package runner drives the launch, probe and teardown cycle of a ttfr run.
//
// Each trial starts a fresh process, issues one probe at a time until the
// first 2xx reply, then destroys the whole process tree before the next trial
// begins:
//
//	r := runner.New(runner.Options{
//		Warmup:    10,
//		Measured:  40,
//		Launcher:  runner.ProcessLauncher(process.Launcher{Command: args}),
//		NewProber: runner.HTTPProbers(probe.Options{Target: uri}),
//		Collector: collector,
//		Markers:   markers,
//	})
//	result, err := r.Run(ctx)
//
// A probe that succeeds claims the trial through a compare-and-swap flag, so
// exactly one reply is counted per trial. Transport failures are swallowed and
// reported to the [FailureLogger]; a non-2xx reply ends the run with a
// [*probe.StatusError]. If the process exits before any reply the run ends
// with [ErrNoReply].
//
// Probes are issued back to back unless RatePerSecond paces them.
package runner
