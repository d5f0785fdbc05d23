package runner_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/ttfr/internal/metrics"
	"github.com/torosent/ttfr/internal/probe"
	"github.com/torosent/ttfr/internal/process"
	"github.com/torosent/ttfr/internal/runner"
)

// fakeProcess stays alive for a fixed number of Alive checks (0 = forever).
type fakeProcess struct {
	aliveChecks int32
	checks      atomic.Int32
	destroyed   atomic.Bool
}

func (p *fakeProcess) Alive() bool {
	if p.destroyed.Load() {
		return false
	}
	n := p.checks.Add(1)
	return p.aliveChecks == 0 || n <= p.aliveChecks
}

func (p *fakeProcess) Destroy() error {
	p.destroyed.Store(true)
	return nil
}

type fakeLauncher struct {
	mu          sync.Mutex
	aliveChecks int32
	err         error
	procs       []*fakeProcess
}

func (l *fakeLauncher) Launch() (runner.Process, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	p := &fakeProcess{aliveChecks: l.aliveChecks}
	l.procs = append(l.procs, p)
	return p, nil
}

func (l *fakeLauncher) allDestroyed(t *testing.T) {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, p := range l.procs {
		if !p.destroyed.Load() {
			t.Errorf("process %d not destroyed", i)
		}
	}
}

// fakeProber answers probe n (1-based within a trial) through behave.
type fakeProber struct {
	onFailure func(error)
	behave    func(n int, onSuccess func(probe.Response), onFailure func(error)) error
	n         int
	inFlight  *atomic.Int32
}

func (p *fakeProber) Send(ctx context.Context, onSuccess func(probe.Response)) <-chan error {
	p.n++
	n := p.n
	done := make(chan error, 1)
	if p.inFlight != nil && p.inFlight.Add(1) > 1 {
		panic("more than one probe in flight")
	}
	go func() {
		err := p.behave(n, onSuccess, p.onFailure)
		if p.inFlight != nil {
			p.inFlight.Add(-1)
		}
		done <- err
	}()
	return done
}

func (p *fakeProber) Close() {}

func probers(behave func(n int, onSuccess func(probe.Response), onFailure func(error)) error) (runner.ProberFactory, *atomic.Int32) {
	var inFlight atomic.Int32
	return func(onFailure func(error)) (runner.Prober, error) {
		return &fakeProber{onFailure: onFailure, behave: behave, inFlight: &inFlight}, nil
	}, &inFlight
}

func succeedOn(k int) func(int, func(probe.Response), func(error)) error {
	return func(n int, onSuccess func(probe.Response), _ func(error)) error {
		if n >= k {
			onSuccess(probe.Response{StatusCode: http.StatusOK, Received: time.Now()})
		}
		return nil
	}
}

type recordingMarker struct {
	mu sync.Mutex
	sb strings.Builder
}

func (m *recordingMarker) Mark(warmup bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if warmup {
		m.sb.WriteByte('-')
	} else {
		m.sb.WriteByte('+')
	}
}

func (m *recordingMarker) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sb.String()
}

type recordingLogger struct {
	mu   sync.Mutex
	errs []error
}

func (l *recordingLogger) LogFailure(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func TestRunMarksEveryTrial(t *testing.T) {
	launcher := &fakeLauncher{}
	markers := &recordingMarker{}
	collector := metrics.NewCollector()
	factory, _ := probers(succeedOn(3))

	res, err := runner.New(runner.Options{
		Warmup:    2,
		Measured:  3,
		Launcher:  launcher,
		NewProber: factory,
		Collector: collector,
		Markers:   markers,
		RunID:     "run-1",
	}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := markers.String(); got != "--+++" {
		t.Errorf("markers = %q, want %q", got, "--+++")
	}
	if res.Trials != 5 {
		t.Errorf("Trials = %d, want 5", res.Trials)
	}
	if res.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", res.RunID)
	}
	if res.Stats.Recorded != 3 {
		t.Errorf("Recorded = %d, want 3", res.Stats.Recorded)
	}
	if res.Stats.Probes != 15 {
		t.Errorf("Probes = %d, want 15", res.Stats.Probes)
	}
	if len(launcher.procs) != 5 {
		t.Errorf("launches = %d, want 5", len(launcher.procs))
	}
	launcher.allDestroyed(t)
}

func TestRunZeroTrials(t *testing.T) {
	launcher := &fakeLauncher{}
	factory, _ := probers(succeedOn(1))

	res, err := runner.New(runner.Options{Launcher: launcher, NewProber: factory}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(launcher.procs) != 0 {
		t.Errorf("launches = %d, want 0", len(launcher.procs))
	}
	if res.Stats.MeanLatencyMs != 0 || res.Stats.MinLatencyMs != 0 || res.Stats.MaxLatencyMs != 0 {
		t.Errorf("stats = %+v, want zeros", res.Stats)
	}
}

func TestRunStatusErrorIsFatal(t *testing.T) {
	launcher := &fakeLauncher{}
	markers := &recordingMarker{}
	factory, _ := probers(func(n int, onSuccess func(probe.Response), _ func(error)) error {
		return &probe.StatusError{StatusCode: http.StatusNotFound}
	})

	res, err := runner.New(runner.Options{
		Warmup:    1,
		Measured:  1,
		Launcher:  launcher,
		NewProber: factory,
		Markers:   markers,
	}).Run(context.Background())

	var statusErr *probe.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("Run() error = %v, want 404 StatusError", err)
	}
	if res.Trials != 0 {
		t.Errorf("Trials = %d, want 0", res.Trials)
	}
	if markers.String() != "" {
		t.Errorf("markers = %q, want none", markers.String())
	}
	if len(launcher.procs) != 1 {
		t.Errorf("launches = %d, want 1", len(launcher.procs))
	}
	launcher.allDestroyed(t)
}

func TestRunNoReplyWhenProcessExits(t *testing.T) {
	launcher := &fakeLauncher{aliveChecks: 3}
	factory, _ := probers(func(int, func(probe.Response), func(error)) error { return nil })

	_, err := runner.New(runner.Options{
		Measured:  2,
		Launcher:  launcher,
		NewProber: factory,
	}).Run(context.Background())
	if !errors.Is(err, runner.ErrNoReply) {
		t.Fatalf("Run() error = %v, want ErrNoReply", err)
	}
	launcher.allDestroyed(t)
}

func TestRunLaunchError(t *testing.T) {
	launchErr := errors.New("boom")
	factory, _ := probers(succeedOn(1))

	_, err := runner.New(runner.Options{
		Measured:  1,
		Launcher:  &fakeLauncher{err: launchErr},
		NewProber: factory,
	}).Run(context.Background())
	if !errors.Is(err, launchErr) {
		t.Fatalf("Run() error = %v, want %v", err, launchErr)
	}
}

func TestRunRequiresLauncherAndProber(t *testing.T) {
	if _, err := runner.New(runner.Options{Measured: 1}).Run(context.Background()); err == nil {
		t.Fatal("Run() error = nil, want error")
	}
}

func TestRunCountsOneReplyPerTrial(t *testing.T) {
	launcher := &fakeLauncher{}
	markers := &recordingMarker{}
	collector := metrics.NewCollector()
	// Every probe reports success several times concurrently; only one may win.
	factory, _ := probers(func(n int, onSuccess func(probe.Response), _ func(error)) error {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				onSuccess(probe.Response{StatusCode: http.StatusOK, Received: time.Now()})
			}()
		}
		wg.Wait()
		return nil
	})

	_, err := runner.New(runner.Options{
		Warmup:    3,
		Measured:  10,
		Launcher:  launcher,
		NewProber: factory,
		Collector: collector,
		Markers:   markers,
	}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := markers.String(); got != "---++++++++++" {
		t.Errorf("markers = %q", got)
	}
	if got := collector.Running().Count(); got != 10 {
		t.Errorf("recorded latencies = %d, want 10", got)
	}
}

func TestRunJoinsEachProbe(t *testing.T) {
	launcher := &fakeLauncher{}
	factory, inFlight := probers(func(n int, onSuccess func(probe.Response), _ func(error)) error {
		time.Sleep(time.Millisecond)
		if n == 4 {
			onSuccess(probe.Response{StatusCode: http.StatusOK, Received: time.Now()})
		}
		return nil
	})

	if _, err := runner.New(runner.Options{Measured: 2, Launcher: launcher, NewProber: factory}).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if inFlight.Load() != 0 {
		t.Errorf("in-flight probes after run = %d, want 0", inFlight.Load())
	}
}

func TestRunLogsSwallowedFailures(t *testing.T) {
	launcher := &fakeLauncher{}
	logger := &recordingLogger{}
	collector := metrics.NewCollector()
	refused := errors.New("connection refused")
	factory, _ := probers(func(n int, onSuccess func(probe.Response), onFailure func(error)) error {
		if n == 1 {
			onFailure(refused)
			return nil
		}
		onSuccess(probe.Response{StatusCode: http.StatusOK, Received: time.Now()})
		return nil
	})

	_, err := runner.New(runner.Options{
		Measured:      2,
		Launcher:      launcher,
		NewProber:     factory,
		Collector:     collector,
		FailureLogger: logger,
	}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.errs) != 2 {
		t.Errorf("logged failures = %d, want 2", len(logger.errs))
	}
	total := 0
	for _, n := range collector.Stats(2).ProbeFailures {
		total += n
	}
	if total != 2 {
		t.Errorf("recorded failures = %d, want 2", total)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	launcher := &fakeLauncher{}
	factory, _ := probers(succeedOn(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.New(runner.Options{Measured: 3, Launcher: launcher, NewProber: factory}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(launcher.procs) != 0 {
		t.Errorf("launches = %d, want 0", len(launcher.procs))
	}
}

func TestRunAgainstRealProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a unix sleep binary")
	}
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	markers := &recordingMarker{}
	res, err := runner.New(runner.Options{
		Warmup:    1,
		Measured:  2,
		Launcher:  runner.ProcessLauncher(process.Launcher{Command: []string{"sleep", "30"}}),
		NewProber: runner.HTTPProbers(probe.Options{Target: server.URL, Timeout: time.Second}),
		Markers:   markers,
	}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if markers.String() != "-++" {
		t.Errorf("markers = %q, want %q", markers.String(), "-++")
	}
	if hits.Load() != 3 {
		t.Errorf("server hits = %d, want 3", hits.Load())
	}
	if res.Stats.MinLatency <= 0 || res.Stats.MinLatency > res.Stats.MaxLatency {
		t.Errorf("latencies min=%s max=%s", res.Stats.MinLatency, res.Stats.MaxLatency)
	}
}
