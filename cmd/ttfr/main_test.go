package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/torosent/ttfr/internal/config"
	"github.com/torosent/ttfr/internal/probe"
	"github.com/torosent/ttfr/internal/runner"
)

// TestHelperServer is not a real test. It is the process under test when the
// test binary re-executes itself with TTFR_HELPER set.
func TestHelperServer(t *testing.T) {
	switch os.Getenv("TTFR_HELPER") {
	case "":
		t.Skip("helper process only")
	case "exit":
		os.Exit(0)
	}

	status, err := strconv.Atoi(os.Getenv("TTFR_HELPER_STATUS"))
	if err != nil || status == 0 {
		status = http.StatusOK
	}
	ln, err := net.Listen("tcp", os.Getenv("TTFR_HELPER_ADDR"))
	if err != nil {
		os.Exit(2)
	}
	_ = http.Serve(ln, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	os.Exit(0)
}

func helperCommand() []string {
	return []string{os.Args[0], "-test.run=^TestHelperServer$"}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

// setupHelper points the harness at a helper server answering with status.
func setupHelper(t *testing.T, warmup, measured, status int) {
	t.Helper()
	addr := freeAddr(t)
	t.Setenv("TTFR_HELPER", "serve")
	t.Setenv("TTFR_HELPER_ADDR", addr)
	t.Setenv("TTFR_HELPER_STATUS", strconv.Itoa(status))
	t.Setenv("BENCHMARK_URI", "http://"+addr+"/")
	t.Setenv("BENCHMARK_WARMUP", strconv.Itoa(warmup))
	t.Setenv("BENCHMARK_MEASURED", strconv.Itoa(measured))
}

var summaryLine = regexp.MustCompile(`^AVG \d+\.\d{2} ms MIN \d+\.\d{2} ms MAX \d+\.\d{2} ms\n$`)

func TestRunWarmupAndMeasured(t *testing.T) {
	setupHelper(t, 2, 3, http.StatusOK)

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), helperCommand(), &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v (stderr %q)", err, stderr.String())
	}

	if got := stdout.String(); got != "--+++\n" {
		t.Errorf("stdout = %q, want %q", got, "--+++\n")
	}
	if !summaryLine.MatchString(stderr.String()) {
		t.Errorf("stderr = %q, want summary line", stderr.String())
	}
}

func TestRunInvalidStatusIsFatal(t *testing.T) {
	setupHelper(t, 1, 2, http.StatusNotFound)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), helperCommand(), &stdout, &stderr)

	var statusErr *probe.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("run() error = %v, want invalid status 404", err)
	}
	if err.Error() != "invalid status: 404" {
		t.Errorf("error = %q", err.Error())
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want no markers", stdout.String())
	}
}

func TestRunProcessExitsBeforeReply(t *testing.T) {
	setupHelper(t, 0, 1, http.StatusOK)
	t.Setenv("TTFR_HELPER", "exit")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), helperCommand(), &stdout, &stderr)
	if !errors.Is(err, runner.ErrNoReply) {
		t.Fatalf("run() error = %v, want ErrNoReply", err)
	}
}

func TestRunNoCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), nil, &stdout, &stderr)
	if !errors.Is(err, config.ErrNoCommand) {
		t.Fatalf("run() error = %v, want ErrNoCommand", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
}

func TestRunZeroMeasuredTrials(t *testing.T) {
	setupHelper(t, 1, 0, http.StatusOK)

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), helperCommand(), &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if stdout.String() != "-\n" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "-\n")
	}
	if want := "AVG 0.00 ms MIN 0.00 ms MAX 0.00 ms\n"; stderr.String() != want {
		t.Errorf("stderr = %q, want %q", stderr.String(), want)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	t.Setenv("BENCHMARK_WARMUP", "many")

	err := run(context.Background(), []string{"./server"}, &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "warmup") {
		t.Fatalf("run() error = %v, want warmup parse error", err)
	}
}

func TestRunThresholds(t *testing.T) {
	setupHelper(t, 0, 2, http.StatusOK)

	t.Run("passing", func(t *testing.T) {
		t.Setenv("BENCHMARK_THRESHOLDS", "trials:count == 2, ttfr:min >= 0")
		var stderr bytes.Buffer
		if err := run(context.Background(), helperCommand(), &bytes.Buffer{}, &stderr); err != nil {
			t.Fatalf("run() error = %v", err)
		}
		if !strings.Contains(stderr.String(), "trials:count == 2") {
			t.Errorf("stderr missing threshold results: %q", stderr.String())
		}
	})

	t.Run("failing", func(t *testing.T) {
		t.Setenv("BENCHMARK_THRESHOLDS", "ttfr:max < 0")
		err := run(context.Background(), helperCommand(), &bytes.Buffer{}, &bytes.Buffer{})
		if !errors.Is(err, errThresholdsFailed) {
			t.Fatalf("run() error = %v, want errThresholdsFailed", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		t.Setenv("BENCHMARK_THRESHOLDS", "latency below 5")
		if err := run(context.Background(), helperCommand(), &bytes.Buffer{}, &bytes.Buffer{}); err == nil {
			t.Fatal("run() error = nil, want parse error")
		}
	})
}

func TestRunWritesReportAndHoldsLock(t *testing.T) {
	setupHelper(t, 1, 2, http.StatusOK)
	dir := t.TempDir()
	reportPath := filepath.Join(dir, "out", "report.json")
	t.Setenv("BENCHMARK_REPORT", reportPath)
	t.Setenv("BENCHMARK_LOCK_FILE", filepath.Join(dir, "ttfr.lock"))
	t.Setenv("BENCHMARK_VERBOSE", "true")

	var stderr bytes.Buffer
	if err := run(context.Background(), helperCommand(), &bytes.Buffer{}, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(stderr.String(), "Time To First Reply") {
		t.Errorf("verbose report missing from stderr: %q", stderr.String())
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var report struct {
		RunID    string `json:"run_id"`
		Measured int    `json:"measured"`
		Stats    struct {
			Recorded int `json:"recorded"`
			Trials   []struct {
				Warmup bool `json:"warmup"`
			} `json:"trials"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("invalid report JSON: %v", err)
	}
	if len(report.RunID) != 26 {
		t.Errorf("run_id = %q, want a ULID", report.RunID)
	}
	if report.Measured != 2 || report.Stats.Recorded != 2 || len(report.Stats.Trials) != 3 {
		t.Errorf("report = %+v", report)
	}
}

func TestRootCommandDoesNotParseFlags(t *testing.T) {
	t.Setenv("BENCHMARK_WARMUP", "0")
	t.Setenv("BENCHMARK_MEASURED", "1")

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr)
	cmd.SetArgs([]string{"--help"})
	err := cmd.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "launch") {
		t.Fatalf("Execute() error = %v, want launch failure for \"--help\"", err)
	}
	if strings.Contains(stdout.String(), "Usage") {
		t.Errorf("help was printed: %q", stdout.String())
	}
}

func TestRootCommandNoArgsPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr)
	cmd.SetArgs([]string{})
	err := cmd.ExecuteContext(context.Background())
	if !errors.Is(err, config.ErrNoCommand) {
		t.Fatalf("Execute() error = %v, want ErrNoCommand", err)
	}
	if !strings.Contains(stderr.String(), "ttfr <command>") {
		t.Errorf("stderr = %q, want usage line", stderr.String())
	}
}
