package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

const outputWaitDelay = 2 * time.Second

// ErrNoCommand is returned by Start when the launcher has no command.
var ErrNoCommand = errors.New("no command to start")

// Launcher starts the process under test.
type Launcher struct {
	Command     []string
	PrintOutput bool      // inherit stdio instead of discarding it
	Stdout      io.Writer // used when PrintOutput is set (default os.Stdout)
	Stderr      io.Writer // used when PrintOutput is set (default os.Stderr)
}

// Handle owns one launched process and the descendants it spawns.
type Handle struct {
	cmd     *exec.Cmd
	pid     int
	exited  chan struct{}
	waitErr error

	destroyOnce sync.Once
	destroyErr  error
}

// Start launches the command in its own process group. Output is either
// inherited or discarded; nothing is captured.
func (l Launcher) Start() (*Handle, error) {
	if len(l.Command) == 0 || l.Command[0] == "" {
		return nil, ErrNoCommand
	}

	cmd := exec.Command(l.Command[0], l.Command[1:]...)
	if l.PrintOutput {
		cmd.Stdin = os.Stdin
		cmd.Stdout = l.Stdout
		if cmd.Stdout == nil {
			cmd.Stdout = os.Stdout
		}
		cmd.Stderr = l.Stderr
		if cmd.Stderr == nil {
			cmd.Stderr = os.Stderr
		}
		// Bounds Wait when an escaped grandchild keeps a copied pipe open.
		cmd.WaitDelay = outputWaitDelay
	}
	configureProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch %q: %w", l.Command[0], err)
	}

	h := &Handle{
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		exited: make(chan struct{}),
	}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.exited)
	}()
	return h, nil
}

// Pid returns the launched process id.
func (h *Handle) Pid() int {
	return h.pid
}

// Alive reports, without blocking, whether the launched process is running.
func (h *Handle) Alive() bool {
	select {
	case <-h.exited:
		return false
	default:
		return true
	}
}

// Exited is closed once the launched process has been reaped.
func (h *Handle) Exited() <-chan struct{} {
	return h.exited
}

// ExitErr returns the result of waiting on the launched process. It is only
// meaningful after Exited is closed.
func (h *Handle) ExitErr() error {
	select {
	case <-h.exited:
		return h.waitErr
	default:
		return nil
	}
}

// Descendants returns the ids of every live process transitively spawned by
// the launched process, including members of its process group that were
// already reparented.
func (h *Handle) Descendants() ([]int, error) {
	entries, err := listProcesses()
	if err != nil {
		return nil, err
	}
	return descendantsOf(h.pid, entries), nil
}

// Destroy forcibly terminates the launched process and all of its
// descendants, then blocks until every one of them has exited. It is safe to
// call more than once; later calls return the first result.
func (h *Handle) Destroy() error {
	h.destroyOnce.Do(func() {
		h.destroyErr = h.destroy()
	})
	return h.destroyErr
}

func (h *Handle) destroy() error {
	descendants, listErr := h.Descendants()

	var wg sync.WaitGroup
	wg.Add(len(descendants) + 1)
	for _, pid := range descendants {
		v := openVictim(pid)
		_ = v.kill()
		go func() {
			defer wg.Done()
			v.wait()
		}()
	}

	killGroup(h.pid)
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) && h.Alive() {
		listErr = errors.Join(listErr, fmt.Errorf("kill %d: %w", h.pid, err))
	}
	go func() {
		defer wg.Done()
		<-h.exited
	}()

	wg.Wait()
	reapOrphans()

	if listErr != nil {
		return fmt.Errorf("destroy process tree %d: %w", h.pid, listErr)
	}
	return nil
}

// victim is a process scheduled for forced termination.
type victim interface {
	kill() error
	wait()
}
