//go:build unix

package process

import (
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const exitPollInterval = 5 * time.Millisecond

func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killGroup signals every remaining member of the process group led by pgid.
func killGroup(pgid int) {
	_ = unix.Kill(-pgid, unix.SIGKILL)
}

// reapOrphans collects zombies reparented to us. That only happens when we
// run as pid 1, typically inside a container.
func reapOrphans() {
	if os.Getpid() != 1 {
		return
	}
	var status unix.WaitStatus
	for {
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		if pid <= 0 || err != nil {
			return
		}
	}
}

// pollVictim kills by pid and polls until the process is gone.
type pollVictim struct {
	pid int
}

func (v *pollVictim) kill() error {
	return unix.Kill(v.pid, unix.SIGKILL)
}

func (v *pollVictim) wait() {
	for processAlive(v.pid) {
		time.Sleep(exitPollInterval)
	}
}

// goneVictim stands in for a process that exited before it could be opened.
type goneVictim struct{}

func (goneVictim) kill() error { return nil }
func (goneVictim) wait()       {}
