//go:build !unix

package process

import (
	"os"
	"os/exec"
)

func configureProcAttr(*exec.Cmd) {}

func killGroup(int) {}

func reapOrphans() {}

// listProcesses is unsupported here; only the launched process is torn down.
func listProcesses() ([]procEntry, error) {
	return nil, nil
}

type handleVictim struct {
	proc *os.Process
}

func openVictim(pid int) victim {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return handleVictim{}
	}
	return handleVictim{proc: proc}
}

func (v handleVictim) kill() error {
	if v.proc == nil {
		return nil
	}
	return v.proc.Kill()
}

func (v handleVictim) wait() {
	if v.proc != nil {
		_, _ = v.proc.Wait()
	}
}
