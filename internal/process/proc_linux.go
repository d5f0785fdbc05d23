//go:build linux

package process

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// listProcesses reads the process table from /proc.
func listProcesses() ([]procEntry, error) {
	dirs, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("read /proc: %w", err)
	}
	entries := make([]procEntry, 0, len(dirs))
	for _, d := range dirs {
		if _, err := strconv.Atoi(d.Name()); err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/proc", d.Name(), "stat"))
		if err != nil {
			continue // exited while listing
		}
		if entry, _, ok := parseStat(data); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// parseStat extracts pid, state, ppid and pgrp from a /proc/<pid>/stat line.
// The command name may contain spaces and parentheses, so fields are read
// after the last ')'.
func parseStat(data []byte) (procEntry, byte, bool) {
	open := bytes.IndexByte(data, '(')
	closing := bytes.LastIndexByte(data, ')')
	if open <= 0 || closing < open {
		return procEntry{}, 0, false
	}
	pid, err := strconv.Atoi(string(bytes.TrimSpace(data[:open])))
	if err != nil {
		return procEntry{}, 0, false
	}
	fields := bytes.Fields(data[closing+1:])
	if len(fields) < 3 || len(fields[0]) == 0 {
		return procEntry{}, 0, false
	}
	ppid, err := strconv.Atoi(string(fields[1]))
	if err != nil {
		return procEntry{}, 0, false
	}
	pgid, err := strconv.Atoi(string(fields[2]))
	if err != nil {
		return procEntry{}, 0, false
	}
	return procEntry{pid: pid, ppid: ppid, pgid: pgid}, fields[0][0], true
}

// processAlive reports whether pid exists and is neither a zombie nor dead.
func processAlive(pid int) bool {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return false
	}
	_, state, ok := parseStat(data)
	if !ok {
		return false
	}
	return state != 'Z' && state != 'X'
}

// pidfdVictim signals and waits through a pidfd, so a recycled pid can never
// be hit by mistake.
type pidfdVictim struct {
	pid int
	fd  int
}

func openVictim(pid int) victim {
	fd, err := unix.PidfdOpen(pid, 0)
	if err != nil {
		if errors.Is(err, unix.ESRCH) {
			return goneVictim{}
		}
		return &pollVictim{pid: pid}
	}
	return &pidfdVictim{pid: pid, fd: fd}
}

func (v *pidfdVictim) kill() error {
	return unix.PidfdSendSignal(v.fd, unix.SIGKILL, nil, 0)
}

func (v *pidfdVictim) wait() {
	defer unix.Close(v.fd)
	fds := []unix.PollFd{{Fd: int32(v.fd), Events: unix.POLLIN}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == nil {
			return
		}
		if !errors.Is(err, unix.EINTR) {
			(&pollVictim{pid: v.pid}).wait()
			return
		}
	}
}
