//go:build unix && !linux

package process

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// listProcesses reads the process table through ps(1).
func listProcesses() ([]procEntry, error) {
	out, err := exec.Command("ps", "-A", "-o", "pid=", "-o", "ppid=", "-o", "pgid=").Output()
	if err != nil {
		return nil, fmt.Errorf("ps: %w", err)
	}
	var entries []procEntry
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 3 {
			continue
		}
		var vals [3]int
		ok := true
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if ok {
			entries = append(entries, procEntry{pid: vals[0], ppid: vals[1], pgid: vals[2]})
		}
	}
	return entries, scanner.Err()
}

func processAlive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}

func openVictim(pid int) victim {
	if !processAlive(pid) {
		return goneVictim{}
	}
	return &pollVictim{pid: pid}
}
