package process

import "sort"

// procEntry is one row of the process table.
type procEntry struct {
	pid  int
	ppid int
	pgid int
}

// descendantsOf walks parent links from root and adds every process that
// shares root's process group. root itself is excluded.
func descendantsOf(root int, entries []procEntry) []int {
	children := make(map[int][]int, len(entries))
	for _, e := range entries {
		children[e.ppid] = append(children[e.ppid], e.pid)
	}

	seen := map[int]bool{root: true}
	var out []int
	queue := []int{root}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		for _, child := range children[pid] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}

	for _, e := range entries {
		if e.pgid == root && !seen[e.pid] {
			seen[e.pid] = true
			out = append(out, e.pid)
		}
	}

	sort.Ints(out)
	return out
}
