package metrics

import (
	"math"
	"sync/atomic"
	"time"
)

// RunningStats accumulates sum, min and max of measured latencies without
// locks. It is safe for concurrent use.
type RunningStats struct {
	count atomic.Int64
	sum   atomic.Int64
	min   atomic.Int64
	max   atomic.Int64
}

// NewRunningStats returns stats with min at +inf and max at zero.
func NewRunningStats() *RunningStats {
	s := &RunningStats{}
	s.min.Store(math.MaxInt64)
	return s
}

// Add folds one latency into the totals.
func (s *RunningStats) Add(latency time.Duration) {
	v := int64(latency)
	s.count.Add(1)
	s.sum.Add(v)
	foldMin(&s.min, v)
	foldMax(&s.max, v)
}

func (s *RunningStats) Count() int64 { return s.count.Load() }

func (s *RunningStats) Sum() time.Duration { return time.Duration(s.sum.Load()) }

// Min returns the smallest latency, or math.MaxInt64 when nothing was added.
func (s *RunningStats) Min() time.Duration { return time.Duration(s.min.Load()) }

func (s *RunningStats) Max() time.Duration { return time.Duration(s.max.Load()) }

func foldMin(cell *atomic.Int64, v int64) {
	for {
		cur := cell.Load()
		if v >= cur || cell.CompareAndSwap(cur, v) {
			return
		}
	}
}

func foldMax(cell *atomic.Int64, v int64) {
	for {
		cur := cell.Load()
		if v <= cur || cell.CompareAndSwap(cur, v) {
			return
		}
	}
}
