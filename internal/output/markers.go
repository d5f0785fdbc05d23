package output

import (
	"io"
	"sync"
)

// Markers writes one progress character per finished trial: '-' for warmup
// and '+' for measured trials. Marks may arrive from probe goroutines, so
// writes are serialised.
type Markers struct {
	mu sync.Mutex
	w  io.Writer
}

func NewMarkers(w io.Writer) *Markers {
	if w == nil {
		w = io.Discard
	}
	return &Markers{w: w}
}

// Mark records one finished trial.
func (m *Markers) Mark(warmup bool) {
	b := []byte{'+'}
	if warmup {
		b[0] = '-'
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, _ = m.w.Write(b)
}

// Finish terminates the marker line.
func (m *Markers) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, _ = io.WriteString(m.w, "\n")
}
