package capture

import (
	"math"
	"sync"
	"time"

	"github.com/Akshita3104/SentinelAi-sub000/internal/core/model"
)

// Window is the bounded sliding buffer of packet records. Records older than
// the window width are expired on every append, and the total count never
// exceeds maxPackets; beyond that, the oldest records are dropped regardless
// of age. A single owner appends; readers take snapshots.
type Window struct {
	mu      sync.Mutex
	width   time.Duration
	max     int
	oldest  int64 // lower bound on the oldest timestamp held, milliseconds
	records []model.PacketRecord
}

// NewWindow creates a window of the given width bounded to maxPackets.
func NewWindow(width time.Duration, maxPackets int) *Window {
	return &Window{
		width:   width,
		max:     maxPackets,
		oldest:  math.MaxInt64,
		records: make([]model.PacketRecord, 0, 1024),
	}
}

// Append expires stale records, enforces the packet cap and inserts rec in
// observation order.
func (w *Window) Append(rec model.PacketRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.purgeLocked(time.Now())
	if len(w.records) >= w.max {
		// Cap reached: the append costs exactly one oldest record.
		w.records = w.records[1:]
	}
	w.records = append(w.records, rec)
	if rec.Timestamp < w.oldest {
		w.oldest = rec.Timestamp
	}
}

// Purge removes all records older than now minus the window width.
func (w *Window) Purge(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.purgeLocked(now)
}

func (w *Window) purgeLocked(now time.Time) {
	cutoff := now.Add(-w.width).UnixMilli()
	if len(w.records) == 0 || w.oldest >= cutoff {
		// Records arrive in observation order, not timestamp order, so the
		// head proves nothing. The tracked lower bound does: when even the
		// oldest timestamp is fresh the whole window is.
		return
	}
	kept := w.records[:0]
	oldest := int64(math.MaxInt64)
	for _, rec := range w.records {
		if rec.Timestamp >= cutoff {
			kept = append(kept, rec)
			if rec.Timestamp < oldest {
				oldest = rec.Timestamp
			}
		}
	}
	w.records = kept
	w.oldest = oldest
}

// Snapshot returns a stable copy of the window contents. Callers never
// observe concurrent mutation.
func (w *Window) Snapshot() []model.PacketRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.PacketRecord, len(w.records))
	copy(out, w.records)
	return out
}

// Size returns the current number of records held.
func (w *Window) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}
