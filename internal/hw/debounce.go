package hw

import (
	"sync/atomic"
	"time"
)

// Debouncer accepts an edge only if no edge was accepted within the window.
// Accept is lock-free so it can run on an edge-delivery goroutine.
type Debouncer struct {
	window time.Duration
	now    func() time.Time
	last   atomic.Int64 // unix nanos of the last accepted edge, 0 = none
}

// NewDebouncer returns a Debouncer; now defaults to time.Now.
func NewDebouncer(window time.Duration, now func() time.Time) *Debouncer {
	if now == nil {
		now = time.Now
	}
	return &Debouncer{window: window, now: now}
}

// Accept reports whether an edge observed now should be delivered.
func (d *Debouncer) Accept() bool {
	t := d.now().UnixNano()
	for {
		last := d.last.Load()
		if last != 0 && d.window > 0 && t-last < int64(d.window) {
			return false
		}
		if d.last.CompareAndSwap(last, t) {
			return true
		}
	}
}
