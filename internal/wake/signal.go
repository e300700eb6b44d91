// Package wake provides the single-producer/single-consumer wake flag used to
// hand a hardware edge to the controller goroutine.
package wake

import "context"

// Signal is a one-slot wake flag. Any number of Raise calls made while the
// consumer is not waiting collapse into a single pending wake.
type Signal struct {
	ch chan struct{} // size 1: at most one pending wake
}

func New() *Signal { return &Signal{ch: make(chan struct{}, 1)} }

// Raise marks the waiter runnable. It never blocks and never allocates, so it
// is safe to call from an edge callback.
func (s *Signal) Raise() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait parks until a wake is pending, consuming it, or until ctx is done.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain discards a pending wake and reports whether there was one.
func (s *Signal) Drain() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Pending reports whether a wake is waiting to be consumed.
func (s *Signal) Pending() bool { return len(s.ch) > 0 }
