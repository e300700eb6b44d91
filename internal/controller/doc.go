// Package controller is the appliance state machine. It loads the model once,
// parks until the button fires, runs one generation, and repeats forever,
// driving the busy/ready indicators on every transition.
//
// Files:
//   - controller.go: Config, New, Run and the per-state actions
//   - state.go: State and its indicator levels
//   - errors.go: FatalError
//   - events.go: EventPublisher, noop publisher and the bounded in-memory ring
//   - metrics.go: Prometheus collectors
//   - status.go: read-only diagnostic mirror
//
// Concurrency: Run owns the state machine and the engine handle on a single
// goroutine. The edge source's goroutine only ever calls wake.Signal.Raise.
package controller
