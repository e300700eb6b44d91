package controller

import (
	"sync"
	"time"

	"storybox/pkg/types"
)

// Event names published by the controller.
const (
	EventLoadStart        = "load_start"
	EventLoadDone         = "load_done"
	EventFatal            = "fatal"
	EventGenerationStart  = "generation_start"
	EventGenerationDone   = "generation_done"
	EventGenerationFailed = "generation_failed"
	EventUnload           = "unload"
)

// Event represents a controller lifecycle event. CycleID ties together the
// events of one generation.
type Event struct {
	Name    string
	CycleID string
	Time    time.Time
	Fields  map[string]any
}

// EventPublisher receives events from the controller goroutine. Publish must
// not block or panic.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// DefaultEventHistory is the ring size used when NewMemoryPublisher gets a
// non-positive limit.
const DefaultEventHistory = 64

// MemoryPublisher keeps the most recent events in a fixed-size ring.
type MemoryPublisher struct {
	mu   sync.Mutex
	ring []Event
	next int
	full bool
}

func NewMemoryPublisher(limit int) *MemoryPublisher {
	if limit <= 0 {
		limit = DefaultEventHistory
	}
	return &MemoryPublisher{ring: make([]Event, limit)}
}

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.ring[p.next] = e
	p.next = (p.next + 1) % len(p.ring)
	if p.next == 0 {
		p.full = true
	}
	p.mu.Unlock()
}

// Events returns the retained events, oldest first.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.full {
		return append([]Event(nil), p.ring[:p.next]...)
	}
	out := make([]Event, 0, len(p.ring))
	out = append(out, p.ring[p.next:]...)
	return append(out, p.ring[:p.next]...)
}

// Names returns the retained event names, oldest first.
func (p *MemoryPublisher) Names() []string {
	evs := p.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Name
	}
	return out
}

// Recent returns the retained events as diagnostics records.
func (p *MemoryPublisher) Recent() []types.EventRecord {
	evs := p.Events()
	out := make([]types.EventRecord, len(evs))
	for i, e := range evs {
		out[i] = types.EventRecord{Name: e.Name, CycleID: e.CycleID, TimeUnix: e.Time.Unix(), Fields: e.Fields}
	}
	return out
}
