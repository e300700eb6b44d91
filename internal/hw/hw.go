// Package hw provides the appliance's button edge detector and status
// indicators. Two backends implement the contracts: GPIO (periph.io) for the
// real board and Console (stdin presses, logged LEDs) for development hosts.
package hw

import (
	"fmt"
	"strings"
	"time"
)

// Edge selects which signal transition raises an interrupt.
type Edge int

const (
	EdgeFalling Edge = iota
	EdgeRising
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeFalling:
		return "falling"
	case EdgeRising:
		return "rising"
	case EdgeBoth:
		return "both"
	default:
		return fmt.Sprintf("edge(%d)", int(e))
	}
}

// ParseEdge maps a config string to an Edge. Empty means falling.
func ParseEdge(s string) (Edge, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "falling":
		return EdgeFalling, nil
	case "rising":
		return EdgeRising, nil
	case "both":
		return EdgeBoth, nil
	}
	return 0, fmt.Errorf("unknown edge %q", s)
}

// EdgeSource delivers debounced edges on an input pin. onAccept runs on the
// source's own goroutine for every accepted edge; it must not block.
type EdgeSource interface {
	ConfigureEdgeInterrupt(pin string, edge Edge, debounce time.Duration, onAccept func()) error
}

// Indicator is a single on/off status output.
type Indicator interface {
	Set(on bool) error
}
