package hw

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// edgePoll bounds how long an edge goroutine blocks before checking Close.
const edgePoll = 250 * time.Millisecond

// GPIOConfig configures the periph.io backend.
type GPIOConfig struct {
	Logger *zerolog.Logger // nil discards
	Now    func() time.Time
}

// GPIO drives real pins through periph.io.
type GPIO struct {
	lookup func(string) gpio.PinIO
	log    zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	pins   []gpio.PinIO
	closed bool
	stop   chan struct{}
	wg     sync.WaitGroup
}

// OpenGPIO initializes the host drivers and returns a backend.
func OpenGPIO(cfg GPIOConfig) (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio: host init: %w", err)
	}
	return newGPIO(gpioreg.ByName, cfg), nil
}

func newGPIO(lookup func(string) gpio.PinIO, cfg GPIOConfig) *GPIO {
	g := &GPIO{lookup: lookup, log: zerolog.Nop(), now: cfg.Now, stop: make(chan struct{})}
	if cfg.Logger != nil {
		g.log = *cfg.Logger
	}
	return g
}

func (g *GPIO) pin(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, errors.New("gpio: empty pin name")
	}
	p := g.lookup(name)
	if p == nil {
		return nil, fmt.Errorf("gpio: unknown pin %q", name)
	}
	return p, nil
}

func periphEdge(e Edge) gpio.Edge {
	switch e {
	case EdgeRising:
		return gpio.RisingEdge
	case EdgeBoth:
		return gpio.BothEdges
	default:
		return gpio.FallingEdge
	}
}

// ConfigureEdgeInterrupt configures name as a pulled-up input and starts an
// edge goroutine that calls onAccept for every edge passing the debounce.
func (g *GPIO) ConfigureEdgeInterrupt(name string, edge Edge, debounce time.Duration, onAccept func()) error {
	if onAccept == nil {
		return errors.New("gpio: nil edge callback")
	}
	p, err := g.pin(name)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return errors.New("gpio: closed")
	}
	if err := p.In(gpio.PullUp, periphEdge(edge)); err != nil {
		return fmt.Errorf("gpio: configure %s: %w", name, err)
	}
	g.pins = append(g.pins, p)
	deb := NewDebouncer(debounce, g.now)
	g.log.Info().Str("event", "button_configured").Str("pin", name).Str("edge", edge.String()).
		Dur("debounce", debounce).Msg("gpio")
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		for {
			select {
			case <-g.stop:
				return
			default:
			}
			if !p.WaitForEdge(edgePoll) {
				continue
			}
			if deb.Accept() {
				onAccept()
			}
		}
	}()
	return nil
}

// Indicator configures name as an output, initially off.
func (g *GPIO) Indicator(name string) (Indicator, error) {
	p, err := g.pin(name)
	if err != nil {
		return nil, err
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("gpio: configure %s: %w", name, err)
	}
	g.mu.Lock()
	g.pins = append(g.pins, p)
	g.mu.Unlock()
	return &gpioIndicator{pin: p}, nil
}

// Close stops edge goroutines and halts every configured pin.
func (g *GPIO) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	close(g.stop)
	pins := g.pins
	g.pins = nil
	g.mu.Unlock()

	var errs []error
	for _, p := range pins {
		if err := p.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt %s: %w", p.Name(), err))
		}
	}
	g.wg.Wait()
	return errors.Join(errs...)
}

type gpioIndicator struct {
	pin gpio.PinIO
}

func (i *gpioIndicator) Set(on bool) error {
	return i.pin.Out(gpio.Level(on))
}
