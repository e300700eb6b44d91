package hw

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ConsoleConfig configures the development backend.
type ConsoleConfig struct {
	In     io.Reader       // a line on In is one button press
	Logger *zerolog.Logger // nil discards
	Now    func() time.Time
}

// Console emulates the board on a terminal: every line read from In is a
// button press, and indicator changes are logged.
type Console struct {
	in  io.Reader
	log zerolog.Logger
	now func() time.Time

	mu         sync.Mutex
	configured bool
	done       chan struct{}
}

func NewConsole(cfg ConsoleConfig) *Console {
	c := &Console{in: cfg.In, log: zerolog.Nop(), now: cfg.Now, done: make(chan struct{})}
	if cfg.Logger != nil {
		c.log = *cfg.Logger
	}
	return c
}

// ConfigureEdgeInterrupt starts reading presses from the input. The edge kind
// is ignored: a line is a press. Only one interrupt may be configured.
func (c *Console) ConfigureEdgeInterrupt(pin string, edge Edge, debounce time.Duration, onAccept func()) error {
	if onAccept == nil {
		return errors.New("console: nil edge callback")
	}
	if c.in == nil {
		return errors.New("console: no input")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configured {
		return errors.New("console: interrupt already configured")
	}
	c.configured = true
	deb := NewDebouncer(debounce, c.now)
	c.log.Info().Str("event", "button_configured").Str("pin", pin).Str("edge", edge.String()).
		Dur("debounce", debounce).Msg("press Enter to tell a story")
	go func() {
		defer close(c.done)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			if deb.Accept() {
				onAccept()
			} else {
				c.log.Debug().Str("event", "button_bounce").Str("pin", pin).Msg("edge absorbed by debounce")
			}
		}
		if err := sc.Err(); err != nil {
			c.log.Warn().Err(err).Str("event", "button_input_error").Msg("console input closed")
		}
	}()
	return nil
}

// Done is closed once the input reaches EOF.
func (c *Console) Done() <-chan struct{} { return c.done }

// Indicator returns a logged indicator with the given name.
func (c *Console) Indicator(name string) Indicator {
	return &consoleIndicator{name: name, log: c.log}
}

type consoleIndicator struct {
	name string
	log  zerolog.Logger
}

func (i *consoleIndicator) Set(on bool) error {
	i.log.Debug().Str("event", "led").Str("led", i.name).Bool("on", on).Msg("indicator")
	return nil
}
