package controller

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storybox/internal/hw"
	"storybox/internal/lifecycle"
	"storybox/internal/wake"
	"storybox/pkg/types"
)

// ModelManager is the part of the lifecycle manager the controller drives.
type ModelManager interface {
	Load(ctx context.Context, modelPath, tokenizerPath string, sc lifecycle.SamplingConfig) (*lifecycle.Handle, error)
	ResolveStepBudget(h *lifecycle.Handle, requested int) int
	Unload(h *lifecycle.Handle) error
}

// Config wires the controller to its collaborators.
type Config struct {
	Models        ModelManager
	ModelPath     string
	TokenizerPath string
	Sampling      lifecycle.SamplingConfig

	// Prompt and Steps form the generation request; SetRequest replaces them.
	Prompt string
	Steps  int

	Button     hw.EdgeSource
	ButtonPin  string
	ButtonEdge hw.Edge
	Debounce   time.Duration
	Busy       hw.Indicator // nil: not driven
	Ready      hw.Indicator // nil: not driven

	Wake      *wake.Signal // nil: private signal
	Output    io.Writer    // story text; nil discards
	Logger    *zerolog.Logger
	Publisher EventPublisher
	Metrics   *Metrics
	NewID     func() string
	Now       func() time.Time
}

// Controller runs the appliance.
type Controller struct {
	models        ModelManager
	modelPath     string
	tokenizerPath string
	sampling      lifecycle.SamplingConfig

	button    hw.EdgeSource
	buttonPin string
	edge      hw.Edge
	debounce  time.Duration
	busy      hw.Indicator
	ready     hw.Indicator

	wake    *wake.Signal
	out     io.Writer
	log     zerolog.Logger
	pub     EventPublisher
	metrics *Metrics
	newID   func() string
	now     func() time.Time
	started time.Time
	running atomic.Bool

	reqMu  sync.Mutex
	prompt string
	steps  int

	mu sync.RWMutex
	st mirror
}

// New constructs a Controller, applying defaults for unset fields.
func New(cfg Config) *Controller {
	c := &Controller{
		models:        cfg.Models,
		modelPath:     cfg.ModelPath,
		tokenizerPath: cfg.TokenizerPath,
		sampling:      cfg.Sampling,
		button:        cfg.Button,
		buttonPin:     cfg.ButtonPin,
		edge:          cfg.ButtonEdge,
		debounce:      cfg.Debounce,
		busy:          cfg.Busy,
		ready:         cfg.Ready,
		wake:          cfg.Wake,
		out:           cfg.Output,
		log:           zerolog.Nop(),
		pub:           cfg.Publisher,
		metrics:       cfg.Metrics,
		newID:         cfg.NewID,
		now:           cfg.Now,
		prompt:        cfg.Prompt,
		steps:         cfg.Steps,
	}
	if cfg.Logger != nil {
		c.log = *cfg.Logger
	}
	if c.wake == nil {
		c.wake = wake.New()
	}
	if c.out == nil {
		c.out = io.Discard
	}
	if c.pub == nil {
		c.pub = noopPublisher{}
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.started = c.now()
	return c
}

// SetRequest replaces the prompt and step budget used by the next generation.
// The model is not reloaded; the budget is clamped when the cycle starts.
func (c *Controller) SetRequest(prompt string, steps int) {
	c.reqMu.Lock()
	c.prompt, c.steps = prompt, steps
	c.reqMu.Unlock()
	c.log.Info().Str("event", "request_updated").Int("steps", steps).Int("prompt_len", len(prompt)).Msg("generation request updated")
}

func (c *Controller) request() (string, int) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()
	return c.prompt, c.steps
}

// Run drives the appliance. It returns a *FatalError if the model cannot be
// loaded (indicators stay busy), or ctx.Err() after unloading the model once
// ctx is canceled. It does not return otherwise.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("controller: already running")
	}
	if c.models == nil {
		return c.halt("load model", errors.New("no model manager configured"))
	}

	c.enter(StateInitializing)
	if c.button == nil {
		return c.halt("configure button", errors.New("no edge source configured"))
	}
	if err := c.button.ConfigureEdgeInterrupt(c.buttonPin, c.edge, c.debounce, c.wake.Raise); err != nil {
		return c.halt("configure button", err)
	}

	h, err := c.load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.halt("load model", err)
	}
	if c.wake.Drain() {
		c.log.Debug().Str("event", "wake_discarded").Msg("press during load ignored")
	}

	for {
		c.enter(StateIdle)
		if err := c.wake.Wait(ctx); err != nil {
			return c.shutdown(h, err)
		}
		c.metrics.wake()
		c.enter(StateGenerating)
		c.generate(ctx, h)
		if err := ctx.Err(); err != nil {
			return c.shutdown(h, err)
		}
	}
}

// enter writes the indicator levels for s, then records s.
func (c *Controller) enter(s State) {
	busy, ready := s.indicators()
	c.setIndicator("busy", c.busy, busy)
	c.setIndicator("ready", c.ready, ready)
	c.mu.Lock()
	c.st.state = s
	c.st.busy, c.st.ready = busy, ready
	c.mu.Unlock()
	c.metrics.setState(s)
	c.log.Debug().Str("event", "state").Str("state", s.String()).Bool("busy", busy).Bool("ready", ready).Msg("controller")
}

func (c *Controller) setIndicator(name string, ind hw.Indicator, on bool) {
	if ind == nil {
		return
	}
	if err := ind.Set(on); err != nil {
		c.log.Warn().Err(err).Str("event", "indicator_error").Str("led", name).Msg("indicator write failed")
	}
}

func (c *Controller) load(ctx context.Context) (*lifecycle.Handle, error) {
	c.publish(Event{Name: EventLoadStart, Fields: map[string]any{"model": c.modelPath}})
	h, err := c.models.Load(ctx, c.modelPath, c.tokenizerPath, c.sampling)
	if err != nil {
		return nil, err
	}
	m := h.Model()
	c.metrics.observeLoad(h.LoadDuration())
	c.mu.Lock()
	c.st.model = &types.ModelStatus{
		Path:        h.ModelPath(),
		Format:      m.Format.String(),
		State:       string(h.State()),
		SeqLen:      h.MaxSequenceLength(),
		VocabSize:   h.VocabSize(),
		LoadSeconds: h.LoadDuration().Seconds(),
	}
	c.mu.Unlock()
	c.publish(Event{Name: EventLoadDone, Fields: map[string]any{
		"model": h.ModelPath(), "seq_len": h.MaxSequenceLength(), "vocab": h.VocabSize(),
	}})
	return h, nil
}

// generate runs one cycle. Engine errors are logged; the caller returns to Idle.
func (c *Controller) generate(ctx context.Context, h *lifecycle.Handle) {
	id := c.newID()
	prompt, requested := c.request()
	steps := c.models.ResolveStepBudget(h, requested)
	log := c.log.With().Str("cycle", id).Logger()

	log.Info().Str("event", "generation_start").Int("steps", steps).Msg("generating tokens")
	c.publish(Event{Name: EventGenerationStart, CycleID: id, Fields: map[string]any{"steps": steps}})

	start := c.now()
	res, err := h.Generate(ctx, lifecycle.GenerationRequest{Prompt: prompt, Steps: steps}, c.writePiece)
	elapsed := c.now().Sub(start)
	_, _ = io.WriteString(c.out, "\n")
	c.metrics.observeGeneration(elapsed, res.TokensPerSecond, err)

	last := &types.GenerationStatus{
		ID:              id,
		Steps:           steps,
		Tokens:          res.Tokens,
		TokensPerSecond: res.TokensPerSecond,
		FinishedUnix:    c.now().Unix(),
	}
	if err != nil {
		last.Error = err.Error()
		log.Error().Err(err).Str("event", "generation_error").Dur("elapsed", elapsed).Msg("generation failed")
		c.publish(Event{Name: EventGenerationFailed, CycleID: id, Fields: map[string]any{"error": err.Error()}})
	} else {
		log.Info().Str("event", "generation_done").Int("tokens", res.Tokens).Float64("tok_s", res.TokensPerSecond).
			Bool("approx", res.Approximate).Msgf("averaged %.2f tokens/s", res.TokensPerSecond)
		c.publish(Event{Name: EventGenerationDone, CycleID: id, Fields: map[string]any{
			"tokens": res.Tokens, "tok_s": res.TokensPerSecond,
		}})
	}
	c.mu.Lock()
	c.st.generations++
	c.st.last = last
	c.mu.Unlock()
}

// writePiece streams generated text to the output. Write failures are ignored.
func (c *Controller) writePiece(piece string) error {
	_, _ = io.WriteString(c.out, piece)
	return nil
}

func (c *Controller) publish(e Event) {
	e.Time = c.now()
	c.pub.Publish(e)
}

// halt reports a fatal error. Indicators keep their Initializing levels.
func (c *Controller) halt(op string, err error) error {
	fe := &FatalError{Op: op, Err: err}
	c.log.Error().Err(err).Str("event", "fatal").Str("op", op).Msg("appliance halted")
	c.publish(Event{Name: EventFatal, Fields: map[string]any{"op": op, "error": err.Error()}})
	c.mu.Lock()
	c.st.fatal = fe.Error()
	c.mu.Unlock()
	return fe
}

// shutdown unloads the model and turns both indicators off.
func (c *Controller) shutdown(h *lifecycle.Handle, cause error) error {
	if err := c.models.Unload(h); err != nil {
		c.log.Warn().Err(err).Str("event", "unload_error").Msg("unload failed")
	}
	c.publish(Event{Name: EventUnload})
	c.setIndicator("busy", c.busy, false)
	c.setIndicator("ready", c.ready, false)
	c.mu.Lock()
	c.st.busy, c.st.ready = false, false
	if c.st.model != nil {
		c.st.model.State = string(h.State())
	}
	c.mu.Unlock()
	c.log.Info().Str("event", "shutdown").Msg("controller stopped")
	return cause
}
