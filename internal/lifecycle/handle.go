package lifecycle

import (
	"context"
	"sync"
	"time"

	"storybox/internal/checkpoint"
	"storybox/internal/engine"
)

// HandleState is the lifecycle state of an engine handle.
type HandleState string

const (
	StateUnloaded HandleState = "unloaded"
	StateLoaded   HandleState = "loaded"
)

// GenerationRequest is one generation cycle's input. An empty prompt means
// no seed text.
type GenerationRequest struct {
	Prompt string
	Steps  int
}

// Handle aggregates the built engine session, the tokenizer table and the
// sampler. It is created by Load and retired by Unload; never recreated.
type Handle struct {
	// mu is held for reading for the whole of a generation so Unload cannot
	// tear the engine down underneath it.
	mu        sync.RWMutex
	state     HandleState
	session   engine.Session
	tokenizer *checkpoint.Tokenizer
	sampler   *sampler

	model         checkpoint.Config
	modelPath     string
	tokenizerPath string
	loadedAt      time.Time
	loadDuration  time.Duration
}

func (h *Handle) State() HandleState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Model reports the shape of the loaded model.
func (h *Handle) Model() checkpoint.Config { return h.model }

func (h *Handle) MaxSequenceLength() int { return h.model.SeqLen }

func (h *Handle) VocabSize() int { return h.model.VocabSize }

func (h *Handle) ModelPath() string { return h.modelPath }

func (h *Handle) LoadedAt() time.Time { return h.loadedAt }

func (h *Handle) LoadDuration() time.Duration { return h.loadDuration }

// Generate runs one generation on the engine. The step budget is clamped to
// the model's maximum sequence length; the sampler advances once per call.
func (h *Handle) Generate(ctx context.Context, req GenerationRequest, onToken func(string) error) (engine.Result, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state != StateLoaded {
		return engine.Result{}, ErrNotLoaded
	}
	if onToken == nil {
		onToken = func(string) error { return nil }
	}
	return h.session.Generate(ctx, engine.Request{
		Prompt:   req.Prompt,
		Steps:    ClampSteps(h.model.SeqLen, req.Steps),
		Sampling: h.sampler.next(),
	}, onToken)
}
