package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"storybox/internal/engine"
)

// Load validates the artifacts, builds the engine and seeds the sampler.
// Every failure is final: there is no fallback model and no retry.
func (m *Manager) Load(ctx context.Context, modelPath, tokenizerPath string, sc SamplingConfig) (*Handle, error) {
	m.mu.Lock()
	if m.live != nil || m.loading {
		m.mu.Unlock()
		return nil, ErrAlreadyLoaded
	}
	m.loading = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
	}()

	start := m.now()
	m.log.Info().Str("event", "load_start").Str("model", modelPath).Msg("loading model")

	in, err := m.Inspect(modelPath, tokenizerPath)
	if err != nil {
		m.log.Error().Err(err).Str("event", "load_invalid_artifact").Str("model", modelPath).Str("tokenizer", tokenizerPath).Msg("model load failed")
		return nil, err
	}

	seed := sc.Seed
	if seed == 0 {
		seed = m.tickSeed()
	}
	smp := newSampler(sc, seed)

	if m.eng == nil {
		return nil, engine.ErrDependencyUnavailable("no inference engine configured")
	}
	sess, err := m.eng.Build(ctx, engine.BuildSpec{
		WeightsPath:   modelPath,
		TokenizerPath: tokenizerPath,
		Model:         in.Model,
		Sampling:      smp.next(),
		Threads:       m.threads,
	})
	if err != nil {
		m.log.Error().Err(err).Str("event", "load_build_fail").Str("model", modelPath).Msg("model load failed")
		return nil, fmt.Errorf("build engine: %w", err)
	}
	got := sess.Config()
	if got.SeqLen <= 0 || got.VocabSize <= 0 {
		_ = sess.Close()
		return nil, errMalformed("model", modelPath, errors.New("engine reported no sequence length or vocabulary"))
	}

	h := &Handle{
		state:         StateLoaded,
		session:       sess,
		tokenizer:     in.Tokenizer,
		sampler:       smp,
		model:         got,
		modelPath:     modelPath,
		tokenizerPath: tokenizerPath,
		loadedAt:      m.now(),
	}
	h.loadDuration = h.loadedAt.Sub(start)

	m.mu.Lock()
	m.live = h
	m.builds++
	m.mu.Unlock()

	m.log.Info().Str("event", "load_done").
		Str("format", got.Format.String()).
		Int("seq_len", got.SeqLen).
		Int("vocab", got.VocabSize).
		Uint64("seed", seed).
		Msgf("model loading took %.2f s", h.loadDuration.Seconds())
	return h, nil
}
