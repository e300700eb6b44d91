package lifecycle

// Unload releases the sampler, the tokenizer and the engine (weights), in the
// reverse order of acquisition, and marks the handle Unloaded. It waits for an
// in-flight generation on h to finish first.
func (m *Manager) Unload(h *Handle) error {
	if h == nil {
		return ErrNotLoaded
	}
	h.mu.Lock()
	if h.state != StateLoaded {
		h.mu.Unlock()
		return ErrNotLoaded
	}
	m.log.Info().Str("event", "unload_start").Str("model", h.modelPath).Msg("unloading model")
	h.sampler = nil
	h.tokenizer = nil
	err := h.session.Close()
	h.session = nil
	h.state = StateUnloaded
	h.mu.Unlock()

	m.mu.Lock()
	if m.live == h {
		m.live = nil
	}
	m.mu.Unlock()

	if err != nil {
		m.log.Warn().Err(err).Str("event", "unload_close_error").Msg("engine close failed")
	}
	m.log.Info().Str("event", "unload_done").Msg("model unloaded")
	return err
}
