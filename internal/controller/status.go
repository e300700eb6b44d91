package controller

import (
	"storybox/internal/lifecycle"
	"storybox/pkg/types"
)

// mirror is the diagnostic copy of controller state. It is written by the
// Run goroutine and never read for control decisions.
type mirror struct {
	state       State
	busy, ready bool
	model       *types.ModelStatus
	generations uint64
	last        *types.GenerationStatus
	fatal       string
}

// Status returns a snapshot for diagnostics.
func (c *Controller) Status() types.Status {
	prompt, steps := c.request()
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := types.Status{
		State:         c.st.state.String(),
		Busy:          c.st.busy,
		Ready:         c.st.ready,
		Prompt:        prompt,
		Steps:         steps,
		Generations:   c.st.generations,
		Error:         c.st.fatal,
		UptimeSeconds: int64(c.now().Sub(c.started).Seconds()),
	}
	if c.st.model != nil {
		m := *c.st.model
		s.Model = &m
	}
	if c.st.last != nil {
		g := *c.st.last
		s.LastGeneration = &g
	}
	return s
}

// Ready reports whether the model is loaded and the appliance has not halted.
func (c *Controller) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.model != nil && c.st.model.State == string(lifecycle.StateLoaded) && c.st.fatal == ""
}
