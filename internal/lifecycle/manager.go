package lifecycle

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"storybox/internal/engine"
)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	Engine  engine.Engine
	Storage Storage
	Logger  *zerolog.Logger // nil discards
	Threads int
	// TickSeed supplies the sampler seed when SamplingConfig.Seed is zero.
	TickSeed func() uint64
	Now      func() time.Time
}

// SamplingConfig is the fixed sampling policy of the appliance.
type SamplingConfig struct {
	Temperature float32
	TopP        float32
	// Seed pins the sampler; zero derives it from TickSeed.
	Seed uint64
}

// Manager produces and retires the engine handle.
type Manager struct {
	eng      engine.Engine
	store    Storage
	log      zerolog.Logger
	threads  int
	tickSeed func() uint64
	now      func() time.Time

	mu      sync.Mutex
	live    *Handle
	loading bool
	builds  int
}

// New constructs a Manager, applying defaults for unset fields.
func New(cfg Config) *Manager {
	m := &Manager{
		eng:      cfg.Engine,
		store:    cfg.Storage,
		log:      zerolog.Nop(),
		threads:  cfg.Threads,
		tickSeed: cfg.TickSeed,
		now:      cfg.Now,
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	}
	if m.store == nil {
		m.store = OSStorage{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.tickSeed == nil {
		m.tickSeed = func() uint64 { return uint64(m.now().UnixNano()) }
	}
	return m
}

// Current returns the Loaded handle, if any.
func (m *Manager) Current() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// Builds reports how many times an engine has been built by this Manager.
func (m *Manager) Builds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.builds
}

// ResolveStepBudget clamps a requested step budget to the handle's maximum
// sequence length. Zero, negative and oversized requests resolve to the
// maximum; this is policy, not an error.
func (m *Manager) ResolveStepBudget(h *Handle, requested int) int {
	return ClampSteps(h.MaxSequenceLength(), requested)
}

// ClampSteps returns limit when requested <= 0 or requested > limit, else requested.
func ClampSteps(limit, requested int) int {
	if requested <= 0 || requested > limit {
		return limit
	}
	return requested
}
