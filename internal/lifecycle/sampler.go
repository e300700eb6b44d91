package lifecycle

import (
	"sync"

	"storybox/internal/engine"
)

// sampler holds the sampling policy and a xorshift RNG state that advances
// once per generation, so consecutive stories differ.
type sampler struct {
	temperature float32
	topP        float32

	mu    sync.Mutex
	state uint64
}

func newSampler(sc SamplingConfig, seed uint64) *sampler {
	if seed == 0 {
		seed = 1 // xorshift never leaves zero
	}
	return &sampler{temperature: sc.Temperature, topP: sc.TopP, state: seed}
}

func (s *sampler) nextU32() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state ^= s.state >> 12
	s.state ^= s.state << 25
	s.state ^= s.state >> 27
	return uint32((s.state * 0x2545F4914F6CDD1D) >> 32)
}

// next draws the parameters for one generation.
func (s *sampler) next() engine.SamplingParams {
	return engine.SamplingParams{
		Temperature: s.temperature,
		TopP:        s.topP,
		Seed:        uint64(s.nextU32()),
	}
}
