// Package engine defines the narrow contract the appliance uses to drive an
// inference engine, and the concrete backends that satisfy it.
//
// Backends:
//
//   - llama2c (subprocess.go): runs the llama2.c `run`/`runq` binary once per
//     generation. Always available; needs the binary on disk.
//   - llama (llama.go): in-process go-llama.cpp, enabled with `-tags=llama`.
//     llama_stub.go keeps default builds CGO-free and fails Build instead.
package engine

import (
	"context"
	"time"

	"storybox/internal/checkpoint"
)

// Engine abstracts the model runtime used by the lifecycle manager.
type Engine interface {
	// Build loads the model described by spec and returns a ready session.
	Build(ctx context.Context, spec BuildSpec) (Session, error)
}

// Session owns a built model for as long as it is open.
type Session interface {
	// Config reports the model shape; SeqLen and VocabSize are always set.
	Config() checkpoint.Config
	// Generate runs one generation to completion. onToken is invoked for each
	// decoded piece; a non-nil return stops generation with that error.
	// Implementations must return when ctx is canceled.
	Generate(ctx context.Context, req Request, onToken func(string) error) (Result, error)
	// Close releases the model.
	Close() error
}

// SamplingParams configures token sampling.
type SamplingParams struct {
	Temperature float32
	TopP        float32
	Seed        uint64
}

// BuildSpec is everything an engine needs to load a model.
type BuildSpec struct {
	WeightsPath   string
	TokenizerPath string
	// Model is the header-derived shape, already validated by the caller.
	Model    checkpoint.Config
	Sampling SamplingParams
	Threads  int
}

// Request is a single generation call.
type Request struct {
	Prompt   string
	Steps    int
	Sampling SamplingParams
}

// Result summarizes a finished generation.
type Result struct {
	Text            string
	Tokens          int
	Elapsed         time.Duration
	TokensPerSecond float64
	// Approximate is set when Tokens and TokensPerSecond are estimates rather
	// than counts, e.g. derived from output chunks instead of decoded tokens.
	Approximate bool
}

// Throughput returns tokens per second, or 0 when nothing was measured.
func Throughput(tokens int, elapsed time.Duration) float64 {
	if tokens <= 0 || elapsed <= 0 {
		return 0
	}
	return float64(tokens) / elapsed.Seconds()
}
