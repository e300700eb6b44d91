//go:build !llama

package engine

// This file provides a no-CGO stub for the llama engine. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds CGO-free.

import (
	"context"

	"github.com/rs/zerolog"
)

// LlamaBuilt indicates this binary was compiled with in-process llama support.
const LlamaBuilt = false

type llamaEngine struct {
	log zerolog.Logger
}

func NewLlama(log zerolog.Logger) Engine {
	return &llamaEngine{log: log}
}

// Build fails fast: the llama runtime is not available in this build.
func (e *llamaEngine) Build(ctx context.Context, spec BuildSpec) (Session, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
