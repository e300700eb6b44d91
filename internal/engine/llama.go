//go:build llama

package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	llama "github.com/go-skynet/go-llama.cpp"
	"github.com/rs/zerolog"

	"storybox/internal/checkpoint"
)

// LlamaBuilt indicates this binary was compiled with in-process llama support.
const LlamaBuilt = true

// llamaEngine loads GGUF models in-process through go-llama.cpp.
type llamaEngine struct {
	log zerolog.Logger
}

func NewLlama(log zerolog.Logger) Engine {
	return &llamaEngine{log: log}
}

// llamaSession owns the loaded model
type llamaSession struct {
	model   *llama.LLama
	cfg     checkpoint.Config
	threads int
}

func (e *llamaEngine) Build(ctx context.Context, spec BuildSpec) (Session, error) {
	if strings.TrimSpace(spec.WeightsPath) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mo := []llama.ModelOption{
		llama.SetContext(spec.Model.SeqLen),
	}
	m, err := llama.New(spec.WeightsPath, mo...)
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("event", "llama_loaded").Str("model", spec.WeightsPath).Int("ctx", spec.Model.SeqLen).Msg("engine")
	return &llamaSession{model: m, cfg: spec.Model, threads: spec.Threads}, nil
}

func (s *llamaSession) Config() checkpoint.Config { return s.cfg }

func (s *llamaSession) Generate(ctx context.Context, req Request, onToken func(string) error) (Result, error) {
	if s.model == nil {
		return Result{}, errors.New("llama model not initialized")
	}

	var (
		tokens int
		cbErr  error
	)
	// Bridge token streaming to onToken and respect cancellation
	s.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		tokens++
		if err := onToken(tok); err != nil {
			cbErr = err
			return false
		}
		return true
	})
	start := time.Now()
	text, err := s.model.Predict(req.Prompt, predictOptions(req, s.threads)...)
	elapsed := time.Since(start)
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if cbErr != nil {
		return Result{}, cbErr
	}
	if err != nil {
		return Result{}, err
	}
	return Result{
		Text:            text,
		Tokens:          tokens,
		Elapsed:         elapsed,
		TokensPerSecond: Throughput(tokens, elapsed),
	}, nil
}

func (s *llamaSession) Close() error {
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}

func orDefault[T int | float32](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions maps a Request onto go-llama.cpp options. Unset threads and
// top-p fall back to the library defaults; temperature 0 is greedy.
func predictOptions(req Request, threads int) []llama.PredictOption {
	d := llama.DefaultOptions
	po := []llama.PredictOption{
		llama.SetTokens(max(1, req.Steps)),
		llama.SetThreads(orDefault(threads, d.Threads)),
		llama.SetTopP(orDefault(req.Sampling.TopP, d.TopP)),
		llama.SetTemperature(max(0, req.Sampling.Temperature)),
	}
	if req.Sampling.Seed != 0 {
		po = append(po, llama.SetSeed(int(req.Sampling.Seed&0x7fffffff)))
	}
	return po
}
