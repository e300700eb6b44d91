package lifecycle

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"sync"
	"testing"
	"testing/fstest"

	"storybox/internal/checkpoint"
	"storybox/internal/engine"
)

const (
	testModelPath     = "data/stories.bin"
	testTokenizerPath = "data/tokenizer.bin"
)

// tinyModel returns a legacy llama2.c checkpoint padded to its exact size.
func tinyModel(t *testing.T, seqLen int32) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, v := range []int32{8, 16, 1, 2, 2, 4, seqLen} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("write header: %v", err)
		}
	}
	cfg := checkpoint.Config{Format: checkpoint.FormatLegacy, Dim: 8, HiddenDim: 16, Layers: 1, Heads: 2, KVHeads: 2, VocabSize: 4, SeqLen: int(seqLen), SharedClassifier: true}
	size, _ := cfg.ExpectedSize()
	out := make([]byte, size)
	copy(out, buf.Bytes())
	return out
}

// tinyTokenizer encodes a 4-entry llama2.c tokenizer table.
func tinyTokenizer(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := func(v any) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("write tokenizer: %v", err)
		}
	}
	w(int32(5))
	for i, s := range []string{"<unk>", "<s>", "</s>", " once"} {
		w(math.Float32bits(float32(-i)))
		w(int32(len(s)))
		buf.WriteString(s)
	}
	return buf.Bytes()
}

// artifacts returns an in-memory store holding a valid model and tokenizer.
func artifacts(t *testing.T, seqLen int32) fstest.MapFS {
	t.Helper()
	return fstest.MapFS{
		testModelPath:     &fstest.MapFile{Data: tinyModel(t, seqLen)},
		testTokenizerPath: &fstest.MapFile{Data: tinyTokenizer(t)},
	}
}

// fakeEngine is a lightweight in-memory engine used for tests.
type fakeEngine struct {
	mu       sync.Mutex
	buildErr error
	builds   int
	lastSpec engine.BuildSpec
	sessions []*fakeSession
	// block, when set, is received from before Generate returns.
	block chan struct{}
}

func (f *fakeEngine) Build(ctx context.Context, spec engine.BuildSpec) (engine.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds++
	f.lastSpec = spec
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	s := &fakeSession{f: f, cfg: spec.Model}
	f.sessions = append(f.sessions, s)
	return s, nil
}

type fakeSession struct {
	f        *fakeEngine
	cfg      checkpoint.Config
	mu       sync.Mutex
	requests []engine.Request
	closed   bool
}

func (s *fakeSession) Config() checkpoint.Config { return s.cfg }

func (s *fakeSession) Generate(ctx context.Context, req engine.Request, onToken func(string) error) (engine.Result, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if err := onToken("Once"); err != nil {
		return engine.Result{}, err
	}
	if s.f.block != nil {
		select {
		case <-s.f.block:
		case <-ctx.Done():
			return engine.Result{}, ctx.Err()
		}
	}
	return engine.Result{Text: "Once", Tokens: 1, TokensPerSecond: 10}, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Requests() []engine.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]engine.Request(nil), s.requests...)
}

func (s *fakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newTestManager(t *testing.T, store Storage, eng engine.Engine) *Manager {
	t.Helper()
	return New(Config{Engine: eng, Storage: store, TickSeed: func() uint64 { return 42 }})
}

var testSampling = SamplingConfig{Temperature: 1.0, TopP: 0.9}
