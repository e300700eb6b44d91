package controller

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"storybox/internal/checkpoint"
	"storybox/internal/engine"
	"storybox/internal/hw"
	"storybox/internal/lifecycle"
)

const (
	testModelPath     = "data/stories.bin"
	testTokenizerPath = "data/tokenizer.bin"
	testSeqLen        = 256
)

// recorder is the single ordered log shared by indicators and the engine,
// so tests can assert on the interleaving of their effects.
type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.entries = append(r.entries, s)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

func (r *recorder) contains(s string) bool {
	for _, e := range r.snapshot() {
		if e == s {
			return true
		}
	}
	return false
}

type fakeIndicator struct {
	name string
	rec  *recorder
	err  error
}

func (i *fakeIndicator) Set(on bool) error {
	state := "off"
	if on {
		state = "on"
	}
	i.rec.add(i.name + "=" + state)
	return i.err
}

type fakeButton struct {
	mu       sync.Mutex
	onAccept func()
	pin      string
	edge     hw.Edge
	debounce time.Duration
	err      error
}

func (b *fakeButton) ConfigureEdgeInterrupt(pin string, edge hw.Edge, debounce time.Duration, onAccept func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.pin, b.edge, b.debounce, b.onAccept = pin, edge, debounce, onAccept
	return nil
}

// press delivers one accepted edge, as the edge goroutine would.
func (b *fakeButton) press() {
	b.mu.Lock()
	fn := b.onAccept
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type fakeEngine struct {
	rec       *recorder
	buildGate chan struct{}
	genGate   chan struct{}
	genErr    error

	mu       sync.Mutex
	builds   int
	requests []engine.Request
	closed   bool
}

func (f *fakeEngine) Build(ctx context.Context, spec engine.BuildSpec) (engine.Session, error) {
	f.rec.add("build")
	if f.buildGate != nil {
		select {
		case <-f.buildGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	f.builds++
	f.mu.Unlock()
	return &fakeSession{f: f, cfg: spec.Model}, nil
}

func (f *fakeEngine) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeEngine) reqs() []engine.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Request(nil), f.requests...)
}

func (f *fakeEngine) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeSession struct {
	f   *fakeEngine
	cfg checkpoint.Config
}

func (s *fakeSession) Config() checkpoint.Config { return s.cfg }

func (s *fakeSession) Generate(ctx context.Context, req engine.Request, onToken func(string) error) (engine.Result, error) {
	s.f.rec.add("generate")
	s.f.mu.Lock()
	s.f.requests = append(s.f.requests, req)
	s.f.mu.Unlock()
	if s.f.genGate != nil {
		select {
		case <-s.f.genGate:
		case <-ctx.Done():
			return engine.Result{}, ctx.Err()
		}
	}
	if s.f.genErr != nil {
		return engine.Result{}, s.f.genErr
	}
	if err := onToken("Once upon a time"); err != nil {
		return engine.Result{}, err
	}
	return engine.Result{Text: "Once upon a time", Tokens: 4, Elapsed: time.Second, TokensPerSecond: 4}, nil
}

func (s *fakeSession) Close() error {
	s.f.rec.add("close")
	s.f.mu.Lock()
	s.f.closed = true
	s.f.mu.Unlock()
	return nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func artifacts(t *testing.T) fstest.MapFS {
	t.Helper()
	var model bytes.Buffer
	for _, v := range []int32{8, 16, 1, 2, 2, 4, testSeqLen} {
		_ = binary.Write(&model, binary.LittleEndian, v)
	}
	cfg := checkpoint.Config{Format: checkpoint.FormatLegacy, Dim: 8, HiddenDim: 16, Layers: 1, Heads: 2, KVHeads: 2, VocabSize: 4, SeqLen: testSeqLen, SharedClassifier: true}
	size, _ := cfg.ExpectedSize()
	weights := make([]byte, size)
	copy(weights, model.Bytes())

	var tok bytes.Buffer
	_ = binary.Write(&tok, binary.LittleEndian, int32(5))
	for i, s := range []string{"<unk>", "<s>", "</s>", " once"} {
		_ = binary.Write(&tok, binary.LittleEndian, math.Float32bits(float32(-i)))
		_ = binary.Write(&tok, binary.LittleEndian, int32(len(s)))
		tok.WriteString(s)
	}
	return fstest.MapFS{
		testModelPath:     &fstest.MapFile{Data: weights},
		testTokenizerPath: &fstest.MapFile{Data: tok.Bytes()},
	}
}

type harness struct {
	t      *testing.T
	rec    *recorder
	eng    *fakeEngine
	btn    *fakeButton
	mgr    *lifecycle.Manager
	pub    *MemoryPublisher
	out    *syncBuffer
	ctrl   *Controller
	cancel context.CancelFunc
	done   chan error
}

func newHarness(t *testing.T, store fstest.MapFS, mutate ...func(*harness, *Config)) *harness {
	t.Helper()
	rec := &recorder{}
	h := &harness{
		t:   t,
		rec: rec,
		eng: &fakeEngine{rec: rec},
		btn: &fakeButton{},
		pub: NewMemoryPublisher(0),
		out: &syncBuffer{},
	}
	h.mgr = lifecycle.New(lifecycle.Config{Engine: h.eng, Storage: store, TickSeed: func() uint64 { return 1 }})
	cfg := Config{
		Models:        h.mgr,
		ModelPath:     testModelPath,
		TokenizerPath: testTokenizerPath,
		Sampling:      lifecycle.SamplingConfig{Temperature: 1.0, TopP: 0.9},
		Button:        h.btn,
		ButtonPin:     "GPIO17",
		Debounce:      50 * time.Millisecond,
		Busy:          &fakeIndicator{name: "busy", rec: rec},
		Ready:         &fakeIndicator{name: "ready", rec: rec},
		Output:        h.out,
		Publisher:     h.pub,
	}
	for _, m := range mutate {
		m(h, &cfg)
	}
	h.ctrl = New(cfg)
	return h
}

func (h *harness) start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() { h.done <- h.ctrl.Run(ctx) }()
	h.t.Cleanup(cancel)
}

// stop cancels Run and returns its error.
func (h *harness) stop() error {
	h.t.Helper()
	h.cancel()
	return h.wait()
}

func (h *harness) wait() error {
	h.t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		h.t.Fatalf("Run did not return")
		return nil
	}
}

func (h *harness) waitIdle(generations uint64) {
	h.t.Helper()
	waitFor(h.t, func() bool {
		s := h.ctrl.Status()
		return s.State == StateIdle.String() && s.Generations == generations
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

// settle gives the controller goroutine a chance to act on anything pending.
func settle() { time.Sleep(30 * time.Millisecond) }

var errBoom = errors.New("boom")
