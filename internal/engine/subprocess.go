package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storybox/internal/checkpoint"
	"storybox/internal/common/fsutil"
)

// SubprocessConfig configures the llama2.c subprocess engine.
type SubprocessConfig struct {
	// Bin is the llama2.c `run` (or `runq` for Q8_0 checkpoints) binary.
	// Empty means discover it on PATH and in common locations.
	Bin    string
	Logger *zerolog.Logger // nil discards
}

// subprocessEngine runs one llama2.c process per generation.
type subprocessEngine struct {
	bin     string
	preArgs []string // inserted before the checkpoint path (tests)
	env     []string
	log     zerolog.Logger
}

func NewSubprocess(cfg SubprocessConfig) Engine {
	e := &subprocessEngine{bin: strings.TrimSpace(cfg.Bin), log: zerolog.Nop()}
	if cfg.Logger != nil {
		e.log = *cfg.Logger
	}
	return e
}

type subprocessSession struct {
	e      *subprocessEngine
	bin    string
	spec   BuildSpec
	closed bool
}

func (e *subprocessEngine) Build(ctx context.Context, spec BuildSpec) (Session, error) {
	if strings.TrimSpace(spec.WeightsPath) == "" {
		return nil, errors.New("model path is empty")
	}
	if spec.Model.Format == checkpoint.FormatGGUF {
		return nil, fmt.Errorf("llama2c engine cannot run %s checkpoints", spec.Model.Format)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bin := e.bin
	if bin == "" {
		bin = discoverRunBin(spec.Model.Format)
	}
	if bin == "" {
		return nil, ErrDependencyUnavailable("llama2.c run binary not found: set engine_bin")
	}
	if !fsutil.IsFile(bin) {
		return nil, ErrDependencyUnavailable(fmt.Sprintf("llama2.c run binary not found or not a file: %s", bin))
	}
	e.log.Debug().Str("event", "subprocess_ready").Str("bin", bin).Str("model", spec.WeightsPath).Msg("engine")
	return &subprocessSession{e: e, bin: bin, spec: spec}, nil
}

func (s *subprocessSession) Config() checkpoint.Config { return s.spec.Model }

func (s *subprocessSession) args(req Request) []string {
	seed := req.Sampling.Seed & 0x7fffffff // run.c parses -s with atoi
	args := append([]string(nil), s.e.preArgs...)
	args = append(args,
		s.spec.WeightsPath,
		"-t", strconv.FormatFloat(float64(req.Sampling.Temperature), 'f', -1, 32),
		"-p", strconv.FormatFloat(float64(req.Sampling.TopP), 'f', -1, 32),
		"-s", strconv.FormatUint(seed, 10),
		"-n", strconv.Itoa(req.Steps),
		"-m", "generate",
	)
	if s.spec.TokenizerPath != "" {
		args = append(args, "-z", s.spec.TokenizerPath)
	}
	if req.Prompt != "" {
		args = append(args, "-i", req.Prompt)
	}
	return args
}

func (s *subprocessSession) Generate(ctx context.Context, req Request, onToken func(string) error) (Result, error) {
	if s.closed {
		return Result{}, errors.New("llama2c session closed")
	}
	cmd := exec.CommandContext(ctx, s.bin, s.args(req)...)
	cmd.Dir = filepath.Dir(s.spec.WeightsPath)
	cmd.Env = append(os.Environ(), s.e.env...)
	if s.spec.Threads > 0 {
		cmd.Env = append(cmd.Env, "OMP_NUM_THREADS="+strconv.Itoa(s.spec.Threads))
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, err
	}
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start llama2c: %w", err)
	}
	s.e.log.Debug().Str("event", "subprocess_start").Int("pid", cmd.Process.Pid).Int("steps", req.Steps).Msg("engine")

	var (
		text   strings.Builder
		chunks int // stdout reads, not tokens
		cbErr  error
	)
	r := bufio.NewReader(stdout)
	buf := make([]byte, 256)
	for {
		n, rerr := r.Read(buf)
		if n > 0 && cbErr == nil {
			piece := string(buf[:n])
			text.WriteString(piece)
			chunks++
			if err := onToken(piece); err != nil {
				cbErr = err
				_ = cmd.Process.Kill()
			}
		}
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) && cbErr == nil && ctx.Err() == nil {
				cbErr = rerr
			}
			break
		}
	}
	werr := cmd.Wait()
	elapsed := time.Since(start)
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if cbErr != nil {
		return Result{}, cbErr
	}
	if werr != nil {
		return Result{}, fmt.Errorf("llama2c exited: %v; stderr tail: %s", werr, tail(stderr.String(), 4096))
	}

	// run.c prints no token count; both figures derive from its achieved
	// rate, or from the stdout chunk count when that line is missing.
	res := Result{Text: text.String(), Elapsed: elapsed, Approximate: true}
	if tps, ok := parseAchieved(stderr.String()); ok {
		res.TokensPerSecond = tps
		res.Tokens = int(tps*elapsed.Seconds() + 0.5)
	} else {
		res.Tokens = chunks
		res.TokensPerSecond = Throughput(chunks, elapsed)
	}
	return res, nil
}

func (s *subprocessSession) Close() error {
	s.closed = true
	return nil
}

// parseAchieved extracts the rate from llama2.c's "achieved tok/s: N" line.
func parseAchieved(stderr string) (float64, bool) {
	const marker = "achieved tok/s:"
	i := strings.LastIndex(stderr, marker)
	if i < 0 {
		return 0, false
	}
	f := strings.Fields(stderr[i+len(marker):])
	if len(f) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func tail(s string, n int) string {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

// discoverRunBin attempts to locate a llama2.c binary able to run format.
func discoverRunBin(format checkpoint.Format) string {
	names := []string{"run"}
	if format == checkpoint.FormatQ80 {
		names = []string{"runq"}
	}
	home, _ := os.UserHomeDir()
	for _, name := range names {
		candidates := []string{
			filepath.Join(home, "llama2.c", name),
			filepath.Join("/usr/local/bin", name),
		}
		for _, p := range candidates {
			if fsutil.IsFile(p) {
				return p
			}
		}
		if lp, err := exec.LookPath(name); err == nil {
			return lp
		}
	}
	return ""
}
