package lifecycle

import (
	"errors"
	"fmt"
	"io/fs"

	"storybox/internal/checkpoint"
)

// Inspection describes validated artifacts without building an engine.
type Inspection struct {
	Model     checkpoint.Config
	ModelSize int64
	// Tokenizer is nil when the checkpoint embeds its own (GGUF).
	Tokenizer *checkpoint.Tokenizer
}

// Inspect validates the model and tokenizer artifacts and derives the model
// shape from the checkpoint header. It does not mutate state and is safe to
// call at any time.
func (m *Manager) Inspect(modelPath, tokenizerPath string) (Inspection, error) {
	var in Inspection
	cfg, size, err := m.inspectModel(modelPath)
	if err != nil {
		return in, err
	}
	in.Model, in.ModelSize = cfg, size
	if cfg.EmbeddedTokenizer() {
		if tokenizerPath != "" {
			m.log.Warn().Str("event", "tokenizer_ignored").Str("tokenizer", tokenizerPath).
				Str("format", cfg.Format.String()).Msg("checkpoint embeds its tokenizer")
		}
		return in, nil
	}
	tok, err := m.readTokenizer(tokenizerPath, cfg.VocabSize)
	if err != nil {
		return in, err
	}
	in.Tokenizer = tok
	return in, nil
}

func (m *Manager) inspectModel(path string) (checkpoint.Config, int64, error) {
	if path == "" {
		return checkpoint.Config{}, 0, errNotFound("model", path, fs.ErrNotExist)
	}
	f, err := m.store.Open(path)
	if err != nil {
		return checkpoint.Config{}, 0, errNotFound("model", path, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return checkpoint.Config{}, 0, errNotFound("model", path, err)
	}
	if fi.IsDir() {
		return checkpoint.Config{}, 0, errNotFound("model", path, errors.New("is a directory"))
	}
	cfg, err := checkpoint.ReadConfig(f)
	if err != nil {
		return checkpoint.Config{}, 0, errMalformed("model", path, err)
	}
	if err := cfg.CheckSize(fi.Size()); err != nil {
		return checkpoint.Config{}, 0, errMalformed("model", path, err)
	}
	return cfg, fi.Size(), nil
}

func (m *Manager) readTokenizer(path string, vocabSize int) (*checkpoint.Tokenizer, error) {
	if path == "" {
		return nil, errNotFound("tokenizer", path, fs.ErrNotExist)
	}
	b, err := fs.ReadFile(m.store, path)
	if err != nil {
		return nil, errNotFound("tokenizer", path, err)
	}
	tok, err := checkpoint.ParseTokenizer(b, vocabSize)
	if err != nil {
		return nil, errMalformed("tokenizer", path, fmt.Errorf("vocab %d: %w", vocabSize, err))
	}
	return tok, nil
}
