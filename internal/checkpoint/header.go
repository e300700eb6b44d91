// Package checkpoint reads just enough of a model checkpoint and tokenizer
// table to validate them and derive the model's shape (vocabulary size,
// maximum sequence length) before an engine is asked to load them.
package checkpoint

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrMalformed is wrapped by every parse failure in this package.
var ErrMalformed = errors.New("malformed artifact")

// Format identifies the on-disk layout of a model checkpoint.
type Format int

const (
	FormatUnknown Format = iota
	// FormatLegacy is the llama2.c run.c layout: 7 x int32 header, fp32 weights.
	FormatLegacy
	// FormatFP32 is the 256-byte "ak42" version 1 header with fp32 weights.
	FormatFP32
	// FormatQ80 is the "ak42" version 2 header with int8 groups and fp32 scales.
	FormatQ80
	FormatGGUF
)

func (f Format) String() string {
	switch f {
	case FormatLegacy:
		return "llama2c-legacy"
	case FormatFP32:
		return "llama2c-fp32"
	case FormatQ80:
		return "llama2c-q80"
	case FormatGGUF:
		return "gguf"
	default:
		return "unknown"
	}
}

const (
	magicAK42 = 0x616b3432
	magicGGUF = 0x46554747 // "GGUF" little-endian

	ak42HeaderSize   = 256
	legacyHeaderSize = 7 * 4

	// Upper bounds used to reject garbage headers before sizes are computed.
	maxDim    = 1 << 16
	maxSeqLen = 1 << 20
	maxVocab  = 1 << 22
	maxLayers = 1 << 10
)

// Config is the model shape recorded in a checkpoint header.
type Config struct {
	Format           Format
	Dim              int
	HiddenDim        int
	Layers           int
	Heads            int
	KVHeads          int
	VocabSize        int
	SeqLen           int
	SharedClassifier bool
	// GroupSize is the quantization group size (FormatQ80 only).
	GroupSize int
	// Architecture is the GGUF general.architecture value.
	Architecture string
}

// ReadConfig detects the checkpoint format from the leading bytes of r and
// decodes its header.
func ReadConfig(r io.Reader) (Config, error) {
	br := bufio.NewReader(r)
	lead, err := br.Peek(4)
	if err != nil {
		return Config{}, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}
	switch binary.LittleEndian.Uint32(lead) {
	case magicAK42:
		return readAK42(br)
	case magicGGUF:
		return readGGUF(br)
	default:
		return readLegacy(br)
	}
}

func readLegacy(r io.Reader) (Config, error) {
	var h [7]int32
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return Config{}, fmt.Errorf("%w: legacy header: %v", ErrMalformed, err)
	}
	c := Config{
		Format:    FormatLegacy,
		Dim:       int(h[0]),
		HiddenDim: int(h[1]),
		Layers:    int(h[2]),
		Heads:     int(h[3]),
		KVHeads:   int(h[4]),
		VocabSize: int(h[5]),
		SeqLen:    int(h[6]),
	}
	// A positive vocab size marks a shared classifier; the sign is a flag.
	c.SharedClassifier = c.VocabSize > 0
	if c.VocabSize < 0 {
		c.VocabSize = -c.VocabSize
	}
	return c, c.validate()
}

func readAK42(r io.Reader) (Config, error) {
	var h struct {
		Magic   uint32
		Version int32
		Params  [7]int32
		Shared  uint8
	}
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return Config{}, fmt.Errorf("%w: ak42 header: %v", ErrMalformed, err)
	}
	c := Config{
		Dim:              int(h.Params[0]),
		HiddenDim:        int(h.Params[1]),
		Layers:           int(h.Params[2]),
		Heads:            int(h.Params[3]),
		KVHeads:          int(h.Params[4]),
		VocabSize:        int(h.Params[5]),
		SeqLen:           int(h.Params[6]),
		SharedClassifier: h.Shared != 0,
	}
	switch h.Version {
	case 1:
		c.Format = FormatFP32
	case 2:
		c.Format = FormatQ80
		var gs int32
		if err := binary.Read(r, binary.LittleEndian, &gs); err != nil {
			return Config{}, fmt.Errorf("%w: group size: %v", ErrMalformed, err)
		}
		c.GroupSize = int(gs)
	default:
		return Config{}, fmt.Errorf("%w: unsupported ak42 version %d", ErrMalformed, h.Version)
	}
	return c, c.validate()
}

func (c Config) validate() error {
	switch {
	case c.Dim <= 0 || c.Dim > maxDim:
		return fmt.Errorf("%w: dim %d out of range", ErrMalformed, c.Dim)
	case c.HiddenDim <= 0 || c.HiddenDim > 8*maxDim:
		return fmt.Errorf("%w: hidden dim %d out of range", ErrMalformed, c.HiddenDim)
	case c.Layers <= 0 || c.Layers > maxLayers:
		return fmt.Errorf("%w: layer count %d out of range", ErrMalformed, c.Layers)
	case c.Heads <= 0 || c.Dim%c.Heads != 0:
		return fmt.Errorf("%w: %d heads do not divide dim %d", ErrMalformed, c.Heads, c.Dim)
	case c.KVHeads <= 0 || c.KVHeads > c.Heads || c.Heads%c.KVHeads != 0:
		return fmt.Errorf("%w: kv heads %d incompatible with %d heads", ErrMalformed, c.KVHeads, c.Heads)
	case c.VocabSize <= 0 || c.VocabSize > maxVocab:
		return fmt.Errorf("%w: vocab size %d out of range", ErrMalformed, c.VocabSize)
	case c.SeqLen <= 0 || c.SeqLen > maxSeqLen:
		return fmt.Errorf("%w: seq len %d out of range", ErrMalformed, c.SeqLen)
	}
	if c.Format == FormatQ80 && (c.GroupSize <= 0 || c.Dim%c.GroupSize != 0) {
		return fmt.Errorf("%w: group size %d does not divide dim %d", ErrMalformed, c.GroupSize, c.Dim)
	}
	return nil
}

// ExpectedSize returns the minimum file size in bytes implied by the header.
// ok is false for formats whose size cannot be derived from the header alone
// (GGUF) and for shapes that cannot be sized (no heads, no Q8_0 group size).
func (c Config) ExpectedSize() (size int64, ok bool) {
	switch {
	case c.Format != FormatLegacy && c.Format != FormatFP32 && c.Format != FormatQ80:
		return 0, false
	case c.Heads <= 0:
		return 0, false
	case c.Format == FormatQ80 && c.GroupSize <= 0:
		return 0, false
	}
	L, d, h, v := int64(c.Layers), int64(c.Dim), int64(c.HiddenDim), int64(c.VocabSize)
	headSize := d / int64(c.Heads)
	kvDim := headSize * int64(c.KVHeads)

	norms := 2*L*d + d
	// wq, wk, wv, wo, w1, w2, w3 across all layers
	perLayer := d*d + 2*d*kvDim + d*d + 3*d*h
	emb := v * d
	var cls int64
	if !c.SharedClassifier {
		cls = v * d
	}

	switch c.Format {
	case FormatLegacy:
		rope := int64(c.SeqLen) * headSize
		return legacyHeaderSize + 4*(emb+norms+L*perLayer+rope+cls), true
	case FormatFP32:
		return ak42HeaderSize + 4*(norms+emb+L*perLayer+cls), true
	case FormatQ80:
		gs := int64(c.GroupSize)
		q := func(n int64) int64 { return n + 4*(n/gs) }
		size = ak42HeaderSize + 4*norms + q(emb)
		size += L * (2*q(d*d) + 2*q(d*kvDim) + 3*q(d*h))
		if cls > 0 {
			size += q(cls)
		}
		return size, true
	default:
		return 0, false
	}
}

// CheckSize reports a truncated checkpoint.
func (c Config) CheckSize(actual int64) error {
	want, ok := c.ExpectedSize()
	if !ok || actual >= want {
		return nil
	}
	return fmt.Errorf("%w: truncated checkpoint: %d bytes, header implies %d", ErrMalformed, actual, want)
}

// EmbeddedTokenizer reports whether the checkpoint carries its own tokenizer.
func (c Config) EmbeddedTokenizer() bool { return c.Format == FormatGGUF }
