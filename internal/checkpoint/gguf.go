package checkpoint

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// GGUF metadata value types.
const (
	ggufUint8 uint32 = iota
	ggufInt8
	ggufUint16
	ggufInt16
	ggufUint32
	ggufInt32
	ggufFloat32
	ggufBool
	ggufString
	ggufArray
	ggufUint64
	ggufInt64
	ggufFloat64
)

const maxGGUFString = 1 << 24

var ggufFixedSize = map[uint32]int64{
	ggufUint8: 1, ggufInt8: 1, ggufBool: 1,
	ggufUint16: 2, ggufInt16: 2,
	ggufUint32: 4, ggufInt32: 4, ggufFloat32: 4,
	ggufUint64: 8, ggufInt64: 8, ggufFloat64: 8,
}

type ggufValue struct {
	num   int64
	isNum bool
	str   string
	count uint64 // array length
}

type ggufReader struct {
	r *bufio.Reader
}

// readGGUF walks the metadata key/value section and picks out the keys that
// describe the model shape. Tensor infos are not read.
func readGGUF(br *bufio.Reader) (Config, error) {
	g := ggufReader{r: br}
	var h struct {
		Magic      uint32
		Version    uint32
		TensorN    uint64
		MetadataKV uint64
	}
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return Config{}, fmt.Errorf("%w: gguf header: %v", ErrMalformed, err)
	}
	if h.Version < 2 {
		return Config{}, fmt.Errorf("%w: unsupported gguf version %d", ErrMalformed, h.Version)
	}
	c := Config{Format: FormatGGUF}
	var explicitVocab int
	for i := uint64(0); i < h.MetadataKV; i++ {
		key, err := g.string()
		if err != nil {
			return Config{}, err
		}
		var typ uint32
		if err := binary.Read(br, binary.LittleEndian, &typ); err != nil {
			return Config{}, fmt.Errorf("%w: gguf kv %q type: %v", ErrMalformed, key, err)
		}
		v, err := g.value(typ)
		if err != nil {
			return Config{}, fmt.Errorf("gguf kv %q: %w", key, err)
		}
		switch {
		case key == "general.architecture":
			c.Architecture = v.str
		case key == "tokenizer.ggml.tokens":
			c.VocabSize = int(v.count)
		case !v.isNum:
		case strings.HasSuffix(key, ".context_length"):
			c.SeqLen = int(v.num)
		case strings.HasSuffix(key, ".embedding_length"):
			c.Dim = int(v.num)
		case strings.HasSuffix(key, ".feed_forward_length"):
			c.HiddenDim = int(v.num)
		case strings.HasSuffix(key, ".block_count"):
			c.Layers = int(v.num)
		case strings.HasSuffix(key, ".attention.head_count_kv"):
			c.KVHeads = int(v.num)
		case strings.HasSuffix(key, ".attention.head_count"):
			c.Heads = int(v.num)
		case strings.HasSuffix(key, ".vocab_size"):
			explicitVocab = int(v.num)
		}
	}
	if c.VocabSize == 0 {
		c.VocabSize = explicitVocab
	}
	if c.KVHeads == 0 {
		c.KVHeads = c.Heads
	}
	c.SharedClassifier = true
	return c, c.validate()
}

func (g ggufReader) string() (string, error) {
	var n uint64
	if err := binary.Read(g.r, binary.LittleEndian, &n); err != nil {
		return "", fmt.Errorf("%w: gguf string length: %v", ErrMalformed, err)
	}
	if n > maxGGUFString {
		return "", fmt.Errorf("%w: gguf string of %d bytes", ErrMalformed, n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(g.r, b); err != nil {
		return "", fmt.Errorf("%w: gguf string: %v", ErrMalformed, err)
	}
	return string(b), nil
}

func (g ggufReader) value(typ uint32) (ggufValue, error) {
	switch typ {
	case ggufString:
		s, err := g.string()
		return ggufValue{str: s}, err
	case ggufArray:
		var h struct {
			Elem  uint32
			Count uint64
		}
		if err := binary.Read(g.r, binary.LittleEndian, &h); err != nil {
			return ggufValue{}, fmt.Errorf("%w: gguf array header: %v", ErrMalformed, err)
		}
		if size, ok := ggufFixedSize[h.Elem]; ok {
			if err := g.skip(size * int64(h.Count)); err != nil {
				return ggufValue{}, err
			}
			return ggufValue{count: h.Count}, nil
		}
		for i := uint64(0); i < h.Count; i++ {
			if _, err := g.value(h.Elem); err != nil {
				return ggufValue{}, err
			}
		}
		return ggufValue{count: h.Count}, nil
	}
	size, ok := ggufFixedSize[typ]
	if !ok {
		return ggufValue{}, fmt.Errorf("%w: unknown gguf value type %d", ErrMalformed, typ)
	}
	var buf [8]byte
	if _, err := io.ReadFull(g.r, buf[:size]); err != nil {
		return ggufValue{}, fmt.Errorf("%w: gguf value: %v", ErrMalformed, err)
	}
	v := ggufValue{isNum: true}
	switch typ {
	case ggufUint8, ggufBool:
		v.num = int64(buf[0])
	case ggufInt8:
		v.num = int64(int8(buf[0]))
	case ggufUint16:
		v.num = int64(binary.LittleEndian.Uint16(buf[:]))
	case ggufInt16:
		v.num = int64(int16(binary.LittleEndian.Uint16(buf[:])))
	case ggufUint32:
		v.num = int64(binary.LittleEndian.Uint32(buf[:]))
	case ggufInt32:
		v.num = int64(int32(binary.LittleEndian.Uint32(buf[:])))
	case ggufUint64, ggufInt64:
		v.num = int64(binary.LittleEndian.Uint64(buf[:]))
	default:
		// floats carry no shape information
		v.isNum = false
	}
	return v, nil
}

func (g ggufReader) skip(n int64) error {
	if n < 0 {
		return fmt.Errorf("%w: negative gguf skip", ErrMalformed)
	}
	if _, err := io.CopyN(io.Discard, g.r, n); err != nil {
		return fmt.Errorf("%w: gguf array body: %v", ErrMalformed, err)
	}
	return nil
}
