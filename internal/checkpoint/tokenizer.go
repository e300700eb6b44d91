package checkpoint

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tokenizer is a parsed llama2.c tokenizer table.
type Tokenizer struct {
	MaxTokenLength int
	Vocab          []string
	Scores         []float32
}

// ParseTokenizer decodes the first vocabSize entries of a llama2.c
// tokenizer.bin: an int32 max token length followed by (float32 score,
// int32 length, bytes) records. Trailing records are ignored.
func ParseTokenizer(b []byte, vocabSize int) (*Tokenizer, error) {
	if vocabSize <= 0 {
		return nil, fmt.Errorf("%w: vocab size %d", ErrMalformed, vocabSize)
	}
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: tokenizer header: %d bytes", ErrMalformed, len(b))
	}
	t := &Tokenizer{
		MaxTokenLength: int(int32(binary.LittleEndian.Uint32(b))),
		Vocab:          make([]string, vocabSize),
		Scores:         make([]float32, vocabSize),
	}
	if t.MaxTokenLength <= 0 {
		return nil, fmt.Errorf("%w: max token length %d", ErrMalformed, t.MaxTokenLength)
	}
	off := 4
	for i := 0; i < vocabSize; i++ {
		if len(b)-off < 8 {
			return nil, fmt.Errorf("%w: tokenizer truncated at token %d of %d", ErrMalformed, i, vocabSize)
		}
		t.Scores[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
		n := int(int32(binary.LittleEndian.Uint32(b[off+4:])))
		off += 8
		if n < 0 || n > t.MaxTokenLength {
			return nil, fmt.Errorf("%w: token %d has length %d (max %d)", ErrMalformed, i, n, t.MaxTokenLength)
		}
		if len(b)-off < n {
			return nil, fmt.Errorf("%w: tokenizer truncated inside token %d", ErrMalformed, i)
		}
		t.Vocab[i] = string(b[off : off+n])
		off += n
	}
	return t, nil
}
