package checkpoint

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// legacyHeader encodes a llama2.c run.c header.
func legacyHeader(t *testing.T, dim, hidden, layers, heads, kvHeads, vocab, seqLen int32) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, v := range []int32{dim, hidden, layers, heads, kvHeads, vocab, seqLen} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("write header: %v", err)
		}
	}
	return buf.Bytes()
}

// ak42Header encodes a 256-byte llama2.c export header.
func ak42Header(t *testing.T, version int32, params [7]int32, shared bool, groupSize int32) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := func(v any) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("write header: %v", err)
		}
	}
	w(uint32(magicAK42))
	w(version)
	w(params)
	if shared {
		w(uint8(1))
	} else {
		w(uint8(0))
	}
	if version == 2 {
		w(groupSize)
	}
	out := make([]byte, ak42HeaderSize)
	copy(out, buf.Bytes())
	return out
}

// tokenizerBytes encodes a llama2.c tokenizer table.
func tokenizerBytes(t *testing.T, tokens []string) []byte {
	t.Helper()
	maxLen := 1
	for _, s := range tokens {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}
	var buf bytes.Buffer
	w := func(v any) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("write tokenizer: %v", err)
		}
	}
	w(int32(maxLen))
	for i, s := range tokens {
		w(math.Float32bits(float32(-i)))
		w(int32(len(s)))
		buf.WriteString(s)
	}
	return buf.Bytes()
}

type ggufKV struct {
	key string
	typ uint32
	val any
}

// ggufBytes encodes a GGUF v3 header with the given metadata.
func ggufBytes(t *testing.T, kvs []ggufKV) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := func(v any) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("write gguf: %v", err)
		}
	}
	str := func(s string) {
		w(uint64(len(s)))
		buf.WriteString(s)
	}
	w(uint32(magicGGUF))
	w(uint32(3))
	w(uint64(0))
	w(uint64(len(kvs)))
	for _, kv := range kvs {
		str(kv.key)
		w(kv.typ)
		switch v := kv.val.(type) {
		case string:
			str(v)
		case []string:
			w(ggufString)
			w(uint64(len(v)))
			for _, s := range v {
				str(s)
			}
		case []float32:
			w(ggufFloat32)
			w(uint64(len(v)))
			w(v)
		default:
			w(v)
		}
	}
	return buf.Bytes()
}
