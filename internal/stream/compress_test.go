package stream

import (
	"bytes"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	raw := make([]byte, 16*16*64*2)
	for i := range raw {
		raw[i] = byte(i % 7)
	}

	compressed, err := Compress(raw)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if len(compressed) >= len(raw) {
		t.Fatalf("expected repetitive payload to shrink, got %d >= %d", len(compressed), len(raw))
	}

	out, err := Decompress(compressed, len(raw))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(out, raw) {
		t.Fatal("expected round-trip to reproduce the payload")
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	if _, err := Decompress([]byte{0xde, 0xad, 0xbe, 0xef}, 64); err == nil {
		t.Fatal("expected an error for a corrupt frame")
	}
}
