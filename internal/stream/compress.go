package stream

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Compress wraps raw chunk bytes in an lz4 frame.
func Compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("lz4 write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress expands an lz4 frame back into raw chunk bytes. rawSize caps
// the output so a corrupt frame cannot balloon memory.
func Decompress(compressed []byte, rawSize int) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(compressed))
	raw := make([]byte, rawSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("lz4 read: %w", err)
	}
	return raw, nil
}
