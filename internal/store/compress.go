package store

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names the codec a blob is stored with.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// ParseCompression parses a codec name. The empty string means none.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd, CompressionLZ4:
		return Compression(name), nil
	default:
		return "", fmt.Errorf("store: unknown compression %q", name)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// compressor wraps w with the encoder for c. Closing the result flushes the
// encoder but does not close w.
func compressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		return enc, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("store: unknown compression %q", c)
	}
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error { return r.close() }

// decompressor wraps rc with the decoder for c. Closing the result closes
// rc.
func decompressor(rc io.ReadCloser, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return rc, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		return readCloser{Reader: dec, close: func() error {
			dec.Close()
			return rc.Close()
		}}, nil
	case CompressionLZ4:
		return readCloser{Reader: lz4.NewReader(rc), close: rc.Close}, nil
	default:
		return nil, fmt.Errorf("store: unknown compression %q", c)
	}
}
