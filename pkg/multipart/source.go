package multipart

import (
	"context"
	"io"

	"github.com/shapestone/shape-multipart/internal/fastparser"
)

// Source supplies the request body one chunk at a time. Next returns io.EOF
// once the body is exhausted; it may return a final chunk together with
// io.EOF. The decoder never calls Next concurrently and never before the
// previous chunk was fully processed.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]byte, error)

// Next calls f(ctx).
func (f SourceFunc) Next(ctx context.Context) ([]byte, error) { return f(ctx) }

// ReaderSource reads chunks from an io.Reader. One Read is one chunk.
//
// A Read in progress is not interrupted by ctx; cancellation takes effect
// when it returns.
type ReaderSource struct {
	r    io.Reader
	size int
}

// NewReaderSource returns a Source reading up to chunkSize bytes per chunk.
func NewReaderSource(r io.Reader, chunkSize int) *ReaderSource {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ReaderSource{r: r, size: chunkSize}
}

// Next reads the next chunk.
func (s *ReaderSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, s.size)
	n, err := s.r.Read(buf)
	return buf[:n], err
}

// ChunkedSource decodes an HTTP/1.1 chunked transfer-coded body. One chunk
// frame is one chunk.
type ChunkedSource struct {
	cr *fastparser.ChunkReader
}

// NewChunkedSource returns a Source decoding the chunked coding read from r.
func NewChunkedSource(r io.Reader) *ChunkedSource {
	return &ChunkedSource{cr: fastparser.NewChunkReader(r)}
}

// Next returns the next chunk frame.
func (s *ChunkedSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.cr.Next()
}
