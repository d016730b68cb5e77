package fastparser

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// maxFrame bounds the bytes returned by one ChunkReader.Next call so that a
// large chunk-size line does not force a large allocation.
const maxFrame = 64 << 10

// ChunkReader decodes an HTTP/1.1 chunked transfer-coded stream one frame at
// a time.
//
// Format: hex-size CRLF data CRLF ... 0 CRLF [trailers] CRLF
// Chunk extensions after ';' are ignored. Bare LF line endings are accepted.
type ChunkReader struct {
	r         *bufio.Reader
	remaining int64
	err       error
}

// NewChunkReader returns a ChunkReader reading from r. If r is already a
// *bufio.Reader it is used directly so that buffered bytes are not lost.
func NewChunkReader(r io.Reader) *ChunkReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &ChunkReader{r: br}
}

// Next returns the next piece of chunk data. A chunk larger than 64 KiB is
// returned over several calls. After the last-chunk and its trailer section
// Next returns io.EOF; a stream that ends early yields an error wrapping
// io.ErrUnexpectedEOF.
func (c *ChunkReader) Next() ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.remaining == 0 {
		size, err := c.readSize()
		if err != nil {
			c.err = err
			return nil, err
		}
		if size == 0 {
			c.err = c.readTrailers()
			if c.err == nil {
				c.err = io.EOF
			}
			return nil, c.err
		}
		c.remaining = size
	}

	buf := make([]byte, min(c.remaining, maxFrame))
	if _, err := io.ReadFull(c.r, buf); err != nil {
		c.err = chunkErr("chunk data truncated", io.ErrUnexpectedEOF)
		return nil, c.err
	}
	c.remaining -= int64(len(buf))
	if c.remaining == 0 {
		// A missing CRLF fails the next call; this frame is intact.
		c.err = c.readDataEnd()
	}
	return buf, nil
}

func (c *ChunkReader) readSize() (int64, error) {
	line, err := c.readLine()
	if err != nil {
		return 0, err
	}
	// Strip chunk extension (everything after ';')
	if semi := bytes.IndexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	line = bytes.TrimSpace(line)
	size, err := parseHexSize(line)
	if err != nil {
		return 0, chunkErr(fmt.Sprintf("invalid chunk size %q", line), err)
	}
	return size, nil
}

func (c *ChunkReader) readDataEnd() error {
	b, err := c.r.ReadByte()
	if err != nil {
		return chunkErr("missing CRLF after chunk data", io.ErrUnexpectedEOF)
	}
	if b == '\n' {
		return nil
	}
	if b == '\r' {
		if n, err := c.r.ReadByte(); err == nil && n == '\n' {
			return nil
		}
	}
	return chunkErr(fmt.Sprintf("expected CRLF after chunk data, got %q", b), nil)
}

// readTrailers skips trailer fields up to the terminating empty line. A
// stream that ends right after the last-chunk is accepted.
func (c *ChunkReader) readTrailers() error {
	for {
		line, err := c.readLine()
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(line) == 0 {
			return nil
		}
	}
}

// readLine reads one line without its CRLF or LF ending.
func (c *ChunkReader) readLine() ([]byte, error) {
	line, err := c.r.ReadSlice('\n')
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		return nil, chunkErr("line too long", nil)
	case errors.Is(err, io.EOF):
		return nil, chunkErr("unexpected end of data", io.ErrUnexpectedEOF)
	case err != nil:
		return nil, err
	}
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, nil
}

// Dechunk decodes a complete chunked transfer-encoded body.
func Dechunk(data []byte) ([]byte, error) {
	cr := NewChunkReader(bytes.NewReader(data))
	var result []byte
	for {
		frame, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		result = append(result, frame...)
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result, nil
}

// parseHexSize parses a chunk size. Sizes that do not fit in 60 bits are
// rejected.
func parseHexSize(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, errors.New("empty hex string")
	}
	if len(b) > 15 {
		return 0, errors.New("chunk size too large")
	}
	var n int64
	for _, c := range b {
		n <<= 4
		switch {
		case c >= '0' && c <= '9':
			n |= int64(c - '0')
		case c >= 'a' && c <= 'f':
			n |= int64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			n |= int64(c-'A') + 10
		default:
			return 0, hex.InvalidByteError(c)
		}
	}
	return n, nil
}

func chunkErr(msg string, err error) error {
	if err == nil {
		return fmt.Errorf("multipart: chunked encoding: %s", msg)
	}
	return fmt.Errorf("multipart: chunked encoding: %s: %w", msg, err)
}
