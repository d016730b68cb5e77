package multipart

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/shapestone/shape-multipart/internal/fastparser"
)

// maxRequestHead bounds the request line and header section read by
// ReadHTTPRequest.
const maxRequestHead = 64 << 10

// HTTPRequest is an HTTP/1.1 request read from a raw stream whose body is
// decoded as multipart.
type HTTPRequest struct {
	Method  string
	Path    string
	Version string
	Headers Headers

	// Body decodes the request body. It reads from the stream passed to
	// ReadHTTPRequest.
	Body *Request
}

// ReadHTTPRequest reads the head of an HTTP/1.1 request from r and prepares
// its body for streaming decoding. The body is framed by Transfer-Encoding:
// chunked or Content-Length; a request with neither has an empty body.
func ReadHTTPRequest(r io.Reader, opts ...Option) (*HTTPRequest, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	raw, err := readHead(br)
	if err != nil {
		return nil, newError(KindBadRequest, "head", err)
	}
	head, _, err := fastparser.ParseRequestHead(raw)
	if err != nil {
		return nil, newError(KindBadRequest, "head", convertError(err))
	}

	o := newOptions(opts)
	var src Source
	switch cl := fastparser.ContentLength(head.Headers); {
	case fastparser.IsChunked(head.Headers):
		src = NewChunkedSource(br)
	case cl > 0:
		src = NewReaderSource(io.LimitReader(br, cl), o.chunkSize)
	default:
		src = NewReaderSource(bytes.NewReader(nil), o.chunkSize)
	}

	headers := convertHeaders(head.Headers)
	return &HTTPRequest{
		Method:  head.Method,
		Path:    head.Path,
		Version: head.Version,
		Headers: headers,
		Body:    newRequest(headers.Get("Content-Type"), src, o),
	}, nil
}

// readHead reads lines up to and including the empty line ending the
// header section.
func readHead(br *bufio.Reader) ([]byte, error) {
	var head []byte
	lineStart := true
	for {
		line, err := br.ReadSlice('\n')
		partial := err == bufio.ErrBufferFull
		if partial {
			err = nil
		}
		wholeLine := lineStart && !partial
		lineStart = !partial
		head = append(head, line...)
		if len(head) > maxRequestHead {
			return nil, fmt.Errorf("request head larger than %d bytes", maxRequestHead)
		}
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if wholeLine && (bytes.Equal(line, []byte("\r\n")) || bytes.Equal(line, []byte("\n"))) {
			if len(head) == len(line) {
				// Tolerate empty lines before the request line.
				head = head[:0]
				continue
			}
			return head, nil
		}
	}
}
