// Package fastparser implements a byte scanner for multipart bodies and the
// HTTP/1.1 request heads that carry them, without AST construction. It scans
// bytes directly into Body/Part/RequestHead types.
package fastparser

import (
	"bytes"
	"fmt"
	"strconv"
)

// Header is a key-value pair.
type Header struct {
	Key   string
	Value string
}

// Part is one body part: its header block and its raw body.
type Part struct {
	Headers []Header
	Body    []byte
}

// Body is a fully scanned multipart body.
type Body struct {
	Boundary string
	Preamble []byte
	Parts    []Part
	Epilogue []byte
}

// RequestHead is the start line and header section of an HTTP/1.1 request.
type RequestHead struct {
	Method  string
	Path    string
	Version string
	Headers []Header
}

// SyntaxError reports malformed input with its location.
type SyntaxError struct {
	Msg    string
	Line   int // 1-indexed line number
	Offset int // byte offset in input
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("multipart: parse error at line %d: %s", e.Line, e.Msg)
}

var (
	crlf       = []byte("\r\n")
	headerEnd  = []byte("\r\n\r\n")
	dashes     = []byte("--")
	lineBreaks = []byte{'\n'}
)

// Parser scans a complete multipart body held in memory.
type Parser struct {
	data   []byte
	pos    int
	length int
	line   int // 1-indexed line number for error reporting
}

// NewParser creates a new fast parser for the given data.
func NewParser(data []byte) *Parser {
	return &Parser{
		data:   data,
		pos:    0,
		length: len(data),
		line:   1,
	}
}

// initParser initializes a parser in-place (stack-friendly, avoids heap alloc).
func initParser(p *Parser, data []byte) {
	p.data = data
	p.pos = 0
	p.length = len(data)
	p.line = 1
}

// ParseBody scans the body as parts delimited by boundary.
//
// The scan follows the streaming decoder exactly: the delimiter is
// CRLF "--" boundary, a body that starts with "--" boundary is treated as if
// preceded by CRLF, a part's header block ends at the first CRLF CRLF, and
// the closing delimiter is a delimiter directly followed by "--". Unlike the
// streaming decoder, a missing first or closing delimiter is an error.
func (p *Parser) ParseBody(boundary string) (*Body, error) {
	if boundary == "" {
		return nil, p.errorf("empty boundary")
	}
	delim := []byte("\r\n--" + boundary)
	data := p.data
	shift := 0
	if bytes.HasPrefix(data, delim[2:]) {
		data = append(append(make([]byte, 0, len(data)+2), crlf...), data...)
		shift = 2
	}

	body := &Body{Boundary: boundary}
	idx := bytes.Index(data, delim)
	if idx < 0 {
		return nil, p.errorf("missing boundary delimiter %q", "--"+boundary)
	}
	if idx > 0 {
		body.Preamble = clone(data[:idx])
	}
	p.advance(idx + len(delim) - shift)

	off := idx + len(delim)
	for {
		if bytes.HasPrefix(data[off:], dashes) {
			if rest := data[off+len(dashes):]; len(rest) > 0 {
				body.Epilogue = clone(rest)
			}
			p.advance(len(data) - shift)
			return body, nil
		}
		next := bytes.Index(data[off:], delim)
		if next < 0 {
			p.advance(len(data) - shift)
			return nil, p.errorf("missing closing delimiter %q", "--"+boundary+"--")
		}
		body.Parts = append(body.Parts, splitPart(data[off:off+next]))
		off += next + len(delim)
		p.advance(off - shift)
	}
}

// advance moves pos to the given offset of the original input, counting lines.
func (p *Parser) advance(to int) {
	if to > p.length {
		to = p.length
	}
	if to <= p.pos {
		return
	}
	p.line += bytes.Count(p.data[p.pos:to], lineBreaks)
	p.pos = to
}

// splitPart separates the header block of a part from its body. A part
// without a blank line has headers only.
func splitPart(content []byte) Part {
	idx := bytes.Index(content, headerEnd)
	if idx < 0 {
		return Part{Headers: ParseHeaderBlock(content), Body: []byte{}}
	}
	return Part{
		Headers: ParseHeaderBlock(content[:idx]),
		Body:    clone(content[idx+len(headerEnd):]),
	}
}

// ParseHeaderBlock parses the raw header bytes of a part.
//
// Lines are separated by CRLF; blank lines and lines without a colon are
// skipped. Names are lower-cased and both sides are trimmed of SP and HTAB.
// Header order and duplicates are preserved.
func ParseHeaderBlock(block []byte) []Header {
	headers := make([]Header, 0, 4)
	for len(block) > 0 {
		var line []byte
		if i := bytes.Index(block, crlf); i >= 0 {
			line, block = block[:i], block[i+len(crlf):]
		} else {
			line, block = block, nil
		}
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		key := trimOWS(line[:colon])
		if len(key) == 0 {
			continue
		}
		headers = append(headers, Header{
			Key:   internPartHeaderName(key),
			Value: string(trimOWS(line[colon+1:])),
		})
	}
	return headers
}

// ParseRequestHead parses an HTTP/1.1 request line and header section ending
// with an empty line. It returns the head and the number of bytes consumed.
func ParseRequestHead(data []byte) (*RequestHead, int, error) {
	var p Parser
	initParser(&p, data)
	return p.parseRequestHead()
}

func (p *Parser) parseRequestHead() (*RequestHead, int, error) {
	method, path, version, err := p.parseRequestLine()
	if err != nil {
		return nil, 0, err
	}
	headers, err := p.parseHeaders()
	if err != nil {
		return nil, 0, err
	}
	return &RequestHead{
		Method:  method,
		Path:    path,
		Version: version,
		Headers: headers,
	}, p.pos, nil
}

// parseRequestLine parses "METHOD SP PATH SP VERSION CRLF".
func (p *Parser) parseRequestLine() (method, path, version string, err error) {
	line, err := p.readLine()
	if err != nil {
		return "", "", "", p.errorf("missing request line")
	}

	sp1 := bytes.IndexByte(line, ' ')
	if sp1 < 0 {
		return "", "", "", p.errorf("malformed request line: no method separator")
	}
	method = internMethod(line[:sp1])

	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 < 0 {
		return "", "", "", p.errorf("malformed request line: no version separator")
	}
	path = string(rest[:sp2])
	version = internVersion(rest[sp2+1:])

	if method == "" {
		return "", "", "", p.errorf("empty request method")
	}
	if path == "" {
		return "", "", "", p.errorf("empty request path")
	}
	return method, path, version, nil
}

// parseHeaders parses header lines until an empty line.
func (p *Parser) parseHeaders() ([]Header, error) {
	headers := make([]Header, 0, 8)

	for {
		if p.pos >= p.length {
			return nil, p.errorf("unterminated header section")
		}
		if p.data[p.pos] == '\r' && p.pos+1 < p.length && p.data[p.pos+1] == '\n' {
			p.pos += 2
			p.line++
			return headers, nil
		}
		if p.data[p.pos] == '\n' {
			p.pos++
			p.line++
			return headers, nil
		}

		line, err := p.readLine()
		if err != nil {
			return nil, err
		}

		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return nil, p.errorf("malformed header line (no colon): %s", string(line))
		}
		keyBytes := line[:colon]
		// RFC 9112: no whitespace between field-name and colon
		if colon > 0 && (line[colon-1] == ' ' || line[colon-1] == '\t') {
			return nil, p.errorf("whitespace before colon in header name: %s", string(keyBytes))
		}

		headers = append(headers, Header{
			Key:   internHeaderName(keyBytes),
			Value: string(trimOWS(line[colon+1:])),
		})
	}
}

// readLine reads bytes until CRLF or LF, advancing pos.
func (p *Parser) readLine() ([]byte, error) {
	if p.pos >= p.length {
		return nil, fmt.Errorf("unexpected end of input at line %d", p.line)
	}

	start := p.pos
	for p.pos < p.length {
		if p.data[p.pos] == '\r' && p.pos+1 < p.length && p.data[p.pos+1] == '\n' {
			line := p.data[start:p.pos]
			p.pos += 2
			p.line++
			return line, nil
		}
		if p.data[p.pos] == '\n' {
			line := p.data[start:p.pos]
			p.pos++
			p.line++
			return line, nil
		}
		p.pos++
	}
	return p.data[start:p.pos], nil
}

// trimOWS trims optional whitespace (SP and HTAB) from both ends of b.
func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}

// IsChunked reports whether headers contain Transfer-Encoding: chunked.
func IsChunked(headers []Header) bool {
	for _, h := range headers {
		if eqFold(h.Key, "Transfer-Encoding") && containsFold(h.Value, "chunked") {
			return true
		}
	}
	return false
}

// ContentLength returns the Content-Length value, or -1 if absent/invalid.
func ContentLength(headers []Header) int64 {
	for _, h := range headers {
		if eqFold(h.Key, "Content-Length") {
			n, err := strconv.ParseInt(string(trimOWS([]byte(h.Value))), 10, 64)
			if err != nil || n < 0 {
				return -1
			}
			return n
		}
	}
	return -1
}

// eqFold is a fast ASCII case-insensitive string comparison.
func eqFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// containsFold checks if haystack contains needle (case-insensitive).
func containsFold(haystack, needle string) bool {
	hl, nl := len(haystack), len(needle)
	if nl > hl {
		return false
	}
	for i := 0; i <= hl-nl; i++ {
		if eqFold(haystack[i:i+nl], needle) {
			return true
		}
	}
	return false
}

// clone copies b; the result is never nil.
func clone(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func (p *Parser) errorf(format string, args ...any) error {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...), Line: p.line, Offset: p.pos}
}
