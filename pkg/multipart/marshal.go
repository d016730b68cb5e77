package multipart

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// bufPool pools []byte slices for the encoder fast path.
var bufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 4096)
		return &b
	},
}

// Section is one part to encode: its headers and its complete body.
type Section struct {
	Headers Headers
	Body    []byte
}

// Body is a complete multipart body held in memory.
type Body struct {
	Boundary string
	Preamble []byte
	Sections []Section
	// Epilogue is everything after the closing "--", usually "\r\n".
	Epilogue []byte
}

var defaultEpilogue = []byte("\r\n")

// Marshal returns the wire-format encoding of sections delimited by
// boundary. The body ends with the closing delimiter and a CRLF.
//
// Marshal uses a sync.Pool buffer internally.
func Marshal(boundary string, sections []Section) ([]byte, error) {
	return MarshalBody(&Body{Boundary: boundary, Sections: sections, Epilogue: defaultEpilogue})
}

// MarshalBody returns the wire-format encoding of body. Preamble and
// epilogue are written verbatim.
func MarshalBody(body *Body) ([]byte, error) {
	if err := checkBoundary(body.Boundary); err != nil {
		return nil, err
	}

	bp := bufPool.Get().(*[]byte)
	buf := (*bp)[:0]

	var err error
	buf, err = appendBody(buf, body)
	if err != nil {
		*bp = buf
		bufPool.Put(bp)
		return nil, err
	}

	result := make([]byte, len(buf))
	copy(result, buf)
	*bp = buf
	bufPool.Put(bp)
	return result, nil
}

func appendBody(buf []byte, body *Body) ([]byte, error) {
	delim := "\r\n--" + body.Boundary
	if bytes.Contains(body.Preamble, []byte(delim)) {
		return buf, &ParseError{Message: "preamble contains the boundary delimiter"}
	}

	if len(body.Preamble) > 0 {
		buf = append(buf, body.Preamble...)
		buf = appendCRLF(buf)
	}
	buf = append(buf, "--"...)
	buf = append(buf, body.Boundary...)
	for i, s := range body.Sections {
		var err error
		if buf, err = appendSection(buf, s, delim); err != nil {
			return buf, &ParseError{Message: fmt.Sprintf("section %d: %v", i, err)}
		}
		buf = append(buf, delim...)
	}
	buf = append(buf, "--"...)
	buf = append(buf, body.Epilogue...)
	return buf, nil
}

// appendSection appends the rest of the delimiter line, the header block
// and the body of s.
func appendSection(buf []byte, s Section, delim string) ([]byte, error) {
	if bytes.Contains(s.Body, []byte(delim)) {
		return buf, errors.New("body contains the boundary delimiter")
	}
	buf = appendCRLF(buf)
	var err error
	if buf, err = appendHeaders(buf, s.Headers); err != nil {
		return buf, err
	}
	buf = appendCRLF(buf)
	return append(buf, s.Body...), nil
}

// appendHeaders appends all headers in "Key: Value\r\n" format.
func appendHeaders(buf []byte, headers Headers) ([]byte, error) {
	for _, h := range headers {
		if err := checkHeader(h); err != nil {
			return buf, err
		}
		buf = append(buf, h.Key...)
		buf = append(buf, ':', ' ')
		buf = append(buf, h.Value...)
		buf = appendCRLF(buf)
	}
	return buf, nil
}

// appendCRLF appends \r\n to buf.
func appendCRLF(buf []byte) []byte {
	return append(buf, '\r', '\n')
}

func checkHeader(h Header) error {
	if h.Key == "" || strings.ContainsAny(h.Key, ":\r\n \t") {
		return fmt.Errorf("invalid header name %q", h.Key)
	}
	if strings.ContainsAny(h.Value, "\r\n") {
		return fmt.Errorf("invalid value for header %q", h.Key)
	}
	return nil
}

// checkBoundary enforces the RFC 2046 boundary syntax: 1 to 70 characters
// from bchars, not ending with a space.
func checkBoundary(b string) error {
	if b == "" || len(b) > 70 {
		return &ParseError{Message: "boundary must be 1 to 70 characters"}
	}
	if b[len(b)-1] == ' ' {
		return &ParseError{Message: "boundary must not end with a space"}
	}
	for i := 0; i < len(b); i++ {
		if !isBChar(b[i]) {
			return &ParseError{Message: "invalid boundary character " + strconv.QuoteRune(rune(b[i])), Position: i}
		}
	}
	return nil
}

func isBChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("'()+_,-./:=? ", c) >= 0
}
