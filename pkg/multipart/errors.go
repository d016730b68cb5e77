package multipart

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingBoundary reports a multipart Content-Type without a boundary.
	ErrMissingBoundary = errors.New("multipart: no boundary parameter in content type")
	// ErrNotMultipart reports a Content-Type that is not multipart/*.
	ErrNotMultipart = errors.New("multipart: content type is not multipart")
	// ErrAlreadySubscribed is delivered to a second subscriber of a part body.
	ErrAlreadySubscribed = errors.New("multipart: part body is already subscribed")
	// ErrInvalidDemand is delivered when a subscriber requests n <= 0 chunks.
	ErrInvalidDemand = errors.New("multipart: requested chunk count must be positive")
	// ErrNotInspected fails an inspected sequence whose inspector neither
	// accepted nor ignored a part.
	ErrNotInspected = errors.New("multipart: part should be accepted or ignored explicitly")
	// ErrAlreadyInspected fails an inspected sequence whose inspector
	// accepted or ignored a part twice.
	ErrAlreadyInspected = errors.New("multipart: part was accepted or ignored already")
	// ErrHeaderTooLarge reports a part header block above the configured limit.
	ErrHeaderTooLarge = errors.New("multipart: part header block too large")
	// ErrConsumed is returned when a request body is decoded twice.
	ErrConsumed = errors.New("multipart: request body already consumed")
	// ErrPartClosed is returned by reads and subscriptions on a discarded part.
	ErrPartClosed = errors.New("multipart: part is closed")
	// ErrClosed is returned by Next after Close.
	ErrClosed = errors.New("multipart: parts sequence closed")
)

// Kind classifies decoder failures.
type Kind uint8

const (
	// KindBadRequest covers unusable request metadata such as a missing boundary.
	KindBadRequest Kind = iota + 1
	// KindProtocol covers malformed bodies and API misuse.
	KindProtocol
	// KindUpstream covers failures reading the request body.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad request"
	case KindProtocol:
		return "protocol"
	case KindUpstream:
		return "upstream"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Error is a classified decoder failure.
type Error struct {
	Kind Kind
	Op   string // operation that failed: "boundary", "head", "read", "headers", "parts"
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("multipart: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode maps the failure to an HTTP status code.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindBadRequest, KindProtocol:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// IsBadRequest reports whether err is caused by unusable request metadata.
func IsBadRequest(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindBadRequest
}

// StatusCode returns the HTTP status code for err: the code of a wrapped
// *Error, or 500.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode()
	}
	return http.StatusInternalServerError
}

// ParseError represents an error that occurred while parsing a complete body.
type ParseError struct {
	Message  string // human-readable error message
	Line     int    // 1-indexed line number where error occurred (0 if unknown)
	Position int    // byte offset in input (0 if unknown)
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("multipart: parse error at line %d: %s", e.Line, e.Message)
	}
	if e.Position > 0 {
		return fmt.Sprintf("multipart: parse error at position %d: %s", e.Position, e.Message)
	}
	return fmt.Sprintf("multipart: %s", e.Message)
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
