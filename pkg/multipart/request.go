package multipart

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/shapestone/shape-multipart/internal/fastparser"
)

// Request is a multipart request body waiting to be decoded. The body is
// single-pass: only the first call to Parts, Inspect or Filter decodes it.
type Request struct {
	boundary string
	src      Source
	opts     options
	err      error
	consumed atomic.Bool
}

// NewRequest prepares body for decoding. contentType is the value of the
// request's Content-Type header. A missing or unusable boundary is reported
// by Boundary errors and by the first Next call of the sequence.
func NewRequest(contentType string, body io.Reader, opts ...Option) *Request {
	o := newOptions(opts)
	return newRequest(contentType, NewReaderSource(body, o.chunkSize), o)
}

// NewRequestFromSource is like NewRequest for a chunked upstream.
func NewRequestFromSource(contentType string, src Source, opts ...Option) *Request {
	return newRequest(contentType, src, newOptions(opts))
}

// FromHTTP prepares the body of an incoming HTTP request.
func FromHTTP(r *http.Request, opts ...Option) *Request {
	return NewRequest(r.Header.Get("Content-Type"), r.Body, opts...)
}

func newRequest(contentType string, src Source, o options) *Request {
	b, err := BoundaryOf(contentType)
	return &Request{boundary: b, src: src, opts: o, err: err}
}

// BoundaryOf extracts the boundary parameter of a multipart Content-Type.
// Failures are bad-request errors.
func BoundaryOf(contentType string) (string, error) {
	mediaType, params, err := fastparser.ParseMediaType(contentType)
	if err != nil {
		return "", newError(KindBadRequest, "boundary", err)
	}
	if !fastparser.IsMultipart(mediaType) {
		return "", newError(KindBadRequest, "boundary", ErrNotMultipart)
	}
	b := params["boundary"]
	if b == "" {
		return "", newError(KindBadRequest, "boundary", ErrMissingBoundary)
	}
	return b, nil
}

// Boundary returns the boundary of the body.
func (r *Request) Boundary() (string, error) {
	return r.boundary, r.err
}

// Parts starts decoding and returns every part of the body. Decoding stops
// when ctx is done or the sequence is closed.
func (r *Request) Parts(ctx context.Context) *Parts {
	if r.err != nil {
		return failedParts(r.err)
	}
	if !r.consumed.CompareAndSwap(false, true) {
		return failedParts(newError(KindProtocol, "parts", ErrConsumed))
	}
	return newParts(ctx, r.boundary, r.src, &r.opts)
}

// Inspect starts decoding and returns the parts inspect accepts. Each part
// must be accepted or ignored exactly once; ignored parts are drained.
func (r *Request) Inspect(ctx context.Context, inspect Inspector) *Parts {
	ps := r.Parts(ctx)
	ps.inspect = inspect
	return ps
}

// Filter returns the parts whose headers satisfy keep.
func (r *Request) Filter(ctx context.Context, keep func(Headers) bool) *Parts {
	return r.Inspect(ctx, Keep(keep))
}
