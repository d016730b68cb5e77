// Package multipart decodes and encodes multipart bodies (RFC 1341 §7.2,
// RFC 2046, RFC 7578).
//
// The decoder streams: it turns a chunked upstream byte source into a
// sequence of parts without buffering the whole body. Each part exposes its
// headers and a demand-driven body stream. Parts are handed out strictly in
// arrival order and a part is only handed out once the consumer of the
// previous one has finished with it, so memory stays bounded by roughly one
// part's unread body.
//
// # Decoding APIs
//
//   - NewRequest/NewRequestFromSource/FromHTTP - streaming decoder entry points
//   - Request.Parts - raw part sequence
//   - Request.Inspect/Request.Filter - part sequence with explicit accept/ignore
//   - Unmarshal/Parse/Validate - in-memory paths for complete bodies
//   - ReadHTTPRequest - streaming decoder over a raw HTTP/1.1 request
//
// # Encoding APIs
//
//   - Marshal - encode sections into a body
//   - Writer - stream sections to an io.Writer
//   - Render - encode an AST produced by Parse
//
// # Thread Safety
//
// A Parts sequence must be consumed from one goroutine at a time. A Part body
// may be read on a different goroutine than the one calling Parts.Next.
// Encoding functions are safe for concurrent use.
package multipart

import (
	"strings"

	"github.com/shapestone/shape-multipart/internal/fastparser"
)

// Header represents a single part header key-value pair.
type Header struct {
	Key   string
	Value string
}

// Headers is an ordered, repeatable list of part headers.
// Decoded headers have lower-case keys; lookups are case-insensitive.
type Headers []Header

// Get returns the first header value for the given key (case-insensitive).
// Returns empty string if not found.
func (h Headers) Get(key string) string {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Key, key) {
			return hdr.Value
		}
	}
	return ""
}

// Values returns all header values for the given key (case-insensitive).
func (h Headers) Values(key string) []string {
	var vals []string
	for _, hdr := range h {
		if strings.EqualFold(hdr.Key, key) {
			vals = append(vals, hdr.Value)
		}
	}
	return vals
}

// Has reports whether a header with the given key is present.
func (h Headers) Has(key string) bool {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Key, key) {
			return true
		}
	}
	return false
}

// Set replaces the first header with the given key (case-insensitive) or appends if not found.
func (h *Headers) Set(key, value string) {
	for i, hdr := range *h {
		if strings.EqualFold(hdr.Key, key) {
			(*h)[i].Value = value
			// Remove any subsequent headers with same key
			j := i + 1
			for j < len(*h) {
				if strings.EqualFold((*h)[j].Key, key) {
					*h = append((*h)[:j], (*h)[j+1:]...)
				} else {
					j++
				}
			}
			return
		}
	}
	*h = append(*h, Header{Key: key, Value: value})
}

// Add appends a header without replacing existing ones.
func (h *Headers) Add(key, value string) {
	*h = append(*h, Header{Key: key, Value: value})
}

// Del removes all headers with the given key (case-insensitive).
func (h *Headers) Del(key string) {
	j := 0
	for _, hdr := range *h {
		if !strings.EqualFold(hdr.Key, key) {
			(*h)[j] = hdr
			j++
		}
	}
	*h = (*h)[:j]
}

// Clone returns a deep copy of the headers.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	clone := make(Headers, len(h))
	copy(clone, h)
	return clone
}

// ContentType returns the Content-Type header value.
func (h Headers) ContentType() string {
	return h.Get("Content-Type")
}

// ContentDisposition parses the Content-Disposition header into its
// disposition type and parameters. ok is false when the header is absent or
// malformed.
func (h Headers) ContentDisposition() (disposition string, params map[string]string, ok bool) {
	v := h.Get("Content-Disposition")
	if v == "" {
		return "", nil, false
	}
	disposition, params, err := fastparser.ParseMediaType(v)
	if err != nil {
		return "", nil, false
	}
	return disposition, params, true
}

// FormName returns the name parameter of a form-data Content-Disposition.
func (h Headers) FormName() string {
	disposition, params, ok := h.ContentDisposition()
	if !ok || disposition != "form-data" {
		return ""
	}
	return params["name"]
}

// FileName returns the filename parameter of the Content-Disposition, with
// any directory components removed.
func (h Headers) FileName() string {
	_, params, ok := h.ContentDisposition()
	if !ok {
		return ""
	}
	name := params["filename"]
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func convertHeaders(internal []fastparser.Header) Headers {
	if len(internal) == 0 {
		return nil
	}
	headers := make(Headers, len(internal))
	for i, h := range internal {
		headers[i] = Header{Key: h.Key, Value: h.Value}
	}
	return headers
}

func internalHeaders(headers Headers) []fastparser.Header {
	out := make([]fastparser.Header, len(headers))
	for i, h := range headers {
		out[i] = fastparser.Header{Key: h.Key, Value: h.Value}
	}
	return out
}
