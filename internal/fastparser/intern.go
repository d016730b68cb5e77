package fastparser

// String interning for common tokens.
//
// The Go compiler optimizes map lookups with string([]byte) keys
// to avoid allocating the temporary string (the mapaccess optimization).
// This means internMethod(someBytes) is zero-alloc for known methods.

var methods = map[string]string{
	"GET": "GET", "HEAD": "HEAD", "POST": "POST",
	"PUT": "PUT", "DELETE": "DELETE", "PATCH": "PATCH",
}

var versions = map[string]string{
	"HTTP/1.0": "HTTP/1.0", "HTTP/1.1": "HTTP/1.1",
}

// Request head names keep their canonical case.
var headerNames = map[string]string{
	"Accept":            "Accept",
	"Authorization":     "Authorization",
	"Connection":        "Connection",
	"Content-Length":    "Content-Length",
	"Content-Type":      "Content-Type",
	"Expect":            "Expect",
	"Host":              "Host",
	"Transfer-Encoding": "Transfer-Encoding",
	"User-Agent":        "User-Agent",
}

// Part header names are stored lower-cased.
var partHeaderNames = map[string]string{
	"content-description":       "content-description",
	"content-disposition":       "content-disposition",
	"content-id":                "content-id",
	"content-language":          "content-language",
	"content-length":            "content-length",
	"content-transfer-encoding": "content-transfer-encoding",
	"content-type":              "content-type",
}

// internMethod returns an interned string for known HTTP methods, avoiding allocation.
func internMethod(b []byte) string {
	if s, ok := methods[string(b)]; ok {
		return s
	}
	return string(b)
}

// internVersion returns an interned string for known HTTP versions, avoiding allocation.
func internVersion(b []byte) string {
	if s, ok := versions[string(b)]; ok {
		return s
	}
	return string(b)
}

// internHeaderName returns an interned string for known header names, avoiding allocation.
func internHeaderName(b []byte) string {
	if s, ok := headerNames[string(b)]; ok {
		return s
	}
	return string(b)
}

// internPartHeaderName lower-cases b and returns an interned string for
// known part header names. Names that are already lower-case and known do
// not allocate.
func internPartHeaderName(b []byte) string {
	if s, ok := partHeaderNames[string(b)]; ok {
		return s
	}
	lower := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower[i] = c
	}
	if s, ok := partHeaderNames[string(lower)]; ok {
		return s
	}
	return string(lower)
}
