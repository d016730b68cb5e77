package fastparser

import (
	"bytes"
)

// UnmarshalBody scans data as a multipart body delimited by boundary.
// Uses stack-allocated Parser to avoid heap allocation.
func UnmarshalBody(data []byte, boundary string) (*Body, error) {
	var p Parser
	initParser(&p, data)
	return p.ParseBody(boundary)
}

// DetectBoundary guesses the boundary of a body that starts with its first
// delimiter line, as most clients produce. It returns "" when data does not
// start with "--".
func DetectBoundary(data []byte) string {
	if !bytes.HasPrefix(data, dashes) {
		return ""
	}
	line := data[len(dashes):]
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = bytes.TrimRight(line, "\r \t")
	if len(line) == 0 || len(line) > 70 {
		return ""
	}
	return string(line)
}

// Validate checks that data is a well-formed multipart body for boundary.
func Validate(data []byte, boundary string) error {
	_, err := UnmarshalBody(data, boundary)
	return err
}
