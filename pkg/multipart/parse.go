package multipart

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/shapestone/shape-core/pkg/ast"
	"github.com/shapestone/shape-multipart/internal/fastparser"
	"github.com/shapestone/shape-multipart/internal/parser"
)

// Parse parses a complete multipart body into an AST.
//
// When boundary is empty it is taken from the first delimiter line of the
// input. The result is an ast.ObjectNode:
//
//	{ "type": "multipart", "boundary": "xyz",
//	  "preamble": "...",
//	  "parts": [{"headers": [{"key": "content-type", "value": "text/plain"}],
//	             "body": "..."}],
//	  "epilogue": "\r\n" }
func Parse(input, boundary string) (ast.SchemaNode, error) {
	data := []byte(input)
	p := parser.NewParser(data, resolveBoundary(data, boundary))
	node, err := p.Parse()
	if err != nil {
		return nil, convertError(err)
	}
	return node, nil
}

// ParseReader reads all data from r and parses it like Parse.
func ParseReader(r io.Reader, boundary string) (ast.SchemaNode, error) {
	data, err := readAll(r)
	if err != nil {
		return nil, err
	}
	p := parser.NewParser(data, resolveBoundary(data, boundary))
	node, err := p.Parse()
	if err != nil {
		return nil, convertError(err)
	}
	return node, nil
}

// Render converts an AST node (from Parse) back to wire format.
func Render(node ast.SchemaNode) ([]byte, error) {
	body, err := NodeToBody(node)
	if err != nil {
		return nil, fmt.Errorf("multipart: Render: %w", err)
	}
	return MarshalBody(body)
}

// NodeToBody converts an AST ObjectNode to a Body.
func NodeToBody(node ast.SchemaNode) (*Body, error) {
	fb, err := parser.NodeToBody(node)
	if err != nil {
		return nil, err
	}
	return convertBody(fb), nil
}

// BodyToNode converts a Body to an AST ObjectNode.
func BodyToNode(body *Body) ast.SchemaNode {
	fb := &fastparser.Body{
		Boundary: body.Boundary,
		Preamble: body.Preamble,
		Epilogue: body.Epilogue,
		Parts:    make([]fastparser.Part, len(body.Sections)),
	}
	for i, s := range body.Sections {
		fb.Parts[i] = fastparser.Part{Headers: internalHeaders(s.Headers), Body: s.Body}
	}
	return parser.BodyToNode(fb)
}

// Unmarshal decodes a complete body held in memory. When boundary is empty
// it is taken from the first delimiter line. Unlike the streaming decoder it
// requires both the first and the closing delimiter.
func Unmarshal(data []byte, boundary string) (*Body, error) {
	fb, err := fastparser.UnmarshalBody(data, resolveBoundary(data, boundary))
	if err != nil {
		return nil, convertError(err)
	}
	return convertBody(fb), nil
}

// Validate checks that input is a well-formed multipart body.
// Returns nil if valid, or a *ParseError locating the problem.
func Validate(input, boundary string) error {
	data := []byte(input)
	return convertError(fastparser.Validate(data, resolveBoundary(data, boundary)))
}

// ValidateReader reads all data from r and validates it like Validate.
func ValidateReader(r io.Reader, boundary string) error {
	data, err := readAll(r)
	if err != nil {
		return err
	}
	return convertError(fastparser.Validate(data, resolveBoundary(data, boundary)))
}

// DetectBoundary guesses the boundary of a body that starts with its first
// delimiter line. It returns "" when data does not start with "--".
func DetectBoundary(data []byte) string {
	return fastparser.DetectBoundary(data)
}

func resolveBoundary(data []byte, boundary string) string {
	if boundary != "" {
		return boundary
	}
	return fastparser.DetectBoundary(data)
}

func convertBody(fb *fastparser.Body) *Body {
	body := &Body{
		Boundary: fb.Boundary,
		Preamble: fb.Preamble,
		Epilogue: fb.Epilogue,
		Sections: make([]Section, len(fb.Parts)),
	}
	for i, p := range fb.Parts {
		body.Sections[i] = Section{Headers: convertHeaders(p.Headers), Body: p.Body}
	}
	return body
}

// convertError maps scanner errors to *ParseError.
func convertError(err error) error {
	if err == nil {
		return nil
	}
	var se *fastparser.SyntaxError
	if errors.As(err, &se) {
		return &ParseError{Message: se.Msg, Line: se.Line, Position: se.Offset}
	}
	return err
}

func readAll(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
