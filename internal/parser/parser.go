// Package parser implements an AST parser for multipart bodies.
// It produces shape-core AST nodes (ObjectNode, LiteralNode, ArrayDataNode)
// from multipart wire-format input.
//
// A body is mapped to an ObjectNode with the following structure:
//
//	{ "type": "multipart", "boundary": "simple boundary",
//	  "preamble": "...",
//	  "parts": [
//	    { "headers": [{"key": "content-type", "value": "text/plain"}, ...],
//	      "body": "..." },
//	    ...
//	  ],
//	  "epilogue": "..." }
//
// "preamble" and "epilogue" are present only when non-empty.
package parser

import (
	"fmt"

	"github.com/shapestone/shape-core/pkg/ast"
	"github.com/shapestone/shape-multipart/internal/fastparser"
)

var zeroPos = ast.Position{}

// Parser produces AST nodes from multipart wire-format data.
type Parser struct {
	data     []byte
	boundary string
}

// NewParser creates a new AST parser for a body delimited by boundary.
func NewParser(data []byte, boundary string) *Parser {
	return &Parser{data: data, boundary: boundary}
}

// Parse scans the body and returns an AST ObjectNode.
func (p *Parser) Parse() (ast.SchemaNode, error) {
	body, err := fastparser.UnmarshalBody(p.data, p.boundary)
	if err != nil {
		return nil, err
	}
	return BodyToNode(body), nil
}

// BodyToNode converts a scanned body to an AST ObjectNode.
func BodyToNode(body *fastparser.Body) ast.SchemaNode {
	parts := make([]ast.SchemaNode, len(body.Parts))
	for i, part := range body.Parts {
		parts[i] = ast.NewObjectNode(map[string]ast.SchemaNode{
			"headers": headersToNode(part.Headers),
			"body":    ast.NewLiteralNode(string(part.Body), zeroPos),
		}, zeroPos)
	}

	props := map[string]ast.SchemaNode{
		"type":     ast.NewLiteralNode("multipart", zeroPos),
		"boundary": ast.NewLiteralNode(body.Boundary, zeroPos),
		"parts":    ast.NewArrayDataNode(parts, zeroPos),
	}
	if len(body.Preamble) > 0 {
		props["preamble"] = ast.NewLiteralNode(string(body.Preamble), zeroPos)
	}
	if len(body.Epilogue) > 0 {
		props["epilogue"] = ast.NewLiteralNode(string(body.Epilogue), zeroPos)
	}
	return ast.NewObjectNode(props, zeroPos)
}

func headersToNode(headers []fastparser.Header) ast.SchemaNode {
	elements := make([]ast.SchemaNode, len(headers))
	for i, h := range headers {
		elements[i] = ast.NewObjectNode(map[string]ast.SchemaNode{
			"key":   ast.NewLiteralNode(h.Key, zeroPos),
			"value": ast.NewLiteralNode(h.Value, zeroPos),
		}, zeroPos)
	}
	return ast.NewArrayDataNode(elements, zeroPos)
}

// NodeToBody converts an AST ObjectNode back to a fastparser.Body.
func NodeToBody(node ast.SchemaNode) (*fastparser.Body, error) {
	obj, ok := node.(*ast.ObjectNode)
	if !ok {
		return nil, fmt.Errorf("expected ObjectNode, got %T", node)
	}

	props := obj.Properties()
	if typ := stringProp(props, "type"); typ != "multipart" {
		return nil, fmt.Errorf("expected type %q, got %q", "multipart", typ)
	}

	body := &fastparser.Body{
		Boundary: stringProp(props, "boundary"),
	}
	if s := stringProp(props, "preamble"); s != "" {
		body.Preamble = []byte(s)
	}
	if s := stringProp(props, "epilogue"); s != "" {
		body.Epilogue = []byte(s)
	}

	v, ok := props["parts"]
	if !ok {
		return body, nil
	}
	arr, ok := v.(*ast.ArrayDataNode)
	if !ok {
		return nil, fmt.Errorf("expected ArrayDataNode for parts, got %T", v)
	}
	for i, elem := range arr.Elements() {
		partObj, ok := elem.(*ast.ObjectNode)
		if !ok {
			return nil, fmt.Errorf("part %d: expected ObjectNode, got %T", i, elem)
		}
		partProps := partObj.Properties()
		part := fastparser.Part{Body: []byte(stringProp(partProps, "body"))}
		if hv, ok := partProps["headers"]; ok {
			hdrs, err := nodeToHeaders(hv)
			if err != nil {
				return nil, fmt.Errorf("part %d: %w", i, err)
			}
			part.Headers = hdrs
		}
		body.Parts = append(body.Parts, part)
	}
	return body, nil
}

func nodeToHeaders(node ast.SchemaNode) ([]fastparser.Header, error) {
	arr, ok := node.(*ast.ArrayDataNode)
	if !ok {
		return nil, fmt.Errorf("expected ArrayDataNode for headers, got %T", node)
	}

	elements := arr.Elements()
	headers := make([]fastparser.Header, 0, len(elements))
	for _, elem := range elements {
		obj, ok := elem.(*ast.ObjectNode)
		if !ok {
			continue
		}
		props := obj.Properties()
		headers = append(headers, fastparser.Header{
			Key:   stringProp(props, "key"),
			Value: stringProp(props, "value"),
		})
	}

	return headers, nil
}

// stringProp returns the string value of a literal property, or "".
func stringProp(props map[string]ast.SchemaNode, key string) string {
	v, ok := props[key]
	if !ok {
		return ""
	}
	lit, ok := v.(*ast.LiteralNode)
	if !ok {
		return ""
	}
	s, _ := lit.Value().(string)
	return s
}
