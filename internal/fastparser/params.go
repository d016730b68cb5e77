package fastparser

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	coretok "github.com/shapestone/shape-core/pkg/tokenizer"
	"github.com/shapestone/shape-multipart/internal/tokenizer"
)

// ParseMediaType parses a parameterized header value such as a Content-Type
// or Content-Disposition value. The leading value and parameter names are
// lower-cased; parameter values keep their case. RFC 2231 extended values
// (name*=charset''percent-encoded) take precedence over plain ones.
func ParseMediaType(v string) (string, map[string]string, error) {
	tokens, err := tokenize(v)
	if err != nil {
		return "", nil, err
	}

	toks := significant(tokens)
	if len(toks) == 0 || toks[0].Kind() != tokenizer.TokenText {
		return "", nil, fmt.Errorf("multipart: missing media type in %q", v)
	}
	mediaType := strings.ToLower(toks[0].ValueString())

	params := make(map[string]string)
	extended := make(map[string]string)
	i := 1
	for i < len(toks) {
		if toks[i].Kind() != tokenizer.TokenSemicolon {
			return "", nil, fmt.Errorf("multipart: expected ';' after %q in %q", toks[i-1].ValueString(), v)
		}
		i++
		if i == len(toks) {
			// Trailing semicolon.
			break
		}
		if toks[i].Kind() == tokenizer.TokenSemicolon {
			continue
		}
		if i+2 >= len(toks) {
			return "", nil, fmt.Errorf("multipart: incomplete parameter in %q", v)
		}
		name, eq, val := toks[i], toks[i+1], toks[i+2]
		if name.Kind() != tokenizer.TokenText || eq.Kind() != tokenizer.TokenEquals ||
			(val.Kind() != tokenizer.TokenText && val.Kind() != tokenizer.TokenQuotedString) {
			return "", nil, fmt.Errorf("multipart: invalid parameter %q in %q", name.ValueString(), v)
		}
		key := strings.ToLower(name.ValueString())
		value := val.ValueString()
		if val.Kind() == tokenizer.TokenQuotedString {
			var ok bool
			if value, ok = tokenizer.Unquote(value); !ok {
				return "", nil, fmt.Errorf("multipart: unterminated quoted string in %q", v)
			}
		}
		if base, ok := strings.CutSuffix(key, "*"); ok {
			if decoded, ok := decodeExtended(value); ok {
				extended[base] = decoded
			}
		} else {
			if _, dup := params[key]; dup {
				return "", nil, fmt.Errorf("multipart: duplicate parameter %q in %q", key, v)
			}
			params[key] = value
		}
		i += 3
	}
	for k, val := range extended {
		params[k] = val
	}
	return mediaType, params, nil
}

// IsMultipart reports whether mediaType is a multipart/* type.
func IsMultipart(mediaType string) bool {
	return len(mediaType) > len("multipart/") && eqFold(mediaType[:len("multipart/")], "multipart/")
}

// tokenize splits v into parameter tokens. Every token must consume input
// and together they must cover all of v.
func tokenize(v string) ([]coretok.Token, error) {
	tok := tokenizer.NewTokenizer()
	tok.Initialize(v)
	var tokens []coretok.Token
	consumed := 0
	for {
		t, ok := tok.NextToken()
		if !ok {
			break
		}
		if len(t.Value()) == 0 {
			return nil, fmt.Errorf("multipart: invalid media parameter syntax in %q", v)
		}
		consumed += len(t.Value())
		tokens = append(tokens, *t)
	}
	if consumed != utf8.RuneCountInString(v) {
		return nil, fmt.Errorf("multipart: invalid media parameter syntax in %q", v)
	}
	return tokens, nil
}

// significant drops whitespace tokens.
func significant(tokens []coretok.Token) []coretok.Token {
	out := tokens[:0:0]
	for _, t := range tokens {
		if t.Kind() != tokenizer.TokenSP {
			out = append(out, t)
		}
	}
	return out
}

// decodeExtended decodes an RFC 2231 value: charset'language'percent-encoded.
// Only UTF-8 and US-ASCII charsets are supported.
func decodeExtended(v string) (string, bool) {
	charset, rest, ok := strings.Cut(v, "'")
	if !ok {
		return "", false
	}
	_, encoded, ok := strings.Cut(rest, "'")
	if !ok {
		return "", false
	}
	switch strings.ToLower(charset) {
	case "utf-8", "us-ascii", "":
	default:
		return "", false
	}
	decoded, err := url.PathUnescape(encoded)
	if err != nil {
		return "", false
	}
	return decoded, true
}
