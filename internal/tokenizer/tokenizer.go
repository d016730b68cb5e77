package tokenizer

import (
	"strings"

	"github.com/shapestone/shape-core/pkg/tokenizer"
)

// NewTokenizer creates a tokenizer for parameterized header values
// (RFC 2045 §5.1 / RFC 6266):
// 1. Whitespace (kept as a token, parameters are whitespace-tolerant)
// 2. Semicolon (parameter separator)
// 3. Equals (name/value separator)
// 4. Quoted string
// 5. Generic text (media types, disposition types, parameter names and tokens)
//
// Whitespace is matched explicitly instead of skipped because it is
// significant inside quoted strings.
func NewTokenizer() tokenizer.Tokenizer {
	return tokenizer.NewTokenizerWithoutWhitespace(
		SPMatcher(),
		tokenizer.StringMatcherFunc(TokenSemicolon, ";"),
		tokenizer.StringMatcherFunc(TokenEquals, "="),
		QuotedStringMatcher(),
		TextMatcher(),
	)
}

// NewTokenizerWithStream creates a parameter tokenizer using a pre-configured stream.
func NewTokenizerWithStream(stream tokenizer.Stream) tokenizer.Tokenizer {
	tok := NewTokenizer()
	tok.InitializeFromStream(stream)
	return tok
}

// SPMatcher matches a run of linear whitespace.
func SPMatcher() tokenizer.Matcher {
	return func(stream tokenizer.Stream) *tokenizer.Token {
		var value []rune
		for {
			r, ok := stream.PeekChar()
			if !ok || !isSpace(r) {
				break
			}
			stream.NextChar()
			value = append(value, r)
		}
		if len(value) == 0 {
			return nil
		}
		return tokenizer.NewToken(TokenSP, value)
	}
}

// QuotedStringMatcher matches a double-quoted string, quotes and escapes
// included, so that the token value is exactly the runes consumed. An
// unterminated string runs to the end of the input. Use Unquote to get the
// string content.
func QuotedStringMatcher() tokenizer.Matcher {
	return func(stream tokenizer.Stream) *tokenizer.Token {
		r, ok := stream.PeekChar()
		if !ok || r != '"' {
			return nil
		}
		stream.NextChar()

		value := []rune{'"'}
		escaped := false
		for {
			r, ok := stream.PeekChar()
			if !ok {
				break
			}
			stream.NextChar()
			value = append(value, r)
			if escaped {
				escaped = false
				continue
			}
			if r == '\\' {
				escaped = true
				continue
			}
			if r == '"' {
				break
			}
		}
		return tokenizer.NewToken(TokenQuotedString, value)
	}
}

// Unquote returns the content of a quoted-string token with backslash
// escapes resolved. ok is false for an unterminated string.
func Unquote(raw string) (string, bool) {
	if len(raw) < 2 || raw[0] != '"' {
		return "", false
	}
	var b strings.Builder
	escaped := false
	for i := 1; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			b.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			return b.String(), i == len(raw)-1
		default:
			b.WriteByte(c)
		}
	}
	return "", false
}

// TextMatcher matches any sequence of characters until whitespace, ';', '='
// or '"'.
func TextMatcher() tokenizer.Matcher {
	return func(stream tokenizer.Stream) *tokenizer.Token {
		var value []rune

		for {
			r, ok := stream.PeekChar()
			if !ok {
				break
			}
			if isSpace(r) || r == ';' || r == '=' || r == '"' {
				break
			}
			stream.NextChar()
			value = append(value, r)
		}

		if len(value) == 0 {
			return nil
		}

		return tokenizer.NewToken(TokenText, value)
	}
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}
