// Package tokenizer provides the two tokenizers used by the multipart decoder:
// a byte-level Splitter that cuts a chunked stream on a delimiter, and a
// shape-core tokenizer for structured header values such as
// `form-data; name="file"; filename="a.tgz"`.
package tokenizer

// Token type constants for structured header values.
const (
	TokenText         = "Text"         // token: form-data, name, multipart/mixed
	TokenQuotedString = "QuotedString" // "simple boundary" (quotes included)
	TokenSemicolon    = "Semicolon"    // ;
	TokenEquals       = "Equals"       // =
	TokenSP           = "SP"           // run of SP, HTAB, CR or LF
)
