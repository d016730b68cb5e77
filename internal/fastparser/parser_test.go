package fastparser

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const rfcExample = "This is the preamble.  It is to be ignored, though it\r\n" +
	"is a handy place for mail composers to include an\r\n" +
	"explanatory note to non-MIME compliant readers.\r\n" +
	"--simple boundary\r\n" +
	"\r\n" +
	"This is implicitly typed plain ASCII text.\r\n" +
	"It does NOT end with a linebreak.\r\n" +
	"--simple boundary\r\n" +
	"Content-type: text/plain; charset=us-ascii\r\n" +
	"\r\n" +
	"This is explicitly typed plain ASCII text.\r\n" +
	"It DOES end with a linebreak.\r\n" +
	"\r\n" +
	"--simple boundary--\r\n" +
	"This is the epilogue.  It is also to be ignored."

func TestParseBody_RFCExample(t *testing.T) {
	body, err := UnmarshalBody([]byte(rfcExample), "simple boundary")
	if err != nil {
		t.Fatalf("UnmarshalBody() error = %v", err)
	}

	want := &Body{
		Boundary: "simple boundary",
		Preamble: []byte("This is the preamble.  It is to be ignored, though it\r\n" +
			"is a handy place for mail composers to include an\r\n" +
			"explanatory note to non-MIME compliant readers."),
		Parts: []Part{
			{
				Headers: []Header{},
				Body: []byte("This is implicitly typed plain ASCII text.\r\n" +
					"It does NOT end with a linebreak."),
			},
			{
				Headers: []Header{{Key: "content-type", Value: "text/plain; charset=us-ascii"}},
				Body: []byte("This is explicitly typed plain ASCII text.\r\n" +
					"It DOES end with a linebreak.\r\n"),
			},
		},
		Epilogue: []byte("\r\nThis is the epilogue.  It is also to be ignored."),
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("UnmarshalBody() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseBody_LeadingDelimiter(t *testing.T) {
	data := []byte("--b\r\nA: 1\r\n\r\none\r\n--b--")
	body, err := UnmarshalBody(data, "b")
	if err != nil {
		t.Fatalf("UnmarshalBody() error = %v", err)
	}
	if body.Preamble != nil {
		t.Errorf("Preamble = %q, want nil", body.Preamble)
	}
	if len(body.Parts) != 1 {
		t.Fatalf("Parts count = %d, want 1", len(body.Parts))
	}
	if string(body.Parts[0].Body) != "one" {
		t.Errorf("Parts[0].Body = %q, want one", body.Parts[0].Body)
	}
	if body.Epilogue != nil {
		t.Errorf("Epilogue = %q, want nil", body.Epilogue)
	}
}

func TestParseBody_EmptyParts(t *testing.T) {
	data := []byte("--123\r\nFoo: bar\r\n\r\n\r\n--123\r\n\r\n\r\n--123--")
	body, err := UnmarshalBody(data, "123")
	if err != nil {
		t.Fatalf("UnmarshalBody() error = %v", err)
	}
	if len(body.Parts) != 2 {
		t.Fatalf("Parts count = %d, want 2", len(body.Parts))
	}
	for i, part := range body.Parts {
		if len(part.Body) != 0 {
			t.Errorf("Parts[%d].Body = %q, want empty", i, part.Body)
		}
	}
	if got := body.Parts[0].Headers; len(got) != 1 || got[0].Key != "foo" || got[0].Value != "bar" {
		t.Errorf("Parts[0].Headers = %v, want [foo: bar]", got)
	}
}

func TestParseBody_HeadersOnlyPart(t *testing.T) {
	data := []byte("--b\r\nA: 1\r\n--b--")
	body, err := UnmarshalBody(data, "b")
	if err != nil {
		t.Fatalf("UnmarshalBody() error = %v", err)
	}
	if len(body.Parts) != 1 {
		t.Fatalf("Parts count = %d, want 1", len(body.Parts))
	}
	if got := body.Parts[0].Headers; len(got) != 1 || got[0].Key != "a" {
		t.Errorf("Headers = %v, want [a: 1]", got)
	}
	if len(body.Parts[0].Body) != 0 {
		t.Errorf("Body = %q, want empty", body.Parts[0].Body)
	}
}

func TestParseBody_MissingDelimiter(t *testing.T) {
	_, err := UnmarshalBody([]byte("no parts here"), "b")
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("UnmarshalBody() error = %v, want *SyntaxError", err)
	}
	if se.Line != 1 {
		t.Errorf("Line = %d, want 1", se.Line)
	}
}

func TestParseBody_MissingClosingDelimiter(t *testing.T) {
	_, err := UnmarshalBody([]byte("--b\r\nA: 1\r\n\r\nbody\r\n--b\r\n\r\nmore"), "b")
	var se *SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("UnmarshalBody() error = %v, want *SyntaxError", err)
	}
	if se.Line != 7 {
		t.Errorf("Line = %d, want 7", se.Line)
	}
}

func TestParseBody_EmptyBoundary(t *testing.T) {
	if _, err := UnmarshalBody([]byte("--\r\n"), ""); err == nil {
		t.Error("expected error for empty boundary")
	}
}

func TestParseHeaderBlock(t *testing.T) {
	block := []byte("\r\nContent-Disposition: form-data; name=\"a\"\r\n" +
		"no colon here\r\n" +
		"\r\n" +
		"X-Custom:\tvalue with spaces  \r\n" +
		"X-Custom: second\r\n" +
		": empty name\r\n" +
		"Url: http://example.com:8080/")

	want := []Header{
		{Key: "content-disposition", Value: `form-data; name="a"`},
		{Key: "x-custom", Value: "value with spaces"},
		{Key: "x-custom", Value: "second"},
		{Key: "url", Value: "http://example.com:8080/"},
	}
	if diff := cmp.Diff(want, ParseHeaderBlock(block)); diff != "" {
		t.Errorf("ParseHeaderBlock() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHeaderBlock_Empty(t *testing.T) {
	if got := ParseHeaderBlock(nil); len(got) != 0 {
		t.Errorf("ParseHeaderBlock(nil) = %v, want empty", got)
	}
}

func TestParseRequestHead(t *testing.T) {
	data := []byte("POST /upload HTTP/1.1\r\nHost: example.com\r\nContent-Type: multipart/form-data; boundary=x\r\n\r\n--x")
	head, n, err := ParseRequestHead(data)
	if err != nil {
		t.Fatalf("ParseRequestHead() error = %v", err)
	}
	if head.Method != "POST" {
		t.Errorf("Method = %q, want POST", head.Method)
	}
	if head.Path != "/upload" {
		t.Errorf("Path = %q, want /upload", head.Path)
	}
	if head.Version != "HTTP/1.1" {
		t.Errorf("Version = %q, want HTTP/1.1", head.Version)
	}
	if len(head.Headers) != 2 {
		t.Fatalf("Headers count = %d, want 2", len(head.Headers))
	}
	if string(data[n:]) != "--x" {
		t.Errorf("remaining = %q, want --x", data[n:])
	}
}

func TestParseRequestHead_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no method separator", "GETHTTP/1.1\r\n\r\n"},
		{"no version separator", "GET /\r\n\r\n"},
		{"no colon", "GET / HTTP/1.1\r\nHost\r\n\r\n"},
		{"space before colon", "GET / HTTP/1.1\r\nHost : x\r\n\r\n"},
		{"unterminated", "GET / HTTP/1.1\r\nHost: x\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseRequestHead([]byte(tt.data)); err == nil {
				t.Errorf("ParseRequestHead(%q) expected error", tt.data)
			}
		})
	}
}

func TestIsChunked(t *testing.T) {
	if !IsChunked([]Header{{Key: "transfer-encoding", Value: "gzip, Chunked"}}) {
		t.Error("IsChunked() = false, want true")
	}
	if IsChunked([]Header{{Key: "Content-Length", Value: "5"}}) {
		t.Error("IsChunked() = true, want false")
	}
}

func TestContentLength(t *testing.T) {
	tests := []struct {
		headers []Header
		want    int64
	}{
		{[]Header{{Key: "Content-Length", Value: " 42 "}}, 42},
		{[]Header{{Key: "content-length", Value: "-1"}}, -1},
		{[]Header{{Key: "Content-Length", Value: "abc"}}, -1},
		{nil, -1},
	}
	for _, tt := range tests {
		if got := ContentLength(tt.headers); got != tt.want {
			t.Errorf("ContentLength(%v) = %d, want %d", tt.headers, got, tt.want)
		}
	}
}

func TestInternPartHeaderName(t *testing.T) {
	tests := map[string]string{
		"Content-Type":        "content-type",
		"CONTENT-DISPOSITION": "content-disposition",
		"X-Thing":             "x-thing",
		"content-id":          "content-id",
	}
	for in, want := range tests {
		if got := internPartHeaderName([]byte(in)); got != want {
			t.Errorf("internPartHeaderName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetectBoundary(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{"--abc123\r\nA: 1\r\n\r\n", "abc123"},
		{"--simple boundary\n", "simple boundary"},
		{"preamble\r\n--abc\r\n", ""},
		{"--\r\n", ""},
	}
	for _, tt := range tests {
		if got := DetectBoundary([]byte(tt.data)); got != tt.want {
			t.Errorf("DetectBoundary(%q) = %q, want %q", tt.data, got, tt.want)
		}
	}
}

func TestEqFold(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Content-Type", "content-type", true},
		{"HOST", "host", true},
		{"Host", "Host", true},
		{"Host", "Hos", false},
		{"", "", true},
	}
	for _, tt := range tests {
		got := eqFold(tt.a, tt.b)
		if got != tt.want {
			t.Errorf("eqFold(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
