package multipart

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
)

func TestReadHTTPRequest_ContentLength(t *testing.T) {
	raw := "POST /npm/left-pad HTTP/1.1\r\n" +
		"Host: repo.example\r\n" +
		"Content-Type: multipart/form-data; boundary=B\r\n" +
		"Content-Length: " + strconv.Itoa(len(twoPartBody)) + "\r\n" +
		"\r\n" + twoPartBody + "GET /next HTTP/1.1\r\n\r\n"

	req, err := ReadHTTPRequest(strings.NewReader(raw), WithChunkSize(7))
	if err != nil {
		t.Fatalf("ReadHTTPRequest() error = %v", err)
	}
	if req.Method != "POST" || req.Path != "/npm/left-pad" || req.Version != "HTTP/1.1" {
		t.Errorf("request line = %s %s %s", req.Method, req.Path, req.Version)
	}
	if got := req.Headers.Get("host"); got != "repo.example" {
		t.Errorf("Host = %q", got)
	}

	ctx := testContext(t)
	got, err := readParts(ctx, req.Body.Parts(ctx))
	if err != nil {
		t.Fatalf("readParts() error = %v", err)
	}
	if len(got) != 2 || got[0].Body != "hello" || got[1].Body != "world" {
		t.Errorf("parts = %+v", got)
	}
}

func TestReadHTTPRequest_Chunked(t *testing.T) {
	raw := "\r\nPUT /upload HTTP/1.1\r\n" +
		"Content-Type: multipart/form-data; boundary=B\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		chunk(twoPartBody[:10]) + chunk(twoPartBody[10:50]) + chunk(twoPartBody[50:]) +
		"0\r\n\r\n"

	req, err := ReadHTTPRequest(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadHTTPRequest() error = %v", err)
	}
	ctx := testContext(t)
	got, err := readParts(ctx, req.Body.Parts(ctx))
	if err != nil {
		t.Fatalf("readParts() error = %v", err)
	}
	if len(got) != 2 || got[1].Body != "world" {
		t.Errorf("parts = %+v", got)
	}
}

func chunk(s string) string {
	return strconv.FormatInt(int64(len(s)), 16) + "\r\n" + s + "\r\n"
}

func TestReadHTTPRequest_TruncatedChunked(t *testing.T) {
	raw := "POST / HTTP/1.1\r\n" +
		"Content-Type: multipart/form-data; boundary=B\r\n" +
		"Transfer-Encoding: chunked\r\n\r\n" +
		chunk(twoPartBody[:30])

	req, err := ReadHTTPRequest(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadHTTPRequest() error = %v", err)
	}
	ctx := testContext(t)
	_, err = readParts(ctx, req.Body.Parts(ctx))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("readParts() error = %v, want io.ErrUnexpectedEOF", err)
	}
	if StatusCode(err) != 500 {
		t.Errorf("StatusCode() = %d, want 500", StatusCode(err))
	}
}

func TestReadHTTPRequest_NoBody(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nContent-Type: multipart/form-data; boundary=B\r\n\r\n"
	req, err := ReadHTTPRequest(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ReadHTTPRequest() error = %v", err)
	}
	ctx := testContext(t)
	if _, err := req.Body.Parts(ctx).Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
}

func TestReadHTTPRequest_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"unterminated head", "POST / HTTP/1.1\r\nHost: x\r\n"},
		{"malformed request line", "POST\r\n\r\n"},
		{"malformed header", "POST / HTTP/1.1\r\nno colon\r\n\r\n"},
		{"huge head", "POST / HTTP/1.1\r\nX: " + strings.Repeat("a", maxRequestHead) + "\r\n\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadHTTPRequest(strings.NewReader(tt.raw))
			if !IsBadRequest(err) {
				t.Errorf("ReadHTTPRequest() error = %v, want bad request", err)
			}
		})
	}
}
