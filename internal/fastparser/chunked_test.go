package fastparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestDechunk_Simple(t *testing.T) {
	data := []byte("5\r\nHello\r\n0\r\n\r\n")
	body, err := Dechunk(data)
	if err != nil {
		t.Fatalf("Dechunk() error = %v", err)
	}
	if string(body) != "Hello" {
		t.Errorf("Dechunk() = %q, want Hello", string(body))
	}
}

func TestDechunk_MultipleChunks(t *testing.T) {
	data := []byte("5\r\nHello\r\n7\r\n, World\r\n0\r\n\r\n")
	body, err := Dechunk(data)
	if err != nil {
		t.Fatalf("Dechunk() error = %v", err)
	}
	if string(body) != "Hello, World" {
		t.Errorf("Dechunk() = %q, want Hello, World", string(body))
	}
}

func TestDechunk_HexUpperCase(t *testing.T) {
	data := []byte("A\r\n0123456789\r\n0\r\n\r\n")
	body, err := Dechunk(data)
	if err != nil {
		t.Fatalf("Dechunk() error = %v", err)
	}
	if string(body) != "0123456789" {
		t.Errorf("Dechunk() = %q, want 0123456789", string(body))
	}
}

func TestDechunk_WithExtension(t *testing.T) {
	data := []byte("5;ext=val\r\nHello\r\n0\r\n\r\n")
	body, err := Dechunk(data)
	if err != nil {
		t.Fatalf("Dechunk() error = %v", err)
	}
	if string(body) != "Hello" {
		t.Errorf("Dechunk() = %q, want Hello", string(body))
	}
}

func TestDechunk_EmptyBody(t *testing.T) {
	data := []byte("0\r\n\r\n")
	body, err := Dechunk(data)
	if err != nil {
		t.Fatalf("Dechunk() error = %v", err)
	}
	if body != nil {
		t.Errorf("Dechunk() = %v, want nil", body)
	}
}

func TestDechunk_InvalidHex(t *testing.T) {
	data := []byte("XYZ\r\nHello\r\n0\r\n\r\n")
	_, err := Dechunk(data)
	if err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestDechunk_Truncated(t *testing.T) {
	data := []byte("5\r\nHe")
	_, err := Dechunk(data)
	if err == nil {
		t.Error("expected error for truncated chunk")
	}
}

func TestDechunk_BareLF(t *testing.T) {
	data := []byte("5\nHello\n0\n\n")
	body, err := Dechunk(data)
	if err != nil {
		t.Fatalf("Dechunk() error = %v", err)
	}
	if string(body) != "Hello" {
		t.Errorf("Dechunk() = %q, want Hello", string(body))
	}
}

func TestDechunk_LeadingZeros(t *testing.T) {
	data := []byte("000000001\r\nX\r\n0\r\n\r\n")
	body, err := Dechunk(data)
	if err != nil {
		t.Fatalf("Dechunk() error = %v", err)
	}
	if string(body) != "X" {
		t.Errorf("Dechunk() = %q, want X", string(body))
	}
}

func TestDechunk_WithTrailers(t *testing.T) {
	data := []byte("3\r\nabc\r\n0\r\nX-Checksum: 1\r\nX-Other: 2\r\n\r\n")
	body, err := Dechunk(data)
	if err != nil {
		t.Fatalf("Dechunk() error = %v", err)
	}
	if string(body) != "abc" {
		t.Errorf("Dechunk() = %q, want abc", string(body))
	}
}

func TestDechunk_MissingCRLFAfterData(t *testing.T) {
	// Chunk data is present but not followed by CRLF; more data follows with no separator
	data := []byte("5\r\nHello!!") // no CRLF after "Hello", but data[9] == '!'
	_, err := Dechunk(data)
	if err == nil {
		t.Error("expected error when CRLF after chunk data is missing")
	}
}

func TestDechunk_UnterminatedSizeLine(t *testing.T) {
	// No line ending at all
	data := []byte("5")
	_, err := Dechunk(data)
	if err == nil {
		t.Error("expected error for unterminated chunk size line")
	}
}

func TestParseHexSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"a", 10, false},
		{"FF", 255, false},
		{"10000", 65536, false},
		{"fffffffffffffff", 1<<60 - 1, false},
		{"1000000000000000", 0, true},
		{"", 0, true},
		{"GG", 0, true},
	}
	for _, tt := range tests {
		got, err := parseHexSize([]byte(tt.input))
		if (err != nil) != tt.wantErr {
			t.Errorf("parseHexSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseHexSize(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

// TestDechunk_EmptyData exercises the "unexpected end of data" path.
func TestDechunk_EmptyData(t *testing.T) {
	_, err := Dechunk([]byte{})
	if err == nil {
		t.Error("expected error for empty input")
	}
}

func TestChunkReader_Frames(t *testing.T) {
	cr := NewChunkReader(strings.NewReader("5\r\nHello\r\n7;ext\r\n, World\r\n0\r\n\r\n"))

	var frames []string
	for {
		frame, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		frames = append(frames, string(frame))
	}
	if len(frames) != 2 || frames[0] != "Hello" || frames[1] != ", World" {
		t.Errorf("frames = %q, want [Hello , World]", frames)
	}

	// EOF is sticky.
	if _, err := cr.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after EOF error = %v, want io.EOF", err)
	}
}

func TestChunkReader_LargeChunkIsSplit(t *testing.T) {
	size := maxFrame + 100
	data := fmt.Sprintf("%x\r\n%s\r\n0\r\n\r\n", size, strings.Repeat("x", size))
	cr := NewChunkReader(strings.NewReader(data))

	first, err := cr.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if len(first) != maxFrame {
		t.Errorf("first frame = %d bytes, want %d", len(first), maxFrame)
	}
	second, err := cr.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if len(second) != 100 {
		t.Errorf("second frame = %d bytes, want 100", len(second))
	}
	if _, err := cr.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
}

func TestChunkReader_TruncatedData(t *testing.T) {
	cr := NewChunkReader(strings.NewReader("5\r\nHe"))
	_, err := cr.Next()
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Next() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestChunkReader_MissingCRLFAfterData(t *testing.T) {
	cr := NewChunkReader(strings.NewReader("5\r\nHello!!"))
	frame, err := cr.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if string(frame) != "Hello" {
		t.Errorf("frame = %q, want Hello", frame)
	}
	if _, err := cr.Next(); err == nil {
		t.Error("expected error for missing CRLF after chunk data")
	}
}

func TestChunkReader_SharesBufferedReader(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("head\n3\r\nabc\r\n0\r\n\r\n"))
	if _, err := br.ReadString('\n'); err != nil {
		t.Fatalf("ReadString() error = %v", err)
	}
	cr := NewChunkReader(br)
	frame, err := cr.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if string(frame) != "abc" {
		t.Errorf("frame = %q, want abc", frame)
	}
}
