package multipart

import (
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
)

// NewBoundary returns a random boundary of 32 hex digits.
func NewBoundary() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Writer streams a multipart body to an io.Writer.
type Writer struct {
	w        io.Writer
	boundary string
	started  bool
	closed   bool
	part     *partWriter
}

// NewWriter returns a Writer with a random boundary.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, boundary: NewBoundary()}
}

// Boundary returns the boundary of the body.
func (mw *Writer) Boundary() string { return mw.boundary }

// SetBoundary overrides the boundary. It must be called before the first
// part is written.
func (mw *Writer) SetBoundary(b string) error {
	if mw.started {
		return errors.New("multipart: SetBoundary called after write")
	}
	if err := checkBoundary(b); err != nil {
		return err
	}
	mw.boundary = b
	return nil
}

// FormDataContentType returns the Content-Type of a multipart/form-data
// body written by mw.
func (mw *Writer) FormDataContentType() string {
	return FormDataContentType(mw.boundary)
}

// FormDataContentType returns a multipart/form-data Content-Type with the
// given boundary, quoted when needed.
func FormDataContentType(boundary string) string {
	if strings.ContainsAny(boundary, "()<>@,;:\\\"/[]?= ") {
		boundary = `"` + boundary + `"`
	}
	return "multipart/form-data; boundary=" + boundary
}

// CreatePart writes the delimiter and headers of a new part and returns a
// writer for its body. The previous part ends when CreatePart or Close is
// called.
func (mw *Writer) CreatePart(h Headers) (io.Writer, error) {
	if mw.closed {
		return nil, ErrClosed
	}
	if mw.part != nil {
		mw.part.closed = true
	}

	buf := make([]byte, 0, 128)
	if mw.started {
		buf = appendCRLF(buf)
	}
	buf = append(buf, "--"...)
	buf = append(buf, mw.boundary...)
	buf = appendCRLF(buf)
	buf, err := appendHeaders(buf, h)
	if err != nil {
		return nil, err
	}
	buf = appendCRLF(buf)
	if _, err := mw.w.Write(buf); err != nil {
		return nil, err
	}
	mw.started = true
	mw.part = &partWriter{mw: mw}
	return mw.part, nil
}

// CreateFormField starts a form-data part for a plain field.
func (mw *Writer) CreateFormField(name string) (io.Writer, error) {
	return mw.CreatePart(Headers{
		{Key: "Content-Disposition", Value: `form-data; name="` + escapeQuotes(name) + `"`},
	})
}

// CreateFormFile starts a form-data part for a file upload.
func (mw *Writer) CreateFormFile(field, filename string) (io.Writer, error) {
	return mw.CreatePart(Headers{
		{Key: "Content-Disposition", Value: `form-data; name="` + escapeQuotes(field) + `"; filename="` + escapeQuotes(filename) + `"`},
		{Key: "Content-Type", Value: "application/octet-stream"},
	})
}

// WriteSection writes a complete part.
func (mw *Writer) WriteSection(s Section) error {
	pw, err := mw.CreatePart(s.Headers)
	if err != nil {
		return err
	}
	_, err = pw.Write(s.Body)
	return err
}

// Close writes the closing delimiter. It does not close the underlying
// writer.
func (mw *Writer) Close() error {
	if mw.closed {
		return nil
	}
	mw.closed = true
	if mw.part != nil {
		mw.part.closed = true
	}

	buf := make([]byte, 0, len(mw.boundary)+8)
	if mw.started {
		buf = appendCRLF(buf)
	}
	buf = append(buf, "--"...)
	buf = append(buf, mw.boundary...)
	buf = append(buf, "--\r\n"...)
	_, err := mw.w.Write(buf)
	return err
}

type partWriter struct {
	mw     *Writer
	closed bool
}

func (pw *partWriter) Write(b []byte) (int, error) {
	if pw.closed {
		return 0, errors.New("multipart: write to a finished part")
	}
	return pw.mw.w.Write(b)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// escapeQuotes escapes a quoted-string parameter value.
func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
