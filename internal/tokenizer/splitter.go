package tokenizer

import "bytes"

// Receiver consumes the segments produced by a Splitter.
//
// end reports whether the segment was immediately followed by the delimiter.
// A run of bytes between two delimiters may arrive as several end=false
// segments followed by one end=true segment. The segment slice aliases the
// splitter's internal buffer and is only valid until Receive returns.
type Receiver interface {
	Receive(segment []byte, end bool)
}

// ReceiverFunc adapts a plain function to the Receiver interface.
type ReceiverFunc func(segment []byte, end bool)

// Receive calls f(segment, end).
func (f ReceiverFunc) Receive(segment []byte, end bool) { f(segment, end) }

// SplitterOption configures a Splitter.
type SplitterOption func(*Splitter)

// WithLookahead holds back the first segment after a delimiter until at least
// n bytes of it are available, so that receivers can inspect the bytes that
// follow a delimiter even when they straddle a chunk boundary. Close and a
// following delimiter both release held bytes regardless of n.
func WithLookahead(n int) SplitterOption {
	return func(s *Splitter) {
		if n > 0 {
			s.lookahead = n
		}
	}
}

// WithLimit stops delimiter matching after n delimiters. Everything pushed
// afterwards is forwarded verbatim as end=false segments.
func WithLimit(n int) SplitterOption {
	return func(s *Splitter) {
		if n > 0 {
			s.limit = n
		}
	}
}

// Splitter splits an unbounded sequence of byte chunks on a fixed delimiter.
// The delimiter may span any number of Push calls.
//
// Between calls the splitter retains at most len(delim)-1 trailing bytes
// (plus the configured lookahead after a delimiter). A Splitter is not safe
// for concurrent use.
type Splitter struct {
	delim    []byte
	receiver Receiver

	buf       []byte
	found     int  // delimiters matched so far
	limit     int  // 0 = unlimited
	lookahead int  // bytes to hold after a delimiter
	afterEnd  bool // next segment directly follows a delimiter
	closed    bool
}

// NewSplitter creates a splitter that reports segments of the stream
// delimited by delim to receiver. delim must not be empty.
func NewSplitter(delim []byte, receiver Receiver, opts ...SplitterOption) *Splitter {
	if len(delim) == 0 {
		panic("tokenizer: empty delimiter")
	}
	s := &Splitter{
		delim:    append([]byte(nil), delim...),
		receiver: receiver,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Delimiter returns a copy of the delimiter.
func (s *Splitter) Delimiter() []byte {
	return append([]byte(nil), s.delim...)
}

// Found returns the number of delimiters matched so far.
func (s *Splitter) Found() int {
	return s.found
}

// Push feeds the next chunk of the stream.
func (s *Splitter) Push(chunk []byte) {
	if s.closed || len(chunk) == 0 {
		return
	}
	if s.exhausted() {
		s.forward(chunk)
		return
	}

	s.buf = append(s.buf, chunk...)
	offset := 0
	for !s.exhausted() {
		idx := bytes.Index(s.buf[offset:], s.delim)
		if idx < 0 {
			break
		}
		s.receiver.Receive(s.buf[offset:offset+idx], true)
		offset += idx + len(s.delim)
		s.found++
		s.afterEnd = true
	}

	if s.exhausted() {
		rest := s.buf[offset:]
		s.buf = s.buf[:0]
		s.forward(rest)
		return
	}

	// Bytes past margin may be the beginning of a delimiter.
	margin := len(s.buf) - len(s.delim) + 1
	if margin > offset && !(s.afterEnd && margin-offset < s.lookahead) {
		s.receiver.Receive(s.buf[offset:margin], false)
		s.afterEnd = false
		offset = margin
	}
	s.compact(offset)
}

// Close flushes the retained tail as a final end=false segment. Pushes after
// Close are ignored.
func (s *Splitter) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if len(s.buf) > 0 {
		s.receiver.Receive(s.buf, false)
	}
	s.buf = nil
}

func (s *Splitter) exhausted() bool {
	return s.limit > 0 && s.found >= s.limit
}

func (s *Splitter) forward(b []byte) {
	if len(b) == 0 {
		return
	}
	s.receiver.Receive(b, false)
	s.afterEnd = false
}

// compact drops the first n bytes of the buffer, reusing its storage.
func (s *Splitter) compact(n int) {
	if n == 0 {
		return
	}
	m := copy(s.buf, s.buf[n:])
	s.buf = s.buf[:m]
}
