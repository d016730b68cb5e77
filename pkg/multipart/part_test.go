package multipart

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
)

// firstPart starts decoding body and returns its first part.
func firstPart(t *testing.T, ctx context.Context, body string, opts ...Option) (*Parts, *Part) {
	t.Helper()
	ps := NewRequestFromSource(formB, sliceSource([]byte(body), 5), opts...).Parts(ctx)
	t.Cleanup(func() { ps.Close() })
	p, err := ps.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	return ps, p
}

func TestPart_ZeroLengthBody(t *testing.T) {
	ctx := testContext(t)
	r := NewRequest("multipart/form-data; boundary=123", strings.NewReader("--123\r\nFoo: bar\r\n\r\n\r\n--123--"))
	got, err := readParts(ctx, r.Parts(ctx))
	if err != nil {
		t.Fatalf("readParts() error = %v", err)
	}
	if len(got) != 1 || got[0].Body != "" || got[0].Headers.Get("foo") != "bar" {
		t.Errorf("parts = %+v", got)
	}
}

func TestPart_ZeroLengthBodyDeliversOneChunk(t *testing.T) {
	for _, body := range []string{
		"--B\r\nFoo: bar\r\n\r\n\r\n--B--",
		"--B\r\n\r\n\r\n--B--\r\n",
		"--B\r\nFoo: bar\r\n--B--",
	} {
		ctx := testContext(t)
		ps, p := firstPart(t, ctx, body)

		rec := newRecorder()
		rec.onSubscribe = func(s Subscription) { s.Request(10) }
		p.Subscribe(rec)
		rec.wait(t)

		if len(rec.chunks) != 1 || len(rec.chunks[0]) != 0 {
			t.Errorf("%q: chunks = %q, want one empty chunk", body, rec.chunks)
		}
		want := []string{"subscribe", "next", "complete"}
		if strings.Join(rec.signals, ",") != strings.Join(want, ",") {
			t.Errorf("%q: signals = %v, want %v", body, rec.signals, want)
		}
		if _, err := ps.Next(ctx); !errors.Is(err, io.EOF) {
			t.Errorf("%q: Next() error = %v, want io.EOF", body, err)
		}
	}
}

func TestPart_EmptyChunkWaitsForDemand(t *testing.T) {
	ctx := testContext(t)
	_, p := firstPart(t, ctx, "--B\r\n\r\n\r\n--B--")

	rec := newRecorder()
	p.Subscribe(rec)
	select {
	case <-rec.done:
		t.Fatal("part completed without demand")
	default:
	}
	rec.sub.Request(1)
	rec.wait(t)
	if len(rec.chunks) != 1 || !rec.complete {
		t.Errorf("chunks = %d complete = %v", len(rec.chunks), rec.complete)
	}
}

func TestPart_RequestZero(t *testing.T) {
	for _, n := range []int64{0, -1} {
		ctx := testContext(t)
		ps, p := firstPart(t, ctx, twoPartBody)

		rec := newRecorder()
		rec.onSubscribe = func(s Subscription) { s.Request(n) }
		p.Subscribe(rec)
		rec.wait(t)

		if !errors.Is(rec.err, ErrInvalidDemand) {
			t.Errorf("Request(%d): OnError(%v), want ErrInvalidDemand", n, rec.err)
		}
		if len(rec.chunks) != 0 {
			t.Errorf("Request(%d): received %d chunks", n, len(rec.chunks))
		}

		// The sequence goes on with the next part.
		next, err := ps.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if next.FormName() != "b" {
			t.Errorf("FormName() = %q, want %q", next.FormName(), "b")
		}
	}
}

func TestPart_RequestZeroAfterData(t *testing.T) {
	ctx := testContext(t)
	_, p := firstPart(t, ctx, twoPartBody, WithDeliverySize(2))

	rec := newRecorder()
	rec.onSubscribe = func(s Subscription) { s.Request(1) }
	rec.onNext = func(s Subscription, _ []byte) { s.Request(0) }
	p.Subscribe(rec)
	rec.wait(t)

	if len(rec.chunks) != 1 || len(rec.chunks[0]) == 0 || !strings.HasPrefix("hello", string(rec.chunks[0])) {
		t.Errorf("chunks = %q, want one prefix of %q", rec.chunks, "hello")
	}
	if !errors.Is(rec.err, ErrInvalidDemand) {
		t.Errorf("OnError(%v), want ErrInvalidDemand", rec.err)
	}
}

func TestPart_SecondSubscriber(t *testing.T) {
	ctx := testContext(t)
	_, p := firstPart(t, ctx, singlePartBody)

	first := newRecorder()
	p.Subscribe(first)

	second := newRecorder()
	p.Subscribe(second)
	second.wait(t)
	if !errors.Is(second.err, ErrAlreadySubscribed) {
		t.Errorf("second OnError(%v), want ErrAlreadySubscribed", second.err)
	}
	if strings.Join(second.signals, ",") != "subscribe,error" {
		t.Errorf("second signals = %v", second.signals)
	}

	first.sub.Request(math.MaxInt64)
	first.wait(t)
	if first.err != nil || first.body() != "hello" {
		t.Errorf("first: body = %q err = %v", first.body(), first.err)
	}
}

func TestPart_ReadAfterSubscribe(t *testing.T) {
	ctx := testContext(t)
	_, p := firstPart(t, ctx, singlePartBody)

	rec := newRecorder()
	p.Subscribe(rec)
	if _, err := p.Read(make([]byte, 8)); !errors.Is(err, ErrAlreadySubscribed) {
		t.Errorf("Read() error = %v, want ErrAlreadySubscribed", err)
	}
	rec.sub.Cancel()
}

func TestPart_Cancel(t *testing.T) {
	ctx := testContext(t)
	body := "--B\r\nContent-Disposition: form-data; name=\"a\"\r\n\r\n" + strings.Repeat("a", 10000) +
		"\r\n--B\r\nContent-Disposition: form-data; name=\"b\"\r\n\r\nsecond\r\n--B--"
	ps, p := firstPart(t, ctx, body, WithDeliverySize(10), WithMaxBufferedBytes(64))

	rec := newRecorder()
	rec.onSubscribe = func(s Subscription) { s.Request(1) }
	rec.onNext = func(s Subscription, _ []byte) { s.Cancel() }
	p.Subscribe(rec)

	next, err := ps.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	b, err := io.ReadAll(next)
	if err != nil || string(b) != "second" {
		t.Errorf("ReadAll() = %q, %v", b, err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.chunks) != 1 || rec.err != nil || rec.complete {
		t.Errorf("cancelled subscriber: chunks = %d err = %v complete = %v", len(rec.chunks), rec.err, rec.complete)
	}
}

func TestPart_DeliverySize(t *testing.T) {
	ctx := testContext(t)
	body := "--B\r\n\r\n" + strings.Repeat("0123456789", 10) + "\r\n--B--"
	_, p := firstPart(t, ctx, body, WithDeliverySize(7))

	rec := newRecorder()
	rec.onSubscribe = func(s Subscription) { s.Request(math.MaxInt64) }
	p.Subscribe(rec)
	rec.wait(t)

	for i, c := range rec.chunks {
		if len(c) == 0 || len(c) > 7 {
			t.Errorf("chunk %d has %d bytes", i, len(c))
		}
	}
	if rec.body() != strings.Repeat("0123456789", 10) {
		t.Errorf("body = %q", rec.body())
	}
}

func TestPart_DemandIsHonored(t *testing.T) {
	ctx := testContext(t)
	body := "--B\r\n\r\n" + strings.Repeat("x", 100) + "\r\n--B--"
	_, p := firstPart(t, ctx, body, WithDeliverySize(10))

	got := make(chan int, 100)
	rec := newRecorder()
	rec.onNext = func(_ Subscription, b []byte) { got <- len(b) }
	p.Subscribe(rec)

	rec.sub.Request(3)
	for i := 0; i < 3; i++ {
		<-got
	}
	select {
	case n := <-got:
		t.Fatalf("received an unrequested chunk of %d bytes", n)
	default:
	}

	rec.sub.Request(math.MaxInt64)
	rec.sub.Request(math.MaxInt64)
	rec.wait(t)
	if len(rec.body()) != 100 {
		t.Errorf("body length = %d, want 100", len(rec.body()))
	}
}

func TestPart_Close(t *testing.T) {
	ctx := testContext(t)
	ps, p := firstPart(t, ctx, twoPartBody)

	buf := make([]byte, 2)
	if n, err := p.Read(buf); err != nil || n == 0 || !strings.HasPrefix("hello", string(buf[:n])) {
		t.Fatalf("Read() = %q, %v", buf[:n], err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := p.Read(buf); err != nil && !errors.Is(err, ErrPartClosed) {
		t.Errorf("Read() after Close error = %v", err)
	}

	next, err := ps.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if next.Index() != 1 {
		t.Errorf("Index() = %d, want 1", next.Index())
	}
}

func TestPart_CloseUnread(t *testing.T) {
	ctx := testContext(t)
	_, p := firstPart(t, ctx, singlePartBody)
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := p.Read(make([]byte, 1)); !errors.Is(err, ErrPartClosed) {
		t.Errorf("Read() error = %v, want ErrPartClosed", err)
	}
}

func TestPart_Accessors(t *testing.T) {
	ctx := testContext(t)
	body := "--B\r\nContent-Disposition: form-data; name=\"upload\"; filename=\"C:\\\\tmp\\\\a.tgz\"\r\n" +
		"Content-Type: application/gzip\r\n\r\ndata\r\n--B--"
	_, p := firstPart(t, ctx, body)

	if p.Index() != 0 {
		t.Errorf("Index() = %d", p.Index())
	}
	if got := p.FormName(); got != "upload" {
		t.Errorf("FormName() = %q, want %q", got, "upload")
	}
	if got := p.FileName(); got != "a.tgz" {
		t.Errorf("FileName() = %q, want %q", got, "a.tgz")
	}
	if got := p.Headers().Get("CONTENT-TYPE"); got != "application/gzip" {
		t.Errorf("Headers().Get() = %q", got)
	}
}
