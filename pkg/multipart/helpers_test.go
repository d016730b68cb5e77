package multipart

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// sliceSource serves data in chunks of size bytes.
func sliceSource(data []byte, size int) Source {
	off := 0
	return SourceFunc(func(ctx context.Context) ([]byte, error) {
		if off >= len(data) {
			return nil, io.EOF
		}
		end := min(off+size, len(data))
		chunk := append([]byte(nil), data[off:end]...)
		off = end
		return chunk, nil
	})
}

// failingSource serves data in one chunk, then fails with err.
func failingSource(data []byte, err error) Source {
	sent := false
	return SourceFunc(func(ctx context.Context) ([]byte, error) {
		if !sent {
			sent = true
			return data, nil
		}
		return nil, err
	})
}

type gotPart struct {
	Headers Headers
	Body    string
}

// readParts drains every part of ps through io.Reader.
func readParts(ctx context.Context, ps *Parts) ([]gotPart, error) {
	var out []gotPart
	for {
		p, err := ps.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		b, err := io.ReadAll(p)
		if err != nil {
			return out, err
		}
		out = append(out, gotPart{Headers: p.Headers(), Body: string(b)})
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// recorder is a Subscriber that records every signal.
type recorder struct {
	mu       sync.Mutex
	sub      Subscription
	chunks   [][]byte
	err      error
	complete bool
	signals  []string

	// onSubscribe runs inside OnSubscribe, before the subscription is
	// stored.
	onSubscribe func(Subscription)
	// onNext runs inside OnNext.
	onNext func(Subscription, []byte)

	done chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{})}
}

func (r *recorder) OnSubscribe(s Subscription) {
	r.mu.Lock()
	r.sub = s
	r.signals = append(r.signals, "subscribe")
	fn := r.onSubscribe
	r.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (r *recorder) OnNext(b []byte) {
	r.mu.Lock()
	r.chunks = append(r.chunks, b)
	r.signals = append(r.signals, "next")
	fn, s := r.onNext, r.sub
	r.mu.Unlock()
	if fn != nil {
		fn(s, b)
	}
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	r.err = err
	r.signals = append(r.signals, "error")
	r.mu.Unlock()
	close(r.done)
}

func (r *recorder) OnComplete() {
	r.mu.Lock()
	r.complete = true
	r.signals = append(r.signals, "complete")
	r.mu.Unlock()
	close(r.done)
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(10 * time.Second):
		t.Fatal("subscriber was not terminated")
	}
}

func (r *recorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n []byte
	for _, c := range r.chunks {
		n = append(n, c...)
	}
	return string(n)
}
