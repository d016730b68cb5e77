package multipart

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Parts is the sequence of parts of one request body.
//
// Next returns parts in arrival order. Before returning part N+1 it waits
// until the consumer of part N has finished reading it or cancelled; a part
// nobody subscribed to is discarded. Next must not be called concurrently.
type Parts struct {
	out    chan *Part
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	result error // terminal value, valid once done is closed
	err    error // sticky failure of this sequence

	prev    *Part
	inspect Inspector
}

func newParts(ctx context.Context, boundary string, src Source, o *options) *Parts {
	ctx, cancel := context.WithCancel(ctx)
	ps := &Parts{
		out:    make(chan *Part),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	track := newCompletion(ps.complete)
	pr := newProcessor(boundary, src, o, track, ps.out)
	go pr.run(ctx)
	return ps
}

// failedParts returns a sequence that only yields err.
func failedParts(err error) *Parts {
	ps := &Parts{done: make(chan struct{}), cancel: func() {}, err: err}
	close(ps.done)
	return ps
}

func (ps *Parts) complete(result error) {
	ps.mu.Lock()
	ps.result = result
	ps.mu.Unlock()
	close(ps.done)
}

// Next returns the next part, or io.EOF after the last one. Any other error
// ends the sequence, except a ctx error which only aborts this call.
func (ps *Parts) Next(ctx context.Context) (*Part, error) {
	for {
		if err := ps.failure(); err != nil {
			return nil, err
		}
		p, err := ps.next(ctx)
		if err != nil {
			return nil, err
		}
		if ps.inspect == nil {
			return p, nil
		}

		accepted, err := ps.inspectPart(ctx, p)
		if err != nil {
			ps.fail(err)
			return nil, err
		}
		if accepted {
			return p, nil
		}
		p.ignore()
	}
}

func (ps *Parts) next(ctx context.Context) (*Part, error) {
	if ps.prev != nil {
		if err := settle(ctx, ps.prev); err != nil {
			return nil, err
		}
		ps.prev = nil
	}

	select {
	case p := <-ps.out:
		ps.prev = p
		return p, nil
	case <-ps.done:
		return nil, ps.terminal()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// settle waits until the consumer of p is done with it.
func settle(ctx context.Context, p *Part) error {
	p.Discard()
	select {
	case <-p.observed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ps *Parts) terminal() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.result == nil {
		return io.EOF
	}
	return ps.result
}

func (ps *Parts) failure() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.err
}

func (ps *Parts) fail(err error) {
	ps.mu.Lock()
	if ps.err == nil {
		ps.err = err
	}
	ps.mu.Unlock()
	ps.cancel()
}

// Close stops decoding. Parts already handed out stay readable up to the
// bytes received so far; Next returns ErrClosed afterwards.
func (ps *Parts) Close() error {
	ps.fail(ErrClosed)
	return nil
}

// Err returns the terminal error of a finished sequence: nil after a clean
// end, otherwise the failure. It returns nil while the sequence is running.
func (ps *Parts) Err() error {
	select {
	case <-ps.done:
	default:
		return nil
	}
	if err := ps.failure(); err != nil {
		return err
	}
	if err := ps.terminal(); !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
