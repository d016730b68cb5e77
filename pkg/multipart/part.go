package multipart

import (
	"bytes"
	"io"
	"math"
	"sync"

	"github.com/shapestone/shape-multipart/internal/tokenizer"
)

// Subscriber receives the body of a part.
//
// Signals are serialized: OnSubscribe first, then zero or more OnNext, then
// at most one of OnError or OnComplete. OnNext is only called for requested
// chunks. The slice passed to OnNext is owned by the subscriber.
type Subscriber interface {
	OnSubscribe(Subscription)
	OnNext([]byte)
	OnError(error)
	OnComplete()
}

// Subscription controls the flow of body chunks to a subscriber.
type Subscription interface {
	// Request asks for n more chunks. n <= 0 ends the subscription with
	// ErrInvalidDemand. Demand accumulates and saturates at math.MaxInt64,
	// which means unbounded.
	Request(n int64)
	// Cancel detaches the subscriber without an error signal. The rest of
	// the body is discarded.
	Cancel()
}

type noopSubscription struct{}

func (noopSubscription) Request(int64) {}
func (noopSubscription) Cancel()       {}

var headerBodyDelimiter = []byte("\r\n\r\n")

// Part is one part of a multipart body.
//
// Its body can be consumed either by Subscribe, or through the io.Reader
// interface. Exactly one consumer is allowed.
type Part struct {
	index        int
	accumulator  headerAccumulator
	split        *tokenizer.Splitter // header/body split, processor goroutine only
	headersReady bool                // processor goroutine only
	pushErr      error               // processor goroutine only
	size         int64               // body bytes received, processor goroutine only

	exec         *executor
	track        *completion
	deliverySize int

	mu          sync.Mutex
	body        bytes.Buffer
	demand      int64
	sub         Subscriber
	subscribed  bool
	subscribing bool
	discarded   bool
	completed   bool  // producer side done
	abortErr    error // producer side failure
	err         error // consumer side failure
	finished    bool  // consumer side done
	delivered   bool
	scheduled   bool
	retired     bool
	reader      *partReader

	observed    chan struct{} // closed once the consumer saw the end of the body
	observeOnce sync.Once
	drained     chan struct{} // signaled when buffered bytes shrink
}

func newPart(index int, exec *executor, track *completion, o *options) *Part {
	p := &Part{
		index:        index,
		accumulator:  headerAccumulator{limit: o.maxHeaderBytes},
		exec:         exec,
		track:        track,
		deliverySize: o.deliverySize,
		observed:     make(chan struct{}),
		drained:      make(chan struct{}, 1),
	}
	p.split = tokenizer.NewSplitter(headerBodyDelimiter, tokenizer.ReceiverFunc(p.receive), tokenizer.WithLimit(1))
	return p
}

// Index returns the 0-based position of the part in the body.
func (p *Part) Index() int { return p.index }

// Headers returns the part headers with lower-case keys.
func (p *Part) Headers() Headers { return p.accumulator.headers() }

// FormName returns the form field name from Content-Disposition.
func (p *Part) FormName() string { return p.Headers().FormName() }

// FileName returns the file name from Content-Disposition.
func (p *Part) FileName() string { return p.Headers().FileName() }

// Subscribe attaches s as the consumer of the part body. A second
// subscriber receives OnSubscribe followed by OnError(ErrAlreadySubscribed);
// the first subscription is unaffected.
func (p *Part) Subscribe(s Subscriber) {
	p.mu.Lock()
	if p.subscribed {
		err := ErrAlreadySubscribed
		if p.discarded {
			err = ErrPartClosed
		}
		p.mu.Unlock()
		s.OnSubscribe(noopSubscription{})
		s.OnError(err)
		return
	}
	p.subscribed = true
	p.subscribing = true
	p.sub = s
	p.mu.Unlock()

	s.OnSubscribe(&subscription{p: p})

	p.mu.Lock()
	p.subscribing = false
	p.mu.Unlock()
	p.schedule()
}

// Discard drops the part body if nobody subscribed to it. It is a no-op
// once a consumer is attached.
func (p *Part) Discard() {
	p.mu.Lock()
	if p.subscribed {
		p.mu.Unlock()
		return
	}
	p.subscribed = true
	p.discarded = true
	p.finishLocked()
	retire := p.retireLocked()
	p.mu.Unlock()

	p.markObserved()
	if retire {
		p.track.itemCompleted()
	}
}

// Read reads the part body. The first Read subscribes an internal consumer
// that requests one chunk at a time.
func (p *Part) Read(b []byte) (int, error) {
	p.mu.Lock()
	r := p.reader
	if r == nil {
		r = newPartReader()
		p.reader = r
	}
	p.mu.Unlock()

	r.once.Do(func() { p.Subscribe(r) })
	return r.read(b)
}

// ignore drops the rest of the body, detaching any reader or subscriber
// attached before the part was ignored.
func (p *Part) ignore() {
	p.mu.Lock()
	r := p.reader
	p.mu.Unlock()

	if r != nil {
		r.close()
	}
	p.Discard()
	p.cancel()
}

// Close stops reading the body. Unread bytes are discarded.
func (p *Part) Close() error {
	p.mu.Lock()
	r := p.reader
	p.mu.Unlock()

	if r != nil {
		r.close()
		return nil
	}
	p.Discard()
	return nil
}

// push feeds raw part bytes (headers, then body) from the processor.
// It reports whether the header block became complete.
func (p *Part) push(segment []byte) (bool, error) {
	wasReady := p.headersReady
	p.split.Push(segment)
	if p.pushErr != nil {
		return false, p.pushErr
	}
	return p.headersReady && !wasReady, nil
}

// receive handles the output of the header/body splitter.
func (p *Part) receive(segment []byte, end bool) {
	if p.pushErr != nil {
		return
	}
	if !p.headersReady {
		if err := p.accumulator.push(segment); err != nil {
			p.pushErr = err
			return
		}
		if end {
			p.headersReady = true
		}
		return
	}
	if len(segment) == 0 {
		return
	}
	p.size += int64(len(segment))

	p.mu.Lock()
	if !p.finished {
		p.body.Write(segment)
	}
	p.mu.Unlock()
	p.schedule()
}

// closeHeaders releases the bytes retained by the header/body splitter.
// After it returns the header block no longer changes.
func (p *Part) closeHeaders() error {
	p.split.Close()
	return p.pushErr
}

// flush marks the part complete: no more bytes will arrive.
func (p *Part) flush() error {
	p.split.Close()
	if p.pushErr != nil {
		return p.pushErr
	}

	p.mu.Lock()
	p.completed = true
	retire := p.retireLocked()
	p.mu.Unlock()

	if retire {
		p.track.itemCompleted()
		return nil
	}
	p.schedule()
	return nil
}

// abort fails the part from the producer side.
func (p *Part) abort(err error) {
	p.mu.Lock()
	if p.completed {
		p.mu.Unlock()
		return
	}
	p.completed = true
	p.abortErr = err
	retire := p.retireLocked()
	p.mu.Unlock()

	if retire {
		p.track.itemCompleted()
		return
	}
	p.schedule()
}

// buffered returns the unread body bytes.
func (p *Part) buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.body.Len()
}

func (p *Part) schedule() {
	p.mu.Lock()
	if p.scheduled || p.sub == nil || p.subscribing || p.finished {
		p.mu.Unlock()
		return
	}
	p.scheduled = true
	p.mu.Unlock()

	p.exec.submit(p.deliver)
}

// deliver signals the subscriber until there is nothing left it may receive.
// It runs on the executor; scheduled guarantees one instance per part.
func (p *Part) deliver() {
	for {
		p.mu.Lock()
		if p.finished || p.sub == nil {
			p.scheduled = false
			p.mu.Unlock()
			return
		}
		sub := p.sub

		switch {
		case p.err != nil || p.abortErr != nil:
			err := p.err
			if err == nil {
				err = p.abortErr
			}
			p.finishLocked()
			retire := p.retireLocked()
			p.scheduled = false
			p.mu.Unlock()

			sub.OnError(err)
			p.markObserved()
			if retire {
				p.track.itemCompleted()
			}
			return

		case p.demand > 0 && p.body.Len() > 0:
			chunk := make([]byte, min(p.body.Len(), p.deliverySize))
			_, _ = p.body.Read(chunk)
			p.consumeDemandLocked()
			p.signalDrainedLocked()
			p.mu.Unlock()

			sub.OnNext(chunk)

		case p.completed && p.body.Len() == 0 && !p.delivered:
			if p.demand == 0 {
				p.scheduled = false
				p.mu.Unlock()
				return
			}
			// Zero-length parts still produce one chunk.
			p.consumeDemandLocked()
			p.mu.Unlock()

			sub.OnNext([]byte{})

		case p.completed && p.body.Len() == 0:
			p.finishLocked()
			retire := p.retireLocked()
			p.scheduled = false
			p.mu.Unlock()

			sub.OnComplete()
			p.markObserved()
			if retire {
				p.track.itemCompleted()
			}
			return

		default:
			p.scheduled = false
			p.mu.Unlock()
			return
		}
	}
}

func (p *Part) consumeDemandLocked() {
	p.delivered = true
	if p.demand != math.MaxInt64 {
		p.demand--
	}
}

func (p *Part) request(n int64) {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	if n <= 0 {
		if p.err == nil {
			p.err = ErrInvalidDemand
		}
	} else if p.demand > math.MaxInt64-n {
		p.demand = math.MaxInt64
	} else {
		p.demand += n
	}
	p.mu.Unlock()
	p.schedule()
}

func (p *Part) cancel() {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.finishLocked()
	retire := p.retireLocked()
	p.mu.Unlock()

	p.markObserved()
	if retire {
		p.track.itemCompleted()
	}
}

// finishLocked ends the consumer side and releases the body buffer.
func (p *Part) finishLocked() {
	p.finished = true
	p.sub = nil
	p.body = bytes.Buffer{}
	p.signalDrainedLocked()
}

// markObserved releases Parts.Next waiting for this part. It is called
// after the final signal returned.
func (p *Part) markObserved() {
	p.observeOnce.Do(func() { close(p.observed) })
}

// retireLocked reports whether the part should be reported to the
// completion tracker now. It returns true at most once.
func (p *Part) retireLocked() bool {
	if p.retired || !p.completed || !p.finished {
		return false
	}
	p.retired = true
	return true
}

func (p *Part) signalDrainedLocked() {
	select {
	case p.drained <- struct{}{}:
	default:
	}
}

type subscription struct {
	p *Part
}

func (s *subscription) Request(n int64) { s.p.request(n) }
func (s *subscription) Cancel()         { s.p.cancel() }

type partEvent struct {
	data []byte
	err  error // io.EOF on completion
}

// partReader adapts the subscriber protocol to io.Reader.
type partReader struct {
	once      sync.Once
	mu        sync.Mutex
	sub       Subscription
	events    chan partEvent
	closed    chan struct{}
	closeOnce sync.Once

	pending   []byte
	err       error
	requested bool
}

func newPartReader() *partReader {
	return &partReader{
		events: make(chan partEvent, 2),
		closed: make(chan struct{}),
	}
}

func (r *partReader) OnSubscribe(s Subscription) {
	r.mu.Lock()
	r.sub = s
	r.mu.Unlock()
}

func (r *partReader) OnNext(b []byte)   { r.events <- partEvent{data: b} }
func (r *partReader) OnError(err error) { r.events <- partEvent{err: err} }
func (r *partReader) OnComplete()       { r.events <- partEvent{err: io.EOF} }

func (r *partReader) read(b []byte) (int, error) {
	if len(r.pending) > 0 {
		n := copy(b, r.pending)
		r.pending = r.pending[n:]
		return n, nil
	}
	if r.err != nil {
		return 0, r.err
	}
	if len(b) == 0 {
		return 0, nil
	}

	for {
		if !r.requested {
			r.requested = true
			r.subscription().Request(1)
		}

		var ev partEvent
		select {
		case ev = <-r.events:
		case <-r.closed:
			r.err = ErrPartClosed
			return 0, r.err
		}

		if ev.err != nil {
			r.err = ev.err
			return 0, r.err
		}
		r.requested = false
		if len(ev.data) == 0 {
			continue
		}
		n := copy(b, ev.data)
		r.pending = ev.data[n:]
		return n, nil
	}
}

func (r *partReader) subscription() Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub == nil {
		return noopSubscription{}
	}
	return r.sub
}

func (r *partReader) close() {
	r.closeOnce.Do(func() {
		close(r.closed)
		r.subscription().Cancel()
	})
}
