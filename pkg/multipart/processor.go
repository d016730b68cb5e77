package multipart

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/shapestone/shape-multipart/internal/state"
	"github.com/shapestone/shape-multipart/internal/tokenizer"
)

var crlf = []byte("\r\n")

// processor reads the upstream source and cuts it into parts. All of its
// fields are owned by the goroutine running run.
type processor struct {
	src   Source
	opts  *options
	log   *slog.Logger
	exec  *executor
	track *completion
	out   chan<- *Part

	open    []byte // "--" + boundary
	split   *tokenizer.Splitter
	state   state.State
	pending []byte // start of the stream until the leading delimiter check
	decided bool

	ctx       context.Context // set for the duration of run
	cur       *Part
	published bool
	count     int
	err       error
}

func newProcessor(boundary string, src Source, o *options, track *completion, out chan<- *Part) *processor {
	pr := &processor{
		src:   src,
		opts:  o,
		log:   o.logger.With("boundary", boundary),
		exec:  newExecutor(o.workers),
		track: track,
		out:   out,
		open:  []byte("--" + boundary),
	}
	delim := append(append([]byte(nil), crlf...), pr.open...)
	pr.split = tokenizer.NewSplitter(delim, pr, tokenizer.WithLookahead(len("--")))
	return pr
}

// run pulls one upstream chunk at a time until the source is exhausted, the
// body is malformed, or ctx is done.
func (pr *processor) run(ctx context.Context) {
	pr.ctx = ctx
	for {
		chunk, err := pr.src.Next(ctx)
		if len(chunk) > 0 {
			pr.feed(chunk)
			if pr.err != nil {
				pr.stop(pr.err)
				return
			}
		}
		if errors.Is(err, io.EOF) {
			pr.finish()
			return
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				pr.stop(ctxErr)
				return
			}
			pr.log.Warn("upstream read failed", "parts", pr.count, "err", err)
			pr.stop(newError(KindUpstream, "read", err))
			return
		}
		if err := pr.backpressure(ctx); err != nil {
			pr.stop(err)
			return
		}
	}
}

// feed tokenizes a chunk. A body that starts with the boundary itself gets a
// synthetic CRLF so that its first delimiter looks like every other one.
func (pr *processor) feed(chunk []byte) {
	if !pr.decided {
		pr.pending = append(pr.pending, chunk...)
		if len(pr.pending) < len(pr.open) {
			return
		}
		chunk = pr.decide()
	}
	pr.split.Push(chunk)
}

func (pr *processor) decide() []byte {
	pr.decided = true
	chunk := pr.pending
	pr.pending = nil
	if bytes.HasPrefix(chunk, pr.open) {
		pr.split.Push(crlf)
	}
	return chunk
}

// Receive implements tokenizer.Receiver for the boundary splitter.
func (pr *processor) Receive(segment []byte, end bool) {
	if pr.err != nil {
		return
	}
	pr.state = state.Patch(pr.state, segment, end)
	if pr.state.Ignore() {
		return
	}

	if pr.state.Started() {
		pr.track.itemStarted()
		pr.cur = newPart(pr.count, pr.exec, pr.track, pr.opts)
		pr.published = false
		pr.count++
		pr.log.Debug("part started", "index", pr.cur.index)
	}
	if pr.cur == nil {
		return
	}

	ready, err := pr.cur.push(segment)
	if err != nil {
		pr.err = newError(KindProtocol, "headers", err)
		return
	}
	if ready {
		if pr.err = pr.publish(); pr.err != nil {
			return
		}
	}

	if pr.state.Ended() {
		pr.err = pr.closePart()
	}
}

// publish hands the current part to the consumer. The channel is unbuffered
// and the consumer only receives after settling the previous part, so at
// most one unconsumed part exists at a time.
func (pr *processor) publish() error {
	if pr.published {
		return nil
	}
	pr.published = true
	select {
	case pr.out <- pr.cur:
		return nil
	case <-pr.ctx.Done():
		return pr.ctx.Err()
	}
}

// closePart publishes the current part if its headers never completed and
// marks it complete. Header bytes still held by the part's splitter are
// flushed first, so the consumer never sees a growing header block.
func (pr *processor) closePart() error {
	p := pr.cur
	if err := p.closeHeaders(); err != nil {
		return newError(KindProtocol, "headers", err)
	}
	if err := pr.publish(); err != nil {
		return err
	}
	if err := p.flush(); err != nil {
		return newError(KindProtocol, "headers", err)
	}
	pr.log.Debug("part finished", "index", p.index, "bytes", p.size)
	pr.cur = nil
	return nil
}

// backpressure blocks while the current part holds more unread bytes than
// allowed.
func (pr *processor) backpressure(ctx context.Context) error {
	p := pr.cur
	if p == nil {
		return nil
	}
	for p.buffered() > pr.opts.maxBufferedBytes {
		select {
		case <-p.drained:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// finish handles the end of the upstream.
func (pr *processor) finish() {
	if !pr.decided {
		pr.split.Push(pr.decide())
	}
	pr.split.Close()
	if pr.err == nil && pr.cur != nil {
		pr.err = pr.closePart()
	}
	if pr.err != nil {
		pr.stop(pr.err)
		return
	}

	var result error = io.EOF
	if pr.state.Phase() == state.Active {
		pr.log.Debug("body truncated", "parts", pr.count)
		result = newError(KindProtocol, "read", io.ErrUnexpectedEOF)
	}
	pr.track.upstreamCompleted(result)
}

// stop fails the open part and the whole sequence.
func (pr *processor) stop(err error) {
	if pr.cur != nil {
		pr.cur.abort(err)
		pr.cur = nil
	}
	pr.track.fail(err)
}
