package multipart

import (
	"context"
	"sync"
)

// Sink records the decision an Inspector makes about a part.
type Sink interface {
	// Accept hands the part to the consumer of the sequence.
	Accept()
	// Ignore drops the part body.
	Ignore()
}

// Inspector decides, from the headers, whether a part is kept. It must call
// exactly one of Accept or Ignore before returning nil. A returned error
// ends the sequence with that error.
type Inspector func(ctx context.Context, p *Part, sink Sink) error

// Keep returns an Inspector accepting the parts whose headers satisfy keep.
func Keep(keep func(Headers) bool) Inspector {
	return func(_ context.Context, p *Part, sink Sink) error {
		if keep(p.Headers()) {
			sink.Accept()
		} else {
			sink.Ignore()
		}
		return nil
	}
}

// AcceptFields returns an Inspector keeping the form fields with the given
// names.
func AcceptFields(names ...string) Inspector {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return Keep(func(h Headers) bool {
		_, ok := set[h.FormName()]
		return ok
	})
}

type decision int

const (
	undecided decision = iota
	accepted
	ignored
)

type sink struct {
	mu    sync.Mutex
	state decision
	calls int
}

func (s *sink) Accept() { s.decide(accepted) }
func (s *sink) Ignore() { s.decide(ignored) }

func (s *sink) decide(d decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls == 1 {
		s.state = d
	}
}

func (s *sink) result() (decision, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.calls
}

// inspectPart runs the inspector on p and reports whether it was accepted.
func (ps *Parts) inspectPart(ctx context.Context, p *Part) (bool, error) {
	var s sink
	if err := ps.inspect(ctx, p, &s); err != nil {
		return false, err
	}
	d, calls := s.result()
	switch {
	case calls == 0:
		return false, ErrNotInspected
	case calls > 1:
		return false, ErrAlreadyInspected
	}
	return d == accepted, nil
}
