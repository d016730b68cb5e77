// Package state tracks where a multipart body scanner is relative to the
// boundary delimiters: before the first one, inside a part, or after the
// closing one.
package state

import (
	"bytes"
	"fmt"
)

// Phase is the position of the scanner in the body.
type Phase uint8

const (
	// Init is the state before any segment was seen.
	Init Phase = iota
	// Preamble covers the bytes before the first delimiter.
	Preamble
	// Active covers part segments.
	Active
	// Epilogue covers the bytes after the closing delimiter.
	Epilogue
)

var phaseNames = [...]string{"init", "preamble", "active", "epilogue"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// closing is the marker that follows the last delimiter of a body.
var closing = []byte("--")

// State is a snapshot of the scanner. The zero value is the initial state.
type State struct {
	phase   Phase
	started bool
	ended   bool
}

// Patch returns the state after observing segment. end reports that the
// segment was directly followed by a delimiter. The input state is not
// modified.
func Patch(s State, segment []byte, end bool) State {
	next := s
	if next.phase == Init {
		next.phase = Preamble
	}
	// A segment starts a part only when it directly follows a delimiter.
	next.started = s.ended
	if next.phase == Preamble && s.ended {
		next.phase = Active
	}
	if s.ended && next.phase != Epilogue && bytes.HasPrefix(segment, closing) {
		next.phase = Epilogue
	}
	next.ended = end
	return next
}

// Phase returns the current phase.
func (s State) Phase() Phase { return s.phase }

// IsInit reports whether no segment has been observed yet.
func (s State) IsInit() bool { return s.phase == Init }

// Ignore reports whether the last segment belongs to the preamble or the
// epilogue and carries no part data.
func (s State) Ignore() bool { return s.phase == Preamble || s.phase == Epilogue }

// Started reports whether the last segment is the first segment of a part.
func (s State) Started() bool { return s.started }

// Ended reports whether the last segment is the final segment of a part.
func (s State) Ended() bool { return s.ended }

func (s State) String() string {
	return fmt.Sprintf("%s(started=%t, ended=%t)", s.phase, s.started, s.ended)
}
