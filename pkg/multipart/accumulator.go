package multipart

import (
	"sync"

	"github.com/shapestone/shape-multipart/internal/fastparser"
)

// headerAccumulator collects the raw header block of a part and parses it
// once, on first use. push must not be called after headers.
type headerAccumulator struct {
	raw   []byte
	limit int

	once   sync.Once
	parsed Headers
}

func (a *headerAccumulator) push(b []byte) error {
	if a.limit > 0 && len(a.raw)+len(b) > a.limit {
		return ErrHeaderTooLarge
	}
	a.raw = append(a.raw, b...)
	return nil
}

func (a *headerAccumulator) headers() Headers {
	a.once.Do(func() {
		a.parsed = convertHeaders(fastparser.ParseHeaderBlock(a.raw))
		a.raw = nil
	})
	return a.parsed
}
