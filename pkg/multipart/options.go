package multipart

import "log/slog"

// Defaults for decoder options.
const (
	DefaultChunkSize        = 8 << 10
	DefaultDeliverySize     = 4 << 10
	DefaultWorkers          = 2
	DefaultMaxBufferedBytes = 1 << 20
	DefaultMaxHeaderBytes   = 16 << 10
)

// Option configures a decoder.
type Option func(*options)

type options struct {
	chunkSize        int
	deliverySize     int
	workers          int
	maxBufferedBytes int
	maxHeaderBytes   int
	logger           *slog.Logger
}

func newOptions(opts []Option) options {
	o := options{
		chunkSize:        DefaultChunkSize,
		deliverySize:     DefaultDeliverySize,
		workers:          DefaultWorkers,
		maxBufferedBytes: DefaultMaxBufferedBytes,
		maxHeaderBytes:   DefaultMaxHeaderBytes,
		logger:           slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithChunkSize sets the size of the reads issued against an io.Reader body.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithDeliverySize sets the maximum size of one body chunk handed to a
// subscriber.
func WithDeliverySize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.deliverySize = n
		}
	}
}

// WithWorkers sets how many goroutines deliver body chunks to subscribers.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithMaxBufferedBytes bounds the unread body bytes held for the current
// part before the decoder stops reading the upstream.
func WithMaxBufferedBytes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBufferedBytes = n
		}
	}
}

// WithMaxHeaderBytes bounds the header block of a single part. Zero or a
// negative value disables the limit.
func WithMaxHeaderBytes(n int) Option {
	return func(o *options) {
		o.maxHeaderBytes = n
	}
}

// WithLogger sets the logger for decoder diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
