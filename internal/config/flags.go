package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Flags holds command-line overrides. Only flags the user actually set are
// applied.
type Flags struct {
	set *pflag.FlagSet

	listen          string
	root            string
	field           string
	compression     string
	logLevel        string
	shutdownTimeout time.Duration
	workers         int
	maxBuffered     int
}

// AddFlags registers the override flags on flagSet.
func AddFlags(flagSet *pflag.FlagSet) *Flags {
	f := &Flags{set: flagSet}
	d := Default()
	flagSet.StringVar(&f.listen, "listen", d.Listen, "address to listen on")
	flagSet.StringVar(&f.root, "root", d.Root, "artifact storage directory")
	flagSet.StringVar(&f.field, "field", d.Field, "form field carrying the artifact")
	flagSet.StringVar(&f.compression, "compression", d.Compression, "blob compression: none, zstd, or lz4")
	flagSet.StringVar(&f.logLevel, "log-level", d.LogLevel, "log level: debug, info, warn, or error")
	flagSet.DurationVar(&f.shutdownTimeout, "shutdown-timeout", time.Duration(d.ShutdownTimeout), "graceful shutdown timeout")
	flagSet.IntVar(&f.workers, "workers", d.Decoder.Workers, "body delivery goroutines per request")
	flagSet.IntVar(&f.maxBuffered, "max-buffered-bytes", d.Decoder.MaxBufferedBytes, "unread bytes buffered per part before reads pause")
	return f
}

// Apply copies the changed flags onto cfg.
func (f *Flags) Apply(cfg *Config) {
	changed := func(name string) bool { return f.set.Changed(name) }
	if changed("listen") {
		cfg.Listen = f.listen
	}
	if changed("root") {
		cfg.Root = f.root
	}
	if changed("field") {
		cfg.Field = f.field
	}
	if changed("compression") {
		cfg.Compression = f.compression
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("shutdown-timeout") {
		cfg.ShutdownTimeout = Duration(f.shutdownTimeout)
	}
	if changed("workers") {
		cfg.Decoder.Workers = f.workers
	}
	if changed("max-buffered-bytes") {
		cfg.Decoder.MaxBufferedBytes = f.maxBuffered
	}
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
}
