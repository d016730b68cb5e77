// Package config loads the artifact server configuration from a YAML, TOML,
// or JSONC file and applies command-line overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shapestone/shape-multipart/internal/store"
	"github.com/shapestone/shape-multipart/pkg/multipart"
)

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats d as a duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Decoder holds the multipart decoder tuning knobs.
type Decoder struct {
	ChunkSize        int `yaml:"chunk_size" toml:"chunk_size" json:"chunk_size"`
	DeliverySize     int `yaml:"delivery_size" toml:"delivery_size" json:"delivery_size"`
	Workers          int `yaml:"workers" toml:"workers" json:"workers"`
	MaxBufferedBytes int `yaml:"max_buffered_bytes" toml:"max_buffered_bytes" json:"max_buffered_bytes"`
	MaxHeaderBytes   int `yaml:"max_header_bytes" toml:"max_header_bytes" json:"max_header_bytes"`
}

// Config is the artifact server configuration.
type Config struct {
	Listen          string   `yaml:"listen" toml:"listen" json:"listen"`
	Root            string   `yaml:"root" toml:"root" json:"root"`
	Field           string   `yaml:"field" toml:"field" json:"field"`
	Compression     string   `yaml:"compression" toml:"compression" json:"compression"`
	LogLevel        string   `yaml:"log_level" toml:"log_level" json:"log_level"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" json:"shutdown_timeout"`
	Decoder         Decoder  `yaml:"decoder" toml:"decoder" json:"decoder"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:          "127.0.0.1:8080",
		Root:            "artifacts",
		Field:           "file",
		Compression:     string(store.CompressionZstd),
		LogLevel:        "info",
		ShutdownTimeout: Duration(10 * time.Second),
		Decoder: Decoder{
			ChunkSize:        multipart.DefaultChunkSize,
			DeliverySize:     multipart.DefaultDeliverySize,
			Workers:          multipart.DefaultWorkers,
			MaxBufferedBytes: multipart.DefaultMaxBufferedBytes,
			MaxHeaderBytes:   multipart.DefaultMaxHeaderBytes,
		},
	}
}

// Load reads path on top of the defaults. The format follows the file
// extension: .yaml/.yml, .toml, or .json/.jsonc (comments and trailing
// commas allowed).
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := decode(path, data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), cfg)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if c.Root == "" {
		return errors.New("root directory is required")
	}
	if c.Field == "" {
		return errors.New("form field name is required")
	}
	if _, err := store.ParseCompression(c.Compression); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.ShutdownTimeout < 0 {
		return errors.New("shutdown_timeout must not be negative")
	}
	d := c.Decoder
	for _, v := range []struct {
		name string
		n    int
	}{
		{"chunk_size", d.ChunkSize},
		{"delivery_size", d.DeliverySize},
		{"workers", d.Workers},
		{"max_buffered_bytes", d.MaxBufferedBytes},
	} {
		if v.n <= 0 {
			return fmt.Errorf("decoder.%s must be positive, got %d", v.name, v.n)
		}
	}
	return nil
}

// DecoderOptions converts the decoder settings to multipart options.
func (c Config) DecoderOptions() []multipart.Option {
	return []multipart.Option{
		multipart.WithChunkSize(c.Decoder.ChunkSize),
		multipart.WithDeliverySize(c.Decoder.DeliverySize),
		multipart.WithWorkers(c.Decoder.Workers),
		multipart.WithMaxBufferedBytes(c.Decoder.MaxBufferedBytes),
		multipart.WithMaxHeaderBytes(c.Decoder.MaxHeaderBytes),
	}
}

// StoreConfig returns the artifact store settings.
func (c Config) StoreConfig() store.Config {
	return store.Config{Root: c.Root, Compression: store.Compression(c.Compression)}
}
