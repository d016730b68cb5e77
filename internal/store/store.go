// Package store keeps uploaded artifacts on the local filesystem.
//
// Each artifact is a blob, optionally compressed, next to a CBOR metadata
// sidecar. Blobs are written to a temporary file and renamed into place, so
// readers never observe a partial upload.
package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

var (
	// ErrInvalidName is returned for names that are empty, absolute, or
	// escape the store root.
	ErrInvalidName = errors.New("store: invalid artifact name")
	// ErrNotFound is returned for names with no stored artifact.
	ErrNotFound = errors.New("store: artifact not found")
)

const (
	dataSuffix = ".data"
	metaSuffix = ".meta"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("store: CBOR decoder initialization failed: " + err.Error())
	}
}

// Meta describes a stored artifact.
type Meta struct {
	Name        string      `cbor:"name"`
	Digest      string      `cbor:"digest"` // hex BLAKE3 of the uncompressed bytes
	Size        int64       `cbor:"size"`
	StoredSize  int64       `cbor:"stored_size"`
	ContentType string      `cbor:"content_type,omitempty"`
	FileName    string      `cbor:"file_name,omitempty"`
	Compression Compression `cbor:"compression"`
	Stored      time.Time   `cbor:"stored"`
}

// Config configures a Store.
type Config struct {
	Root        string
	Compression Compression
}

// Store is a filesystem artifact store. It is safe for concurrent use; two
// concurrent Puts of the same name leave one of them in place.
type Store struct {
	root        string
	compression Compression
	now         func() time.Time
}

// Open creates the root directory if needed and returns a Store.
func Open(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("store: root directory is required")
	}
	c, err := ParseCompression(string(cfg.Compression))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &Store{root: cfg.Root, compression: c, now: time.Now}, nil
}

// CheckName validates an artifact name: a relative, clean, slash-separated
// path whose elements do not start with a dot.
func CheckName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.ContainsAny(name, "\\\x00") {
		return ErrInvalidName
	}
	if path.Clean(name) != name {
		return ErrInvalidName
	}
	for _, elem := range strings.Split(name, "/") {
		if elem == "" || strings.HasPrefix(elem, ".") {
			return ErrInvalidName
		}
	}
	return nil
}

func (s *Store) paths(name string) (data, meta string) {
	base := filepath.Join(s.root, filepath.FromSlash(name))
	return base + dataSuffix, base + metaSuffix
}

// Put streams r into the store under name. meta supplies the content type
// and file name; the other fields are computed.
func (s *Store) Put(ctx context.Context, name string, r io.Reader, meta Meta) (Meta, error) {
	if err := CheckName(name); err != nil {
		return Meta{}, err
	}
	dataPath, metaPath := s.paths(name)
	dir := filepath.Dir(dataPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Meta{}, fmt.Errorf("store: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return Meta{}, fmt.Errorf("store: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, digest, err := s.write(ctx, tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Meta{}, err
	}
	info, err := os.Stat(tmp.Name())
	if err != nil {
		return Meta{}, fmt.Errorf("store: %w", err)
	}

	meta.Name = name
	meta.Digest = digest
	meta.Size = size
	meta.StoredSize = info.Size()
	meta.Compression = s.compression
	meta.Stored = s.now().UTC()

	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return Meta{}, fmt.Errorf("store: %w", err)
	}
	if err := writeMeta(metaPath, meta); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

func (s *Store) write(ctx context.Context, f *os.File, r io.Reader) (int64, string, error) {
	cw, err := compressor(f, s.compression)
	if err != nil {
		return 0, "", err
	}
	hasher := blake3.New()
	n, err := io.Copy(io.MultiWriter(cw, hasher), contextReader{ctx: ctx, r: r})
	if closeErr := cw.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, "", fmt.Errorf("store: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, "", fmt.Errorf("store: %w", err)
	}
	return n, hex.EncodeToString(hasher.Sum(nil)), nil
}

func writeMeta(p string, meta Meta) error {
	b, err := encMode.Marshal(meta)
	if err != nil {
		return fmt.Errorf("store: encode metadata: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

// Stat returns the metadata of name.
func (s *Store) Stat(name string) (Meta, error) {
	if err := CheckName(name); err != nil {
		return Meta{}, err
	}
	_, metaPath := s.paths(name)
	b, err := os.ReadFile(metaPath)
	if errors.Is(err, os.ErrNotExist) {
		return Meta{}, ErrNotFound
	}
	if err != nil {
		return Meta{}, fmt.Errorf("store: %w", err)
	}
	var meta Meta
	if err := decMode.Unmarshal(b, &meta); err != nil {
		return Meta{}, fmt.Errorf("store: decode metadata of %s: %w", name, err)
	}
	return meta, nil
}

// Get opens the uncompressed content of name.
func (s *Store) Get(name string) (io.ReadCloser, Meta, error) {
	meta, err := s.Stat(name)
	if err != nil {
		return nil, Meta{}, err
	}
	dataPath, _ := s.paths(name)
	f, err := os.Open(dataPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, Meta{}, ErrNotFound
	}
	if err != nil {
		return nil, Meta{}, fmt.Errorf("store: %w", err)
	}
	rc, err := decompressor(f, meta.Compression)
	if err != nil {
		f.Close()
		return nil, Meta{}, err
	}
	return rc, meta, nil
}

// Delete removes name. Deleting a missing artifact returns ErrNotFound.
func (s *Store) Delete(name string) error {
	if err := CheckName(name); err != nil {
		return err
	}
	dataPath, metaPath := s.paths(name)
	err := os.Remove(metaPath)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := os.Remove(dataPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
