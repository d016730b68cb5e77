package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shapestone/shape-multipart/internal/store"
	"github.com/shapestone/shape-multipart/pkg/multipart"
)

// Header names set on artifact responses.
const (
	HeaderDigest    = "X-Artifact-Digest"
	HeaderRequestID = "X-Request-Id"
)

var errNoArtifact = errors.New("no artifact part in request body")

// Handler serves artifacts:
//
//	PUT/POST /{name}  upload the part named by the configured form field
//	GET      /{name}  download
//	HEAD     /{name}  metadata only
//	DELETE   /{name}  remove
//
// A name ending in "/" is completed with the uploaded file name.
type Handler struct {
	store  *store.Store
	field  string
	opts   []multipart.Option
	logger *slog.Logger
}

// NewHandler returns a Handler storing uploads in st. field is the form
// field holding the artifact.
func NewHandler(st *store.Store, field string, logger *slog.Logger, opts ...multipart.Option) *Handler {
	return &Handler{
		store:  st,
		field:  field,
		opts:   opts,
		logger: logger,
	}
}

type uploadResponse struct {
	Name   string `json:"name"`
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(HeaderRequestID, id)
	logger := h.logger.With("request_id", id, "method", r.Method, "path", r.URL.Path)
	start := time.Now()

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	name := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut, http.MethodPost:
		h.upload(rec, r, name, logger)
	case http.MethodGet, http.MethodHead:
		h.download(rec, r, name)
	case http.MethodDelete:
		h.delete(rec, name)
	default:
		rec.Header().Set("Allow", "GET, HEAD, PUT, POST, DELETE")
		writeError(rec, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}

	logger.Info("request handled", "status", rec.status, "duration", time.Since(start))
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request, name string, logger *slog.Logger) {
	ctx := r.Context()
	opts := make([]multipart.Option, 0, len(h.opts)+1)
	opts = append(append(opts, h.opts...), multipart.WithLogger(logger))
	req := multipart.FromHTTP(r, opts...)

	var found bool
	parts := req.Inspect(ctx, func(_ context.Context, p *multipart.Part, sink multipart.Sink) error {
		if !found && p.FormName() == h.field {
			found = true
			sink.Accept()
		} else {
			sink.Ignore()
		}
		return nil
	})
	defer parts.Close()

	part, err := parts.Next(ctx)
	if errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, errNoArtifact)
		return
	}
	if err != nil {
		logger.Warn("decoding upload failed", "error", err)
		writeError(w, multipart.StatusCode(err), err)
		return
	}

	target := name
	if target == "" || strings.HasSuffix(target, "/") {
		target += path.Base(part.FileName())
	}
	if err := store.CheckName(target); err != nil {
		part.Close()
		writeError(w, http.StatusBadRequest, err)
		return
	}

	meta, err := h.store.Put(ctx, target, part, store.Meta{
		ContentType: part.Headers().ContentType(),
		FileName:    part.FileName(),
	})
	if err != nil {
		logger.Warn("storing upload failed", "name", target, "error", err)
		writeError(w, multipart.StatusCode(err), err)
		return
	}

	// The rest of the body must still decode; a malformed trailer voids the
	// upload.
	if _, err := parts.Next(ctx); !errors.Is(err, io.EOF) {
		if delErr := h.store.Delete(target); delErr != nil {
			logger.Error("removing rejected upload failed", "name", target, "error", delErr)
		}
		logger.Warn("upload body rejected after artifact", "name", target, "error", err)
		writeError(w, multipart.StatusCode(err), err)
		return
	}

	logger.Info("artifact stored",
		"name", meta.Name,
		"size", meta.Size,
		"stored_size", meta.StoredSize,
		"compression", meta.Compression,
	)
	writeJSON(w, http.StatusCreated, uploadResponse{Name: meta.Name, Digest: meta.Digest, Size: meta.Size})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method == http.MethodHead {
		meta, err := h.store.Stat(name)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		setMetaHeaders(w, meta)
		w.WriteHeader(http.StatusOK)
		return
	}

	rc, meta, err := h.store.Get(name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	defer rc.Close()
	setMetaHeaders(w, meta)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("streaming artifact failed", "name", name, "error", err)
	}
}

func (h *Handler) delete(w http.ResponseWriter, name string) {
	if err := h.store.Delete(name); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func setMetaHeaders(w http.ResponseWriter, meta store.Meta) {
	header := w.Header()
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	header.Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	header.Set("Last-Modified", meta.Stored.UTC().Format(http.TimeFormat))
	header.Set(HeaderDigest, "blake3:"+meta.Digest)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
