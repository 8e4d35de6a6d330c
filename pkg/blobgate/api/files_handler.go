// Package api exposes the gateway over HTTP. The handlers are a thin
// layer over blobgate.Service: multipart upload in, JSON or streamed
// content out.
package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/blobgate/blobgate/pkg/blobgate"
)

// maxMultipartMemory bounds the in-memory part of multipart parsing;
// larger files spill to disk.
const maxMultipartMemory = 32 << 20

// FilesHandler handles file upload and download endpoints
type FilesHandler struct {
	service blobgate.Service
	logger  *slog.Logger
}

func NewFilesHandler(service blobgate.Service, logger *slog.Logger) *FilesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilesHandler{service: service, logger: logger}
}

// Routes returns the router for files endpoints
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{channel}/{operation}", h.Upload)
	// Downloads share one catch-all: a single path segment is a
	// document id, anything longer is bucket/key (object keys may
	// contain slashes, migrated blobs live under a docs/ prefix).
	r.Get("/*", h.Download)
	return r
}

// UploadResponse is the JSON body returned for a successful upload.
type UploadResponse struct {
	DocumentID  string `json:"document_id"`
	Bucket      string `json:"bucket"`
	ObjectKey   string `json:"object_key"`
	Address     string `json:"address"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// Upload accepts a multipart form with a "file" part and runs the full
// upload pipeline for the channel/operation route in the path.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	operation := chi.URLParam(r, "operation")

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		h.logger.Error("failed to parse multipart form", "error", err)
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file part", http.StatusBadRequest)
		return
	}
	defer file.Close()

	req := blobgate.UploadRequest{
		Route:               blobgate.AliasRoute{ChannelAlias: channel, OperationAlias: operation},
		Content:             file,
		FileName:            header.Filename,
		DeclaredContentType: header.Header.Get("Content-Type"),
	}
	if name := r.FormValue("name"); name != "" {
		req.Options = &blobgate.UploadOptions{LogicalName: name}
	}

	result, err := h.service.Upload(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, UploadResponse{
		DocumentID:  result.DocumentID.String(),
		Bucket:      result.Bucket,
		ObjectKey:   result.ObjectKey,
		Address:     result.Address,
		Name:        result.Name,
		Size:        result.Size,
		ContentType: result.Type.ContentType(),
	})
}

// Download streams a document's content, addressed either by document
// id (single path segment) or by bucket/key.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "*")

	bucket, key, isAddress := strings.Cut(raw, "/")
	if !isAddress {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid document id", http.StatusBadRequest)
			return
		}
		obj, err := h.service.OpenRead(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.stream(w, obj)
		return
	}

	obj, err := h.service.OpenReadAddress(r.Context(), bucket, key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.stream(w, obj)
}

func (h *FilesHandler) stream(w http.ResponseWriter, obj *blobgate.StoredObject) {
	defer obj.Content.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if obj.FileName != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", obj.FileName))
	}
	if _, err := io.Copy(w, obj.Content); err != nil {
		h.logger.Error("failed to stream object", "error", err)
	}
}

// writeError maps service errors onto HTTP statuses.
func (h *FilesHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, blobgate.ErrInvalidUpload):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, blobgate.ErrUnrecognizedType):
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
	case errors.Is(err, blobgate.ErrRouteNotFound),
		errors.Is(err, blobgate.ErrDocumentNotFound),
		errors.Is(err, blobgate.ErrObjectNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
