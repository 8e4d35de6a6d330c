package blobgate

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// UploadRequest carries one file into the upload pipeline. Content may
// be any reader; non-seekable readers are staged to a temporary spooled
// file so the type inspector can rewind. DeclaredContentType is a hint
// only; the probe chain decides the authoritative type.
type UploadRequest struct {
	Route               RouteSpec
	Content             io.Reader
	FileName            string
	DeclaredContentType string
	Options             *UploadOptions
}

// UploadOptions are optional per-upload overrides.
type UploadOptions struct {
	// ObjectKeyPrefix replaces the default yyyy-MM-dd key prefix.
	ObjectKeyPrefix string
	// LogicalName overrides the document name recorded in metadata
	// (defaults to the sanitized file name).
	LogicalName string
}

// UploadResult describes a successfully stored document.
type UploadResult struct {
	DocumentID uuid.UUID `json:"document_id"`
	Bucket     string    `json:"bucket"`
	ObjectKey  string    `json:"object_key"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	Size       int64     `json:"size"`
	Type       TypeCode  `json:"type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// StoredObject is an open-for-read result: the object stream plus the
// content type derived from the stored type code (never re-sniffed).
type StoredObject struct {
	Content     io.ReadCloser
	ContentType string
	FileName    string
	Size        int64
}
