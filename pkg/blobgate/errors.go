package blobgate

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrRouteNotFound indicates no binding exists for the given route spec
	ErrRouteNotFound = errors.New("route not found")

	// ErrDocumentNotFound indicates a document was not found
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidUpload indicates the upload request failed validation
	// before any write took place
	ErrInvalidUpload = errors.New("invalid upload request")

	// ErrUnrecognizedType indicates no probe recognized the content.
	// This is a hard stop: the client-declared type is never used as a
	// fallback for storage decisions.
	ErrUnrecognizedType = errors.New("unsupported or unrecognized file type")

	// ErrObjectNotFound indicates an object was not found in the store
	ErrObjectNotFound = errors.New("object not found")

	// ErrWorkItemNotFound indicates a migration ledger row was not found
	ErrWorkItemNotFound = errors.New("work item not found")
)

// UploadError wraps a failure in the upload pipeline with the step it
// failed at.
type UploadError struct {
	Op  string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s failed: %v", e.Op, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// StorageError wraps an object-store failure with the bucket/key it
// happened on.
type StorageError struct {
	Bucket string
	Key    string
	Op     string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed for %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// DocumentError wraps a metadata-store failure for a document.
type DocumentError struct {
	DocumentID uuid.UUID
	Op         string
	Err        error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %s failed for %s: %v", e.Op, e.DocumentID, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}
