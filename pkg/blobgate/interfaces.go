package blobgate

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Service is the public contract of the gateway's write/read path.
type Service interface {
	// Upload runs the full pipeline: validate, resolve route, stage,
	// classify, generate key, write object, record metadata. On a
	// metadata failure after a successful object write the object is
	// deleted best-effort and the original error is returned.
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)

	// Resolve resolves a route spec to its binding without side
	// effects, except for BucketRoute which get-or-creates the default
	// binding.
	Resolve(ctx context.Context, spec RouteSpec) (*Binding, error)

	// OpenRead opens a stored document's content by document id.
	OpenRead(ctx context.Context, documentID uuid.UUID) (*StoredObject, error)

	// OpenReadAddress opens a stored document's content by its
	// bucket/key address.
	OpenReadAddress(ctx context.Context, bucket, objectKey string) (*StoredObject, error)

	// GetDocument returns document metadata by id.
	GetDocument(ctx context.Context, documentID uuid.UUID) (*Document, error)
}

// Repository is the metadata-store contract: route resolution and
// document rows.
type Repository interface {
	// Pure lookups. A miss returns ErrRouteNotFound and has no side
	// effects.
	ResolveByAliases(ctx context.Context, channelAlias, operationAlias string) (*Binding, error)
	ResolveByExternalAliases(ctx context.Context, channelExternalAlias, operationExternalAlias string) (*Binding, error)
	ResolveByExternalIDs(ctx context.Context, channelExternalID, operationExternalID int64) (*Binding, error)
	ResolveByBindingID(ctx context.Context, bindingID uuid.UUID) (*Binding, error)

	// GetOrCreateDefaultBinding ensures Channel("default"),
	// Operation("default"), Bucket(bucketName) exist and are bound,
	// inside one transaction. Insert races on uniqueness constraints
	// re-select instead of failing, so concurrent first-use converges
	// on a single row. bucketName must already be normalized.
	GetOrCreateDefaultBinding(ctx context.Context, bucketName string) (*Binding, error)

	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id uuid.UUID) (*Document, error)
	GetDocumentByAddress(ctx context.Context, bucket, objectKey string) (*Document, error)
}

// ObjectStore is the consumed S3-compatible object-store contract.
// Implementations must lower-case bucket names before use.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string) error
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, bucket, key string) (*ObjectInfo, error)
	Remove(ctx context.Context, bucket, key string) error
}

// TypeInspector classifies a seekable stream into one authoritative
// type code, or fails with ErrUnrecognizedType.
type TypeInspector interface {
	Inspect(ctx context.Context, content io.ReadSeeker, fileName, declaredMime string) (TypeCode, error)
}

// Ledger is the migration ledger contract. Rows are keyed by legacy id
// and never deleted.
type Ledger interface {
	// ResumeCursor returns max(legacy id) among Done items; ok is
	// false when no item is Done yet.
	ResumeCursor(ctx context.Context) (cursor int64, ok bool, err error)

	// UpsertPending inserts rows that are not present yet. Existing
	// rows keep their status untouched.
	UpsertPending(ctx context.Context, items []PendingItem) error

	// MarkProcessing transitions an item to Processing, increments its
	// attempt count and clears the last error.
	MarkProcessing(ctx context.Context, legacyID int64) error

	// MarkDone records the final bucket/key/size/content-type.
	MarkDone(ctx context.Context, legacyID int64, bucket, objectKey string, size int64, contentType string) error

	// MarkFailed records the error text; the item stays retryable.
	MarkFailed(ctx context.Context, legacyID int64, errText string) error

	// ResetStuck transitions Processing items not updated within
	// olderThan back to Failed, reclaiming work lost to a crash.
	// Returns the number of items reset.
	ResetStuck(ctx context.Context, olderThan time.Duration) (int64, error)

	// FailedItems lists Failed items for the operator's retry pass.
	FailedItems(ctx context.Context, limit int) ([]WorkItem, error)

	// ResetFailed transitions Failed items with fewer than maxAttempts
	// attempts back to Pending so a subsequent run picks them up.
	// Returns the number of items reset.
	ResetFailed(ctx context.Context, maxAttempts int) (int64, error)

	// PendingItems lists Pending items, ordered by legacy id.
	PendingItems(ctx context.Context, limit int) ([]WorkItem, error)
}

// LegacySource is the consumed legacy-store contract: a paged id scan
// plus per-id metadata and blob reads.
type LegacySource interface {
	// FetchIDs returns up to limit legacy ids strictly greater than
	// afterID, ascending, excluding soft-deleted rows.
	FetchIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)

	ResolveRoute(ctx context.Context, legacyID int64) (*LegacyRoute, error)
	ReadMeta(ctx context.Context, legacyID int64) (*LegacyMeta, error)
	ReadBlob(ctx context.Context, legacyID int64) (io.ReadCloser, error)
}
