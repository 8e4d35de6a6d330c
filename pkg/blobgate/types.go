package blobgate

import (
	"time"

	"github.com/google/uuid"
)

// Channel identifies a business-facing upload source (e.g. "mobile").
// ExternalAlias and ExternalID map the channel to an upstream system's
// naming; either may be empty/zero when no upstream mapping exists.
type Channel struct {
	ID            uuid.UUID `json:"id"`
	Alias         string    `json:"alias"`
	ExternalAlias string    `json:"external_alias,omitempty"`
	ExternalID    int64     `json:"external_id,omitempty"`
}

// Operation identifies a business-facing action (e.g. "utility-payment").
// Same attribute shape as Channel, independent namespace.
type Operation struct {
	ID            uuid.UUID `json:"id"`
	Alias         string    `json:"alias"`
	ExternalAlias string    `json:"external_alias,omitempty"`
	ExternalID    int64     `json:"external_id,omitempty"`
}

// Bucket is a physical storage container. Name is always stored
// normalized (see NormalizeBucketName).
type Bucket struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Binding is the routing fact: a unique (channel, operation, bucket)
// triple. At most one binding exists per triple; concurrent creators
// converge on a single row via unique-constraint detection and
// re-select.
type Binding struct {
	ID          uuid.UUID `json:"id"`
	ChannelID   uuid.UUID `json:"channel_id"`
	OperationID uuid.UUID `json:"operation_id"`
	BucketID    uuid.UUID `json:"bucket_id"`

	Channel   Channel   `json:"channel"`
	Operation Operation `json:"operation"`
	Bucket    Bucket    `json:"bucket"`
}

// Document is one stored object's metadata. A Document row exists iff
// the corresponding object write succeeded; the upload orchestrator
// guarantees this with compensating deletes. Documents are never
// mutated after creation.
type Document struct {
	ID         uuid.UUID `json:"id"`
	BindingID  uuid.UUID `json:"binding_id"`
	Name       string    `json:"name"`
	Address    string    `json:"address"` // "{bucket}/{key}"
	ObjectKey  string    `json:"object_key"`
	Size       int64     `json:"size"`
	Type       TypeCode  `json:"type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// WorkStatus is the lifecycle state of a migration work item. The
// numeric values are persisted in the ledger table.
type WorkStatus int16

const (
	WorkStatusPending    WorkStatus = 0
	WorkStatusProcessing WorkStatus = 1
	WorkStatusDone       WorkStatus = 2
	WorkStatusFailed     WorkStatus = 3
)

func (s WorkStatus) String() string {
	switch s {
	case WorkStatusPending:
		return "pending"
	case WorkStatusProcessing:
		return "processing"
	case WorkStatusDone:
		return "done"
	case WorkStatusFailed:
		return "failed"
	}
	return "unknown"
}

// WorkItem is one row in the migration ledger, tracking a single legacy
// blob's migration. Rows are created by the pagination phase, mutated
// only by the pipeline's state transitions, and never deleted: the
// ledger doubles as an audit/resume record.
type WorkItem struct {
	LegacyID     int64      `json:"legacy_id"`
	Status       WorkStatus `json:"status"`
	ChannelID    int64      `json:"channel_id"`
	OperationID  int64      `json:"operation_id"`
	Bucket       string     `json:"bucket"`
	ObjectKey    string     `json:"object_key,omitempty"`
	Size         int64      `json:"size,omitempty"`
	ContentType  string     `json:"content_type,omitempty"`
	AttemptCount int        `json:"attempt_count"`
	LastError    string     `json:"last_error,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// PendingItem seeds the ledger during pagination. Upserting a
// PendingItem never overwrites an existing row's status.
type PendingItem struct {
	LegacyID    int64
	ChannelID   int64
	OperationID int64
	Bucket      string
}

// LegacyRoute is the legacy identifier pair a work item is routed by.
type LegacyRoute struct {
	ChannelID   int64
	OperationID int64
}

// LegacyMeta is the per-id metadata read from the legacy source. The
// declared fields are hints only; the migrator derives the canonical
// type through the same type map as live uploads.
type LegacyMeta struct {
	Size        int64
	TypeCode    TypeCode
	Name        string
	Extension   string
	ContentType string
}

// ObjectInfo is metadata reported by the object store for a stored
// object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	ETag        string
	UpdatedAt   time.Time
}
