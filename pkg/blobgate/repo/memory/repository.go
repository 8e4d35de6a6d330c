// Package memory provides in-memory implementations of the blobgate
// repository, migration ledger and legacy source. They are used in
// tests and for local development without external services.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/blobgate/blobgate/pkg/blobgate"
)

// Repository is an in-memory implementation of blobgate.Repository.
// A single mutex stands in for the unique constraints the postgres
// implementation relies on: concurrent get-or-create calls still
// converge on one binding row.
type Repository struct {
	mu         sync.Mutex
	channels   map[uuid.UUID]*blobgate.Channel
	operations map[uuid.UUID]*blobgate.Operation
	buckets    map[uuid.UUID]*blobgate.Bucket
	bindings   map[uuid.UUID]*blobgate.Binding
	documents  map[uuid.UUID]*blobgate.Document
	byAddress  map[string]uuid.UUID
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		channels:   make(map[uuid.UUID]*blobgate.Channel),
		operations: make(map[uuid.UUID]*blobgate.Operation),
		buckets:    make(map[uuid.UUID]*blobgate.Bucket),
		bindings:   make(map[uuid.UUID]*blobgate.Binding),
		documents:  make(map[uuid.UUID]*blobgate.Document),
		byAddress:  make(map[string]uuid.UUID),
	}
}

// Seed inserts a channel, operation, bucket and binding in one call.
// Intended for tests and local fixtures.
func (r *Repository) Seed(ch blobgate.Channel, op blobgate.Operation, b blobgate.Bucket) *blobgate.Binding {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}
	if op.ID == uuid.Nil {
		op.ID = uuid.New()
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	r.channels[ch.ID] = &ch
	r.operations[op.ID] = &op
	r.buckets[b.ID] = &b

	binding := &blobgate.Binding{
		ID:          uuid.New(),
		ChannelID:   ch.ID,
		OperationID: op.ID,
		BucketID:    b.ID,
		Channel:     ch,
		Operation:   op,
		Bucket:      b,
	}
	r.bindings[binding.ID] = binding
	return cloneBinding(binding)
}

func (r *Repository) ResolveByAliases(ctx context.Context, channelAlias, operationAlias string) (*blobgate.Binding, error) {
	return r.find(func(b *blobgate.Binding) bool {
		return b.Channel.Alias == channelAlias && b.Operation.Alias == operationAlias
	})
}

func (r *Repository) ResolveByExternalAliases(ctx context.Context, channelExternalAlias, operationExternalAlias string) (*blobgate.Binding, error) {
	return r.find(func(b *blobgate.Binding) bool {
		return b.Channel.ExternalAlias == channelExternalAlias && b.Operation.ExternalAlias == operationExternalAlias
	})
}

func (r *Repository) ResolveByExternalIDs(ctx context.Context, channelExternalID, operationExternalID int64) (*blobgate.Binding, error) {
	return r.find(func(b *blobgate.Binding) bool {
		return b.Channel.ExternalID == channelExternalID && b.Operation.ExternalID == operationExternalID
	})
}

func (r *Repository) ResolveByBindingID(ctx context.Context, bindingID uuid.UUID) (*blobgate.Binding, error) {
	return r.find(func(b *blobgate.Binding) bool {
		return b.ID == bindingID
	})
}

func (r *Repository) GetOrCreateDefaultBinding(ctx context.Context, bucketName string) (*blobgate.Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	const alias = "default"

	var channel *blobgate.Channel
	for _, ch := range r.channels {
		if ch.Alias == alias {
			channel = ch
			break
		}
	}
	if channel == nil {
		channel = &blobgate.Channel{ID: uuid.New(), Alias: alias, ExternalAlias: alias}
		r.channels[channel.ID] = channel
	}

	var operation *blobgate.Operation
	for _, op := range r.operations {
		if op.Alias == alias {
			operation = op
			break
		}
	}
	if operation == nil {
		operation = &blobgate.Operation{ID: uuid.New(), Alias: alias, ExternalAlias: alias}
		r.operations[operation.ID] = operation
	}

	var bucket *blobgate.Bucket
	for _, b := range r.buckets {
		if b.Name == bucketName {
			bucket = b
			break
		}
	}
	if bucket == nil {
		bucket = &blobgate.Bucket{ID: uuid.New(), Name: bucketName}
		r.buckets[bucket.ID] = bucket
	}

	for _, b := range r.bindings {
		if b.ChannelID == channel.ID && b.OperationID == operation.ID && b.BucketID == bucket.ID {
			return cloneBinding(b), nil
		}
	}

	binding := &blobgate.Binding{
		ID:          uuid.New(),
		ChannelID:   channel.ID,
		OperationID: operation.ID,
		BucketID:    bucket.ID,
		Channel:     *channel,
		Operation:   *operation,
		Bucket:      *bucket,
	}
	r.bindings[binding.ID] = binding
	return cloneBinding(binding), nil
}

func (r *Repository) CreateDocument(ctx context.Context, doc *blobgate.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.documents[doc.ID]; exists {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	if _, exists := r.bindings[doc.BindingID]; !exists {
		return fmt.Errorf("binding %s does not exist", doc.BindingID)
	}

	stored := *doc
	r.documents[doc.ID] = &stored
	r.byAddress[doc.Address] = doc.ID
	return nil
}

func (r *Repository) GetDocument(ctx context.Context, id uuid.UUID) (*blobgate.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.documents[id]
	if !ok {
		return nil, blobgate.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (r *Repository) GetDocumentByAddress(ctx context.Context, bucket, objectKey string) (*blobgate.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byAddress[bucket+"/"+objectKey]
	if !ok {
		return nil, blobgate.ErrDocumentNotFound
	}
	copied := *r.documents[id]
	return &copied, nil
}

// BindingCount reports how many bindings exist (test helper).
func (r *Repository) BindingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bindings)
}

func (r *Repository) find(match func(*blobgate.Binding) bool) (*blobgate.Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.bindings {
		if match(b) {
			return cloneBinding(b), nil
		}
	}
	return nil, blobgate.ErrRouteNotFound
}

func cloneBinding(b *blobgate.Binding) *blobgate.Binding {
	copied := *b
	return &copied
}
