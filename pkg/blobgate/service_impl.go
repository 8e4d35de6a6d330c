package blobgate

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blobgate/blobgate/pkg/blobgate/objectkey"
)

// service implements the Service interface
type service struct {
	repository Repository
	store      ObjectStore
	inspector  TypeInspector
	buckets    *BucketCache
	logger     *slog.Logger
	now        func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the metadata repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithObjectStore sets the object-store backend for the service
func WithObjectStore(store ObjectStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithTypeInspector sets the content-type inspector for the service
func WithTypeInspector(inspector TypeInspector) Option {
	return func(s *service) {
		s.inspector = inspector
	}
}

// WithBucketCache sets the verified-bucket cache. Passing the same
// cache to several services makes them share existence checks.
func WithBucketCache(cache *BucketCache) Option {
	return func(s *service) {
		s.buckets = cache
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// withClock overrides the time source (tests only).
func withClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new gateway service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		logger: slog.Default(),
		now:    time.Now,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if s.inspector == nil {
		return nil, fmt.Errorf("type inspector is required")
	}
	if s.buckets == nil {
		s.buckets = NewBucketCache(0)
	}

	return s, nil
}

// Resolve dispatches a route spec to its repository lookup. The set of
// shapes is closed; an unknown implementation is a programming error.
func (s *service) Resolve(ctx context.Context, spec RouteSpec) (*Binding, error) {
	switch rs := spec.(type) {
	case AliasRoute:
		return s.repository.ResolveByAliases(ctx, rs.ChannelAlias, rs.OperationAlias)
	case ExternalAliasRoute:
		return s.repository.ResolveByExternalAliases(ctx, rs.ChannelExternalAlias, rs.OperationExternalAlias)
	case ExternalIDRoute:
		return s.repository.ResolveByExternalIDs(ctx, rs.ChannelExternalID, rs.OperationExternalID)
	case BindingIDRoute:
		return s.repository.ResolveByBindingID(ctx, rs.BindingID)
	case BucketRoute:
		return s.repository.GetOrCreateDefaultBinding(ctx, NormalizeBucketName(rs.Bucket))
	default:
		return nil, fmt.Errorf("%w: unknown route spec %T", ErrRouteNotFound, spec)
	}
}

func (s *service) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.Content == nil {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidUpload)
	}
	if strings.TrimSpace(req.FileName) == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidUpload)
	}
	if req.Route == nil {
		return nil, fmt.Errorf("%w: route is required", ErrInvalidUpload)
	}

	binding, err := s.Resolve(ctx, req.Route)
	if err != nil {
		return nil, err
	}
	bucketName := binding.Bucket.Name

	staged, err := stageContent(req.Content)
	if err != nil {
		return nil, &UploadError{Op: "stage", Err: err}
	}
	defer staged.Close()

	safeName := path.Base(strings.ReplaceAll(req.FileName, "\\", "/"))

	typeCode, err := s.inspector.Inspect(ctx, staged, safeName, req.DeclaredContentType)
	if err != nil {
		return nil, err
	}
	if _, err := staged.Seek(0, 0); err != nil {
		return nil, &UploadError{Op: "rewind", Err: err}
	}

	contentType := typeCode.ContentType()
	ext := typeCode.PreferredExtension()
	if ext == "" {
		ext = strings.ToLower(strings.TrimPrefix(path.Ext(safeName), "."))
	}

	var prefix, docName string
	if req.Options != nil {
		prefix = req.Options.ObjectKeyPrefix
		docName = strings.TrimSpace(req.Options.LogicalName)
	}
	if docName == "" {
		docName = safeName
	}

	now := s.now().UTC()
	objKey := objectkey.Generate(prefix, ext, now)

	if err := s.ensureBucket(ctx, bucketName); err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, bucketName, objKey, staged, staged.size, contentType); err != nil {
		// Nothing recorded yet, nothing to compensate.
		return nil, &StorageError{Bucket: bucketName, Key: objKey, Op: "put", Err: err}
	}

	doc := &Document{
		ID:         uuid.New(),
		BindingID:  binding.ID,
		Name:       docName,
		Address:    bucketName + "/" + objKey,
		ObjectKey:  objKey,
		Size:       staged.size,
		Type:       typeCode,
		UploadedAt: now,
	}

	if err := s.repository.CreateDocument(ctx, doc); err != nil {
		s.compensate(ctx, bucketName, objKey)
		return nil, &DocumentError{DocumentID: doc.ID, Op: "create", Err: err}
	}

	return &UploadResult{
		DocumentID: doc.ID,
		Bucket:     bucketName,
		ObjectKey:  objKey,
		Name:       docName,
		Address:    doc.Address,
		Size:       doc.Size,
		Type:       typeCode,
		UploadedAt: now,
	}, nil
}

func (s *service) OpenRead(ctx context.Context, documentID uuid.UUID) (*StoredObject, error) {
	doc, err := s.repository.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return s.openReadDoc(ctx, doc)
}

func (s *service) OpenReadAddress(ctx context.Context, bucket, objectKey string) (*StoredObject, error) {
	doc, err := s.repository.GetDocumentByAddress(ctx, bucket, objectKey)
	if err != nil {
		return nil, err
	}
	return s.openReadDoc(ctx, doc)
}

func (s *service) GetDocument(ctx context.Context, documentID uuid.UUID) (*Document, error) {
	return s.repository.GetDocument(ctx, documentID)
}

func (s *service) openReadDoc(ctx context.Context, doc *Document) (*StoredObject, error) {
	// Address is "{bucket}/{key}"; bucket names never contain '/'.
	bucket, _, ok := strings.Cut(doc.Address, "/")
	if !ok {
		return nil, &DocumentError{DocumentID: doc.ID, Op: "open_read", Err: fmt.Errorf("malformed address %q", doc.Address)}
	}
	rc, err := s.store.Get(ctx, bucket, doc.ObjectKey)
	if err != nil {
		return nil, &StorageError{Bucket: bucket, Key: doc.ObjectKey, Op: "get", Err: err}
	}

	fileName := doc.Name
	if fileName == "" {
		fileName = path.Base(doc.ObjectKey)
	}

	return &StoredObject{
		Content:     rc,
		ContentType: doc.Type.ContentType(),
		FileName:    fileName,
		Size:        doc.Size,
	}, nil
}

// ensureBucket performs an idempotent check-then-create, skipping the
// round trip for buckets already verified in the cache. Racing creates
// are safe: the store treats an already-owned bucket as success.
func (s *service) ensureBucket(ctx context.Context, bucket string) error {
	if s.buckets.Contains(bucket) {
		return nil
	}
	exists, err := s.store.BucketExists(ctx, bucket)
	if err != nil {
		return &StorageError{Bucket: bucket, Op: "bucket_exists", Err: err}
	}
	if !exists {
		if err := s.store.MakeBucket(ctx, bucket); err != nil {
			return &StorageError{Bucket: bucket, Op: "make_bucket", Err: err}
		}
	}
	s.buckets.Add(bucket)
	return nil
}

// compensate deletes a just-written object after a metadata failure.
// Its own failure is recorded but never propagated: the original error
// is what the caller must see, at the cost of a possible orphan object.
func (s *service) compensate(ctx context.Context, bucket, key string) {
	if err := s.store.Remove(ctx, bucket, key); err != nil {
		s.logger.Error("compensating delete failed, object orphaned",
			"bucket", bucket, "key", key, "error", err)
	}
}
