// Package memory provides an in-memory object store for tests and
// local development.
package memory

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/blobgate/blobgate/pkg/blobgate"
)

type object struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// Store is an in-memory implementation of the blobgate.ObjectStore
// interface.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string]object
}

// New creates a new in-memory object store
func New() *Store {
	return &Store{buckets: make(map[string]map[string]object)}
}

func (s *Store) BucketExists(ctx context.Context, bucket string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.buckets[strings.ToLower(bucket)]
	return ok, nil
}

func (s *Store) MakeBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := strings.ToLower(bucket)
	if _, ok := s.buckets[name]; !ok {
		s.buckets[name] = make(map[string]object)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	name := strings.ToLower(bucket)
	objects, ok := s.buckets[name]
	if !ok {
		objects = make(map[string]object)
		s.buckets[name] = objects
	}
	objects[key] = object{data: data, contentType: contentType, updatedAt: time.Now().UTC()}
	return nil
}

func (s *Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.buckets[strings.ToLower(bucket)][key]
	if !ok {
		return nil, blobgate.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *Store) Stat(ctx context.Context, bucket, key string) (*blobgate.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.buckets[strings.ToLower(bucket)][key]
	if !ok {
		return nil, blobgate.ErrObjectNotFound
	}
	return &blobgate.ObjectInfo{
		Key:         key,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		UpdatedAt:   obj.updatedAt,
	}, nil
}

func (s *Store) Remove(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	objects, ok := s.buckets[strings.ToLower(bucket)]
	if !ok {
		return blobgate.ErrObjectNotFound
	}
	if _, ok := objects[key]; !ok {
		return blobgate.ErrObjectNotFound
	}
	delete(objects, key)
	return nil
}

// ObjectCount reports objects in a bucket (test helper).
func (s *Store) ObjectCount(bucket string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buckets[strings.ToLower(bucket)])
}
