package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/blobgate/blobgate/pkg/blobgate"
)

// LegacyRecord is one inline-blob row in the in-memory legacy source.
type LegacyRecord struct {
	ID          int64
	ChannelID   int64
	OperationID int64
	Name        string
	Extension   string
	ContentType string
	TypeCode    blobgate.TypeCode
	Deleted     bool
	Blob        []byte
}

// LegacySource is an in-memory implementation of blobgate.LegacySource.
type LegacySource struct {
	mu      sync.Mutex
	records map[int64]*LegacyRecord

	// FetchedAfter records every afterID handed to FetchIDs, so tests
	// can assert the resume cursor is honored.
	FetchedAfter []int64
}

// NewLegacySource creates a new in-memory legacy source
func NewLegacySource(records ...LegacyRecord) *LegacySource {
	s := &LegacySource{records: make(map[int64]*LegacyRecord)}
	for _, rec := range records {
		stored := rec
		s.records[rec.ID] = &stored
	}
	return s
}

// Add inserts a record (test helper).
func (s *LegacySource) Add(rec LegacyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := rec
	s.records[rec.ID] = &stored
}

func (s *LegacySource) FetchIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.FetchedAfter = append(s.FetchedAfter, afterID)

	var ids []int64
	for id, rec := range s.records {
		if id > afterID && !rec.Deleted {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *LegacySource) ResolveRoute(ctx context.Context, legacyID int64) (*blobgate.LegacyRoute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[legacyID]
	if !ok {
		return nil, blobgate.ErrWorkItemNotFound
	}
	return &blobgate.LegacyRoute{ChannelID: rec.ChannelID, OperationID: rec.OperationID}, nil
}

func (s *LegacySource) ReadMeta(ctx context.Context, legacyID int64) (*blobgate.LegacyMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[legacyID]
	if !ok {
		return nil, blobgate.ErrWorkItemNotFound
	}
	return &blobgate.LegacyMeta{
		Size:        int64(len(rec.Blob)),
		TypeCode:    rec.TypeCode,
		Name:        rec.Name,
		Extension:   rec.Extension,
		ContentType: rec.ContentType,
	}, nil
}

func (s *LegacySource) ReadBlob(ctx context.Context, legacyID int64) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[legacyID]
	if !ok {
		return nil, blobgate.ErrWorkItemNotFound
	}
	return io.NopCloser(bytes.NewReader(rec.Blob)), nil
}
