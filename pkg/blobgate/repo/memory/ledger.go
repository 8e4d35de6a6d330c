package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/blobgate/blobgate/pkg/blobgate"
)

// Ledger is an in-memory implementation of blobgate.Ledger.
type Ledger struct {
	mu    sync.Mutex
	items map[int64]*blobgate.WorkItem
	now   func() time.Time
}

// NewLedger creates a new in-memory migration ledger
func NewLedger() *Ledger {
	return &Ledger{
		items: make(map[int64]*blobgate.WorkItem),
		now:   time.Now,
	}
}

// SetClock overrides the time source (test helper).
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Put inserts or replaces a work item verbatim (test helper).
func (l *Ledger) Put(item blobgate.WorkItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items[item.LegacyID] = &item
}

// Item returns a copy of a work item (test helper).
func (l *Ledger) Item(legacyID int64) (blobgate.WorkItem, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	item, ok := l.items[legacyID]
	if !ok {
		return blobgate.WorkItem{}, false
	}
	return *item, true
}

func (l *Ledger) ResumeCursor(ctx context.Context) (int64, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var max int64
	found := false
	for id, item := range l.items {
		if item.Status == blobgate.WorkStatusDone && (!found || id > max) {
			max = id
			found = true
		}
	}
	return max, found, nil
}

func (l *Ledger) UpsertPending(ctx context.Context, items []blobgate.PendingItem) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range items {
		if _, exists := l.items[p.LegacyID]; exists {
			continue // never overwrite an existing row's status
		}
		l.items[p.LegacyID] = &blobgate.WorkItem{
			LegacyID:    p.LegacyID,
			Status:      blobgate.WorkStatusPending,
			ChannelID:   p.ChannelID,
			OperationID: p.OperationID,
			Bucket:      p.Bucket,
			UpdatedAt:   l.now(),
		}
	}
	return nil
}

func (l *Ledger) MarkProcessing(ctx context.Context, legacyID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[legacyID]
	if !ok {
		return blobgate.ErrWorkItemNotFound
	}
	item.Status = blobgate.WorkStatusProcessing
	item.AttemptCount++
	item.LastError = ""
	item.UpdatedAt = l.now()
	return nil
}

func (l *Ledger) MarkDone(ctx context.Context, legacyID int64, bucket, objectKey string, size int64, contentType string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[legacyID]
	if !ok {
		return blobgate.ErrWorkItemNotFound
	}
	item.Status = blobgate.WorkStatusDone
	item.Bucket = bucket
	item.ObjectKey = objectKey
	item.Size = size
	item.ContentType = contentType
	item.UpdatedAt = l.now()
	return nil
}

func (l *Ledger) MarkFailed(ctx context.Context, legacyID int64, errText string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[legacyID]
	if !ok {
		return blobgate.ErrWorkItemNotFound
	}
	item.Status = blobgate.WorkStatusFailed
	item.LastError = errText
	item.UpdatedAt = l.now()
	return nil
}

func (l *Ledger) ResetStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	deadline := l.now().Add(-olderThan)
	var reset int64
	for _, item := range l.items {
		if item.Status == blobgate.WorkStatusProcessing && item.UpdatedAt.Before(deadline) {
			item.Status = blobgate.WorkStatusFailed
			item.LastError = "reset: stuck in processing"
			item.UpdatedAt = l.now()
			reset++
		}
	}
	return reset, nil
}

func (l *Ledger) FailedItems(ctx context.Context, limit int) ([]blobgate.WorkItem, error) {
	return l.list(blobgate.WorkStatusFailed, limit)
}

func (l *Ledger) PendingItems(ctx context.Context, limit int) ([]blobgate.WorkItem, error) {
	return l.list(blobgate.WorkStatusPending, limit)
}

func (l *Ledger) ResetFailed(ctx context.Context, maxAttempts int) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var reset int64
	for _, item := range l.items {
		if item.Status == blobgate.WorkStatusFailed && item.AttemptCount < maxAttempts {
			item.Status = blobgate.WorkStatusPending
			item.UpdatedAt = l.now()
			reset++
		}
	}
	return reset, nil
}

func (l *Ledger) list(status blobgate.WorkStatus, limit int) ([]blobgate.WorkItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []blobgate.WorkItem
	for _, item := range l.items {
		if item.Status == status {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LegacyID < out[j].LegacyID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
