package postgres

import (
	"context"
	"time"

	"github.com/blobgate/blobgate/pkg/blobgate"
)

// Ledger implements blobgate.Ledger using PostgreSQL. Every state
// transition is a single statement so workers never hold transactions
// across S3 calls.
type Ledger struct {
	db DBTX
}

// NewLedger creates a new PostgreSQL migration ledger
func NewLedger(db DBTX) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) ResumeCursor(ctx context.Context) (int64, bool, error) {
	var max *int64
	err := l.db.QueryRow(ctx,
		`SELECT MAX(legacy_id) FROM migration_item WHERE status = $1`,
		blobgate.WorkStatusDone).Scan(&max)
	if err != nil {
		return 0, false, err
	}
	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

func (l *Ledger) UpsertPending(ctx context.Context, items []blobgate.PendingItem) error {
	// ON CONFLICT DO NOTHING keeps re-runs from clobbering rows that
	// already advanced past Pending.
	query := `
        INSERT INTO migration_item (legacy_id, status, channel_id, operation_id, bucket, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        ON CONFLICT (legacy_id) DO NOTHING`

	for _, p := range items {
		_, err := l.db.Exec(ctx, query,
			p.LegacyID, blobgate.WorkStatusPending, p.ChannelID, p.OperationID, p.Bucket)
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) MarkProcessing(ctx context.Context, legacyID int64) error {
	tag, err := l.db.Exec(ctx, `
        UPDATE migration_item
        SET status = $2, attempt_count = attempt_count + 1, last_error = '', updated_at = NOW()
        WHERE legacy_id = $1`,
		legacyID, blobgate.WorkStatusProcessing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return blobgate.ErrWorkItemNotFound
	}
	return nil
}

func (l *Ledger) MarkDone(ctx context.Context, legacyID int64, bucket, objectKey string, size int64, contentType string) error {
	tag, err := l.db.Exec(ctx, `
        UPDATE migration_item
        SET status = $2, bucket = $3, object_key = $4, size = $5, content_type = $6, updated_at = NOW()
        WHERE legacy_id = $1`,
		legacyID, blobgate.WorkStatusDone, bucket, objectKey, size, contentType)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return blobgate.ErrWorkItemNotFound
	}
	return nil
}

func (l *Ledger) MarkFailed(ctx context.Context, legacyID int64, errText string) error {
	tag, err := l.db.Exec(ctx, `
        UPDATE migration_item
        SET status = $2, last_error = $3, updated_at = NOW()
        WHERE legacy_id = $1`,
		legacyID, blobgate.WorkStatusFailed, errText)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return blobgate.ErrWorkItemNotFound
	}
	return nil
}

func (l *Ledger) ResetStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := l.db.Exec(ctx, `
        UPDATE migration_item
        SET status = $2, last_error = 'reset: stuck in processing', updated_at = NOW()
        WHERE status = $1 AND updated_at < NOW() - make_interval(secs => $3)`,
		blobgate.WorkStatusProcessing, blobgate.WorkStatusFailed, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (l *Ledger) FailedItems(ctx context.Context, limit int) ([]blobgate.WorkItem, error) {
	return l.list(ctx, blobgate.WorkStatusFailed, limit)
}

func (l *Ledger) PendingItems(ctx context.Context, limit int) ([]blobgate.WorkItem, error) {
	return l.list(ctx, blobgate.WorkStatusPending, limit)
}

func (l *Ledger) ResetFailed(ctx context.Context, maxAttempts int) (int64, error) {
	tag, err := l.db.Exec(ctx, `
        UPDATE migration_item
        SET status = $2, updated_at = NOW()
        WHERE status = $1 AND attempt_count < $3`,
		blobgate.WorkStatusFailed, blobgate.WorkStatusPending, maxAttempts)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (l *Ledger) list(ctx context.Context, status blobgate.WorkStatus, limit int) ([]blobgate.WorkItem, error) {
	query := `
        SELECT legacy_id, status, attempt_count, last_error, channel_id, operation_id,
               bucket, object_key, size, content_type, updated_at
        FROM migration_item WHERE status = $1 ORDER BY legacy_id`
	args := []interface{}{status}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []blobgate.WorkItem
	for rows.Next() {
		var item blobgate.WorkItem
		err := rows.Scan(
			&item.LegacyID, &item.Status, &item.AttemptCount, &item.LastError,
			&item.ChannelID, &item.OperationID, &item.Bucket, &item.ObjectKey,
			&item.Size, &item.ContentType, &item.UpdatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
