package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/blobgate/blobgate/pkg/blobgate"
)

// Admin operations manage the routing tables directly. They back the
// admin API and operational tooling; the upload path never calls them.

func (r *Repository) CreateChannel(ctx context.Context, ch *blobgate.Channel) error {
	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO channel (id, alias, external_alias, external_id) VALUES ($1, $2, $3, $4)`,
		ch.ID, ch.Alias, ch.ExternalAlias, ch.ExternalID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("channel %q already exists", ch.Alias)
		}
		return fmt.Errorf("create channel: %w", err)
	}
	return nil
}

func (r *Repository) CreateOperation(ctx context.Context, op *blobgate.Operation) error {
	if op.ID == uuid.Nil {
		op.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO operation (id, alias, external_alias, external_id) VALUES ($1, $2, $3, $4)`,
		op.ID, op.Alias, op.ExternalAlias, op.ExternalID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("operation %q already exists", op.Alias)
		}
		return fmt.Errorf("create operation: %w", err)
	}
	return nil
}

func (r *Repository) CreateBucket(ctx context.Context, b *blobgate.Bucket) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO bucket (id, name) VALUES ($1, $2)`,
		b.ID, b.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("bucket %q already exists", b.Name)
		}
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func (r *Repository) CreateBinding(ctx context.Context, channelID, operationID, bucketID uuid.UUID) (*blobgate.Binding, error) {
	id := uuid.New()
	_, err := r.db.Exec(ctx,
		`INSERT INTO binding (id, channel_id, operation_id, bucket_id) VALUES ($1, $2, $3, $4)`,
		id, channelID, operationID, bucketID)
	if err != nil {
		if isUniqueViolation(err) {
			err = r.db.QueryRow(ctx,
				`SELECT id FROM binding WHERE channel_id = $1 AND operation_id = $2 AND bucket_id = $3`,
				channelID, operationID, bucketID).Scan(&id)
			if err != nil {
				return nil, fmt.Errorf("create binding: %w", err)
			}
		} else {
			return nil, fmt.Errorf("create binding: %w", err)
		}
	}
	return r.ResolveByBindingID(ctx, id)
}

func (r *Repository) ListChannels(ctx context.Context) ([]blobgate.Channel, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, alias, external_alias, external_id FROM channel ORDER BY alias`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []blobgate.Channel
	for rows.Next() {
		var ch blobgate.Channel
		if err := rows.Scan(&ch.ID, &ch.Alias, &ch.ExternalAlias, &ch.ExternalID); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (r *Repository) ListOperations(ctx context.Context) ([]blobgate.Operation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, alias, external_alias, external_id FROM operation ORDER BY alias`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []blobgate.Operation
	for rows.Next() {
		var op blobgate.Operation
		if err := rows.Scan(&op.ID, &op.Alias, &op.ExternalAlias, &op.ExternalID); err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (r *Repository) ListBuckets(ctx context.Context) ([]blobgate.Bucket, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM bucket ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []blobgate.Bucket
	for rows.Next() {
		var b blobgate.Bucket
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) GetChannelByAlias(ctx context.Context, alias string) (*blobgate.Channel, error) {
	var ch blobgate.Channel
	err := r.db.QueryRow(ctx,
		`SELECT id, alias, external_alias, external_id FROM channel WHERE alias = $1`,
		alias).Scan(&ch.ID, &ch.Alias, &ch.ExternalAlias, &ch.ExternalID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, blobgate.ErrRouteNotFound
		}
		return nil, err
	}
	return &ch, nil
}

func (r *Repository) GetOperationByAlias(ctx context.Context, alias string) (*blobgate.Operation, error) {
	var op blobgate.Operation
	err := r.db.QueryRow(ctx,
		`SELECT id, alias, external_alias, external_id FROM operation WHERE alias = $1`,
		alias).Scan(&op.ID, &op.Alias, &op.ExternalAlias, &op.ExternalID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, blobgate.ErrRouteNotFound
		}
		return nil, err
	}
	return &op, nil
}
