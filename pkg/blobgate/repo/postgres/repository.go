// Package postgres provides PostgreSQL-backed implementations of the
// blobgate repository, migration ledger and legacy source.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blobgate/blobgate/pkg/blobgate"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements blobgate.Repository using PostgreSQL
type Repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool.
// A pool lets get-or-create run inside a transaction.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const bindingSelect = `
    SELECT b.id, b.channel_id, b.operation_id, b.bucket_id,
           c.id, c.alias, c.external_alias, c.external_id,
           o.id, o.alias, o.external_alias, o.external_id,
           k.id, k.name
    FROM binding b
    JOIN channel c ON c.id = b.channel_id
    JOIN operation o ON o.id = b.operation_id
    JOIN bucket k ON k.id = b.bucket_id`

func scanBinding(row pgx.Row) (*blobgate.Binding, error) {
	var b blobgate.Binding
	err := row.Scan(
		&b.ID, &b.ChannelID, &b.OperationID, &b.BucketID,
		&b.Channel.ID, &b.Channel.Alias, &b.Channel.ExternalAlias, &b.Channel.ExternalID,
		&b.Operation.ID, &b.Operation.Alias, &b.Operation.ExternalAlias, &b.Operation.ExternalID,
		&b.Bucket.ID, &b.Bucket.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, blobgate.ErrRouteNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *Repository) ResolveByAliases(ctx context.Context, channelAlias, operationAlias string) (*blobgate.Binding, error) {
	query := bindingSelect + ` WHERE c.alias = $1 AND o.alias = $2`
	return scanBinding(r.db.QueryRow(ctx, query, channelAlias, operationAlias))
}

func (r *Repository) ResolveByExternalAliases(ctx context.Context, channelExternalAlias, operationExternalAlias string) (*blobgate.Binding, error) {
	query := bindingSelect + ` WHERE c.external_alias = $1 AND o.external_alias = $2`
	return scanBinding(r.db.QueryRow(ctx, query, channelExternalAlias, operationExternalAlias))
}

func (r *Repository) ResolveByExternalIDs(ctx context.Context, channelExternalID, operationExternalID int64) (*blobgate.Binding, error) {
	query := bindingSelect + ` WHERE c.external_id = $1 AND o.external_id = $2`
	return scanBinding(r.db.QueryRow(ctx, query, channelExternalID, operationExternalID))
}

func (r *Repository) ResolveByBindingID(ctx context.Context, bindingID uuid.UUID) (*blobgate.Binding, error) {
	query := bindingSelect + ` WHERE b.id = $1`
	return scanBinding(r.db.QueryRow(ctx, query, bindingID))
}

// GetOrCreateDefaultBinding resolves a bucket-only route, creating the
// default channel, default operation, the named bucket and the binding
// as needed. Concurrent callers converge on the same rows: a unique
// violation on insert is followed by a re-select, never surfaced.
func (r *Repository) GetOrCreateDefaultBinding(ctx context.Context, bucketName string) (*blobgate.Binding, error) {
	if r.pool == nil {
		return r.getOrCreateDefaultBinding(ctx, r.db, bucketName)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin get-or-create: %w", err)
	}
	defer tx.Rollback(ctx)

	binding, err := r.getOrCreateDefaultBinding(ctx, tx, bucketName)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit get-or-create: %w", err)
	}
	return binding, nil
}

func (r *Repository) getOrCreateDefaultBinding(ctx context.Context, q DBTX, bucketName string) (*blobgate.Binding, error) {
	const alias = "default"

	channelID, err := getOrCreateRow(ctx, q,
		`SELECT id FROM channel WHERE alias = $1`,
		`INSERT INTO channel (id, alias, external_alias, external_id) VALUES ($1, $2, $2, 0)`,
		alias)
	if err != nil {
		return nil, fmt.Errorf("default channel: %w", err)
	}

	operationID, err := getOrCreateRow(ctx, q,
		`SELECT id FROM operation WHERE alias = $1`,
		`INSERT INTO operation (id, alias, external_alias, external_id) VALUES ($1, $2, $2, 0)`,
		alias)
	if err != nil {
		return nil, fmt.Errorf("default operation: %w", err)
	}

	bucketID, err := getOrCreateRow(ctx, q,
		`SELECT id FROM bucket WHERE name = $1`,
		`INSERT INTO bucket (id, name) VALUES ($1, $2)`,
		bucketName)
	if err != nil {
		return nil, fmt.Errorf("bucket %q: %w", bucketName, err)
	}

	var bindingID uuid.UUID
	err = q.QueryRow(ctx,
		`SELECT id FROM binding WHERE channel_id = $1 AND operation_id = $2 AND bucket_id = $3`,
		channelID, operationID, bucketID).Scan(&bindingID)
	if errors.Is(err, pgx.ErrNoRows) {
		bindingID = uuid.New()
		_, err = q.Exec(ctx,
			`INSERT INTO binding (id, channel_id, operation_id, bucket_id) VALUES ($1, $2, $3, $4)`,
			bindingID, channelID, operationID, bucketID)
		if isUniqueViolation(err) {
			err = q.QueryRow(ctx,
				`SELECT id FROM binding WHERE channel_id = $1 AND operation_id = $2 AND bucket_id = $3`,
				channelID, operationID, bucketID).Scan(&bindingID)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("binding: %w", err)
	}

	return scanBinding(q.QueryRow(ctx, bindingSelect+` WHERE b.id = $1`, bindingID))
}

// getOrCreateRow selects a row's id by key, inserting it when missing.
// Losing an insert race falls back to the re-select.
func getOrCreateRow(ctx context.Context, q DBTX, selectSQL, insertSQL string, key interface{}) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.QueryRow(ctx, selectSQL, key).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, err
	}

	id = uuid.New()
	_, err = q.Exec(ctx, insertSQL, id, key)
	if err == nil {
		return id, nil
	}
	if !isUniqueViolation(err) {
		return uuid.Nil, err
	}
	err = q.QueryRow(ctx, selectSQL, key).Scan(&id)
	return id, err
}

func (r *Repository) CreateDocument(ctx context.Context, doc *blobgate.Document) error {
	query := `
        INSERT INTO document (id, binding_id, name, address, object_key, size, type, uploaded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		doc.ID, doc.BindingID, doc.Name, doc.Address, doc.ObjectKey,
		doc.Size, doc.Type, doc.UploadedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("document %s already exists", doc.ID)
		}
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (r *Repository) GetDocument(ctx context.Context, id uuid.UUID) (*blobgate.Document, error) {
	query := `
        SELECT id, binding_id, name, address, object_key, size, type, uploaded_at
        FROM document WHERE id = $1`

	var doc blobgate.Document
	err := r.db.QueryRow(ctx, query, id).Scan(
		&doc.ID, &doc.BindingID, &doc.Name, &doc.Address, &doc.ObjectKey,
		&doc.Size, &doc.Type, &doc.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, blobgate.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *Repository) GetDocumentByAddress(ctx context.Context, bucket, objectKey string) (*blobgate.Document, error) {
	query := `
        SELECT id, binding_id, name, address, object_key, size, type, uploaded_at
        FROM document WHERE address = $1`

	var doc blobgate.Document
	err := r.db.QueryRow(ctx, query, bucket+"/"+objectKey).Scan(
		&doc.ID, &doc.BindingID, &doc.Name, &doc.Address, &doc.ObjectKey,
		&doc.Size, &doc.Type, &doc.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, blobgate.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}
