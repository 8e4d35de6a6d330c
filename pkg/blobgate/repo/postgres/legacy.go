package postgres

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/jackc/pgx/v5"

	"github.com/blobgate/blobgate/pkg/blobgate"
)

// LegacySource reads inline blobs from the legacy document table. The
// table is read-only during migration; deleted rows are skipped.
type LegacySource struct {
	db DBTX
}

// NewLegacySource creates a new PostgreSQL legacy source
func NewLegacySource(db DBTX) *LegacySource {
	return &LegacySource{db: db}
}

func (s *LegacySource) FetchIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id FROM legacy_document
        WHERE id > $1 AND NOT deleted
        ORDER BY id
        LIMIT $2`,
		afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *LegacySource) ResolveRoute(ctx context.Context, legacyID int64) (*blobgate.LegacyRoute, error) {
	var route blobgate.LegacyRoute
	err := s.db.QueryRow(ctx,
		`SELECT channel_id, operation_id FROM legacy_document WHERE id = $1`,
		legacyID).Scan(&route.ChannelID, &route.OperationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, blobgate.ErrWorkItemNotFound
		}
		return nil, err
	}
	return &route, nil
}

func (s *LegacySource) ReadMeta(ctx context.Context, legacyID int64) (*blobgate.LegacyMeta, error) {
	var meta blobgate.LegacyMeta
	err := s.db.QueryRow(ctx, `
        SELECT octet_length(blob), COALESCE(type, 0), COALESCE(name, ''),
               COALESCE(extension, ''), COALESCE(content_type, '')
        FROM legacy_document WHERE id = $1`,
		legacyID).Scan(&meta.Size, &meta.TypeCode, &meta.Name, &meta.Extension, &meta.ContentType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, blobgate.ErrWorkItemNotFound
		}
		return nil, err
	}
	return &meta, nil
}

func (s *LegacySource) ReadBlob(ctx context.Context, legacyID int64) (io.ReadCloser, error) {
	var blob []byte
	err := s.db.QueryRow(ctx,
		`SELECT blob FROM legacy_document WHERE id = $1`,
		legacyID).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, blobgate.ErrWorkItemNotFound
		}
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(blob)), nil
}
