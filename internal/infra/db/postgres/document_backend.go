package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vip-key-shop/internal/domain"
	"vip-key-shop/internal/domain/ports/repository"
)

var _ repository.DocumentBackend = (*DocumentBackend)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS record_collections (
    name       TEXT PRIMARY KEY,
    body       JSONB       NOT NULL,
    version    BIGINT      NOT NULL DEFAULT 1,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// DocumentBackend stores each collection as one JSONB row. The row version
// column is the optimistic-concurrency token.
type DocumentBackend struct {
	pool *pgxpool.Pool
}

func NewDocumentBackend(pool *pgxpool.Pool) *DocumentBackend {
	return &DocumentBackend{pool: pool}
}

// EnsureSchema creates the collections table when missing.
func (b *DocumentBackend) EnsureSchema(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, schemaSQL)
	return err
}

func (b *DocumentBackend) Name() string { return "postgres" }

func (b *DocumentBackend) Read(ctx context.Context, collection string) (*repository.Document, error) {
	var (
		body    []byte
		version int64
	)
	err := b.pool.QueryRow(ctx,
		`SELECT body::text, version FROM record_collections WHERE name = $1`, collection,
	).Scan(&body, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &repository.Document{Data: body, Version: strconv.FormatInt(version, 10)}, nil
}

func (b *DocumentBackend) Write(ctx context.Context, collection string, data []byte, expectedVersion string) (string, error) {
	if expectedVersion == "" {
		tag, err := b.pool.Exec(ctx,
			`INSERT INTO record_collections (name, body) VALUES ($1, $2::jsonb)
			 ON CONFLICT (name) DO NOTHING`, collection, string(data))
		if err != nil {
			return "", mapWriteErr(err)
		}
		if tag.RowsAffected() == 0 {
			return "", domain.ErrVersionConflict
		}
		return "1", nil
	}

	expected, err := strconv.ParseInt(expectedVersion, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: bad version %q", domain.ErrVersionConflict, expectedVersion)
	}
	var next int64
	err = b.pool.QueryRow(ctx,
		`UPDATE record_collections
		    SET body = $2::jsonb, version = version + 1, updated_at = NOW()
		  WHERE name = $1 AND version = $3
		RETURNING version`, collection, string(data), expected,
	).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrVersionConflict
	}
	if err != nil {
		return "", mapWriteErr(err)
	}
	return strconv.FormatInt(next, 10), nil
}

// serialization failures under concurrent writers count as conflicts
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "23505") {
		return domain.ErrVersionConflict
	}
	return err
}
