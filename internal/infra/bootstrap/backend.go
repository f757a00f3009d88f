// Package bootstrap opens the infrastructure shared by the service and the
// key CLI.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"vip-key-shop/internal/config"
	"vip-key-shop/internal/domain/ports/repository"
	pg "vip-key-shop/internal/infra/db/postgres"
	"vip-key-shop/internal/infra/objectstore"
	"vip-key-shop/internal/infra/store"
)

// OpenBackend selects the document backend named in storage.backend. The
// returned func releases it.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (repository.DocumentBackend, func(), error) {
	switch cfg.Storage.Backend {
	case "s3":
		client, err := objectstore.NewS3Client(ctx, cfg.Storage.S3)
		if err != nil {
			return nil, nil, fmt.Errorf("s3: %w", err)
		}
		return objectstore.NewS3Backend(client, cfg.Storage.S3.Bucket, cfg.Storage.S3.Prefix), func() {}, nil
	case "postgres":
		pool, err := pg.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		b := pg.NewDocumentBackend(pool)
		if err := b.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		go pg.ReportPoolStats(ctx, pool, 15*time.Second, logger)
		return b, pool.Close, nil
	case "file", "":
		b, err := store.NewFileBackend(cfg.Storage.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("file store: %w", err)
		}
		return b, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("storage.backend %q is not supported", cfg.Storage.Backend)
	}
}
