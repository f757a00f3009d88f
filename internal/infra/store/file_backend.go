package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"vip-key-shop/internal/domain"
	"vip-key-shop/internal/domain/ports/repository"
)

var _ repository.DocumentBackend = (*FileBackend)(nil)

// FileBackend stores each collection as <dir>/<collection>.json. The version
// is the SHA-256 of the file contents; writes go through a temp file and
// rename so readers never observe a partial document.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) Name() string { return "file" }

func (b *FileBackend) path(collection string) string {
	return filepath.Join(b.dir, collection+".json")
}

func (b *FileBackend) Read(_ context.Context, collection string) (*repository.Document, error) {
	data, err := os.ReadFile(b.path(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &repository.Document{Data: data, Version: digest(data)}, nil
}

func (b *FileBackend) Write(ctx context.Context, collection string, data []byte, expectedVersion string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := ""
	doc, err := b.Read(ctx, collection)
	switch {
	case err == nil:
		current = doc.Version
	case !errors.Is(err, domain.ErrNotFound):
		return "", err
	}
	if current != expectedVersion {
		return "", domain.ErrVersionConflict
	}

	tmp, err := os.CreateTemp(b.dir, collection+".*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), b.path(collection)); err != nil {
		return "", err
	}
	return digest(data), nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
