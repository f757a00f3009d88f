package repository

import (
	"context"

	"vip-key-shop/internal/domain/model"
)

// Collection names.
const (
	CollectionKeys    = "keys"
	CollectionVPNData = "vpn_data"
)

// Document is a serialized collection together with the version token it was
// read at. Version semantics are backend-defined (content hash, ETag, row
// version) and only compared for equality.
type Document struct {
	Data    []byte
	Version string
}

// DocumentBackend persists whole collections as opaque JSON documents.
type DocumentBackend interface {
	Name() string
	// Read returns domain.ErrNotFound when the collection does not exist yet.
	Read(ctx context.Context, collection string) (*Document, error)
	// Write replaces the collection only if its current version still equals
	// expectedVersion ("" means the collection must not exist yet) and returns
	// the new version. A stale version yields domain.ErrVersionConflict.
	Write(ctx context.Context, collection string, data []byte, expectedVersion string) (string, error)
}

// MutateFunc receives the current list and returns the list to persist.
// changed=false skips the write; a non-nil error aborts without writing.
type MutateFunc[T any] func(items []T) (updated []T, changed bool, err error)

// RecordStore is the single owner of a persisted ordered record list.
type RecordStore[T any] interface {
	// LoadAll returns an empty list for a missing collection.
	LoadAll(ctx context.Context, collection string) ([]T, error)
	ReplaceAll(ctx context.Context, collection string, items []T) error
	// Update runs fn as one serialized read-modify-write.
	Update(ctx context.Context, collection string, fn MutateFunc[T]) error
}

type CredentialStore = RecordStore[*model.CredentialRecord]

type VPNStockStore = RecordStore[*model.VPNItem]
