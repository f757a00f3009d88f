package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vip-key-shop/internal/domain"
	"vip-key-shop/internal/domain/model"
	"vip-key-shop/internal/domain/ports/repository"
	"vip-key-shop/internal/infra/metrics"
)

var (
	_ repository.CredentialStore = (*Store[*model.CredentialRecord])(nil)
	_ repository.VPNStockStore   = (*Store[*model.VPNItem])(nil)
)

// Locker serializes updates across processes. The Redis locker satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

type Option func(*options)

type options struct {
	locker      Locker
	lockTTL     time.Duration
	maxAttempts int
}

// WithLocker adds a cross-process lock around every Update.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(o *options) {
		o.locker = l
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// WithMaxAttempts bounds the optimistic retry loop.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// Store keeps ordered record lists as JSON arrays in a DocumentBackend.
// Update is serialized per collection inside the process, optionally across
// processes via Locker, and always guarded by the backend version check.
type Store[T any] struct {
	backend repository.DocumentBackend
	opts    options
	log     *zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New[T any](backend repository.DocumentBackend, logger *zerolog.Logger, opts ...Option) *Store[T] {
	o := options{lockTTL: 10 * time.Second, maxAttempts: 3}
	for _, fn := range opts {
		fn(&o)
	}
	l := logger.With().Str("component", "store").Str("backend", backend.Name()).Logger()
	return &Store[T]{backend: backend, opts: o, log: &l, locks: make(map[string]*sync.Mutex)}
}

func (s *Store[T]) collectionLock(collection string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[collection]
	if !ok {
		m = &sync.Mutex{}
		s.locks[collection] = m
	}
	return m
}

// LoadAll returns an empty list for a missing or empty collection.
func (s *Store[T]) LoadAll(ctx context.Context, collection string) ([]T, error) {
	start := time.Now()
	items, _, err := s.read(ctx, collection)
	s.observe("load", err, start)
	return items, err
}

func (s *Store[T]) ReplaceAll(ctx context.Context, collection string, items []T) error {
	return s.update(ctx, collection, "replace", func([]T) ([]T, bool, error) {
		return items, true, nil
	})
}

// Update runs fn against the current list and persists the result. fn may be
// called again with freshly loaded items after a version conflict, so it must
// derive everything from its argument.
func (s *Store[T]) Update(ctx context.Context, collection string, fn repository.MutateFunc[T]) error {
	return s.update(ctx, collection, "update", fn)
}

func (s *Store[T]) update(ctx context.Context, collection, op string, fn repository.MutateFunc[T]) (err error) {
	start := time.Now()
	defer func() { s.observe(op, err, start) }()

	m := s.collectionLock(collection)
	m.Lock()
	defer m.Unlock()

	if s.opts.locker != nil {
		token, lerr := s.opts.locker.TryLock(ctx, collection, s.opts.lockTTL)
		if lerr != nil {
			return fmt.Errorf("%w: lock %s: %v", domain.ErrStorage, collection, lerr)
		}
		defer func() {
			// release even if ctx was cancelled mid-update
			uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if uerr := s.opts.locker.Unlock(uctx, collection, token); uerr != nil {
				s.log.Warn().Err(uerr).Str("collection", collection).Msg("unlock failed")
			}
		}()
	}

	for attempt := 1; attempt <= s.opts.maxAttempts; attempt++ {
		items, version, rerr := s.read(ctx, collection)
		if rerr != nil {
			return rerr
		}

		updated, changed, ferr := fn(items)
		if ferr != nil {
			return ferr
		}
		if !changed {
			return nil
		}

		data, merr := encode(updated)
		if merr != nil {
			return fmt.Errorf("%w: encode %s: %v", domain.ErrStorage, collection, merr)
		}

		_, werr := s.backend.Write(ctx, collection, data, version)
		if werr == nil {
			return nil
		}
		if !errors.Is(werr, domain.ErrVersionConflict) {
			return fmt.Errorf("%w: write %s: %v", domain.ErrStorage, collection, werr)
		}
		metrics.IncStoreConflict(s.backend.Name(), collection)
		s.log.Warn().Str("collection", collection).Int("attempt", attempt).Msg("version conflict, retrying")
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, collection, domain.ErrVersionConflict)
}

func (s *Store[T]) read(ctx context.Context, collection string) ([]T, string, error) {
	doc, err := s.backend.Read(ctx, collection)
	if errors.Is(err, domain.ErrNotFound) {
		return []T{}, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: read %s: %v", domain.ErrStorage, collection, err)
	}

	items := []T{}
	body := bytes.TrimSpace(doc.Data)
	if len(body) > 0 && !bytes.Equal(body, []byte("null")) {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, "", fmt.Errorf("%w: decode %s: %v", domain.ErrStorage, collection, err)
		}
	}
	return items, doc.Version, nil
}

func (s *Store[T]) observe(op string, err error, start time.Time) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.ObserveStoreOp(s.backend.Name(), op, result, time.Since(start))
}

// encode writes the two-space indented layout of the data files.
func encode[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.MarshalIndent(items, "", "  ")
}
