//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"vip-key-shop/internal/domain/model"
	"vip-key-shop/internal/domain/ports/repository"
	"vip-key-shop/internal/infra/store"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// memStore is an in-memory RecordStore. Items are deep-copied through JSON
// so tests observe only what was persisted.
type memStore[T any] struct {
	mu      sync.Mutex
	data    map[string][]byte
	writes  int
	loadErr error
	saveErr error
}

func newMemStore[T any]() *memStore[T] {
	return &memStore[T]{data: map[string][]byte{}}
}

func (m *memStore[T]) decode(collection string) ([]T, error) {
	out := []T{}
	if raw, ok := m.data[collection]; ok {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *memStore[T]) LoadAll(_ context.Context, collection string) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.decode(collection)
}

func (m *memStore[T]) ReplaceAll(_ context.Context, collection string, items []T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(collection, items)
}

func (m *memStore[T]) put(collection string, items []T) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	m.data[collection] = raw
	m.writes++
	return nil
}

func (m *memStore[T]) Update(_ context.Context, collection string, fn repository.MutateFunc[T]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return m.loadErr
	}
	items, err := m.decode(collection)
	if err != nil {
		return err
	}
	updated, changed, err := fn(items)
	if err != nil || !changed {
		return err
	}
	return m.put(collection, updated)
}

func (m *memStore[T]) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// fakeFeed returns canned transactions or an error.
type fakeFeed struct {
	mu    sync.Mutex
	txs   []model.BankTransaction
	err   error
	calls int
}

func (f *fakeFeed) Name() string { return "fake" }

func (f *fakeFeed) FetchTransactions(ctx context.Context) ([]model.BankTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]model.BankTransaction, len(f.txs))
	copy(out, f.txs)
	return out, nil
}

// blockingFeed waits for ctx cancellation, like a hung bank API.
type blockingFeed struct{}

func (blockingFeed) Name() string { return "blocking" }

func (blockingFeed) FetchTransactions(ctx context.Context) ([]model.BankTransaction, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type memPending struct {
	mu     sync.Mutex
	orders map[string]*repository.PendingOrder
}

func newMemPending() *memPending {
	return &memPending{orders: map[string]*repository.PendingOrder{}}
}

func (p *memPending) Add(_ context.Context, o *repository.PendingOrder) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.orders[o.ReferenceCode]; !ok {
		cp := *o
		p.orders[o.ReferenceCode] = &cp
	}
	return nil
}

func (p *memPending) List(_ context.Context, limit int) ([]*repository.PendingOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []*repository.PendingOrder{}
	for _, o := range p.orders {
		if len(out) == limit {
			break
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (p *memPending) Remove(_ context.Context, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.orders, ref)
	return nil
}

func (p *memPending) has(ref string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.orders[ref]
	return ok
}

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *fakeNotifier) NotifyAdmins(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.texts)
}

// newFileCredentialStore backs the credential use case with the real store.
func newFileCredentialStore(t *testing.T) *store.Store[*model.CredentialRecord] {
	t.Helper()
	b, err := store.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	return store.New[*model.CredentialRecord](b, newTestLogger())
}

func seqKeys(keys ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		k := keys[i%len(keys)]
		i++
		return k, nil
	}
}

func intPtr(n int) *int { return &n }
