package bank

import (
	"context"
	"fmt"
	"os"

	"vip-key-shop/internal/domain"
	"vip-key-shop/internal/domain/model"
	"vip-key-shop/internal/domain/ports/adapter"
)

var _ adapter.BankFeed = (*StaticFeed)(nil)

// StaticFeed reads the feed from a local JSON file on every fetch. Used for
// demos and local development where no bank API is available.
type StaticFeed struct {
	path string
}

func NewStaticFeed(path string) *StaticFeed { return &StaticFeed{path: path} }

func (f *StaticFeed) Name() string { return "static" }

func (f *StaticFeed) FetchTransactions(ctx context.Context) ([]model.BankTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	body, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	return ParseFeed(body)
}
