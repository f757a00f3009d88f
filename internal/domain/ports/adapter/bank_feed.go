package adapter

import (
	"context"

	"vip-key-shop/internal/domain/model"
)

// BankFeed is the port for the inbound transaction list. Transport and auth
// belong to the implementation.
type BankFeed interface {
	Name() string
	// FetchTransactions returns transactions in feed order. Failures wrap
	// domain.ErrUpstream.
	FetchTransactions(ctx context.Context) ([]model.BankTransaction, error)
}
