package bank

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vip-key-shop/internal/domain/model"
	"vip-key-shop/internal/domain/ports/adapter"
	"vip-key-shop/internal/infra/metrics"
)

var _ adapter.BankFeed = (*instrumentedFeed)(nil)

type instrumentedFeed struct {
	inner adapter.BankFeed
	log   *zerolog.Logger
}

// NewInstrumented records fetch latency and logs failures.
func NewInstrumented(inner adapter.BankFeed, logger *zerolog.Logger) adapter.BankFeed {
	l := logger.With().Str("component", "bank_feed").Str("provider", inner.Name()).Logger()
	return &instrumentedFeed{inner: inner, log: &l}
}

func (f *instrumentedFeed) Name() string { return f.inner.Name() }

func (f *instrumentedFeed) FetchTransactions(ctx context.Context) ([]model.BankTransaction, error) {
	start := time.Now()
	txs, err := f.inner.FetchTransactions(ctx)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveBankFetch(f.inner.Name(), "error", elapsed)
		f.log.Warn().Err(err).Dur("duration", elapsed).Msg("bank feed fetch failed")
		return nil, err
	}
	metrics.ObserveBankFetch(f.inner.Name(), "ok", elapsed)
	f.log.Debug().Int("transactions", len(txs)).Dur("duration", elapsed).Msg("bank feed fetched")
	return txs, nil
}
