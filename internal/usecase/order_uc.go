// File: internal/usecase/order_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"vip-key-shop/internal/domain"
	"vip-key-shop/internal/domain/model"
	"vip-key-shop/internal/domain/ports/adapter"
	"vip-key-shop/internal/domain/ports/repository"
	"vip-key-shop/internal/infra/logging"
	"vip-key-shop/internal/infra/metrics"
)

var _ OrderUseCase = (*orderUC)(nil)

type OrderStatus string

const (
	OrderSuccess OrderStatus = "success"
	OrderPending OrderStatus = "pending"
	OrderError   OrderStatus = "error"
)

type OrderRequest struct {
	ReferenceCode string
	// TierHint is the tier the buyer says they paid for. It is advisory only.
	TierHint string
}

type OrderResult struct {
	Status     OrderStatus
	Credential *model.CredentialRecord
	Tier       string
	Created    bool
	Message    string
	ErrorCode  string
}

type OrderUseCase interface {
	// CheckOrder matches a reference code against the bank feed and issues
	// (or returns) the credential it paid for. Validation and storage
	// failures are returned as errors; pending and tier mismatches are
	// reported through OrderResult.
	CheckOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	// CheckOrders settles several orders against a single feed fetch. The
	// outcomes are in request order.
	CheckOrders(ctx context.Context, reqs []OrderRequest) []OrderOutcome
}

// OrderOutcome pairs a batched request with its result or error.
type OrderOutcome struct {
	Request OrderRequest
	Result  *OrderResult
	Err     error
}

// Notifier receives a line of text for the shop admins.
type Notifier interface {
	NotifyAdmins(ctx context.Context, text string) error
}

type OrderOptions struct {
	FeedTimeout        time.Duration
	MinReferenceLength int
}

type orderUC struct {
	feed        adapter.BankFeed
	tiers       *model.TierTable
	credentials CredentialUseCase
	pending     repository.PendingOrderRepository // nil disables pending tracking
	notifier    Notifier                          // nil disables admin notices
	opts        OrderOptions
	log         *zerolog.Logger
}

func NewOrderUseCase(
	feed adapter.BankFeed,
	tiers *model.TierTable,
	credentials CredentialUseCase,
	pending repository.PendingOrderRepository,
	notifier Notifier,
	opts OrderOptions,
	logger *zerolog.Logger,
) *orderUC {
	if opts.FeedTimeout <= 0 {
		opts.FeedTimeout = 10 * time.Second
	}
	if opts.MinReferenceLength <= 0 {
		opts.MinReferenceLength = 4
	}
	l := logger.With().Str("component", "order_uc").Logger()
	return &orderUC{
		feed:        feed,
		tiers:       tiers,
		credentials: credentials,
		pending:     pending,
		notifier:    notifier,
		opts:        opts,
		log:         &l,
	}
}

func (u *orderUC) CheckOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	ref := model.NormalizeReference(req.ReferenceCode)
	ctx = logging.WithReference(ctx, ref)
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "OrderUC.CheckOrder")()

	if err := u.validate(ref); err != nil {
		return nil, err
	}

	txs, err := u.fetch(ctx)
	if err != nil {
		// a slow or broken feed means "not yet", never a hard failure
		log.Warn().Err(err).Msg("bank feed unavailable, order stays pending")
		return u.pendingResult(ctx, ref, req.TierHint, feedDownMessage), nil
	}
	return u.settle(ctx, ref, req.TierHint, txs)
}

func (u *orderUC) CheckOrders(ctx context.Context, reqs []OrderRequest) []OrderOutcome {
	defer logging.TraceDuration(u.log, "OrderUC.CheckOrders")()

	out := make([]OrderOutcome, len(reqs))
	valid := 0
	for i, req := range reqs {
		out[i].Request = req
		if out[i].Err = u.validate(model.NormalizeReference(req.ReferenceCode)); out[i].Err == nil {
			valid++
		}
	}
	if valid == 0 {
		return out
	}

	txs, feedErr := u.fetch(ctx)
	if feedErr != nil {
		u.log.Warn().Err(feedErr).Int("orders", valid).Msg("bank feed unavailable, orders stay pending")
	}
	for i := range out {
		if out[i].Err != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			out[i].Err = err
			continue
		}
		ref := model.NormalizeReference(out[i].Request.ReferenceCode)
		rctx := logging.WithReference(ctx, ref)
		if feedErr != nil {
			out[i].Result = u.pendingResult(rctx, ref, out[i].Request.TierHint, feedDownMessage)
			continue
		}
		out[i].Result, out[i].Err = u.settle(rctx, ref, out[i].Request.TierHint, txs)
	}
	return out
}

const feedDownMessage = "bank feed unavailable, please retry shortly"

func (u *orderUC) validate(ref string) error {
	if len(ref) < u.opts.MinReferenceLength {
		return fmt.Errorf("%w: reference code must have at least %d characters", domain.ErrValidation, u.opts.MinReferenceLength)
	}
	return nil
}

func (u *orderUC) fetch(ctx context.Context) ([]model.BankTransaction, error) {
	fctx, cancel := context.WithTimeout(ctx, u.opts.FeedTimeout)
	defer cancel()
	return u.feed.FetchTransactions(fctx)
}

// settle matches ref against an already fetched feed and issues the credential.
func (u *orderUC) settle(ctx context.Context, ref, hint string, txs []model.BankTransaction) (*OrderResult, error) {
	log := logging.With(ctx, u.log)

	tx, ok := model.FindTransaction(txs, ref)
	if !ok {
		log.Debug().Int("transactions", len(txs)).Msg("no matching transaction yet")
		return u.pendingResult(ctx, ref, hint, "payment not received yet"), nil
	}

	tier, err := u.tiers.Resolve(tx.Amount)
	if err != nil {
		if errors.Is(err, domain.ErrTierNotFound) {
			metrics.IncOrder("no_tier")
			log.Warn().Int64("amount", tx.Amount).Str("tx_id", tx.ID).Msg("amount below every tier")
			u.forget(ctx, ref)
			return &OrderResult{
				Status:    OrderError,
				Message:   fmt.Sprintf("amount %d does not match any package", tx.Amount),
				ErrorCode: domain.ErrorCode(err),
			}, nil
		}
		return nil, err
	}

	res, err := u.credentials.Issue(ctx, ref, tx, tier)
	if err != nil {
		metrics.IncOrder("error")
		return nil, err
	}
	u.forget(ctx, ref)

	out := &OrderResult{
		Status:     OrderSuccess,
		Credential: res.Record,
		Tier:       res.Record.Tier,
		Created:    res.Created,
		Message:    "payment confirmed",
	}
	if note := u.hintNote(hint, tier); note != "" {
		out.Message = note
		log.Info().Str("tier_hint", hint).Str("tier", tier.Name).Msg("tier hint not covered by amount")
	}

	if res.Created {
		metrics.IncOrder("issued")
		u.notify(ctx, fmt.Sprintf("New order %s: %s (%d)", ref, tier.Name, tx.Amount))
	} else {
		metrics.IncOrder("existing")
	}
	return out, nil
}

// hintNote explains a hinted tier the paid amount does not reach.
func (u *orderUC) hintNote(hint string, resolved model.Tier) string {
	if hint == "" {
		return ""
	}
	wanted, ok := u.tiers.ByName(hint)
	if !ok || wanted.MinAmount <= resolved.MinAmount {
		return ""
	}
	return fmt.Sprintf("payment confirmed for %s; %s requires %d", resolved.Name, wanted.Name, wanted.MinAmount)
}

func (u *orderUC) pendingResult(ctx context.Context, ref, hint, msg string) *OrderResult {
	metrics.IncOrder("pending")
	if u.pending != nil {
		err := u.pending.Add(ctx, &repository.PendingOrder{ReferenceCode: ref, TierHint: hint, FirstSeenAt: time.Now()})
		if err != nil {
			u.log.Warn().Err(err).Str("reference", ref).Msg("could not remember pending order")
		}
	}
	return &OrderResult{Status: OrderPending, Message: msg}
}

func (u *orderUC) forget(ctx context.Context, ref string) {
	if u.pending == nil {
		return
	}
	if err := u.pending.Remove(ctx, ref); err != nil {
		u.log.Warn().Err(err).Str("reference", ref).Msg("could not clear pending order")
	}
}

func (u *orderUC) notify(ctx context.Context, text string) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.NotifyAdmins(ctx, text); err != nil {
		u.log.Warn().Err(err).Msg("admin notification failed")
	}
}
