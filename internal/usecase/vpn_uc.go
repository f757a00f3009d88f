// File: internal/usecase/vpn_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vip-key-shop/internal/domain"
	"vip-key-shop/internal/domain/model"
	"vip-key-shop/internal/domain/ports/adapter"
	"vip-key-shop/internal/domain/ports/repository"
	"vip-key-shop/internal/infra/metrics"
)

var _ VPNUseCase = (*vpnUC)(nil)

type VPNUseCase interface {
	// Buy hands out one VPN profile for a paid reference. A buyer who already
	// owns a profile gets the same one back.
	Buy(ctx context.Context, content string, planDays int) (*VPNPurchaseResult, error)
	Stock(ctx context.Context) (VPNStock, error)
	// Import appends profiles to the stock as available items.
	Import(ctx context.Context, items []*model.VPNItem) (int, error)
}

type VPNPurchaseResult struct {
	Status       OrderStatus
	Item         *model.VPNItem
	AlreadyOwned bool
	Message      string
	ErrorCode    string
}

type VPNStock struct {
	Available int `json:"available"`
	Sold      int `json:"sold"`
}

type VPNOptions struct {
	FeedTimeout        time.Duration
	DefaultPlanDays    int
	MinAmount          int64
	MinReferenceLength int
}

type vpnUC struct {
	store    repository.VPNStockStore
	feed     adapter.BankFeed
	notifier Notifier
	opts     VPNOptions
	now      func() time.Time
	log      *zerolog.Logger
}

func NewVPNUseCase(store repository.VPNStockStore, feed adapter.BankFeed, notifier Notifier, opts VPNOptions, logger *zerolog.Logger) *vpnUC {
	if opts.FeedTimeout <= 0 {
		opts.FeedTimeout = 10 * time.Second
	}
	if opts.DefaultPlanDays <= 0 {
		opts.DefaultPlanDays = 30
	}
	if opts.MinReferenceLength <= 0 {
		opts.MinReferenceLength = 4
	}
	l := logger.With().Str("component", "vpn_uc").Logger()
	return &vpnUC{store: store, feed: feed, notifier: notifier, opts: opts, now: time.Now, log: &l}
}

func (u *vpnUC) WithClock(now func() time.Time) *vpnUC {
	u.now = now
	return u
}

func ownedBy(items []*model.VPNItem, clean string) *model.VPNItem {
	for _, it := range items {
		if it.OwnerContent != "" && model.CleanContent(it.OwnerContent) == clean {
			return it
		}
	}
	return nil
}

func (u *vpnUC) Buy(ctx context.Context, content string, planDays int) (*VPNPurchaseResult, error) {
	clean := model.CleanContent(content)
	if len(clean) < u.opts.MinReferenceLength {
		return nil, fmt.Errorf("%w: reference code must have at least %d letters or digits", domain.ErrValidation, u.opts.MinReferenceLength)
	}
	if planDays <= 0 {
		planDays = u.opts.DefaultPlanDays
	}

	items, err := u.store.LoadAll(ctx, repository.CollectionVPNData)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		metrics.IncVPNSale("out_of_stock")
		return nil, fmt.Errorf("%w: vpn stock is empty", domain.ErrOutOfStock)
	}
	if it := ownedBy(items, clean); it != nil {
		metrics.IncVPNSale("existing")
		return &VPNPurchaseResult{Status: OrderSuccess, Item: it, AlreadyOwned: true, Message: "already purchased"}, nil
	}

	fctx, cancel := context.WithTimeout(ctx, u.opts.FeedTimeout)
	txs, err := u.feed.FetchTransactions(fctx)
	cancel()
	if err != nil {
		u.log.Warn().Err(err).Str("reference", clean).Msg("bank feed unavailable, purchase stays pending")
		metrics.IncVPNSale("pending")
		return &VPNPurchaseResult{Status: OrderPending, Message: "bank feed unavailable, please retry shortly"}, nil
	}
	tx, ok := model.FindTransaction(txs, content)
	if !ok {
		metrics.IncVPNSale("pending")
		return &VPNPurchaseResult{Status: OrderPending, Message: "payment not received yet"}, nil
	}
	if u.opts.MinAmount > 0 && tx.Amount < u.opts.MinAmount {
		metrics.IncVPNSale("no_tier")
		return &VPNPurchaseResult{
			Status:    OrderError,
			Message:   fmt.Sprintf("amount %d is below the VPN price %d", tx.Amount, u.opts.MinAmount),
			ErrorCode: domain.ErrorCode(domain.ErrTierNotFound),
		}, nil
	}

	var res VPNPurchaseResult
	err = u.store.Update(ctx, repository.CollectionVPNData, func(items []*model.VPNItem) ([]*model.VPNItem, bool, error) {
		res = VPNPurchaseResult{}
		// a concurrent request may have sold to this buyer in the meantime
		if it := ownedBy(items, clean); it != nil {
			res = VPNPurchaseResult{Status: OrderSuccess, Item: it, AlreadyOwned: true, Message: "already purchased"}
			return items, false, nil
		}
		// one transfer pays for one profile, whichever code matched its memo
		if it := model.SoldFor(items, tx.ID); it != nil {
			res = VPNPurchaseResult{Status: OrderSuccess, Item: it, AlreadyOwned: true, Message: "already purchased"}
			return items, false, nil
		}
		idx := model.FirstAvailable(items)
		if idx < 0 {
			return nil, false, fmt.Errorf("%w: no vpn profile available", domain.ErrOutOfStock)
		}
		now := u.now()
		expire := now.AddDate(0, 0, planDays)
		it := items[idx]
		it.Status = model.VPNItemSold
		it.OwnerContent = strings.ToUpper(strings.TrimSpace(content))
		it.TransactionID = tx.ID
		it.SoldAt = &now
		it.ExpireAt = &expire
		res = VPNPurchaseResult{Status: OrderSuccess, Item: it, Message: "purchase confirmed"}
		return items, true, nil
	})
	if err != nil {
		metrics.IncVPNSale("error")
		return nil, err
	}

	if res.AlreadyOwned {
		metrics.IncVPNSale("existing")
		return &res, nil
	}
	metrics.IncVPNSale("sold")
	u.log.Info().Str("reference", clean).Str("item", res.Item.ID).Str("tx_id", tx.ID).Int("plan_days", planDays).Msg("vpn profile sold")
	if u.notifier != nil {
		if err := u.notifier.NotifyAdmins(ctx, fmt.Sprintf("VPN sold to %s (%d days)", clean, planDays)); err != nil {
			u.log.Warn().Err(err).Msg("admin notification failed")
		}
	}
	return &res, nil
}

func (u *vpnUC) Stock(ctx context.Context) (VPNStock, error) {
	items, err := u.store.LoadAll(ctx, repository.CollectionVPNData)
	if err != nil {
		return VPNStock{}, err
	}
	var s VPNStock
	for _, it := range items {
		switch it.Status {
		case model.VPNItemAvailable:
			s.Available++
		case model.VPNItemSold:
			s.Sold++
		}
	}
	return s, nil
}

func (u *vpnUC) Import(ctx context.Context, items []*model.VPNItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	for _, it := range items {
		if it == nil || (it.Conf == "" && it.QRImage == "") {
			return 0, fmt.Errorf("%w: vpn item needs conf or qr_image", domain.ErrValidation)
		}
	}
	err := u.store.Update(ctx, repository.CollectionVPNData, func(cur []*model.VPNItem) ([]*model.VPNItem, bool, error) {
		seen := make(map[string]struct{}, len(cur))
		for _, it := range cur {
			seen[it.ID] = struct{}{}
		}
		out := cur
		for _, in := range items {
			it := *in
			if _, dup := seen[it.ID]; it.ID == "" || dup {
				it.ID = uuid.NewString()
			}
			it.Status = model.VPNItemAvailable
			it.OwnerContent = ""
			it.TransactionID = ""
			it.SoldAt = nil
			it.ExpireAt = nil
			seen[it.ID] = struct{}{}
			out = append(out, &it)
		}
		return out, true, nil
	})
	if err != nil {
		return 0, err
	}
	u.log.Info().Int("count", len(items)).Msg("vpn stock imported")
	return len(items), nil
}
