//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"vip-key-shop/internal/domain"
	"vip-key-shop/internal/domain/model"
	"vip-key-shop/internal/domain/ports/repository"
	"vip-key-shop/internal/usecase"
)

type orderFixture struct {
	store    *memStore[*model.CredentialRecord]
	feed     *fakeFeed
	pending  *memPending
	notifier *fakeNotifier
	uc       usecase.OrderUseCase
}

func newOrderFixture(t *testing.T, txs ...model.BankTransaction) *orderFixture {
	t.Helper()
	tiers, err := model.NewTierTable(model.DefaultTiers())
	if err != nil {
		t.Fatalf("NewTierTable: %v", err)
	}
	f := &orderFixture{
		store:    newMemStore[*model.CredentialRecord](),
		feed:     &fakeFeed{txs: txs},
		pending:  newMemPending(),
		notifier: &fakeNotifier{},
	}
	creds := usecase.NewCredentialUseCase(f.store, newTestLogger())
	f.uc = usecase.NewOrderUseCase(f.feed, tiers, creds, f.pending, f.notifier, usecase.OrderOptions{}, newTestLogger())
	return f
}

func TestOrderUseCase_CheckOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("should issue a 1 Month key for 39000", func(t *testing.T) {
		f := newOrderFixture(t,
			model.BankTransaction{ID: "t0", Memo: "unrelated", Amount: 500000},
			model.BankTransaction{ID: "t1", Memo: "CK NAP ABC123 thanks", Amount: 39000},
		)
		res, err := f.uc.CheckOrder(ctx, usecase.OrderRequest{ReferenceCode: " abc123 "})
		if err != nil {
			t.Fatalf("CheckOrder: %v", err)
		}
		if res.Status != usecase.OrderSuccess || !res.Created || res.Tier != "1 Month" {
			t.Fatalf("unexpected result %+v", res)
		}
		if res.Credential.TransactionID != "t1" || res.Credential.TransactionCode != "ABC123" {
			t.Errorf("unexpected credential %+v", res.Credential)
		}
		if f.notifier.count() != 1 {
			t.Errorf("expected one admin notice, got %d", f.notifier.count())
		}
	})

	t.Run("should return the same key on repeat checks", func(t *testing.T) {
		f := newOrderFixture(t, model.BankTransaction{ID: "t1", Memo: "ABC123", Amount: 199000})
		first, err := f.uc.CheckOrder(ctx, usecase.OrderRequest{ReferenceCode: "ABC123"})
		if err != nil {
			t.Fatal(err)
		}
		writes := f.store.writeCount()
		second, err := f.uc.CheckOrder(ctx, usecase.OrderRequest{ReferenceCode: "abc123"})
		if err != nil {
			t.Fatal(err)
		}
		if second.Created || second.Credential.Key != first.Credential.Key || second.Tier != "1 Year" {
			t.Fatalf("expected existing key, got %+v", second)
		}
		if f.store.writeCount() != writes {
			t.Error("repeat check must not write")
		}
		if f.notifier.count() != 1 {
			t.Errorf("repeat check must not notify, got %d notices", f.notifier.count())
		}
	})

	t.Run("should report TIER_NOT_FOUND below the lowest tier", func(t *testing.T) {
		f := newOrderFixture(t, model.BankTransaction{ID: "t1", Memo: "LOW999", Amount: 4000})
		res, err := f.uc.CheckOrder(ctx, usecase.OrderRequest{ReferenceCode: "LOW999"})
		if err != nil {
			t.Fatalf("CheckOrder: %v", err)
		}
		if res.Status != usecase.OrderError || res.ErrorCode != "TIER_NOT_FOUND" || res.Credential != nil {
			t.Fatalf("unexpected result %+v", res)
		}
		if f.store.writeCount() != 0 {
			t.Error("no credential may be stored")
		}
	})

	t.Run("should stay pending without a match and without writing", func(t *testing.T) {
		f := newOrderFixture(t, model.BankTransaction{ID: "t1", Memo: "SOMEONE ELSE", Amount: 39000})
		res, err := f.uc.CheckOrder(ctx, usecase.OrderRequest{ReferenceCode: "WAIT01", TierHint: "1 Month"})
		if err != nil {
			t.Fatalf("CheckOrder: %v", err)
		}
		if res.Status != usecase.OrderPending || res.Credential != nil {
			t.Fatalf("unexpected result %+v", res)
		}
		if f.store.writeCount() != 0 {
			t.Error("pending must not write")
		}
		if !f.pending.has("WAIT01") {
			t.Error("pending order should be remembered")
		}

		// payment arrives, the next check issues and clears the pending entry
		f.feed.mu.Lock()
		f.feed.txs = append(f.feed.txs, model.BankTransaction{ID: "t2", Memo: "wait01", Amount: 39000})
		f.feed.mu.Unlock()
		res, err = f.uc.CheckOrder(ctx, usecase.OrderRequest{ReferenceCode: "WAIT01"})
		if err != nil || res.Status != usecase.OrderSuccess {
			t.Fatalf("expected success, got %+v %v", res, err)
		}
		if f.pending.has("WAIT01") {
			t.Error("pending order should be cleared after issuance")
		}
	})

	t.Run("should treat a feed failure as pending", func(t *testing.T) {
		f := newOrderFixture(t)
		f.feed.err = domain.ErrUpstream
		res, err := f.uc.CheckOrder(ctx, usecase.OrderRequest{ReferenceCode: "DOWN01"})
		if err != nil {
			t.Fatalf("CheckOrder: %v", err)
		}
		if res.Status != usecase.OrderPending {
			t.Fatalf("expected pending, got %+v", res)
		}
	})

	t.Run("should bound a hung feed by the timeout", func(t *testing.T) {
		tiers, _ := model.NewTierTable(model.DefaultTiers())
		st := newMemStore[*model.CredentialRecord]()
		uc := usecase.NewOrderUseCase(blockingFeed{}, tiers, usecase.NewCredentialUseCase(st, newTestLogger()),
			nil, nil, usecase.OrderOptions{FeedTimeout: 50 * time.Millisecond}, newTestLogger())

		start := time.Now()
		res, err := uc.CheckOrder(ctx, usecase.OrderRequest{ReferenceCode: "SLOW01"})
		if err != nil {
			t.Fatalf("CheckOrder: %v", err)
		}
		if res.Status != usecase.OrderPending {
			t.Fatalf("expected pending, got %+v", res)
		}
		if time.Since(start) > 2*time.Second {
			t.Error("feed timeout was not applied")
		}
	})

	t.Run("should reject short references before calling the feed", func(t *testing.T) {
		f := newOrderFixture(t)
		_, err := f.uc.CheckOrder(ctx, usecase.OrderRequest{ReferenceCode: " ab "})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if f.feed.calls != 0 {
			t.Error("feed must not be called for invalid input")
		}
	})

	t.Run("should explain an unmet tier hint", func(t *testing.T) {
		f := newOrderFixture(t, model.BankTransaction{ID: "t1", Memo: "HINT01", Amount: 39000})
		res, err := f.uc.CheckOrder(ctx, usecase.OrderRequest{ReferenceCode: "HINT01", TierHint: "1 year"})
		if err != nil {
			t.Fatal(err)
		}
		if res.Tier != "1 Month" || !strings.Contains(res.Message, "1 Year requires 199000") {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("should surface storage errors", func(t *testing.T) {
		f := newOrderFixture(t, model.BankTransaction{ID: "t1", Memo: "FAIL01", Amount: 39000})
		f.store.loadErr = domain.ErrStorage
		if _, err := f.uc.CheckOrder(ctx, usecase.OrderRequest{ReferenceCode: "FAIL01"}); !errors.Is(err, domain.ErrStorage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}
	})
}

func TestOrderUseCase_FirstMatchWins(t *testing.T) {
	f := newOrderFixture(t,
		model.BankTransaction{ID: "early", Memo: "DUP123", Amount: 19000},
		model.BankTransaction{ID: "late", Memo: "DUP123 again", Amount: 199000},
	)
	res, err := f.uc.CheckOrder(context.Background(), usecase.OrderRequest{ReferenceCode: "DUP123"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Credential.TransactionID != "early" || res.Tier != "1 Week" {
		t.Errorf("expected the earliest transaction to win, got %+v", res.Credential)
	}
	items, _ := f.store.LoadAll(context.Background(), repository.CollectionKeys)
	if len(items) != 1 {
		t.Errorf("expected one record, got %d", len(items))
	}
}

func TestOrderUseCase_CheckOrders(t *testing.T) {
	ctx := context.Background()

	t.Run("should settle every order from one feed fetch", func(t *testing.T) {
		f := newOrderFixture(t,
			model.BankTransaction{ID: "t1", Memo: "PAID01", Amount: 39000},
			model.BankTransaction{ID: "t2", Memo: "LOW001", Amount: 1000},
		)
		out := f.uc.CheckOrders(ctx, []usecase.OrderRequest{
			{ReferenceCode: "PAID01"},
			{ReferenceCode: "WAIT01"},
			{ReferenceCode: "LOW001"},
			{ReferenceCode: "x"},
		})
		if len(out) != 4 {
			t.Fatalf("expected 4 outcomes, got %d", len(out))
		}
		if f.feed.calls != 1 {
			t.Errorf("expected one feed fetch, got %d", f.feed.calls)
		}
		if out[0].Err != nil || out[0].Result.Status != usecase.OrderSuccess || out[0].Result.Tier != "1 Month" {
			t.Errorf("unexpected outcome for PAID01: %+v", out[0])
		}
		if out[1].Err != nil || out[1].Result.Status != usecase.OrderPending || !f.pending.has("WAIT01") {
			t.Errorf("expected WAIT01 to stay pending: %+v", out[1])
		}
		if out[2].Err != nil || out[2].Result.Status != usecase.OrderError {
			t.Errorf("expected a tier error for LOW001: %+v", out[2])
		}
		if !errors.Is(out[3].Err, domain.ErrValidation) {
			t.Errorf("expected a validation error for a short code, got %v", out[3].Err)
		}
	})

	t.Run("should keep every order pending when the feed is down", func(t *testing.T) {
		f := newOrderFixture(t)
		f.feed.err = errors.New("timeout")
		out := f.uc.CheckOrders(ctx, []usecase.OrderRequest{{ReferenceCode: "AAAA01"}, {ReferenceCode: "BBBB01"}})
		for _, o := range out {
			if o.Err != nil || o.Result.Status != usecase.OrderPending {
				t.Errorf("expected pending, got %+v", o)
			}
		}
		if f.feed.calls != 1 {
			t.Errorf("expected one feed fetch, got %d", f.feed.calls)
		}
	})

	t.Run("should not fetch when no code is valid", func(t *testing.T) {
		f := newOrderFixture(t)
		out := f.uc.CheckOrders(ctx, []usecase.OrderRequest{{ReferenceCode: "ab"}})
		if !errors.Is(out[0].Err, domain.ErrValidation) {
			t.Errorf("expected validation error, got %v", out[0].Err)
		}
		if f.feed.calls != 0 {
			t.Errorf("expected no feed fetch, got %d", f.feed.calls)
		}
	})
}
