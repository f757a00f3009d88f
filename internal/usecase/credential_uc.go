// File: internal/usecase/credential_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vip-key-shop/internal/domain"
	"vip-key-shop/internal/domain/model"
	"vip-key-shop/internal/domain/ports/repository"
	"vip-key-shop/internal/infra/logging"
	"vip-key-shop/internal/infra/metrics"
)

// Compile-time check
var _ CredentialUseCase = (*credentialUC)(nil)

type CredentialUseCase interface {
	// Issue mints a credential for a matched payment, or returns the one
	// already issued for the same reference code or bank transaction.
	Issue(ctx context.Context, referenceCode string, tx model.BankTransaction, tier model.Tier) (*IssueResult, error)
	// Verify redeems one use of key.
	Verify(ctx context.Context, key string) (*VerifyResult, error)

	Create(ctx context.Context, p CreateParams) (*model.CredentialRecord, error)
	List(ctx context.Context) ([]*model.CredentialRecord, model.CredentialStats, error)
	Delete(ctx context.Context, key string) (*model.CredentialRecord, error)
	Revoke(ctx context.Context, key string) (*model.CredentialRecord, error)
}

type IssueResult struct {
	Record  *model.CredentialRecord
	Created bool
}

type VerifyResult struct {
	Key           string
	RemainingUses *int // nil = unlimited
	ExpiresAt     *time.Time
	Unlimited     bool
	CurrentUses   int
}

// CreateParams describes a manually issued key. Zero Days or MaxUses means
// unlimited.
type CreateParams struct {
	Days      int
	MaxUses   int
	Notes     string
	CreatedBy string
}

type credentialUC struct {
	store  repository.CredentialStore
	newKey KeyGenerator
	now    func() time.Time
	log    *zerolog.Logger
}

func NewCredentialUseCase(store repository.CredentialStore, logger *zerolog.Logger) *credentialUC {
	l := logger.With().Str("component", "credential_uc").Logger()
	return &credentialUC{store: store, newKey: GenerateCredentialKey, now: time.Now, log: &l}
}

// WithKeyGenerator swaps the key source (tests).
func (u *credentialUC) WithKeyGenerator(g KeyGenerator) *credentialUC {
	u.newKey = g
	return u
}

// WithClock swaps the time source (tests).
func (u *credentialUC) WithClock(now func() time.Time) *credentialUC {
	u.now = now
	return u
}

func (u *credentialUC) Issue(ctx context.Context, referenceCode string, tx model.BankTransaction, tier model.Tier) (*IssueResult, error) {
	defer logging.TraceDuration(u.log, "CredentialUC.Issue")()

	ref := model.NormalizeReference(referenceCode)
	if ref == "" {
		return nil, fmt.Errorf("%w: reference code is required", domain.ErrValidation)
	}

	var res IssueResult
	err := u.store.Update(ctx, repository.CollectionKeys, func(items []*model.CredentialRecord) ([]*model.CredentialRecord, bool, error) {
		res = IssueResult{}
		for _, r := range items {
			if r.MatchesTransaction(ref, tx.ID) {
				res.Record = r
				return items, false, nil
			}
		}

		now := u.now()
		rec, err := u.mint(items, now)
		if err != nil {
			return nil, false, err
		}
		rec.ExpiresAt = tier.ExpiresAt(now)
		rec.MaxUses = tier.UsageLimit()
		rec.CreatedBy = model.CreatedByAutoPayment
		rec.TransactionCode = ref
		rec.TransactionID = tx.ID
		rec.Tier = tier.Name
		rec.Notes = model.LimitNotes(tier.DurationDays, tier.MaxUses)

		res.Record = rec
		res.Created = true
		return append([]*model.CredentialRecord{rec}, items...), true, nil
	})
	if err != nil {
		return nil, err
	}

	if res.Created {
		metrics.IncCredentialIssued(tier.Name, model.CreatedByAutoPayment)
		u.log.Info().Str("reference", ref).Str("tx_id", tx.ID).Str("tier", tier.Name).
			Int64("amount", tx.Amount).Msg("credential issued")
	} else {
		u.log.Info().Str("reference", ref).Str("tx_id", tx.ID).Msg("credential already issued for transaction")
	}
	return &res, nil
}

// mint builds an active record with a key not present in items.
func (u *credentialUC) mint(items []*model.CredentialRecord, now time.Time) (*model.CredentialRecord, error) {
	taken := make(map[string]struct{}, len(items))
	for _, r := range items {
		taken[r.Key] = struct{}{}
	}
	for i := 0; i < 5; i++ {
		key, err := u.newKey()
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		if _, dup := taken[key]; dup {
			continue
		}
		return &model.CredentialRecord{
			ID:        newRecordID(now),
			Key:       key,
			CreatedAt: now,
			Active:    true,
		}, nil
	}
	return nil, fmt.Errorf("generate key: too many collisions")
}

func (u *credentialUC) Verify(ctx context.Context, key string) (*VerifyResult, error) {
	defer logging.TraceDuration(u.log, "CredentialUC.Verify")()

	key = model.NormalizeKey(key)
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", domain.ErrValidation)
	}

	var (
		res      VerifyResult
		terminal error
	)
	err := u.store.Update(ctx, repository.CollectionKeys, func(items []*model.CredentialRecord) ([]*model.CredentialRecord, bool, error) {
		terminal = nil
		idx := indexOfKey(items, key)
		if idx < 0 {
			return nil, false, domain.ErrCredentialNotFound
		}
		rec := items[idx]
		now := u.now()

		switch {
		case !rec.Active:
			return nil, false, domain.ErrCredentialInactive
		case rec.IsExpired(now):
			// persisted even though the caller gets an error
			rec.Active = false
			terminal = domain.ErrCredentialExpired
			return items, true, nil
		case rec.IsExhausted():
			rec.Active = false
			terminal = domain.ErrCredentialExhausted
			return items, true, nil
		}

		rec.CurrentUses++
		rec.LastUsedAt = &now
		res = VerifyResult{
			Key:           rec.Key,
			RemainingUses: rec.RemainingUses(),
			ExpiresAt:     rec.ExpiresAt,
			Unlimited:     rec.IsUnlimited(),
			CurrentUses:   rec.CurrentUses,
		}
		return items, true, nil
	})
	if err == nil {
		err = terminal
	}
	if err != nil {
		metrics.IncVerification(strings.ToLower(domain.ErrorCode(err)))
		u.log.Debug().Err(err).Str("key", logging.Redact(key, false)).Msg("verification rejected")
		return nil, err
	}
	metrics.IncVerification("ok")
	return &res, nil
}

func (u *credentialUC) Create(ctx context.Context, p CreateParams) (*model.CredentialRecord, error) {
	if p.Days < 0 || p.MaxUses < 0 {
		return nil, fmt.Errorf("%w: days and uses must not be negative", domain.ErrValidation)
	}
	if p.CreatedBy == "" {
		p.CreatedBy = model.CreatedByAdminAPI
	}
	if strings.TrimSpace(p.Notes) == "" {
		p.Notes = model.LimitNotes(p.Days, p.MaxUses)
	}
	tier := model.Tier{DurationDays: p.Days, MaxUses: p.MaxUses}

	var rec *model.CredentialRecord
	err := u.store.Update(ctx, repository.CollectionKeys, func(items []*model.CredentialRecord) ([]*model.CredentialRecord, bool, error) {
		now := u.now()
		r, err := u.mint(items, now)
		if err != nil {
			return nil, false, err
		}
		r.ExpiresAt = tier.ExpiresAt(now)
		r.MaxUses = tier.UsageLimit()
		r.CreatedBy = p.CreatedBy
		r.Notes = strings.TrimSpace(p.Notes)
		rec = r
		return append([]*model.CredentialRecord{r}, items...), true, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncCredentialIssued("manual", p.CreatedBy)
	u.log.Info().Str("id", rec.ID).Str("created_by", p.CreatedBy).Int("days", p.Days).Int("uses", p.MaxUses).Msg("credential created")
	return rec, nil
}

// List returns records newest first together with their stats.
func (u *credentialUC) List(ctx context.Context) ([]*model.CredentialRecord, model.CredentialStats, error) {
	items, err := u.store.LoadAll(ctx, repository.CollectionKeys)
	if err != nil {
		return nil, model.CredentialStats{}, err
	}
	return items, model.ComputeCredentialStats(items, u.now()), nil
}

func (u *credentialUC) Delete(ctx context.Context, key string) (*model.CredentialRecord, error) {
	key = model.NormalizeKey(key)
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", domain.ErrValidation)
	}
	var removed *model.CredentialRecord
	err := u.store.Update(ctx, repository.CollectionKeys, func(items []*model.CredentialRecord) ([]*model.CredentialRecord, bool, error) {
		idx := indexOfKey(items, key)
		if idx < 0 {
			return nil, false, domain.ErrCredentialNotFound
		}
		removed = items[idx]
		out := make([]*model.CredentialRecord, 0, len(items)-1)
		out = append(out, items[:idx]...)
		out = append(out, items[idx+1:]...)
		return out, true, nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("id", removed.ID).Msg("credential deleted")
	return removed, nil
}

func (u *credentialUC) Revoke(ctx context.Context, key string) (*model.CredentialRecord, error) {
	key = model.NormalizeKey(key)
	if key == "" {
		return nil, fmt.Errorf("%w: key is required", domain.ErrValidation)
	}
	var rec *model.CredentialRecord
	err := u.store.Update(ctx, repository.CollectionKeys, func(items []*model.CredentialRecord) ([]*model.CredentialRecord, bool, error) {
		idx := indexOfKey(items, key)
		if idx < 0 {
			return nil, false, domain.ErrCredentialNotFound
		}
		rec = items[idx]
		if !rec.Active {
			return items, false, nil
		}
		rec.Active = false
		return items, true, nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("id", rec.ID).Msg("credential revoked")
	return rec, nil
}

func indexOfKey(items []*model.CredentialRecord, key string) int {
	for i, r := range items {
		if r.Key == key {
			return i
		}
	}
	return -1
}
