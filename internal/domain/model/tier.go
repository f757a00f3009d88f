package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"vip-key-shop/internal/domain"
)

// Tier is a named entitlement bundle selected by payment amount.
// DurationDays 0 means no expiry; MaxUses 0 means unlimited redemptions.
type Tier struct {
	Name         string `json:"name"`
	MinAmount    int64  `json:"min_amount"`
	DurationDays int    `json:"duration_days"`
	MaxUses      int    `json:"max_uses"`
}

// ExpiresAt returns the expiry for a credential issued at now, or nil when
// the tier has unlimited duration.
func (t Tier) ExpiresAt(now time.Time) *time.Time {
	if t.DurationDays <= 0 {
		return nil
	}
	ex := now.Add(time.Duration(t.DurationDays) * 24 * time.Hour)
	return &ex
}

// UsageLimit returns nil when the tier allows unlimited redemptions.
func (t Tier) UsageLimit() *int {
	if t.MaxUses <= 0 {
		return nil
	}
	n := t.MaxUses
	return &n
}

// TierTable is a threshold table ordered by descending MinAmount.
type TierTable struct {
	tiers []Tier
}

// NewTierTable validates tiers and orders them highest threshold first.
func NewTierTable(tiers []Tier) (*TierTable, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: tier table is empty", domain.ErrValidation)
	}
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	seen := make(map[int64]string, len(sorted))
	for _, t := range sorted {
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("%w: tier name is required", domain.ErrValidation)
		}
		if t.MinAmount <= 0 || t.DurationDays < 0 || t.MaxUses < 0 {
			return nil, fmt.Errorf("%w: tier %q has negative or zero limits", domain.ErrValidation, t.Name)
		}
		if other, dup := seen[t.MinAmount]; dup {
			return nil, fmt.Errorf("%w: tiers %q and %q share threshold %d", domain.ErrValidation, other, t.Name, t.MinAmount)
		}
		seen[t.MinAmount] = t.Name
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinAmount > sorted[j].MinAmount })
	return &TierTable{tiers: sorted}, nil
}

// Resolve returns the first tier, scanning from the highest threshold down,
// whose minimum the amount meets.
func (tt *TierTable) Resolve(amount int64) (Tier, error) {
	for _, t := range tt.tiers {
		if amount >= t.MinAmount {
			return t, nil
		}
	}
	return Tier{}, fmt.Errorf("%w: amount %d", domain.ErrTierNotFound, amount)
}

// ByName finds a tier case-insensitively.
func (tt *TierTable) ByName(name string) (Tier, bool) {
	name = strings.TrimSpace(name)
	for _, t := range tt.tiers {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Tier{}, false
}

// Tiers returns a copy of the ordered table.
func (tt *TierTable) Tiers() []Tier {
	out := make([]Tier, len(tt.tiers))
	copy(out, tt.tiers)
	return out
}

// DefaultTiers is the threshold table of the automatic key checkout.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "1 Year", MinAmount: 199000, DurationDays: 366},
		{Name: "6 Months", MinAmount: 149000, DurationDays: 181},
		{Name: "1 Month", MinAmount: 39000, DurationDays: 31},
		{Name: "1 Week", MinAmount: 19000, DurationDays: 8},
		{Name: "Single", MinAmount: 5000, MaxUses: 20},
	}
}
