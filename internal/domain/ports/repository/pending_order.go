package repository

import (
	"context"
	"time"
)

// PendingOrder is a reference code that was checked before its payment
// showed up in the bank feed.
type PendingOrder struct {
	ReferenceCode string    `json:"reference_code"`
	TierHint      string    `json:"tier_hint,omitempty"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
}

// PendingOrderRepository remembers pending orders for the reconciler.
type PendingOrderRepository interface {
	Add(ctx context.Context, order *PendingOrder) error
	List(ctx context.Context, limit int) ([]*PendingOrder, error)
	Remove(ctx context.Context, referenceCode string) error
}
