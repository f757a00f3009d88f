package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"vip-key-shop/internal/domain/ports/repository"
)

var _ repository.PendingOrderRepository = (*PendingOrderRepo)(nil)

const pendingIndexKey = "pending_orders"

// PendingOrderRepo keeps one TTL'd JSON value per reference code plus a
// sorted index (score = first seen) the reconciler walks oldest first.
// Index entries whose value already expired are pruned lazily by List.
type PendingOrderRepo struct {
	cli *redis.Client
	ttl time.Duration
}

func NewPendingOrderRepo(c *Client, ttl time.Duration) *PendingOrderRepo {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &PendingOrderRepo{cli: c.cli, ttl: ttl}
}

func (r *PendingOrderRepo) orderKey(ref string) string {
	return fmt.Sprintf("pending_order:%s", ref)
}

// Add is idempotent: a second Add for the same code keeps the original
// FirstSeenAt and does not extend the TTL.
func (r *PendingOrderRepo) Add(ctx context.Context, order *repository.PendingOrder) error {
	if order.FirstSeenAt.IsZero() {
		order.FirstSeenAt = time.Now()
	}
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	created, err := r.cli.SetNX(ctx, r.orderKey(order.ReferenceCode), data, r.ttl).Result()
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	return r.cli.ZAddNX(ctx, pendingIndexKey, &redis.Z{
		Score:  float64(order.FirstSeenAt.Unix()),
		Member: order.ReferenceCode,
	}).Err()
}

func (r *PendingOrderRepo) List(ctx context.Context, limit int) ([]*repository.PendingOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	refs, err := r.cli.ZRange(ctx, pendingIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*repository.PendingOrder, 0, len(refs))
	var stale []interface{}
	for _, ref := range refs {
		raw, err := r.cli.Get(ctx, r.orderKey(ref)).Result()
		if errors.Is(err, redis.Nil) {
			stale = append(stale, ref)
			continue
		}
		if err != nil {
			return nil, err
		}
		var po repository.PendingOrder
		if err := json.Unmarshal([]byte(raw), &po); err != nil {
			stale = append(stale, ref)
			continue
		}
		out = append(out, &po)
	}
	if len(stale) > 0 {
		_ = r.cli.ZRem(ctx, pendingIndexKey, stale...).Err()
	}
	return out, nil
}

func (r *PendingOrderRepo) Remove(ctx context.Context, referenceCode string) error {
	pipe := r.cli.TxPipeline()
	pipe.Del(ctx, r.orderKey(referenceCode))
	pipe.ZRem(ctx, pendingIndexKey, referenceCode)
	_, err := pipe.Exec(ctx)
	return err
}
