package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"vip-key-shop/internal/domain/ports/repository"
	"vip-key-shop/internal/infra/metrics"
	"vip-key-shop/internal/infra/worker"
	"vip-key-shop/internal/usecase"
)

// OrderReconciler re-checks remembered pending orders so a buyer who closed
// the page still gets a key issued once the transfer lands. Admins are told
// through the order use case's notifier.
type OrderReconciler struct {
	orders   usecase.OrderUseCase
	pending  repository.PendingOrderRepository
	pool     *worker.Pool
	interval time.Duration
	batch    int
	maxAge   time.Duration
	log      *zerolog.Logger
}

type ReconcilerOptions struct {
	Interval time.Duration
	Batch    int
	// MaxAge drops orders that stayed unpaid longer than this.
	MaxAge time.Duration
}

func NewOrderReconciler(orders usecase.OrderUseCase, pending repository.PendingOrderRepository, pool *worker.Pool, opts ReconcilerOptions, logger *zerolog.Logger) *OrderReconciler {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Batch <= 0 {
		opts.Batch = 100
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 2 * time.Hour
	}
	l := logger.With().Str("component", "OrderReconciler").Logger()
	return &OrderReconciler{
		orders:   orders,
		pending:  pending,
		pool:     pool,
		interval: opts.Interval,
		batch:    opts.Batch,
		maxAge:   opts.MaxAge,
		log:      &l,
	}
}

func (r *OrderReconciler) Run(ctx context.Context) error {
	r.log.Info().Dur("interval", r.interval).Msg("Starting order reconciler")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("Stopping order reconciler")
			return ctx.Err()
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick drops stale pending orders and queues one task that settles the rest
// against a single bank feed fetch. It returns how many orders were queued.
func (r *OrderReconciler) Tick(ctx context.Context) int {
	list, err := r.pending.List(ctx, r.batch)
	if err != nil {
		r.log.Error().Err(err).Msg("list pending orders")
		return 0
	}
	reqs := make([]usecase.OrderRequest, 0, len(list))
	seen := make(map[string]time.Time, len(list))
	for _, po := range list {
		if time.Since(po.FirstSeenAt) > r.maxAge {
			if err := r.pending.Remove(ctx, po.ReferenceCode); err != nil {
				r.log.Warn().Err(err).Str("reference", po.ReferenceCode).Msg("drop stale pending order")
			}
			metrics.IncReconcile("expired")
			continue
		}
		reqs = append(reqs, usecase.OrderRequest{ReferenceCode: po.ReferenceCode, TierHint: po.TierHint})
		seen[po.ReferenceCode] = po.FirstSeenAt
	}
	if len(reqs) == 0 {
		return 0
	}
	err = r.pool.Submit(func(ctx context.Context) error {
		return r.reconcile(ctx, reqs, seen)
	})
	if errors.Is(err, worker.ErrQueueFull) {
		// the batch waits for the next tick
		r.log.Debug().Int("remaining", len(reqs)).Msg("worker pool saturated")
		return 0
	}
	return len(reqs)
}

func (r *OrderReconciler) reconcile(ctx context.Context, reqs []usecase.OrderRequest, firstSeen map[string]time.Time) error {
	var errs []error
	for _, o := range r.orders.CheckOrders(ctx, reqs) {
		if o.Err != nil {
			metrics.IncReconcile("error")
			errs = append(errs, o.Err)
			continue
		}
		switch o.Result.Status {
		case usecase.OrderSuccess:
			metrics.IncReconcile("issued")
			r.log.Info().Str("reference", o.Request.ReferenceCode).Str("tier", o.Result.Tier).
				Dur("waited", time.Since(firstSeen[o.Request.ReferenceCode])).Msg("pending order reconciled")
		case usecase.OrderPending:
			metrics.IncReconcile("pending")
		default:
			metrics.IncReconcile("no_tier")
		}
	}
	return errors.Join(errs...)
}
