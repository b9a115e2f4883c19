package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian/internal/stock"
)

// ValuationWarmup recomputes average costs for every product that has
// qualifying movements, so the first request after a cache flush does not
// pay for the full log replay.
type ValuationWarmup struct {
	pool    *pgxpool.Pool
	service *stock.Service
	logger  *slog.Logger
}

// NewValuationWarmup constructs the warmup job.
func NewValuationWarmup(pool *pgxpool.Pool, service *stock.Service, logger *slog.Logger) *ValuationWarmup {
	return &ValuationWarmup{pool: pool, service: service, logger: logger}
}

// Run warms the valuation cache for all known (business, product) pairs.
func (w *ValuationWarmup) Run(ctx context.Context) (int, error) {
	rows, err := w.pool.Query(ctx, `SELECT DISTINCT business_id, product_id FROM stock_movements ORDER BY business_id, product_id`)
	if err != nil {
		return 0, err
	}
	type pair struct{ businessID, productID int64 }
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.businessID, &p.productID); err != nil {
			rows.Close()
			return 0, err
		}
		pairs = append(pairs, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, p := range pairs {
		g.Go(func() error {
			if _, err := w.service.AverageCost(gctx, p.businessID, p.productID); err != nil {
				w.logger.Warn("valuation warmup",
					slog.Int64("business_id", p.businessID),
					slog.Int64("product_id", p.productID),
					slog.Any("error", err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(pairs), nil
}

// HandleTask adapts the warmup to an Asynq handler.
func (w *ValuationWarmup) HandleTask(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload[ValuationWarmupPayload](t)
	if err != nil {
		return err
	}
	started := time.Now()
	count, err := w.Run(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("valuation warmup finished",
		slog.Time("scheduled_for", payload.ScheduledFor),
		slog.Duration("took", time.Since(started)),
		slog.Int("products", count))
	return nil
}
