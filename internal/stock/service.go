package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, businessID, productID int64) ([]Movement, error)
	ListMovementsInRange(ctx context.Context, filter CardFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CatalogPort resolves the fallback purchase cost for a product.
type CatalogPort interface {
	FallbackCost(ctx context.Context, businessID, productID int64) (*int64, error)
}

// ValuationCache memoizes average-cost reads. The movement log stays the
// source of truth; entries are dropped on every qualifying write.
type ValuationCache interface {
	Get(ctx context.Context, businessID, productID int64) (int64, bool, error)
	Set(ctx context.Context, businessID, productID, cost int64) error
	Invalidate(ctx context.Context, businessID, productID int64) error
}

// Service coordinates movement log operations and cost valuation.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	catalog     CatalogPort
	cache       ValuationCache
	integration IntegrationHandler
	now         func() time.Time
}

// NewService builds Service. Audit, catalog, cache and integration are optional.
func NewService(repo RepositoryPort, audit AuditPort, catalog CatalogPort, cache ValuationCache, integration IntegrationHandler) *Service {
	return &Service{repo: repo, audit: audit, catalog: catalog, cache: cache, integration: integration, now: time.Now}
}

// SetIntegration binds the posting hook after construction. The ledger side
// needs this service for valuation, so the hook is wired last.
func (s *Service) SetIntegration(integration IntegrationHandler) {
	s.integration = integration
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// RecordMovement validates and appends one immutable movement row. There is
// no update or delete; corrections are recorded as new ADJUST movements.
func (s *Service) RecordMovement(ctx context.Context, input MovementInput) (Movement, error) {
	if err := input.Validate(); err != nil {
		return Movement{}, err
	}
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now().UTC()
	}
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertMovement(ctx, input, occurredAt)
		if err != nil {
			return err
		}
		movement = inserted
		return nil
	})
	if err != nil {
		return Movement{}, err
	}
	if s.cache != nil && qualifiesForAverage(movement) {
		if err := s.cache.Invalidate(ctx, movement.BusinessID, movement.ProductID); err != nil {
			return Movement{}, fmt.Errorf("stock: invalidate valuation cache: %w", err)
		}
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("stock:%s", movement.Kind),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", movement.ID),
			Meta: map[string]any{
				"business_id": movement.BusinessID,
				"product_id":  movement.ProductID,
				"quantity":    movement.Quantity,
				"source":      movement.Source,
			},
			At: s.now(),
		})
	}
	if s.integration != nil {
		if err := s.integration.HandleMovementRecorded(ctx, MovementRecordedEvent{Movement: movement}); err != nil {
			return Movement{}, err
		}
	}
	return movement, nil
}

// AverageCost returns the weighted-average unit cost of a product, falling
// back to the catalog purchase cost when no qualifying movement exists. The
// result is recomputed from the append-only log on every call unless the
// optional cache holds it.
func (s *Service) AverageCost(ctx context.Context, businessID, productID int64) (int64, error) {
	if businessID == 0 || productID == 0 {
		return 0, errors.New("stock: business and product required")
	}
	if s.cache != nil {
		if cost, ok, err := s.cache.Get(ctx, businessID, productID); err == nil && ok {
			return cost, nil
		}
	}
	movements, err := s.repo.ListMovements(ctx, businessID, productID)
	if err != nil {
		return 0, err
	}
	cost, ok := WeightedAverage(movements)
	if !ok {
		cost = 0
		if s.catalog != nil {
			fallback, err := s.catalog.FallbackCost(ctx, businessID, productID)
			if err != nil {
				return 0, err
			}
			if fallback != nil {
				cost = *fallback
			}
		}
		return cost, nil
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, businessID, productID, cost)
	}
	return cost, nil
}

// StockCard derives the running-balance card for a product from the log.
func (s *Service) StockCard(ctx context.Context, filter CardFilter) ([]CardEntry, error) {
	if filter.BusinessID == 0 || filter.ProductID == 0 {
		return nil, errors.New("stock: business and product required")
	}
	movements, err := s.repo.ListMovementsInRange(ctx, filter)
	if err != nil {
		return nil, err
	}
	entries := make([]CardEntry, 0, len(movements))
	var balance int64
	for _, m := range movements {
		delta := m.SignedQuantity()
		balance += delta
		entry := CardEntry{
			MovementID: m.ID,
			Kind:       m.Kind,
			Source:     m.Source,
			OccurredAt: m.OccurredAt,
			BalanceQty: balance,
			UnitCost:   m.UnitCost,
		}
		if delta >= 0 {
			entry.QtyIn = delta
		} else {
			entry.QtyOut = -delta
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SignedQuantity maps the stored positive quantity onto the stock direction
// implied by the kind.
func (m Movement) SignedQuantity() int64 {
	if m.Kind == MovementKindIssue {
		return -m.Quantity
	}
	return m.Quantity
}

func qualifiesForAverage(m Movement) bool {
	if m.Kind != MovementKindReceive && m.Kind != MovementKindAdjust {
		return false
	}
	return m.Quantity > 0 && m.UnitCost != nil
}
