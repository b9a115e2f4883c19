package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-erp/meridian/internal/catalog"
	"github.com/meridian-erp/meridian/internal/shared"
	"github.com/meridian-erp/meridian/internal/stock"
)

// StockIntegration adapts the poster to the stock service's integration
// port so every direct movement triggers bookkeeping.
type StockIntegration struct {
	service *Service
	catalog *catalog.Service
}

// NewStockIntegration builds the adapter.
func NewStockIntegration(service *Service, catalogService *catalog.Service) *StockIntegration {
	return &StockIntegration{service: service, catalog: catalogService}
}

// HandleMovementRecorded posts or clears the ledger entry for a movement.
func (a *StockIntegration) HandleMovementRecorded(ctx context.Context, evt stock.MovementRecordedEvent) error {
	if a.service == nil {
		return errors.New("ledger: stock integration not initialised")
	}
	var product catalog.Product
	if a.catalog != nil {
		p, err := a.catalog.Get(ctx, evt.Movement.BusinessID, evt.Movement.ProductID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("ledger: resolve product: %w", err)
		}
		product = p
	}
	_, err := a.service.PostForMovement(ctx, evt.Movement, product)
	return err
}
